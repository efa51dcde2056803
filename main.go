package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jjdimalanta/mangan-app/config"
	"github.com/jjdimalanta/mangan-app/database"
	"github.com/jjdimalanta/mangan-app/middlewares"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/router"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
	"gorm.io/gorm"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}
	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := autoMigrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	if err := database.Seed(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to seed database: %v", err)
	}

	// Reminder emails/SMS go through a single notifier worker.
	notifier := services.GetNotifier()
	notifier.Start()
	defer notifier.Stop()

	// Background sweeper: flags silent carts, schedules and sends
	// recovery reminders, expires stale checkouts.
	recovery := services.NewRecoveryService(db, notifier)
	recovery.Start()
	defer recovery.Stop()

	r := router.SetupRouter(db, recovery, notifier)

	rateLimiter := middlewares.NewRateLimiter(50, 1)
	r.Use(rateLimiter.RateLimit())

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.ProductCategory{},
		&models.Product{},
		&models.FlavorRule{},
		&models.Flavor{},
		&models.CartSession{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderItemFlavor{},
		&models.PaymentProof{},
		&models.AbandonedCheckout{},
		&models.AbandonedCheckoutEvent{},
		&models.AbandonedCheckoutReminder{},
		&models.Reservation{},
		&models.Setting{},
	)
	if err != nil {
		return err
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
