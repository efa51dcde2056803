package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/controllers"
	"github.com/jjdimalanta/mangan-app/middlewares"
	"github.com/jjdimalanta/mangan-app/services"
)

// SetupRouter wires every HTTP surface: the public storefront, the admin and
// driver dashboards, and the websocket channels. The recovery service and
// notifier are shared with the background loops main starts.
func SetupRouter(db *gorm.DB, recovery *services.RecoveryService, notifier *services.Notifier) *gin.Engine {
	r := gin.Default()

	// Uploaded assets (menu images, payment proofs, delivery photos, menu PDF).
	workDir, _ := os.Getwd()
	uploadsPath := filepath.Join(workDir, "public", "uploads")
	r.Static("/uploads", uploadsPath)

	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/uploads/") {
			allowed := false
			for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf"} {
				if strings.HasSuffix(strings.ToLower(c.Request.URL.Path), ext) {
					allowed = true
					break
				}
			}
			if !allowed {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	})

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	geocoder := services.GetGeocodeService()
	checkoutService := services.NewCheckoutService(db, geocoder, recovery, notifier)

	userCtrl := controllers.NewUserController(db)
	catalogCtrl := controllers.NewCatalogController(db)
	cartCtrl := controllers.NewCartController(db, recovery)
	deliveryCtrl := controllers.NewDeliveryController(geocoder)
	checkoutCtrl := controllers.NewCheckoutController(db, checkoutService)
	orderCtrl := controllers.NewOrderController(db)
	reservationCtrl := controllers.NewReservationController(db)
	recoveryCtrl := controllers.NewRecoveryController(db, recovery)
	settingCtrl := controllers.NewSettingController(db)
	dashboardCtrl := controllers.NewDashboardController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter for login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}
	r.POST("/logout", userCtrl.Logout)

	// -- STOREFRONT (no auth) --
	r.GET("/categories", catalogCtrl.GetCategories)
	r.GET("/products", catalogCtrl.GetProducts)
	r.GET("/products/:product_id", catalogCtrl.GetProductByID)
	r.GET("/flavors", catalogCtrl.GetFlavors)
	r.GET("/settings", settingCtrl.GetPublicSettings)

	// Cart snapshot, keyed by the browser session
	r.GET("/carts/:session_key", cartCtrl.GetCart)
	r.POST("/carts/:session_key/items", cartCtrl.AddSimpleItem)
	r.POST("/carts/:session_key/flavored-items", cartCtrl.AddFlavoredItem)
	r.PATCH("/carts/:session_key/items/:line_id", cartCtrl.UpdateItemQuantity)
	r.DELETE("/carts/:session_key/items/:line_id", cartCtrl.RemoveItem)
	r.DELETE("/carts/:session_key", cartCtrl.ClearCart)
	r.POST("/carts/:session_key/contact", cartCtrl.CaptureContact)

	r.POST("/delivery/quote", deliveryCtrl.QuoteFee)

	// Checkout gets its own throttle, body cap and audit trail
	checkout := r.Group("/checkout")
	checkout.Use(
		middlewares.CheckoutRateLimiter(),
		middlewares.MaxBodySize(10<<20),
		middlewares.LogCheckoutRequest(),
		middlewares.UploadLoggerMiddleware(),
	)
	{
		checkout.POST("", checkoutCtrl.Submit)
	}

	proofUpload := r.Group("/orders/proof")
	proofUpload.Use(middlewares.MaxBodySize(10<<20), middlewares.UploadLoggerMiddleware())
	{
		proofUpload.POST("", checkoutCtrl.AttachProof)
	}

	r.GET("/orders/track", orderCtrl.TrackOrder)

	r.GET("/reservations/slots", reservationCtrl.GetSlots)
	r.POST("/reservations", reservationCtrl.CreateReservation)

	// ----------------------------------------------------------------
	//                      ADMIN / STAFF ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.RequireRoles("admin", "staff"))

	admin.GET("/profile", userCtrl.GetProfile)
	admin.GET("/users", userCtrl.GetAllUsers)

	// CATALOG
	admin.GET("/products", catalogCtrl.GetProducts)
	admin.POST("/products", catalogCtrl.CreateProduct)
	admin.GET("/products/:product_id", catalogCtrl.GetProductByID)
	admin.PATCH("/products/:product_id", catalogCtrl.UpdateProduct)
	admin.DELETE("/products/:product_id", catalogCtrl.DeleteProduct)

	admin.POST("/categories", catalogCtrl.CreateCategory)
	admin.PATCH("/categories/:category_id", catalogCtrl.UpdateCategory)
	admin.DELETE("/categories/:category_id", catalogCtrl.DeleteCategory)

	admin.GET("/flavors", catalogCtrl.GetFlavors)
	admin.POST("/flavors", catalogCtrl.CreateFlavor)
	admin.PATCH("/flavors/:flavor_id", catalogCtrl.UpdateFlavor)
	admin.DELETE("/flavors/:flavor_id", catalogCtrl.DeleteFlavor)

	admin.POST("/menu-pdf", catalogCtrl.GenerateMenuPDF)

	// ORDERS
	admin.GET("/orders", orderCtrl.GetAllOrders)
	admin.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	admin.PATCH("/orders/:order_id/status", orderCtrl.UpdateStatus)
	admin.PATCH("/orders/:order_id/proof", orderCtrl.ReviewProof)
	admin.PATCH("/orders/:order_id/driver", orderCtrl.AssignDriver)

	// RESERVATIONS
	admin.GET("/reservations", reservationCtrl.GetAllReservations)
	admin.PATCH("/reservations/:reservation_id", reservationCtrl.UpdateReservationStatus)

	// ABANDONED CHECKOUTS
	admin.GET("/abandoned-checkouts", recoveryCtrl.GetAbandonedCheckouts)
	admin.GET("/abandoned-checkouts/stats", recoveryCtrl.GetRecoveryStats)
	admin.GET("/abandoned-checkouts/:checkout_id", recoveryCtrl.GetCheckoutDetail)
	admin.POST("/abandoned-checkouts/:checkout_id/remind", recoveryCtrl.ScheduleReminders)

	// SETTINGS
	admin.GET("/settings", settingCtrl.GetAllSettings)
	admin.PUT("/settings", settingCtrl.UpdateSettings)

	admin.GET("/dashboard/stats", dashboardCtrl.GetDashboardStats)

	// ----------------------------------------------------------------
	//                      DRIVER ROUTES
	// ----------------------------------------------------------------
	driver := r.Group("/driver")
	driver.Use(middlewares.AuthMiddleware(), middlewares.RequireRoles("driver"))

	driver.GET("/profile", userCtrl.GetProfile)
	driver.GET("/orders", orderCtrl.GetDriverOrders)
	driver.POST("/orders/:order_id/accept", orderCtrl.AcceptOrder)
	driver.POST("/orders/:order_id/status", orderCtrl.DriverUpdateStatus)

	// WebSocket endpoint per role channel
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware(), middlewares.RoleCheck())
	{
		wsGroup.GET("/:role", controllers.LiveHandler)
	}

	return r
}
