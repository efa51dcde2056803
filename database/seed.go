package database

import (
	"errors"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

// Seed fills a fresh database with the rows the app cannot run without:
// operating settings, one admin account, and a starter catalog. Everything is
// idempotent; existing rows are left alone.
func Seed(db *gorm.DB) error {
	if err := seedSettings(db); err != nil {
		return err
	}
	if err := seedAdmin(db); err != nil {
		return err
	}
	return seedCatalog(db)
}

func seedSettings(db *gorm.DB) error {
	defaults := map[string]string{
		models.SettingStoreHours:             "10:00-21:00",
		models.SettingReservationSlotMinutes: "60",
		models.SettingReservationCapacity:    "5",
	}

	for key, value := range defaults {
		var setting models.Setting
		err := db.Where("`key` = ?", key).First(&setting).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&models.Setting{Key: key, Value: value}).Error; err != nil {
			return err
		}
		utils.InfoLogger.Printf("Seeded setting %s = %s", key, value)
	}
	return nil
}

func seedAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@mangan.ph"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "manganadmin"
		utils.ErrorLogger.Printf("ADMIN_PASSWORD not set, seeding admin with the default password. Change it.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	utils.InfoLogger.Printf("Seeded admin account %s", email)
	return nil
}

// seedCatalog creates a starter menu so a fresh install renders a storefront.
// Skipped entirely once any product exists.
func seedCatalog(db *gorm.DB) error {
	var count int64
	db.Model(&models.Product{}).Count(&count)
	if count > 0 {
		return nil
	}

	categories := []models.ProductCategory{
		{Name: "Wings", SortOrder: 1},
		{Name: "Rice Meals", SortOrder: 2},
		{Name: "Sides", SortOrder: 3},
		{Name: "Drinks", SortOrder: 4},
	}
	for i := range categories {
		if err := db.Create(&categories[i]).Error; err != nil {
			return err
		}
	}

	flavors := []models.Flavor{
		{Name: "Buffalo Classic", FlavorType: models.FlavorTypeAllTime, Category: "wings", IsActive: true},
		{Name: "Garlic Parmesan", FlavorType: models.FlavorTypeAllTime, Category: "wings", IsActive: true},
		{Name: "Soy Garlic", FlavorType: models.FlavorTypeAllTime, Category: "wings", IsActive: true},
		{Name: "Barbecue", FlavorType: models.FlavorTypeAllTime, Category: "wings", IsActive: true},
		{Name: "Truffle Parmesan", FlavorType: models.FlavorTypeSpecial, Surcharge: 40, Category: "wings", IsActive: true},
		{Name: "Salted Egg", FlavorType: models.FlavorTypeSpecial, Surcharge: 40, Category: "wings", IsActive: true},
	}
	for i := range flavors {
		if err := db.Create(&flavors[i]).Error; err != nil {
			return err
		}
	}

	type seedProduct struct {
		product models.Product
		rule    *models.FlavorRule
	}
	products := []seedProduct{
		{
			product: models.Product{
				CategoryID:  categories[0].ID,
				Name:        "6pc Wings",
				Description: "Six wings, up to two flavors.",
				Price:       200,
				ProductType: models.ProductTypeFlavored,
				IsActive:    true,
			},
			rule: &models.FlavorRule{TotalUnits: 6, UnitsPerFlavor: 3, MinFlavors: 1, MaxFlavors: 2, PricingPolicy: models.PolicyPerSlot},
		},
		{
			product: models.Product{
				CategoryID:  categories[0].ID,
				Name:        "12pc Wings",
				Description: "Twelve wings, up to four flavors.",
				Price:       380,
				ProductType: models.ProductTypeFlavored,
				IsActive:    true,
			},
			rule: &models.FlavorRule{TotalUnits: 12, UnitsPerFlavor: 3, MinFlavors: 1, MaxFlavors: 4, PricingPolicy: models.PolicyPerSlot},
		},
		{
			product: models.Product{
				CategoryID:  categories[1].ID,
				Name:        "Lumpiang Shanghai",
				Description: "Crispy pork spring rolls with dipping sauce.",
				Price:       150,
				ProductType: models.ProductTypeSimple,
				IsActive:    true,
			},
		},
		{
			product: models.Product{
				CategoryID:  categories[1].ID,
				Name:        "Garlic Rice",
				Price:       45,
				ProductType: models.ProductTypeSimple,
				IsActive:    true,
			},
		},
		{
			product: models.Product{
				CategoryID:  categories[3].ID,
				Name:        "House Iced Tea",
				Price:       60,
				ProductType: models.ProductTypeSimple,
				IsActive:    true,
			},
		},
	}

	for i := range products {
		p := &products[i]
		if err := p.product.SetImageUrls(nil); err != nil {
			return err
		}
		if err := db.Create(&p.product).Error; err != nil {
			return err
		}
		if p.rule != nil {
			p.rule.ProductID = p.product.ID
			if err := db.Create(p.rule).Error; err != nil {
				return err
			}
		}
	}

	utils.InfoLogger.Printf("Seeded starter catalog: %d categories, %d flavors, %d products",
		len(categories), len(flavors), len(products))
	return nil
}
