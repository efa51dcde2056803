package Controllers_test

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/config"
	"github.com/jjdimalanta/mangan-app/controllers"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/pricing"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

func setupTestDBForCheckout() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	err = db.AutoMigrate(
		&models.ProductCategory{},
		&models.Product{},
		&models.FlavorRule{},
		&models.Flavor{},
		&models.CartSession{},
		&models.Customer{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderItemFlavor{},
		&models.PaymentProof{},
		&models.AbandonedCheckout{},
		&models.AbandonedCheckoutEvent{},
		&models.AbandonedCheckoutReminder{},
	)
	if err != nil {
		panic(err)
	}
	return db
}

// seedCheckoutCatalog mirrors seedCartCatalog with its own rows so checkout
// assertions never depend on cart test data. Idempotent for the same reason.
func seedCheckoutCatalog(db *gorm.DB) (rice, wings models.Product, buffalo, salted models.Flavor) {
	if err := db.Where("name = ?", "Checkout Garlic Rice").First(&rice).Error; err == nil {
		db.Where("name = ?", "Checkout Wings 6pcs").First(&wings)
		db.Where("name = ?", "Checkout Classic Buffalo").First(&buffalo)
		db.Where("name = ?", "Checkout Salted Egg").First(&salted)
		return rice, wings, buffalo, salted
	}

	category := models.ProductCategory{Name: "Checkout Test Menu"}
	db.Create(&category)

	rice = models.Product{
		CategoryID:  category.ID,
		Name:        "Checkout Garlic Rice",
		Price:       45,
		ProductType: models.ProductTypeSimple,
		IsActive:    true,
	}
	rice.SetImageUrls(nil)
	db.Create(&rice)

	wings = models.Product{
		CategoryID:  category.ID,
		Name:        "Checkout Wings 6pcs",
		Price:       200,
		ProductType: models.ProductTypeFlavored,
		IsActive:    true,
	}
	wings.SetImageUrls(nil)
	db.Create(&wings)

	rule := models.FlavorRule{
		ProductID:      wings.ID,
		TotalUnits:     6,
		UnitsPerFlavor: 3,
		MinFlavors:     1,
		MaxFlavors:     2,
		PricingPolicy:  models.PolicyPerSlot,
	}
	db.Create(&rule)

	buffalo = models.Flavor{Name: "Checkout Classic Buffalo", Surcharge: 0, FlavorType: models.FlavorTypeAllTime, Category: "wings", IsActive: true}
	db.Create(&buffalo)
	salted = models.Flavor{Name: "Checkout Salted Egg", Surcharge: 40, FlavorType: models.FlavorTypeSpecial, Category: "wings", IsActive: true}
	db.Create(&salted)
	return rice, wings, buffalo, salted
}

// storeCheckoutCart persists a snapshot worth 330: garlic rice x2 plus a
// 6-piece wings order with a premium flavor on half the pieces.
func storeCheckoutCart(t *testing.T, db *gorm.DB, key string) {
	rice, wings, buffalo, salted := seedCheckoutCatalog(db)

	cart := &pricing.Cart{}
	cart.AddSimple(pricing.SnapshotOf(&rice))
	cart.AddSimple(pricing.SnapshotOf(&rice))

	lineFlavors, err := pricing.ComposeFlavored(
		pricing.Resolve(&wings),
		pricing.Selection{buffalo.ID: 3, salted.ID: 3},
		map[uint]models.Flavor{buffalo.ID: buffalo, salted.ID: salted},
	)
	assert.NoError(t, err)
	cart.AddFlavored(pricing.SnapshotOf(&wings), lineFlavors)
	assert.Equal(t, float64(330), cart.Subtotal())

	snapshot, err := pricing.EncodeSnapshot(cart)
	assert.NoError(t, err)
	assert.NoError(t, db.Create(&models.CartSession{SessionKey: key, Snapshot: snapshot}).Error)
}

func setupCheckoutRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	notifier := services.NewNotifier(&services.LogGateway{})
	recovery := services.NewRecoveryService(db, notifier)
	geocoder := services.NewGeocodeService(nil, config.Delivery())
	checkout := services.NewCheckoutService(db, geocoder, recovery, notifier)

	checkoutCtrl := controllers.NewCheckoutController(db, checkout)
	router.POST("/checkout", checkoutCtrl.Submit)
	router.POST("/orders/proof", checkoutCtrl.AttachProof)
	return router
}

// removeProofFile deletes the file behind a returned /uploads/... URL so test
// runs leave nothing under public/.
func removeProofFile(imageURL string) {
	rel := strings.TrimPrefix(imageURL, "/")
	if rel == "" || rel == imageURL {
		return
	}
	os.Remove(filepath.Join("public", rel))
}

func TestCheckoutPickupCash(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForCheckout()
	router := setupCheckoutRouter(db)

	const key = "checkout-pickup-001"
	storeCheckoutCart(t, db, key)

	w := doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key,
		"name":           "Checkout Ana Cruz",
		"phone":          "09171234601",
		"email":          "ana.cruz@mangan.ph",
		"order_type":     "pickup",
		"payment_method": "cash",
		"notes":          "Extra toyomansi please",
	}, "", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	data := responseData(t, w)
	reference, _ := data["reference"].(string)
	assert.True(t, strings.HasPrefix(reference, "ORD/"), "reference %q should carry the ORD prefix", reference)
	assert.Equal(t, models.OrderStatusPending, data["status"])
	assert.Equal(t, float64(330), data["subtotal"])
	assert.Equal(t, float64(0), data["delivery_fee"])
	assert.Equal(t, float64(330), data["total"])

	// Successful checkout consumes the stored cart.
	var sessions int64
	db.Model(&models.CartSession{}).Where("session_key = ?", key).Count(&sessions)
	assert.Equal(t, int64(0), sessions)

	var customer models.Customer
	assert.NoError(t, db.Where("phone = ?", "09171234601").First(&customer).Error)
	assert.Equal(t, "Checkout Ana Cruz", customer.Name)

	orderID := uint(data["id"].(float64))
	var items []models.OrderItem
	db.Where("order_id = ?", orderID).Find(&items)
	assert.Len(t, items, 2)
}

func TestCheckoutValidation(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForCheckout()
	router := setupCheckoutRouter(db)

	const key = "checkout-invalid-001"
	storeCheckoutCart(t, db, key)

	// Missing contact fields come back as per-field errors.
	w := doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key,
		"order_type":     "pickup",
		"payment_method": "cash",
	}, "", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields, ok := responseData(t, w)["fields"].(map[string]interface{})
	assert.True(t, ok)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "phone")

	// No stored cart under this key.
	w = doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    "checkout-ghost-001",
		"name":           "Checkout Ghost",
		"phone":          "09171234602",
		"order_type":     "pickup",
		"payment_method": "cash",
	}, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key,
		"name":           "Checkout Ana Cruz",
		"phone":          "09171234601",
		"order_type":     "pickup",
		"payment_method": "paypal",
	}, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key,
		"name":           "Checkout Ana Cruz",
		"phone":          "09171234601",
		"order_type":     "takeout",
		"payment_method": "cash",
	}, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Rejected submissions leave the cart alone.
	var sessions int64
	db.Model(&models.CartSession{}).Where("session_key = ?", key).Count(&sessions)
	assert.Equal(t, int64(1), sessions)
}

func TestCheckoutGCashProofFlow(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForCheckout()
	router := setupCheckoutRouter(db)

	const key = "checkout-gcash-001"
	storeCheckoutCart(t, db, key)

	// GCash with a screenshot goes straight to verification.
	w := doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key,
		"name":           "Checkout Ben Santos",
		"phone":          "09171234603",
		"order_type":     "pickup",
		"payment_method": "gcash",
	}, "payment_proof", "gcash.jpg", []byte("fake image bytes"))
	assert.Equal(t, http.StatusCreated, w.Code)

	data := responseData(t, w)
	assert.Equal(t, models.OrderStatusForVerification, data["status"])
	orderID := uint(data["id"].(float64))
	reference := data["reference"].(string)

	var proofs []models.PaymentProof
	db.Where("order_id = ?", orderID).Find(&proofs)
	assert.Len(t, proofs, 1)
	assert.Equal(t, models.ProofStatusPending, proofs[0].Status)
	defer removeProofFile(proofs[0].ImageURL)

	// A replacement upload supersedes the first proof.
	w = doMultipart(t, router, "POST", "/orders/proof?ref="+url.QueryEscape(reference),
		nil, "payment_proof", "gcash-v2.png", []byte("better screenshot"))
	assert.Equal(t, http.StatusCreated, w.Code)

	data = responseData(t, w)
	assert.Equal(t, models.OrderStatusForVerification, data["order_status"])
	proof, ok := data["proof"].(map[string]interface{})
	assert.True(t, ok)
	defer removeProofFile(proof["image_url"].(string))

	var pending int64
	db.Model(&models.PaymentProof{}).
		Where("order_id = ? AND status = ?", orderID, models.ProofStatusPending).
		Count(&pending)
	assert.Equal(t, int64(1), pending)

	var rejected int64
	db.Model(&models.PaymentProof{}).
		Where("order_id = ? AND status = ?", orderID, models.ProofStatusRejected).
		Count(&rejected)
	assert.Equal(t, int64(1), rejected)
}

func TestAttachProofGuards(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForCheckout()
	router := setupCheckoutRouter(db)

	w := doMultipart(t, router, "POST", "/orders/proof?ref=ORD/20990101/000000",
		nil, "payment_proof", "late.jpg", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Cash orders never take a proof.
	const key = "checkout-cashproof-001"
	storeCheckoutCart(t, db, key)
	w = doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key,
		"name":           "Checkout Cora Reyes",
		"phone":          "09171234604",
		"order_type":     "dine_in",
		"payment_method": "cash",
	}, "", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	reference := responseData(t, w)["reference"].(string)

	w = doMultipart(t, router, "POST", "/orders/proof?ref="+url.QueryEscape(reference),
		nil, "payment_proof", "cash.jpg", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// GCash order without a file in the attach call.
	const key2 = "checkout-nofile-001"
	storeCheckoutCart(t, db, key2)
	w = doMultipart(t, router, "POST", "/checkout", map[string]string{
		"session_key":    key2,
		"name":           "Checkout Dino Lim",
		"phone":          "09171234605",
		"order_type":     "pickup",
		"payment_method": "gcash",
	}, "", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	data := responseData(t, w)
	assert.Equal(t, models.OrderStatusPending, data["status"])
	reference = data["reference"].(string)

	w = doMultipart(t, router, "POST", "/orders/proof?ref="+url.QueryEscape(reference),
		nil, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
