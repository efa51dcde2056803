package Controllers_test

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/controllers"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

func setupTestDBForOrders() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderItemFlavor{},
		&models.PaymentProof{},
	)
	if err != nil {
		panic(err)
	}
	return db
}

func seedOrderStaff(db *gorm.DB) (admin, rider models.User) {
	if err := db.Where("email = ?", "order.admin@mangan.ph").First(&admin).Error; err == nil {
		db.Where("email = ?", "order.rider@mangan.ph").First(&rider)
		return admin, rider
	}
	admin = models.User{Name: "Order Admin", Email: "order.admin@mangan.ph", Password: "unused-hash", Role: models.RoleAdmin}
	db.Create(&admin)
	rider = models.User{Name: "Order Rider Jun", Email: "order.rider@mangan.ph", Password: "unused-hash", Role: models.RoleDriver}
	db.Create(&rider)
	return admin, rider
}

func seedOrder(db *gorm.DB, reference, orderType, status string) models.Order {
	customer := models.Customer{Name: "Order Flow Tester", Phone: "09170000001"}
	db.Create(&customer)
	order := models.Order{
		Reference:     reference,
		CustomerID:    customer.ID,
		OrderType:     orderType,
		Status:        status,
		PaymentMethod: models.PaymentMethodCash,
		Subtotal:      330,
		Total:         330,
	}
	db.Create(&order)
	return order
}

// setupOrderRouter wires the admin and driver groups with stand-in identities
// instead of the JWT middleware, mirroring the production route table.
func setupOrderRouter(db *gorm.DB, adminID, riderID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	orderCtrl := controllers.NewOrderController(db)

	asUser := func(id uint, role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("user_id", id)
			c.Set("role", role)
		}
	}

	admin := router.Group("/admin", asUser(adminID, models.RoleAdmin))
	admin.GET("/orders", orderCtrl.GetAllOrders)
	admin.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	admin.PATCH("/orders/:order_id/status", orderCtrl.UpdateStatus)
	admin.PATCH("/orders/:order_id/proof", orderCtrl.ReviewProof)
	admin.PATCH("/orders/:order_id/driver", orderCtrl.AssignDriver)

	driver := router.Group("/driver", asUser(riderID, models.RoleDriver))
	driver.GET("/orders", orderCtrl.GetDriverOrders)
	driver.POST("/orders/:order_id/accept", orderCtrl.AcceptOrder)
	driver.POST("/orders/:order_id/status", orderCtrl.DriverUpdateStatus)

	router.GET("/orders/track", orderCtrl.TrackOrder)
	return router
}

func orderIDPath(order models.Order, suffix string) string {
	return "/admin/orders/" + strconv.Itoa(int(order.ID)) + suffix
}

func TestOrderStatusTransitions(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForOrders()
	admin, rider := seedOrderStaff(db)
	router := setupOrderRouter(db, admin.ID, rider.ID)

	order := seedOrder(db, "ORD/20250601/900001", models.OrderTypePickup, models.OrderStatusApproved)

	w := doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{
		"status": models.OrderStatusPreparing,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, models.OrderStatusPreparing, data["order"].(map[string]interface{})["status"])
	// A pickup order never forks to waiting_for_rider.
	assert.Equal(t, []interface{}{models.OrderStatusReadyForPickup}, data["next_statuses"])

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{
		"status": models.OrderStatusDelivered,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "legal next")

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{
		"status": models.OrderStatusReadyForPickup,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{
		"status": models.OrderStatusCompleted,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, responseData(t, w)["next_statuses"])

	// Completed is terminal.
	w = doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{
		"status": models.OrderStatusPreparing,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "PATCH", "/admin/orders/999999/status", map[string]interface{}{
		"status": models.OrderStatusPreparing,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "GET", orderIDPath(order, ""), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data = responseData(t, w)
	assert.Equal(t, order.Reference, data["order"].(map[string]interface{})["reference"])
}

func TestReviewProof(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForOrders()
	admin, rider := seedOrderStaff(db)
	router := setupOrderRouter(db, admin.ID, rider.ID)

	order := seedOrder(db, "ORD/20250601/900002", models.OrderTypePickup, models.OrderStatusForVerification)
	db.Create(&models.PaymentProof{OrderID: order.ID, ImageURL: "/uploads/payment_proofs/review-900002.jpg", Status: models.ProofStatusPending})

	w := doJSON(t, router, "PATCH", orderIDPath(order, "/proof"), map[string]interface{}{
		"action": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/proof"), map[string]interface{}{
		"action": "approve",
		"notes":  "GCash reference checked against the wallet",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, models.OrderStatusApproved, data["order"].(map[string]interface{})["status"])
	assert.Equal(t, models.ProofStatusApproved, data["proof"].(map[string]interface{})["status"])

	var proof models.PaymentProof
	assert.NoError(t, db.Where("order_id = ?", order.ID).First(&proof).Error)
	if assert.NotNil(t, proof.ReviewedBy) {
		assert.Equal(t, admin.ID, *proof.ReviewedBy)
	}
	assert.NotNil(t, proof.ReviewedAt)

	// Nothing pending is left to review.
	w = doJSON(t, router, "PATCH", orderIDPath(order, "/proof"), map[string]interface{}{
		"action": "approve",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	rejected := seedOrder(db, "ORD/20250601/900003", models.OrderTypeDineIn, models.OrderStatusForVerification)
	db.Create(&models.PaymentProof{OrderID: rejected.ID, ImageURL: "/uploads/payment_proofs/review-900003.jpg", Status: models.ProofStatusPending})

	w = doJSON(t, router, "PATCH", orderIDPath(rejected, "/proof"), map[string]interface{}{
		"action": "reject",
		"notes":  "Amount does not match the order total",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	data = responseData(t, w)
	assert.Equal(t, models.OrderStatusRejected, data["order"].(map[string]interface{})["status"])
	assert.Equal(t, "Amount does not match the order total", data["proof"].(map[string]interface{})["notes"])
}

func TestDriverFlow(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForOrders()
	admin, rider := seedOrderStaff(db)
	router := setupOrderRouter(db, admin.ID, rider.ID)

	order := seedOrder(db, "ORD/20250601/900004", models.OrderTypeDelivery, models.OrderStatusWaitingForRider)

	// Unassigned delivery shows up in the shared pool.
	w := doJSON(t, router, "GET", "/driver/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.True(t, containsReference(data["available"], order.Reference))
	assert.False(t, containsReference(data["assigned"], order.Reference))

	w = doJSON(t, router, "POST", "/driver/orders/"+strconv.Itoa(int(order.ID))+"/accept", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(rider.ID), responseData(t, w)["driver_id"])

	w = doJSON(t, router, "GET", "/driver/orders", nil)
	data = responseData(t, w)
	assert.True(t, containsReference(data["assigned"], order.Reference))
	assert.False(t, containsReference(data["available"], order.Reference))

	for _, status := range []string{models.OrderStatusPickedUp, models.OrderStatusInTransit} {
		w = doMultipart(t, router, "POST", "/driver/orders/"+strconv.Itoa(int(order.ID))+"/status",
			map[string]string{"status": status}, "", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Riders only speak the delivery leg of the state machine.
	w = doMultipart(t, router, "POST", "/driver/orders/"+strconv.Itoa(int(order.ID))+"/status",
		map[string]string{"status": models.OrderStatusCompleted}, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doMultipart(t, router, "POST", "/driver/orders/"+strconv.Itoa(int(order.ID))+"/status",
		map[string]string{"status": models.OrderStatusDelivered}, "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var delivered models.Order
	assert.NoError(t, db.First(&delivered, order.ID).Error)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)

	// Tracking names the rider until the order closes out.
	w = doJSON(t, router, "GET", "/orders/track?ref="+url.QueryEscape(order.Reference), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data = responseData(t, w)
	assert.Equal(t, "Order Rider Jun", data["driver_name"])
	assert.Contains(t, data, "delivered_at")

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/status"), map[string]interface{}{
		"status": models.OrderStatusCompleted,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/orders/track?ref="+url.QueryEscape(order.Reference), nil)
	data = responseData(t, w)
	assert.NotContains(t, data, "driver_name")

	// Another rider's order can be neither accepted nor advanced.
	other := models.User{Name: "Order Rider Mia", Email: "order.rider2@mangan.ph", Password: "unused-hash", Role: models.RoleDriver}
	db.Create(&other)
	taken := seedOrder(db, "ORD/20250601/900005", models.OrderTypeDelivery, models.OrderStatusWaitingForRider)
	db.Model(&taken).Update("driver_id", other.ID)

	w = doJSON(t, router, "POST", "/driver/orders/"+strconv.Itoa(int(taken.ID))+"/accept", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doMultipart(t, router, "POST", "/driver/orders/"+strconv.Itoa(int(taken.ID))+"/status",
		map[string]string{"status": models.OrderStatusPickedUp}, "", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func containsReference(list interface{}, reference string) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok && m["reference"] == reference {
			return true
		}
	}
	return false
}

func TestAssignDriver(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForOrders()
	admin, rider := seedOrderStaff(db)
	router := setupOrderRouter(db, admin.ID, rider.ID)

	order := seedOrder(db, "ORD/20250601/900006", models.OrderTypeDelivery, models.OrderStatusWaitingForRider)

	// Only driver accounts qualify.
	w := doJSON(t, router, "PATCH", orderIDPath(order, "/driver"), map[string]interface{}{
		"driver_id": admin.ID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "PATCH", orderIDPath(order, "/driver"), map[string]interface{}{
		"driver_id": rider.ID,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(rider.ID), responseData(t, w)["driver_id"])

	pickup := seedOrder(db, "ORD/20250601/900007", models.OrderTypePickup, models.OrderStatusApproved)
	w = doJSON(t, router, "PATCH", orderIDPath(pickup, "/driver"), map[string]interface{}{
		"driver_id": rider.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	early := seedOrder(db, "ORD/20250601/900008", models.OrderTypeDelivery, models.OrderStatusPending)
	w = doJSON(t, router, "PATCH", orderIDPath(early, "/driver"), map[string]interface{}{
		"driver_id": rider.ID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetAllOrdersFilters(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForOrders()
	admin, rider := seedOrderStaff(db)
	router := setupOrderRouter(db, admin.ID, rider.ID)

	seedOrder(db, "ORD/20250602/900009", models.OrderTypeDelivery, models.OrderStatusPending)
	seedOrder(db, "ORD/20250602/900010", models.OrderTypeDineIn, models.OrderStatusCompleted)

	w := doJSON(t, router, "GET", "/admin/orders?ref=20250602", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, float64(2), data["total"])

	w = doJSON(t, router, "GET", "/admin/orders?ref=20250602&status=pending", nil)
	data = responseData(t, w)
	assert.Equal(t, float64(1), data["total"])
	orders := data["orders"].([]interface{})
	assert.Equal(t, "ORD/20250602/900009", orders[0].(map[string]interface{})["reference"])

	w = doJSON(t, router, "GET", "/admin/orders?ref=20250602&type=dine_in", nil)
	assert.Equal(t, float64(1), responseData(t, w)["total"])

	today := time.Now().Format("2006-01-02")
	w = doJSON(t, router, "GET", "/admin/orders?ref=20250602&date="+today, nil)
	assert.Equal(t, float64(2), responseData(t, w)["total"])

	w = doJSON(t, router, "GET", "/admin/orders?ref=20250602&limit=1", nil)
	data = responseData(t, w)
	assert.Equal(t, float64(2), data["total"])
	assert.Len(t, data["orders"].([]interface{}), 1)
}
