package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/live"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

// GetAllOrders -> admin/staff order board with filters.
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	applyFilters := func(q *gorm.DB) *gorm.DB {
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if orderType := c.Query("type"); orderType != "" {
			q = q.Where("order_type = ?", orderType)
		}
		if date := c.Query("date"); date != "" {
			q = q.Where("DATE(created_at) = ?", date)
		}
		if ref := c.Query("ref"); ref != "" {
			q = q.Where("reference LIKE ?", "%"+ref+"%")
		}
		return q
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	applyFilters(oc.DB.Model(&models.Order{})).Count(&total)

	var orders []models.Order
	if err := applyFilters(oc.DB.Preload("Customer").
		Preload("OrderItems").
		Preload("OrderItems.Flavors").
		Preload("Driver")).
		Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of orders", gin.H{
		"orders": orders,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetOrderByID -> detail plus the legal next statuses for the action buttons.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	var order models.Order
	if err := oc.DB.Preload("Customer").
		Preload("OrderItems").
		Preload("OrderItems.Flavors").
		Preload("Driver").
		First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var proofs []models.PaymentProof
	oc.DB.Where("order_id = ?", order.ID).Order("created_at desc").Find(&proofs)

	utils.RespondJSON(c, http.StatusOK, "Order detail", gin.H{
		"order":         order,
		"proofs":        proofs,
		"next_statuses": models.NextStatuses(order.Status, order.OrderType),
	})
}

// UpdateStatus moves an order along the state machine. Illegal transitions are
// rejected with the legal successors in the message.
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if !models.CanTransition(order.Status, req.Status, order.OrderType) {
		next := models.NextStatuses(order.Status, order.OrderType)
		utils.RespondError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("cannot move %s order from %s to %s, legal next: %s",
				order.OrderType, order.Status, req.Status, strings.Join(next, ", ")))
		return
	}

	order.Status = req.Status
	if req.Status == models.OrderStatusDelivered {
		now := time.Now()
		order.DeliveredAt = &now
	}
	order.UpdatedAt = time.Now()

	if err := oc.DB.Save(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastOrderStatus(order)
	role, _ := c.Get("role")
	live.BroadcastStaffNotification(fmt.Sprintf("Order %s moved to %s by %v", order.Reference, order.Status, role))

	utils.RespondJSON(c, http.StatusOK, "Order status updated", gin.H{
		"order":         order,
		"next_statuses": models.NextStatuses(order.Status, order.OrderType),
	})
}

// ReviewProof approves or rejects the pending payment proof on an order.
// Approval also advances the order to approved; rejection pushes it to
// rejected so the customer is asked to re-upload or pay another way.
func (oc *OrderController) ReviewProof(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	var req struct {
		Action string `json:"action" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Action != "approve" && req.Action != "reject" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("action must be approve or reject"))
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var proof models.PaymentProof
	if err := oc.DB.Where("order_id = ? AND status = ?", order.ID, models.ProofStatusPending).
		Order("created_at desc").First(&proof).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("no pending payment proof for this order"))
		return
	}

	newOrderStatus := models.OrderStatusApproved
	newProofStatus := models.ProofStatusApproved
	if req.Action == "reject" {
		newOrderStatus = models.OrderStatusRejected
		newProofStatus = models.ProofStatusRejected
	}

	if !models.CanTransition(order.Status, newOrderStatus, order.OrderType) {
		utils.RespondError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("order %s is %s, proof can no longer be reviewed", order.Reference, order.Status))
		return
	}

	userIDInterface, _ := c.Get("user_id")
	reviewerID, _ := userIDInterface.(uint)
	now := time.Now()

	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		proof.Status = newProofStatus
		proof.Notes = req.Notes
		if reviewerID != 0 {
			proof.ReviewedBy = &reviewerID
		}
		proof.ReviewedAt = &now
		if err := tx.Save(&proof).Error; err != nil {
			return err
		}

		order.Status = newOrderStatus
		order.UpdatedAt = now
		return tx.Save(&order).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastProofReviewed(proof, order)
	live.BroadcastOrderStatus(order)

	utils.InfoLogger.Printf("Payment proof %s for %s by user %d", newProofStatus, order.Reference, reviewerID)
	utils.RespondJSON(c, http.StatusOK, "Payment proof "+newProofStatus, gin.H{
		"order": order,
		"proof": proof,
	})
}

// AssignDriver attaches a driver to a delivery order waiting for a rider.
func (oc *OrderController) AssignDriver(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	var req struct {
		DriverID uint `json:"driver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if order.OrderType != models.OrderTypeDelivery {
		utils.RespondError(c, http.StatusBadRequest, errors.New("only delivery orders take a driver"))
		return
	}
	if order.Status != models.OrderStatusWaitingForRider {
		utils.RespondError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("order is %s, driver assignment needs waiting_for_rider", order.Status))
		return
	}

	var driver models.User
	if err := oc.DB.Where("id = ? AND role = ?", req.DriverID, models.RoleDriver).
		First(&driver).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("driver not found"))
		return
	}

	order.DriverID = &driver.ID
	order.UpdatedAt = time.Now()
	if err := oc.DB.Save(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	order.Driver = &driver

	live.BroadcastDriverAssigned(order)
	live.BroadcastStaffNotification(fmt.Sprintf("Order %s assigned to %s", order.Reference, driver.Name))

	utils.RespondJSON(c, http.StatusOK, "Driver assigned", order)
}

// TrackOrder -> public tracking from the confirmation SMS/email link.
// Reference arrives as a query param because it contains slashes.
func (oc *OrderController) TrackOrder(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("query parameter 'ref' is required"))
		return
	}

	var order models.Order
	if err := oc.DB.Preload("OrderItems").
		Preload("OrderItems.Flavors").
		Preload("Driver").
		Where("reference = ?", ref).First(&order).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("order not found"))
		return
	}

	tracking := gin.H{
		"reference":    order.Reference,
		"status":       order.Status,
		"order_type":   order.OrderType,
		"subtotal":     order.Subtotal,
		"delivery_fee": order.DeliveryFee,
		"total":        order.Total,
		"created_at":   order.CreatedAt,
		"items":        order.OrderItems,
	}
	if order.Driver != nil && order.Status != models.OrderStatusCompleted {
		tracking["driver_name"] = order.Driver.Name
	}
	if order.DeliveredAt != nil {
		tracking["delivered_at"] = order.DeliveredAt
	}

	utils.RespondJSON(c, http.StatusOK, "Order tracking", tracking)
}

/*
========================================
 DRIVER ENDPOINTS
========================================
*/

// GetDriverOrders -> the rider's queue: own active deliveries plus the
// unassigned waiting_for_rider pool.
func (oc *OrderController) GetDriverOrders(c *gin.Context) {
	userIDInterface, _ := c.Get("user_id")
	driverID, ok := userIDInterface.(uint)
	if !ok || driverID == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("driver id not found in context"))
		return
	}

	var assigned []models.Order
	if err := oc.DB.Preload("Customer").Preload("OrderItems").
		Where("driver_id = ? AND status IN ?", driverID, []string{
			models.OrderStatusWaitingForRider,
			models.OrderStatusPickedUp,
			models.OrderStatusInTransit,
		}).
		Order("created_at asc").
		Find(&assigned).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var available []models.Order
	if err := oc.DB.Preload("Customer").
		Where("status = ? AND driver_id IS NULL", models.OrderStatusWaitingForRider).
		Order("created_at asc").
		Find(&available).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Driver orders", gin.H{
		"assigned":  assigned,
		"available": available,
	})
}

// AcceptOrder lets a rider claim an unassigned delivery.
func (oc *OrderController) AcceptOrder(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	userIDInterface, _ := c.Get("user_id")
	driverID, ok := userIDInterface.(uint)
	if !ok || driverID == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("driver id not found in context"))
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if order.Status != models.OrderStatusWaitingForRider {
		utils.RespondError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("order is %s, not waiting for a rider", order.Status))
		return
	}
	if order.DriverID != nil && *order.DriverID != driverID {
		utils.RespondError(c, http.StatusConflict, errors.New("order is already assigned to another rider"))
		return
	}

	order.DriverID = &driverID
	order.UpdatedAt = time.Now()
	if err := oc.DB.Save(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastDriverAssigned(order)

	utils.RespondJSON(c, http.StatusOK, "Order accepted", order)
}

// DriverUpdateStatus moves the rider's own order through pickup and delivery.
// Multipart so the delivered step can attach a handoff photo.
func (oc *OrderController) DriverUpdateStatus(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("order_id"))

	userIDInterface, _ := c.Get("user_id")
	driverID, ok := userIDInterface.(uint)
	if !ok || driverID == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("driver id not found in context"))
		return
	}

	c.Request.ParseMultipartForm(10 << 20)
	status := c.PostForm("status")
	if status == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("status is required"))
		return
	}
	switch status {
	case models.OrderStatusPickedUp, models.OrderStatusInTransit, models.OrderStatusDelivered:
	default:
		utils.RespondError(c, http.StatusBadRequest,
			errors.New("riders may set picked_up, in_transit or delivered"))
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		utils.RespondError(c, http.StatusForbidden, errors.New("order is not assigned to you"))
		return
	}
	if !models.CanTransition(order.Status, status, order.OrderType) {
		next := models.NextStatuses(order.Status, order.OrderType)
		utils.RespondError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("cannot move from %s to %s, legal next: %s",
				order.Status, status, strings.Join(next, ", ")))
		return
	}

	if status == models.OrderStatusDelivered {
		if photoURL, err := oc.saveDeliveryPhoto(c); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		} else if photoURL != "" {
			order.DeliveryPhoto = photoURL
		}
		now := time.Now()
		order.DeliveredAt = &now
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	if err := oc.DB.Save(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastOrderStatus(order)

	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

func (oc *OrderController) saveDeliveryPhoto(c *gin.Context) (string, error) {
	file, err := c.FormFile("photo")
	if err != nil {
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !proofExtensions[ext] {
		return "", fmt.Errorf("unsupported photo format %s, use jpg/png/webp", ext)
	}

	uploadDir := "public/uploads/delivery_photos"
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", errors.New("error creating upload directory")
	}

	filename := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(uploadDir, filename)); err != nil {
		return "", errors.New("error saving delivery photo")
	}
	return "/uploads/delivery_photos/" + filename, nil
}
