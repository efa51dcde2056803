package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

type ReservationController struct {
	DB      *gorm.DB
	Service *services.ReservationService
}

func NewReservationController(db *gorm.DB) *ReservationController {
	return &ReservationController{
		DB:      db,
		Service: services.NewReservationService(db),
	}
}

// GetSlots returns the slot grid for a date with remaining capacity, so the
// picker can grey out full slots.
func (rc *ReservationController) GetSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("query parameter 'date' is required"))
		return
	}

	slots, err := rc.Service.AvailableSlots(date)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available slots", gin.H{
		"date":  date,
		"slots": slots,
	})
}

// CreateReservation books a slot for a guest.
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		Phone     string `json:"phone" binding:"required"`
		Email     string `json:"email"`
		Date      string `json:"date" binding:"required"`
		TimeSlot  string `json:"time_slot" binding:"required"`
		PartySize int    `json:"party_size" binding:"required"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	reservation, err := rc.Service.Book(services.ReservationInput{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Date:      req.Date,
		TimeSlot:  req.TimeSlot,
		PartySize: req.PartySize,
		Notes:     req.Notes,
	})
	switch {
	case errors.Is(err, services.ErrSlotFull):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case errors.Is(err, services.ErrSlotInvalid), errors.Is(err, services.ErrPastDate):
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	utils.InfoLogger.Printf("Reservation %s booked for %s %s (party of %d)",
		reservation.Code, reservation.Date, reservation.TimeSlot, reservation.PartySize)

	utils.RespondJSON(c, http.StatusCreated, "Reservation received. Salamat po!", reservation)
}

// GetAllReservations -> admin/staff list with filters.
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	query := rc.DB.Order("date asc, time_slot asc")

	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", reservations)
}

// UpdateReservationStatus confirms, cancels or completes a reservation.
func (rc *ReservationController) UpdateReservationStatus(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("reservation_id"))

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	reservation, err := rc.Service.UpdateStatus(uint(id), req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("reservation not found"))
			return
		}
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Reservation updated", reservation)
}
