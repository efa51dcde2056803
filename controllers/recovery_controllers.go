package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

// RecoveryController is the admin window into abandoned checkouts: who left,
// what they left, which reminders went out, and what came back.
type RecoveryController struct {
	DB       *gorm.DB
	Recovery *services.RecoveryService
}

func NewRecoveryController(db *gorm.DB, recovery *services.RecoveryService) *RecoveryController {
	return &RecoveryController{DB: db, Recovery: recovery}
}

// GetAbandonedCheckouts lists tracked checkouts, newest first.
func (rc *RecoveryController) GetAbandonedCheckouts(c *gin.Context) {
	query := rc.DB.Preload("Reminders").Order("updated_at desc")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var checkouts []models.AbandonedCheckout
	if err := query.Limit(200).Find(&checkouts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Abandoned checkouts", checkouts)
}

// GetCheckoutDetail -> one checkout with its full event trail.
func (rc *RecoveryController) GetCheckoutDetail(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("checkout_id"))

	var checkout models.AbandonedCheckout
	if err := rc.DB.Preload("Reminders", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence asc")
	}).Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	}).First(&checkout, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("checkout not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Checkout detail", checkout)
}

// ScheduleReminders triggers the reminder plan immediately instead of waiting
// for the idle scan to pick the checkout up.
func (rc *RecoveryController) ScheduleReminders(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("checkout_id"))

	var checkout models.AbandonedCheckout
	if err := rc.DB.First(&checkout, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("checkout not found"))
		return
	}

	err := rc.Recovery.ScheduleReminders(&checkout, time.Now())
	switch {
	case errors.Is(err, services.ErrAlreadyScheduled):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case errors.Is(err, services.ErrNoContact):
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var reminders []models.AbandonedCheckoutReminder
	rc.DB.Where("checkout_id = ?", checkout.ID).Order("sequence asc").Find(&reminders)

	utils.RespondJSON(c, http.StatusOK, "Reminders scheduled", gin.H{
		"checkout":  checkout,
		"reminders": reminders,
	})
}

// GetRecoveryStats summarizes the funnel for the dashboard card.
func (rc *RecoveryController) GetRecoveryStats(c *gin.Context) {
	var stats struct {
		Abandoned        int64   `json:"abandoned"`
		Recovering       int64   `json:"recovering"`
		Recovered        int64   `json:"recovered"`
		Expired          int64   `json:"expired"`
		RecoveredRevenue float64 `json:"recovered_revenue"`
		RemindersSent    int64   `json:"reminders_sent"`
	}

	rc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusAbandoned).Count(&stats.Abandoned)
	rc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusRecovering).Count(&stats.Recovering)
	rc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusRecovered).Count(&stats.Recovered)
	rc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusExpired).Count(&stats.Expired)
	rc.DB.Model(&models.AbandonedCheckoutReminder{}).Where("status = ?", models.ReminderStatusSent).Count(&stats.RemindersSent)

	rc.DB.Model(&models.AbandonedCheckout{}).
		Where("status = ?", models.CheckoutStatusRecovered).
		Select("COALESCE(SUM(subtotal), 0)").Row().Scan(&stats.RecoveredRevenue)

	utils.RespondJSON(c, http.StatusOK, "Recovery stats", stats)
}
