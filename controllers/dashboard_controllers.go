package controllers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/live"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

type DashboardController struct {
	DB *gorm.DB
}

func NewDashboardController(db *gorm.DB) *DashboardController {
	return &DashboardController{DB: db}
}

// GetDashboardStats aggregates the admin landing page numbers in one call.
func (dc *DashboardController) GetDashboardStats(c *gin.Context) {
	today := time.Now().Format("2006-01-02")

	var stats struct {
		TotalOrders  int64   `json:"total_orders"`
		TodayOrders  int64   `json:"today_orders"`
		TotalRevenue float64 `json:"total_revenue"`
		TodayRevenue float64 `json:"today_revenue"`
		OrderStats   struct {
			Pending         int64 `json:"pending"`
			ForVerification int64 `json:"for_verification"`
			Approved        int64 `json:"approved"`
			Preparing       int64 `json:"preparing"`
			OutForDelivery  int64 `json:"out_for_delivery"`
			Completed       int64 `json:"completed"`
		} `json:"order_stats"`
		PendingProofs     int64 `json:"pending_proofs"`
		TodayReservations int64 `json:"today_reservations"`
		RecoveryStats     struct {
			Recovering int64   `json:"recovering"`
			Recovered  int64   `json:"recovered"`
			Revenue    float64 `json:"recovered_revenue"`
		} `json:"recovery_stats"`
		AvgDeliveryMinutes float64 `json:"avg_delivery_minutes"`
	}

	dc.DB.Model(&models.Order{}).Count(&stats.TotalOrders)
	dc.DB.Model(&models.Order{}).Where("DATE(created_at) = ?", today).Count(&stats.TodayOrders)

	dc.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&stats.OrderStats.Pending)
	dc.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusForVerification).Count(&stats.OrderStats.ForVerification)
	dc.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusApproved).Count(&stats.OrderStats.Approved)
	dc.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusPreparing).Count(&stats.OrderStats.Preparing)
	dc.DB.Model(&models.Order{}).Where("status IN ?", []string{
		models.OrderStatusWaitingForRider,
		models.OrderStatusPickedUp,
		models.OrderStatusInTransit,
	}).Count(&stats.OrderStats.OutForDelivery)
	dc.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusCompleted).Count(&stats.OrderStats.Completed)

	// Revenue counts orders that reached a fulfilled state.
	revenueStates := []string{models.OrderStatusDelivered, models.OrderStatusCompleted}
	dc.DB.Model(&models.Order{}).Where("status IN ?", revenueStates).
		Select("COALESCE(SUM(total), 0)").Row().Scan(&stats.TotalRevenue)
	dc.DB.Model(&models.Order{}).
		Where("status IN ? AND DATE(created_at) = ?", revenueStates, today).
		Select("COALESCE(SUM(total), 0)").Row().Scan(&stats.TodayRevenue)

	dc.DB.Model(&models.PaymentProof{}).Where("status = ?", models.ProofStatusPending).Count(&stats.PendingProofs)

	dc.DB.Model(&models.Reservation{}).
		Where("date = ? AND status IN ?", today, []string{
			models.ReservationStatusPending, models.ReservationStatusConfirmed,
		}).Count(&stats.TodayReservations)

	dc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusRecovering).Count(&stats.RecoveryStats.Recovering)
	dc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusRecovered).Count(&stats.RecoveryStats.Recovered)
	dc.DB.Model(&models.AbandonedCheckout{}).Where("status = ?", models.CheckoutStatusRecovered).
		Select("COALESCE(SUM(subtotal), 0)").Row().Scan(&stats.RecoveryStats.Revenue)

	var avgDelivery sql.NullFloat64
	dc.DB.Model(&models.Order{}).
		Where("order_type = ? AND delivered_at IS NOT NULL", models.OrderTypeDelivery).
		Select("AVG(TIMESTAMPDIFF(MINUTE, created_at, delivered_at))").
		Row().Scan(&avgDelivery)
	if avgDelivery.Valid {
		stats.AvgDeliveryMinutes = avgDelivery.Float64
	}

	live.BroadcastDashboardUpdate(stats)

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}
