package Controllers_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/controllers"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

func setupTestDBForReservations() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	if err := db.AutoMigrate(&models.Reservation{}, &models.Setting{}); err != nil {
		panic(err)
	}
	return db
}

// putSetting upserts so reruns against the shared database stay stable.
func putSetting(db *gorm.DB, key, value string) {
	var setting models.Setting
	if err := db.Where("`key` = ?", key).First(&setting).Error; err == nil {
		db.Model(&setting).Update("value", value)
		return
	}
	db.Create(&models.Setting{Key: key, Value: value})
}

func setupReservationRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	reservationCtrl := controllers.NewReservationController(db)
	router.GET("/reservations/slots", reservationCtrl.GetSlots)
	router.POST("/reservations", reservationCtrl.CreateReservation)
	router.GET("/admin/reservations", reservationCtrl.GetAllReservations)
	router.PATCH("/admin/reservations/:reservation_id", reservationCtrl.UpdateReservationStatus)
	return router
}

func seedReservationSettings(db *gorm.DB) {
	putSetting(db, models.SettingStoreHours, "10:00-21:00")
	putSetting(db, models.SettingReservationSlotMinutes, "60")
	putSetting(db, models.SettingReservationCapacity, "2")
}

func bookReservation(t *testing.T, router *gin.Engine, name, phone, date, slot string) *httptest.ResponseRecorder {
	return doJSON(t, router, "POST", "/reservations", map[string]interface{}{
		"name":       name,
		"phone":      phone,
		"date":       date,
		"time_slot":  slot,
		"party_size": 2,
	})
}

func TestReservationSlotGrid(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForReservations()
	seedReservationSettings(db)
	router := setupReservationRouter(db)

	w := doJSON(t, router, "GET", "/reservations/slots?date=2027-04-13", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := responseData(t, w)
	slots := data["slots"].([]interface{})
	// 10:00 through 20:00, hourly, each ending by close.
	assert.Len(t, slots, 11)
	first := slots[0].(map[string]interface{})
	assert.Equal(t, "10:00", first["time"])
	assert.Equal(t, float64(2), first["capacity"])
	assert.Equal(t, float64(2), first["available"])
	last := slots[10].(map[string]interface{})
	assert.Equal(t, "20:00", last["time"])

	w = doJSON(t, router, "GET", "/reservations/slots?date=13-04-2027", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/reservations/slots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReservationBookingAndCapacity(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForReservations()
	seedReservationSettings(db)
	router := setupReservationRouter(db)

	const date = "2027-04-14"

	w := bookReservation(t, router, "Resv Liza Soberano", "09181234701", date, "18:00")
	assert.Equal(t, http.StatusCreated, w.Code)
	data := responseData(t, w)
	code := data["code"].(string)
	assert.True(t, strings.HasPrefix(code, "RSV/"), "code %q should carry the RSV prefix", code)
	assert.Equal(t, models.ReservationStatusPending, data["status"])

	w = bookReservation(t, router, "Resv Paolo Mendoza", "09181234702", date, "18:00")
	assert.Equal(t, http.StatusCreated, w.Code)

	// Capacity 2 is now exhausted for 18:00.
	w = bookReservation(t, router, "Resv Carla Uy", "09181234703", date, "18:00")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, "GET", "/reservations/slots?date="+date, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	for _, item := range responseData(t, w)["slots"].([]interface{}) {
		slot := item.(map[string]interface{})
		if slot["time"] == "18:00" {
			assert.Equal(t, float64(2), slot["booked"])
			assert.Equal(t, float64(0), slot["available"])
		}
	}

	// Off-grid and past-date requests never reach the table.
	w = bookReservation(t, router, "Resv Nina Lim", "09181234704", date, "18:30")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = bookReservation(t, router, "Resv Late Guest", "09181234705", "2020-01-01", "18:00")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, "POST", "/reservations", map[string]interface{}{
		"name":       "Resv No Slot",
		"phone":      "09181234706",
		"date":       date,
		"time_slot":  "19:00",
		"party_size": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReservationStatusUpdates(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForReservations()
	seedReservationSettings(db)
	router := setupReservationRouter(db)

	const date = "2027-04-15"
	w := bookReservation(t, router, "Resv Mark Bautista", "09181234707", date, "11:00")
	assert.Equal(t, http.StatusCreated, w.Code)
	id := int(responseData(t, w)["id"].(float64))

	w = doJSON(t, router, "PATCH", "/admin/reservations/"+strconv.Itoa(id), map[string]interface{}{
		"status": models.ReservationStatusConfirmed,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReservationStatusConfirmed, responseData(t, w)["status"])

	w = doJSON(t, router, "PATCH", "/admin/reservations/"+strconv.Itoa(id), map[string]interface{}{
		"status": "no_show",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "PATCH", "/admin/reservations/999999", map[string]interface{}{
		"status": models.ReservationStatusCancelled,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Cancelled bookings release their slot.
	w = bookReservation(t, router, "Resv Joy Dizon", "09181234708", date, "12:00")
	assert.Equal(t, http.StatusCreated, w.Code)
	cancelID := int(responseData(t, w)["id"].(float64))

	w = doJSON(t, router, "PATCH", "/admin/reservations/"+strconv.Itoa(cancelID), map[string]interface{}{
		"status": models.ReservationStatusCancelled,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/reservations/slots?date="+date, nil)
	for _, item := range responseData(t, w)["slots"].([]interface{}) {
		slot := item.(map[string]interface{})
		if slot["time"] == "12:00" {
			assert.Equal(t, float64(0), slot["booked"])
		}
	}

	// Admin listing filters by date and status.
	w = doJSON(t, router, "GET", "/admin/reservations?date="+date+"&status=confirmed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	list := responseList(t, w)
	assert.Len(t, list, 1)
	assert.Equal(t, "Resv Mark Bautista", list[0].(map[string]interface{})["name"])
}
