package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/live"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/utils"
)

var (
	ErrSlotFull    = errors.New("this time slot is fully booked")
	ErrSlotInvalid = errors.New("this time slot is not offered on that date")
	ErrPastDate    = errors.New("reservation date is in the past")
)

// ReservationService books tables into fixed time slots generated from the
// store-hours setting.
type ReservationService struct {
	DB *gorm.DB
}

func NewReservationService(db *gorm.DB) *ReservationService {
	return &ReservationService{DB: db}
}

// SlotInfo is one bookable window on a given date.
type SlotInfo struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Available int    `json:"available"`
}

// ReservationInput is a booking request from the storefront.
type ReservationInput struct {
	Name      string
	Phone     string
	Email     string
	Date      string
	TimeSlot  string
	PartySize int
	Notes     string
}

// AvailableSlots lists every slot for a date with its remaining capacity.
// Slots start at opening and repeat every reservation_slot_minutes until the
// last one that still ends by closing. When the date is today, slots that
// have already started are left out.
func (s *ReservationService) AvailableSlots(date string) ([]SlotInfo, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}

	openMin, closeMin := s.storeHours()
	slotMinutes := s.settingInt(models.SettingReservationSlotMinutes, 60)
	capacity := s.settingInt(models.SettingReservationCapacity, 5)

	var reservations []models.Reservation
	if err := s.DB.
		Where("date = ? AND status IN ?", date,
			[]string{models.ReservationStatusPending, models.ReservationStatusConfirmed}).
		Find(&reservations).Error; err != nil {
		return nil, err
	}

	bookedPerSlot := make(map[string]int)
	for _, r := range reservations {
		bookedPerSlot[r.TimeSlot]++
	}

	now := time.Now().In(time.Local)
	nowMin := -1
	if day.Year() == now.Year() && day.YearDay() == now.YearDay() {
		nowMin = now.Hour()*60 + now.Minute()
	}

	var slots []SlotInfo
	for m := openMin; m+slotMinutes <= closeMin; m += slotMinutes {
		if m < nowMin {
			continue
		}
		slot := fmt.Sprintf("%02d:%02d", m/60, m%60)
		booked := bookedPerSlot[slot]
		available := capacity - booked
		if available < 0 {
			available = 0
		}
		slots = append(slots, SlotInfo{
			Time:      slot,
			Capacity:  capacity,
			Booked:    booked,
			Available: available,
		})
	}
	return slots, nil
}

// Book validates the request against the slot grid and capacity, then stores
// the reservation with its customer-facing code.
func (s *ReservationService) Book(input ReservationInput) (*models.Reservation, error) {
	date, err := time.ParseInLocation("2006-01-02", input.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", input.Date)
	}

	today := time.Now().In(time.Local)
	todayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local)
	if date.Before(todayStart) {
		return nil, ErrPastDate
	}

	if input.PartySize < 1 {
		return nil, fmt.Errorf("party size must be at least 1")
	}

	slots, err := s.AvailableSlots(input.Date)
	if err != nil {
		return nil, err
	}
	valid := false
	for _, slot := range slots {
		if slot.Time == input.TimeSlot {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrSlotInvalid
	}

	capacity := s.settingInt(models.SettingReservationCapacity, 5)

	var reservation models.Reservation
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var booked int64
		if err := tx.Model(&models.Reservation{}).
			Where("date = ? AND time_slot = ? AND status IN ?", input.Date, input.TimeSlot,
				[]string{models.ReservationStatusPending, models.ReservationStatusConfirmed}).
			Count(&booked).Error; err != nil {
			return err
		}
		if int(booked) >= capacity {
			return ErrSlotFull
		}

		reservation = models.Reservation{
			Name:      input.Name,
			Phone:     input.Phone,
			Email:     input.Email,
			Date:      input.Date,
			TimeSlot:  input.TimeSlot,
			PartySize: input.PartySize,
			Notes:     input.Notes,
			Status:    models.ReservationStatusPending,
			Code:      fmt.Sprintf("tmp-%d", time.Now().UnixNano()),
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}

		reservation.Code = models.MakeReservationCode(time.Now(), reservation.ID)
		return tx.Model(&reservation).Update("code", reservation.Code).Error
	})
	if err != nil {
		return nil, err
	}

	live.BroadcastReservationUpdate(reservation)
	return &reservation, nil
}

// UpdateStatus moves a reservation between pending, confirmed, cancelled and
// completed.
func (s *ReservationService) UpdateStatus(id uint, status string) (*models.Reservation, error) {
	switch status {
	case models.ReservationStatusPending, models.ReservationStatusConfirmed,
		models.ReservationStatusCancelled, models.ReservationStatusCompleted:
	default:
		return nil, fmt.Errorf("unknown reservation status: %s", status)
	}

	var reservation models.Reservation
	if err := s.DB.First(&reservation, id).Error; err != nil {
		return nil, err
	}

	if err := s.DB.Model(&reservation).Update("status", status).Error; err != nil {
		return nil, err
	}
	reservation.Status = status

	live.BroadcastReservationUpdate(reservation)
	return &reservation, nil
}

func (s *ReservationService) storeHours() (int, int) {
	const defaultOpen, defaultClose = 10 * 60, 21 * 60

	var setting models.Setting
	if err := s.DB.Where("`key` = ?", models.SettingStoreHours).First(&setting).Error; err != nil {
		return defaultOpen, defaultClose
	}
	open, close, err := ParseStoreHours(setting.Value)
	if err != nil {
		return defaultOpen, defaultClose
	}
	return open, close
}

func (s *ReservationService) settingInt(key string, def int) int {
	var setting models.Setting
	if err := s.DB.Where("`key` = ?", key).First(&setting).Error; err != nil {
		return def
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil || n <= 0 {
		utils.ErrorLogger.Printf("Malformed %s setting %q", key, setting.Value)
		return def
	}
	return n
}
