package models

import (
	"fmt"
	"time"
)

// Reservation statuses
const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusCompleted = "completed"
)

type Reservation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(20);not null" json:"phone"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Date      string    `gorm:"type:varchar(10);not null;index" json:"date"`
	TimeSlot  string    `gorm:"type:varchar(5);not null" json:"time_slot"`
	PartySize int       `gorm:"not null" json:"party_size"`
	Notes     string    `gorm:"type:text" json:"notes"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// MakeReservationCode builds the code handed back to the customer,
// e.g. RSV/20250825/000007.
func MakeReservationCode(t time.Time, id uint) string {
	return fmt.Sprintf("RSV/%s/%06d", t.Format("20060102"), id)
}
