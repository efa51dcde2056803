package models

import "time"

// Well-known settings keys
const (
	SettingStoreHours             = "store_hours"
	SettingMenuPdfURL             = "menu_pdf_url"
	SettingReservationCapacity    = "reservation_capacity"
	SettingReservationSlotMinutes = "reservation_slot_minutes"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
