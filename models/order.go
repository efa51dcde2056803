package models

import (
	"fmt"
	"time"
)

// Order types
const (
	OrderTypeDineIn   = "dine_in"
	OrderTypePickup   = "pickup"
	OrderTypeDelivery = "delivery"
)

// Payment methods
const (
	PaymentMethodCash         = "cash"
	PaymentMethodGCash        = "gcash"
	PaymentMethodBankTransfer = "bank_transfer"
)

type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Reference     string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"reference"`
	CustomerID    uint        `gorm:"not null" json:"customer_id"`
	Customer      Customer    `gorm:"foreignKey:CustomerID" json:"customer"`
	OrderType     string      `gorm:"type:varchar(20);not null" json:"order_type"`
	Status        string      `gorm:"type:varchar(30);not null;default:'pending'" json:"status"`
	PaymentMethod string      `gorm:"type:varchar(20);not null;default:'cash'" json:"payment_method"`
	Subtotal      float64     `gorm:"type:decimal(10,2);not null;default:0.00" json:"subtotal"`
	DeliveryFee   float64     `gorm:"type:decimal(10,2);not null;default:0.00" json:"delivery_fee"`
	Total         float64     `gorm:"type:decimal(10,2);not null;default:0.00" json:"total"`
	DistanceKm    float64     `gorm:"type:decimal(6,2);not null;default:0.00" json:"distance_km"`
	City          string      `gorm:"type:varchar(100)" json:"city"`
	Barangay      string      `gorm:"type:varchar(100)" json:"barangay"`
	Street        string      `gorm:"type:varchar(255)" json:"street"`
	Landmark      string      `gorm:"type:varchar(255)" json:"landmark"`
	GeocodedAddr  string      `gorm:"type:varchar(255)" json:"geocoded_address"`
	Latitude      float64     `gorm:"type:decimal(10,6);default:0" json:"latitude"`
	Longitude     float64     `gorm:"type:decimal(10,6);default:0" json:"longitude"`
	Notes         string      `gorm:"type:text" json:"notes"`
	DriverID      *uint       `gorm:"index" json:"driver_id,omitempty"`
	Driver        *User       `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	DeliveryPhoto string      `gorm:"type:varchar(255)" json:"delivery_photo,omitempty"`
	DeliveredAt   *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems    []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
}

// MakeOrderReference builds the human-facing order number, e.g. ORD/20250825/000042.
func MakeOrderReference(t time.Time, id uint) string {
	return fmt.Sprintf("ORD/%s/%06d", t.Format("20060102"), id)
}
