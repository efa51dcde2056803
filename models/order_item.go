package models

import (
	"time"
)

type OrderItem struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Omitting Order field from JSON to avoid recursive nesting
	OrderID     uint              `gorm:"not null" json:"order_id"`
	Order       Order             `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ProductID   uint              `gorm:"not null" json:"product_id"`
	ProductName string            `gorm:"type:varchar(255);not null" json:"product_name"`
	UnitPrice   float64           `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Quantity    int               `gorm:"not null" json:"quantity"`
	LineTotal   float64           `gorm:"type:decimal(10,2);not null" json:"line_total"`
	Flavors     []OrderItemFlavor `gorm:"foreignKey:OrderItemID" json:"flavors"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// OrderItemFlavor records one flavor choice on an order item. Surcharge is the
// resolved contribution for this line, not the raw per-flavor rate.
type OrderItemFlavor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderItemID uint      `gorm:"not null" json:"order_item_id"`
	OrderItem   OrderItem `gorm:"foreignKey:OrderItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FlavorID    uint      `gorm:"not null" json:"flavor_id"`
	FlavorName  string    `gorm:"type:varchar(100);not null" json:"flavor_name"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Surcharge   float64   `gorm:"type:decimal(10,2);not null;default:0.00" json:"surcharge"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
