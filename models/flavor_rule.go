package models

import "time"

// Pricing policies for flavor surcharges. Selected per product rule so a
// policy change is configuration, not a code fork.
const (
	PolicyPerSlot      = "per_slot"
	PolicyPerDistinct  = "per_distinct"
	PolicyPerUnitRatio = "per_unit_ratio"
)

// FlavorRule describes how a flavored product is portioned: TotalUnits pieces
// per purchase, assigned in groups of UnitsPerFlavor pieces per flavor slot.
// MaxFlavors 0 means "derive from the slot count".
type FlavorRule struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProductID      uint      `gorm:"not null;uniqueIndex" json:"product_id"`
	TotalUnits     int       `gorm:"not null;default:6" json:"total_units"`
	UnitsPerFlavor int       `gorm:"not null;default:3" json:"units_per_flavor"`
	MaxFlavors     int       `gorm:"not null;default:0" json:"max_flavors"`
	MinFlavors     int       `gorm:"not null;default:1" json:"min_flavors"`
	PricingPolicy  string    `gorm:"type:varchar(20);not null;default:'per_slot'" json:"pricing_policy"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}
