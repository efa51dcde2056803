package models

import "time"

// Flavor types
const (
	FlavorTypeAllTime = "all_time"
	FlavorTypeSpecial = "special"
)

type Flavor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	Surcharge  float64   `gorm:"type:decimal(10,2);not null;default:0.00" json:"surcharge"`
	FlavorType string    `gorm:"type:varchar(20);not null;default:'all_time'" json:"flavor_type"`
	Category   string    `gorm:"type:varchar(50);not null;default:'wings'" json:"category"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// Surchargeable reports whether choosing this flavor adds to the line price.
func (f *Flavor) Surchargeable() bool {
	return f.FlavorType == FlavorTypeSpecial || f.Surcharge > 0
}
