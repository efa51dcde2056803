package models

import "time"

// Payment proof review states
const (
	ProofStatusPending  = "pending"
	ProofStatusApproved = "approved"
	ProofStatusRejected = "rejected"
)

// PaymentProof is an uploaded GCash/bank-transfer screenshot attached to an
// order for manual verification.
type PaymentProof struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OrderID    uint       `gorm:"not null;index" json:"order_id"`
	Order      Order      `gorm:"foreignKey:OrderID" json:"-"`
	ImageURL   string     `gorm:"type:varchar(255);not null" json:"image_url"`
	Status     string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Notes      string     `gorm:"type:text" json:"notes"`
	ReviewedBy *uint      `json:"reviewed_by,omitempty"`
	Reviewer   *User      `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}
