package models

import "time"

// Abandoned checkout statuses. recovering and recovered both refuse a second
// reminder-scheduling request.
const (
	CheckoutStatusAbandoned  = "abandoned"
	CheckoutStatusRecovering = "recovering"
	CheckoutStatusRecovered  = "recovered"
	CheckoutStatusExpired    = "expired"
)

// Reminder channels and states
const (
	ReminderChannelSMS   = "sms"
	ReminderChannelEmail = "email"

	ReminderStatusPending = "pending"
	ReminderStatusSent    = "sent"
	ReminderStatusFailed  = "failed"
	ReminderStatusSkipped = "skipped"
)

// AbandonedCheckout captures a cart snapshot plus contact info saved before
// checkout completion, used to drive recovery reminders.
type AbandonedCheckout struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SessionKey       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_key"`
	Name             string     `gorm:"type:varchar(255)" json:"name"`
	Phone            string     `gorm:"type:varchar(20)" json:"phone"`
	Email            string     `gorm:"type:varchar(255)" json:"email"`
	Snapshot         string     `gorm:"type:text;not null" json:"snapshot"`
	Subtotal         float64    `gorm:"type:decimal(10,2);not null;default:0.00" json:"subtotal"`
	Status           string     `gorm:"type:varchar(20);not null;default:'abandoned'" json:"status"`
	RecoveredOrderID *uint      `json:"recovered_order_id,omitempty"`
	RecoveredAt      *time.Time `json:"recovered_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`

	Events    []AbandonedCheckoutEvent    `gorm:"foreignKey:CheckoutID" json:"events,omitempty"`
	Reminders []AbandonedCheckoutReminder `gorm:"foreignKey:CheckoutID" json:"reminders,omitempty"`
}

// HasContact reports whether at least one reminder channel is reachable.
func (a *AbandonedCheckout) HasContact() bool {
	return a.Phone != "" || a.Email != ""
}

type AbandonedCheckoutEvent struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CheckoutID uint              `gorm:"not null;index" json:"checkout_id"`
	Checkout   AbandonedCheckout `gorm:"foreignKey:CheckoutID" json:"-"`
	EventType  string            `gorm:"type:varchar(50);not null" json:"event_type"`
	Detail     string            `gorm:"type:text" json:"detail"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

// AbandonedCheckoutReminder is one scheduled nudge. ScheduledAt already sits
// inside store operating hours; Sequence runs 1..max per checkout.
type AbandonedCheckoutReminder struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	CheckoutID  uint              `gorm:"not null;index" json:"checkout_id"`
	Checkout    AbandonedCheckout `gorm:"foreignKey:CheckoutID" json:"-"`
	Sequence    int               `gorm:"not null" json:"sequence"`
	Channel     string            `gorm:"type:varchar(10);not null" json:"channel"`
	ScheduledAt time.Time         `gorm:"not null;index" json:"scheduled_at"`
	Status      string            `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}
