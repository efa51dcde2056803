package models

import "time"

// CartSession is the server-side home of a customer's cart snapshot, keyed by
// the browser's session token. Written on every cart mutation, read on page
// load, deleted on successful checkout or explicit clear.
type CartSession struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionKey  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_key"`
	Snapshot    string    `gorm:"type:text;not null" json:"snapshot"`
	WelcomeBack bool      `gorm:"not null;default:false" json:"welcome_back"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
