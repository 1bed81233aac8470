package models

import (
	"time"
)

// Login methods recorded on the cookie session.
const (
	LoginMethodPassword = "password"
	LoginMethodGoogle   = "google"
)

// Session ties an opaque identifier stored in the signed cookie to a user.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
