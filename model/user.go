package model

import "time"

// User is a login. ClientID is zero for staff users.
type User struct {
	ID             int64      `json:"id"`
	Login          string     `json:"login"`
	ClientID       int64      `json:"client_id,omitempty"`
	PasswordHash   string     `json:"-"`
	Active         bool       `json:"active"`
	Locked         bool       `json:"locked"`
	FailedAttempts int        `json:"failed_attempts"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
