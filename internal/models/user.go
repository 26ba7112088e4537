package models

import (
	"time"
)

type User struct {
	ID           int        `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	AvatarURL    *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Status       string     `json:"status" db:"status"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// UserSummary is the directory-search projection: enough to start a chat,
// nothing sensitive.
type UserSummary struct {
	ID        int     `json:"id" db:"id"`
	Username  string  `json:"username" db:"username"`
	Email     string  `json:"email" db:"email"`
	AvatarURL *string `json:"avatar_url,omitempty" db:"avatar_url"`
	Status    string  `json:"status" db:"status"`
}
