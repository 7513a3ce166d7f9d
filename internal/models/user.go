package models

import "time"

type User struct {
	ID                int64     `json:"id" db:"id"`
	Email             string    `json:"email" db:"email"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	DisplayName       *string   `json:"display_name,omitempty" db:"display_name"`
	IsAdmin           bool      `json:"is_admin" db:"is_admin"`
	StorageLimitBytes int64     `json:"storage_limit_bytes" db:"storage_limit_bytes"`
	StorageUsedBytes  int64     `json:"storage_used_bytes" db:"storage_used_bytes"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
