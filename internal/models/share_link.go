package models

import "time"

// ShareLink is a time-bounded access grant to a single file, distinct from
// direct per-user sharing. A link with an empty AuthorizedUsers subset is
// valid for any holder of the token; a non-empty subset restricts redemption
// to the listed users. Validity ends strictly at ExpiresAt.
type ShareLink struct {
	ID              int64     `json:"id"`
	Token           string    `json:"token" example:"Lk9fX2a97dQw1PzR4tVb0sHnGmC5uYeJ"`
	FileID          string    `json:"file_id"`
	OwnerID         int64     `json:"owner_id"`
	Description     string    `json:"description" example:"Zdjęcia z wakacji"`
	AuthorizedUsers []int64   `json:"authorized_users"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}
