package models

import "time"

type File struct {
	ID           string    `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	Name         string    `json:"name"`
	PathFragment string    `json:"-"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     *string   `json:"mime_type,omitempty"`
	// Identities granted non-owner access. Membership is unique, order is irrelevant.
	AuthorizedUsers []int64   `json:"authorized_users"`
	CreatedAt       time.Time `json:"created_at"`
}
