package models

import "github.com/google/uuid"

// User is a stable identity provisioned by an external auth collaborator;
// this core reads it but never mutates it.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}
