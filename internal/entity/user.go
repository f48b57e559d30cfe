package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is an optional job owner, keyed by a stable external identifier (e.g. email).
type User struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	CreatedAt  time.Time `json:"created_at"`
}
