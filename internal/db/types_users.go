package db

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tier constants
const (
	TierFree = "free"
	TierPro  = "pro"
)

// User represents a registered user
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Tier         string    `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserCreateInput is used when registering a new user
type UserCreateInput struct {
	Email        string
	Name         string
	PasswordHash string
	Tier         string
}
