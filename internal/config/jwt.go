package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const defaultTokenTTL = 24 * time.Hour

// JWTConfig holds the signing secret and claims settings for issued tokens.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// NewJWTConfig builds a JWT configuration from the environment. JWT_SECRET
// is required; JWT_ISSUER defaults to "applyflow" and JWT_EXPIRATION_HOURS
// to 24. Tokens shorter than an hour are rejected as misconfiguration.
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "applyflow"
	}

	ttl := defaultTokenTTL
	if hoursStr := os.Getenv("JWT_EXPIRATION_HOURS"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		ttl = time.Duration(hours) * time.Hour
	}
	if ttl < time.Hour {
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %s", ttl)
	}

	return &JWTConfig{
		Secret:   secret,
		Issuer:   issuer,
		TokenTTL: ttl,
	}, nil
}
