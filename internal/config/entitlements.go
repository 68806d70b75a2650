// Package config provides entitlement limit configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// EntitlementsConfig holds tier limits for quota-gated generation.
// A limit of -1 means unlimited.
type EntitlementsConfig struct {
	FreeResumeLimit int
	ProResumeLimit  int
}

// NewEntitlementsConfig creates entitlement limits from environment variables.
// It reads FREE_RESUME_LIMIT (default: 3) and PRO_RESUME_LIMIT (default: -1,
// unlimited).
func NewEntitlementsConfig() (*EntitlementsConfig, error) {
	freeLimit, err := limitFromEnv("FREE_RESUME_LIMIT", 3)
	if err != nil {
		return nil, err
	}
	proLimit, err := limitFromEnv("PRO_RESUME_LIMIT", -1)
	if err != nil {
		return nil, err
	}

	config := &EntitlementsConfig{
		FreeResumeLimit: freeLimit,
		ProResumeLimit:  proLimit,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

func limitFromEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return limit, nil
}

// normalize validates the configuration.
func (c *EntitlementsConfig) normalize() error {
	if c.FreeResumeLimit < -1 {
		return fmt.Errorf("FREE_RESUME_LIMIT must be -1 (unlimited) or non-negative, got: %d", c.FreeResumeLimit)
	}
	if c.ProResumeLimit < -1 {
		return fmt.Errorf("PRO_RESUME_LIMIT must be -1 (unlimited) or non-negative, got: %d", c.ProResumeLimit)
	}
	return nil
}
