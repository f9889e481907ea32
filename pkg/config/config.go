// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Get returns the env value for key, or def when unset or empty.
func Get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetInt returns the env value parsed as int, or def on unset or parse error.
func GetInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetBool returns true for "true", "1", or "yes" (case preserved as set).
func GetBool(key string) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// GetDuration returns the env value parsed with time.ParseDuration, or def.
func GetDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
