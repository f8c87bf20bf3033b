package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Get returns the trimmed value of key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// GetInt parses key as an integer, falling back on absence or garbage.
func GetInt(key string, fallback int) int {
	if v, err := strconv.Atoi(Get(key, "")); err == nil {
		return v
	}
	return fallback
}

// GetFloat parses key as a float64, falling back on absence or garbage.
func GetFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(Get(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

// GetBool parses key as a boolean, falling back on absence or garbage.
func GetBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(Get(key, "")); err == nil {
		return v
	}
	return fallback
}

// GetDuration parses key as a time.Duration ("30s", "2m"), falling back
// on absence or garbage.
func GetDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(Get(key, "")); err == nil {
		return v
	}
	return fallback
}
