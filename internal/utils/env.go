package utils

import (
	"os"
	"strings"
	"time"
)

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// SafeEnvDuration parses key as a time.Duration ("90s", "720h"); malformed or empty values yield fallback.
func SafeEnvDuration(key string, fallback time.Duration) time.Duration {
	v := SafeEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
