package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateEventID creates a unique, roughly time-ordered ID for events
func GenerateEventID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + uuid.New().String()[:8]
}

// TrimToPtr trims s and returns nil when nothing is left.
func TrimToPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
