// Package status holds the user status values.
package status

import "strings"

const (
	Active    = "active"
	Flagged   = "flagged"
	Banned    = "banned"
	Suspended = "suspended"
)

// IsValid reports whether s is a known user status.
func IsValid(s string) bool {
	switch s {
	case Active, Flagged, Banned, Suspended:
		return true
	}
	return false
}

// Normalize lowercases and trims a status value.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
