package utils

import (
	"strconv"
	"strings"
	"time"
)

// HasLetter returns true if s contains at least one ASCII letter (a-zA-Z)
func HasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

// HasNumber returns true if s contains at least one ASCII digit (0-9)
func HasNumber(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}

// ParseID parses a positive numeric id from a path or query value.
func ParseID(s string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// ClampLimit parses a page size. Empty or invalid values give def; the
// result always lies in [1, max].
func ClampLimit(s string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		v = def
	}
	if v < 1 {
		v = 1
	}
	if v > max {
		v = max
	}
	return v
}

// ParseOffset returns a non-negative offset, 0 when s is empty or invalid.
func ParseOffset(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ParseTime accepts RFC3339 with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

// LikeEscapeChar is the ESCAPE character used with EscapeLike patterns.
const LikeEscapeChar = "!"

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// Fold lower-cases s for case-insensitive matching. Stored search columns
// and query patterns both go through it, since SQL LOWER() folds only
// ASCII on sqlite.
func Fold(s string) string {
	return strings.ToLower(s)
}

// ContainsPattern builds a folded substring LIKE pattern.
func ContainsPattern(s string) string {
	return "%" + EscapeLike(Fold(s)) + "%"
}
