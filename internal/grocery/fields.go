package grocery

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field length limits, counted in characters.
const (
	MaxNameLen     = 200
	MaxNotesLen    = 500
	MaxQuantityLen = 50
)

// ValidationError reports a request field that failed a server-side check.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// NormalizeName is the key used for case-insensitive item matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// CleanName trims and collapses whitespace but preserves case.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// CheckLength fails with a ValidationError when value exceeds max characters.
func CheckLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be %d characters or less", max)}
	}
	return nil
}

// MergeMenuNotes appends a menu name to existing notes, comma-separated,
// truncating silently to MaxNotesLen. A menu name already present is not
// appended twice.
func MergeMenuNotes(existing, menuName string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return Truncate(menuName, MaxNotesLen)
	}
	for _, part := range strings.Split(existing, ",") {
		if strings.EqualFold(strings.TrimSpace(part), menuName) {
			return Truncate(existing, MaxNotesLen)
		}
	}
	return Truncate(existing+", "+menuName, MaxNotesLen)
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// OrDefault returns def when s is empty.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
