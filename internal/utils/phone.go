package utils

import (
	"regexp"
	"strings"
)

var nonDialable = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips formatting characters and ensures a leading +, the
// format SMS providers expect.
func NormalizePhone(phone string) string {
	normalized := nonDialable.ReplaceAllString(phone, "")
	if normalized == "" {
		return ""
	}
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	return normalized
}
