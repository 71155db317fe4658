package services

import "strings"

// NormalizeEmail trims surrounding whitespace and lowercases ASCII letters.
// Dots and every other character of the local part are kept verbatim; this
// is exact-match normalization, not provider-style alias folding. The
// function is idempotent.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, email)
}
