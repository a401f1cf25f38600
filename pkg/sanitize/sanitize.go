package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Plain e-mail addresses (case-insensitive).
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone formats: +xx..., (xxx) xxx-xxxx, 08xx...
// Only digits, spaces, dashes, dots, parentheses and a leading plus are
// allowed, and at least 9 digits overall.
var rePhone = regexp.MustCompile(`\+?\(?\d[\d\s\-\.\(\)]{7,}\d`)

// Brazilian-style tax ids (CPF) and similar dotted national ids.
var reNationalID = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)

// RedactPII masks contact details and national ids in free text shown to
// lawyers who are not yet assigned to the case.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = reNationalID.ReplaceAllString(s, "[redacted id]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary cuts s at a word boundary for listings.
func Summary(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
	}
	return strings.TrimRight(s[:i], " ") + "…"
}
