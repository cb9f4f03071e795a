package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeString trims and escapes free-text input such as names.
func SanitizeString(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}

// SanitizeEmail lower-cases an email and strips markup and control characters.
func SanitizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	email = htmlTagPattern.ReplaceAllString(email, "")
	return removeControlChars(email)
}

// SanitizeIdentifier normalises a login identifier. Emails are lower-cased,
// usernames keep their case but lose surrounding whitespace and markup.
func SanitizeIdentifier(identifier string) string {
	if IsEmailIdentifier(identifier) {
		return SanitizeEmail(identifier)
	}
	identifier = htmlTagPattern.ReplaceAllString(strings.TrimSpace(identifier), "")
	return removeControlChars(identifier)
}

// SanitizePhone keeps digits and the usual phone punctuation.
func SanitizePhone(phone string) string {
	phone = htmlTagPattern.ReplaceAllString(strings.TrimSpace(phone), "")

	var result strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) || r == '+' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// SanitizeText escapes multi-line text, keeping newlines and tabs.
func SanitizeText(input string) string {
	escaped := html.EscapeString(strings.TrimSpace(input))

	var result strings.Builder
	for _, r := range escaped {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// IsEmailIdentifier reports whether a login identifier should be matched
// against the email column rather than the username column.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

func removeControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
