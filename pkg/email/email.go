// Package email derives display names for accounts keyed by email.
package email

import (
	"strings"
	"unicode"
)

// Normalize trims and lowercases an address. Account lookups compare
// normalized addresses.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SplitFullName splits a person's full name into first name and the rest.
// Without a usable name it falls back to the address's local part.
func SplitFullName(fullName, addr string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return DeriveNameFromEmail(addr)
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func DeriveNameFromEmail(addr string) (string, string) {
	localPart := addr
	if at := strings.IndexByte(addr, '@'); at > 0 {
		localPart = addr[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
