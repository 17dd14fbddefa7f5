package models

import "strings"

// Identity is the authenticated person as reported by the identity provider.
type Identity struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	JobTitle    string `json:"jobTitle,omitempty"`
}

// NormalizedEmail returns the lower-cased, trimmed e-mail address.
func (i Identity) NormalizedEmail() string {
	return NormalizeEmail(i.Email)
}

// NormalizeEmail lower-cases and trims an e-mail address. E-mail comparison
// in the portal is always case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail compares two addresses case-insensitively. Empty addresses never match.
func SameEmail(a, b string) bool {
	a, b = NormalizeEmail(a), NormalizeEmail(b)
	return a != "" && a == b
}
