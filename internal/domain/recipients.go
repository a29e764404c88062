package domain

import (
	"net/mail"
	"strings"
)

// ParseRecipients splits registered recipient entries into individual
// addresses. Entries may be delimited by ',' or ';'. Valid addresses are
// returned in NormalizeEmail form, in order, without duplicates. Anything
// that is not a bare e-mail address ends up in invalid.
func ParseRecipients(entries []string) (valid []string, invalid []string) {
	seen := make(map[string]bool)
	for _, entry := range entries {
		parts := strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || r == ';'
		})
		for _, part := range parts {
			addr := strings.TrimSpace(part)
			if addr == "" {
				continue
			}
			if !IsValidEmail(addr) {
				invalid = append(invalid, addr)
				continue
			}
			key := NormalizeEmail(addr)
			if seen[key] {
				continue
			}
			seen[key] = true
			valid = append(valid, key)
		}
	}
	return valid, invalid
}

// NormalizeEmail returns the form a recipient is stored and compared in.
// Addresses are case-insensitive everywhere in the alert ledger.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsValidEmail accepts bare addresses only ("ops@example.com"), not
// display-name forms.
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}
