// phone.go provides phone number normalization and validation. Numbers are
// stored in E.164 so customer lookup from inbound call webhooks is an exact
// string match.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPhone is returned when a phone number cannot be normalized to E.164.
var ErrInvalidPhone = errors.New("validation: invalid phone number")

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// DefaultCountryCode is applied to national-format numbers that start with a
// leading zero, e.g. 021 123 4567 becomes +6421 123 4567.
const DefaultCountryCode = "+64"

// NormalizePhone converts a phone number to E.164. It strips spaces, hyphens,
// and parentheses, then applies the default country code to national-format
// numbers. Returns ErrInvalidPhone when the result is not a plausible E.164
// number.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", ErrInvalidPhone
	}

	// 0064... international dialing prefix
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}

	// National format: 021 123 4567
	if strings.HasPrefix(cleaned, "0") {
		cleaned = DefaultCountryCode + cleaned[1:]
	}

	if !e164Pattern.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}

	return cleaned, nil
}

// ValidatePhone reports whether a number is already valid E.164.
func ValidatePhone(phone string) error {
	if !e164Pattern.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}
