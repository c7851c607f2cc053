// Package phone converts phone numbers to the E.164 form every lookup is keyed by.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidNumber = errors.New("invalid phone number")

// Normalize parses raw in defaultRegion (e.g. "US") and returns it as E.164.
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidNumber
	}
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidNumber, raw, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizeProviderNumber handles provider webhook values, which are usually
// international numbers without the leading "+". A bare digit string is read as
// international when that gives a valid number, else as national in
// defaultRegion when that is valid, else as international when merely possible.
func NormalizeProviderNumber(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "+") || !isDigits(raw) {
		return Normalize(raw, defaultRegion)
	}

	intl, intlErr := phonenumbers.Parse("+"+raw, defaultRegion)
	if intlErr == nil && phonenumbers.IsValidNumber(intl) {
		return phonenumbers.Format(intl, phonenumbers.E164), nil
	}
	if national, err := phonenumbers.Parse(raw, defaultRegion); err == nil && phonenumbers.IsValidNumber(national) {
		return phonenumbers.Format(national, phonenumbers.E164), nil
	}
	if intlErr == nil && phonenumbers.IsPossibleNumber(intl) {
		return phonenumbers.Format(intl, phonenumbers.E164), nil
	}
	return Normalize(raw, defaultRegion)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
