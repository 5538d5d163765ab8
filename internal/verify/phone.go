package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizeE164 parses raw in defaultRegion (used when raw has no country
// code) and formats it as E.164. The number must be assigned in its region.
func NormalizeE164(raw, defaultRegion string) (string, error) {
	return normalize(raw, defaultRegion, phonenumbers.IsValidNumber)
}

// CanonicalE164 formats raw as E.164 when it merely has a plausible length.
// Use it to look up numbers the provider already accepted, which may sit in
// reserved or test ranges.
func CanonicalE164(raw, defaultRegion string) (string, error) {
	return normalize(raw, defaultRegion, phonenumbers.IsPossibleNumber)
}

func normalize(raw, defaultRegion string, accept func(*phonenumbers.PhoneNumber) bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	// 00 is the common international dialing prefix
	if !strings.HasPrefix(raw, "+") && strings.HasPrefix(raw, "00") {
		raw = "+" + strings.TrimPrefix(raw, "00")
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !accept(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
