// Package phone normalises customer phone numbers to E.164.
package phone

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// Normalize parses raw in the default region and returns the E.164 form ("+919876543210").
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("phone number is empty")
	}
	if defaultRegion == "" {
		defaultRegion = "IN"
	}
	p, err := libphonenumber.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", raw, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number %q is not valid", raw)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// Same reports whether two numbers are equal once normalised. Unparseable input never matches.
func Same(a, b, defaultRegion string) bool {
	na, err := Normalize(a, defaultRegion)
	if err != nil {
		return false
	}
	nb, err := Normalize(b, defaultRegion)
	if err != nil {
		return false
	}
	return na == nb
}

// WhatsAppParts splits an E.164 number into the country code and national number
// as messaging APIs expect them ("+91", "9876543210").
func WhatsAppParts(e164 string) (countryCode, number string, err error) {
	p, err := libphonenumber.Parse(e164, "")
	if err != nil {
		return "", "", fmt.Errorf("invalid phone number %q: %w", e164, err)
	}
	return fmt.Sprintf("+%d", p.GetCountryCode()), libphonenumber.GetNationalSignificantNumber(p), nil
}
