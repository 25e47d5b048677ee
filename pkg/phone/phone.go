// Package phone normalizes patient phone numbers to the digits-only,
// country-code-prefixed form used as the unique key across the system.
package phone

import (
	"errors"
	"strings"
)

// DefaultCountryCode is prepended to local numbers that arrive without one.
const DefaultCountryCode = "55"

var ErrInvalid = errors.New("invalid phone number")

// Normalize strips everything but digits and guarantees a country code
// prefix. Normalizing an already-normalized number returns it unchanged.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")

	switch {
	case len(digits) < 10:
		return "", ErrInvalid
	// local number with area code, e.g. 11999998888
	case len(digits) == 10 || len(digits) == 11:
		return DefaultCountryCode + digits, nil
	// already carries a country code
	case len(digits) <= 15:
		return digits, nil
	default:
		return "", ErrInvalid
	}
}

// Equal reports whether two raw numbers normalize to the same value.
func Equal(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return na == nb
}
