// Package money provides shared price parsing and formatting utilities.
//
// Prices use 2 decimal places and are stored as int64 cents
// (1 dollar = 100 cents) so negotiation arithmetic never touches floats.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const Decimals = 2

// Amount is a fixed-point price in cents.
type Amount int64

var ErrInvalidAmount = errors.New("money: invalid amount")

// Parse converts a decimal string (e.g. "450" or "450.50") to cents.
//
// Rules:
//   - Empty string parses to 0
//   - Negative amounts are allowed (callers reject them where needed)
//   - Multiple decimal points are rejected
//   - Fractional parts longer than 2 digits are rejected (no silent rounding)
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > Decimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, Decimals)
	}
	// Past the single leading sign, only digits are legal. ParseInt alone
	// would accept a second sign here ("--5" reading as +5).
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	for len(frac) < Decimals {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		cents = -cents
	}
	return Amount(cents), nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParse parses s and panics on invalid input. For constants in tests and demos.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// String formats the amount as a decimal string with exactly 2 decimal
// places (e.g. "450.00").
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d.%02d", v/100, v%100)
	if neg {
		s = "-" + s
	}
	return s
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// MarshalJSON encodes the amount as a JSON string to keep wire payloads
// free of float representations.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes either a JSON string ("450.00") or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
