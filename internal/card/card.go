// Package card holds the pure rules applied to payment card input: digit
// normalization, family classification, masking and expiry handling.
package card

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

const (
	NumberLength = 16
	maskPrefix   = "**** **** **** "
	placeholder  = "000000000000"
)

// NormalizeNumber strips whitespace and requires exactly 16 digits. Any
// other separator is rejected rather than corrected.
func NormalizeNumber(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	digits := b.String()
	if len(digits) != NumberLength || !allDigits(digits) {
		return "", domain.ValidationError{Field: "cardNumber", Msg: "card number must be exactly 16 digits"}
	}
	return digits, nil
}

// Classify derives the card family from the leading digits. Rules are
// checked in order: visa, mastercard, amex, discover.
func Classify(digits string) domain.CardFamily {
	if len(digits) == 0 {
		return domain.CardFamilyOther
	}
	first2 := prefixInt(digits, 2)
	first4 := prefixInt(digits, 4)

	switch {
	case digits[0] == '4':
		return domain.CardFamilyVisa
	case (first2 >= 51 && first2 <= 55) || (first4 >= 2221 && first4 <= 2720):
		return domain.CardFamilyMastercard
	case first2 == 34 || first2 == 37:
		return domain.CardFamilyAmex
	case first4 == 6011 || first4 == 6500 || digits[0] == '6':
		return domain.CardFamilyDiscover
	default:
		return domain.CardFamilyOther
	}
}

// Mask returns the canonical stored form of a card number.
func Mask(digits string) string {
	return maskPrefix + Last4(digits)
}

// Last4 returns the trailing four characters of s, or s when shorter.
func Last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

// PlaceholderNumber is the 16-character, non-chargeable number forwarded for
// a saved card: twelve zeros followed by the stored last four digits.
func PlaceholderNumber(last4 string) string {
	return placeholder + last4
}

// ParseExpiry validates an MM/YY string and returns month and four-digit year.
func ParseExpiry(expiry string) (int, int, error) {
	expiry = strings.TrimSpace(expiry)
	invalid := domain.ValidationError{Field: "expiryDate", Msg: "expiry must be MM/YY"}
	if len(expiry) != 5 || expiry[2] != '/' {
		return 0, 0, invalid
	}
	mm, yy := expiry[:2], expiry[3:]
	if !allDigits(mm) || !allDigits(yy) {
		return 0, 0, invalid
	}
	month, _ := strconv.Atoi(mm)
	year, _ := strconv.Atoi(yy)
	if month < 1 || month > 12 {
		return 0, 0, invalid
	}
	return month, 2000 + year, nil
}

// ExpiresAt is the first instant the card is no longer valid: the first day
// of the month following MM/YY, UTC.
func ExpiresAt(expiry string) (time.Time, error) {
	month, year, err := ParseExpiry(expiry)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0), nil
}

// IsExpired reports whether expiry lies in the past at now. A malformed
// expiry counts as expired.
func IsExpired(expiry string, now time.Time) bool {
	at, err := ExpiresAt(expiry)
	if err != nil {
		return true
	}
	return !now.UTC().Before(at)
}

// ValidateCVV accepts 3 or 4 digits.
func ValidateCVV(cvv string) error {
	if n := len(cvv); (n != 3 && n != 4) || !allDigits(cvv) {
		return domain.ValidationError{Field: "cvv", Msg: "security code must be 3 or 4 digits"}
	}
	return nil
}

// NormalizeMasked turns whatever an external store keeps (a full number,
// a masked string, bare last four) into the canonical masked form.
func NormalizeMasked(stored string) (masked, last4 string) {
	var digits strings.Builder
	for _, r := range stored {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	last4 = Last4(digits.String())
	return maskPrefix + last4, last4
}

func prefixInt(digits string, n int) int {
	if len(digits) < n {
		return -1
	}
	v, err := strconv.Atoi(digits[:n])
	if err != nil {
		return -1
	}
	return v
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
