// Package isbn validates ISBN-10 and ISBN-13 identifiers and
// normalizes them to a canonical hyphen-free ISBN-13 form.
package isbn

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormat is returned when the input is not 10 or 13 characters
	// after cleaning, or contains invalid characters.
	ErrFormat = errors.New("invalid ISBN format")

	// ErrChecksum is returned when the check digit does not match.
	ErrChecksum = errors.New("invalid ISBN checksum")
)

// Clean removes hyphens and spaces and trims surrounding whitespace.
// It does not validate the result.
func Clean(raw string) string {
	cleaned := strings.ReplaceAll(raw, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	return strings.TrimSpace(cleaned)
}

// Normalize converts any accepted ISBN representation to a canonical
// ISBN-13: digits only, no hyphens or spaces, valid check digit.
// ISBN-10 inputs are converted to their 978-prefixed ISBN-13 form so
// that results from different providers can be compared directly.
func Normalize(raw string) (string, error) {
	cleaned := Clean(raw)

	switch len(cleaned) {
	case 10:
		if !isISBN10Shape(cleaned) {
			return "", fmt.Errorf("%w: %q", ErrFormat, raw)
		}
		if !validISBN10Checksum(cleaned) {
			return "", fmt.Errorf("%w: %q", ErrChecksum, raw)
		}
		return isbn10to13(cleaned), nil
	case 13:
		if !allDigits(cleaned) {
			return "", fmt.Errorf("%w: %q", ErrFormat, raw)
		}
		if !validISBN13Checksum(cleaned) {
			return "", fmt.Errorf("%w: %q", ErrChecksum, raw)
		}
		return cleaned, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrFormat, raw)
	}
}

// Match reports whether two raw ISBN strings identify the same book,
// accounting for ISBN-10 to ISBN-13 conversion. Invalid inputs never
// match.
func Match(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

// isISBN10Shape checks for nine digits followed by a digit or X/x.
func isISBN10Shape(s string) bool {
	if len(s) != 10 {
		return false
	}
	if !allDigits(s[:9]) {
		return false
	}
	last := s[9]
	return (last >= '0' && last <= '9') || last == 'X' || last == 'x'
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// validISBN10Checksum verifies the weighted sum with weights 10..1.
// The trailing X counts as 10.
func validISBN10Checksum(s string) bool {
	sum := 0
	for i := 0; i < 9; i++ {
		sum += (10 - i) * int(s[i]-'0')
	}
	last := s[9]
	if last == 'X' || last == 'x' {
		sum += 10
	} else {
		sum += int(last - '0')
	}
	return sum%11 == 0
}

// validISBN13Checksum verifies the alternating 1,3 weighted sum mod 10.
func validISBN13Checksum(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		d := int(s[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += 3 * d
		}
	}
	return sum%10 == 0
}

// isbn10to13 converts a checksum-valid ISBN-10 to its ISBN-13 form:
// prefix 978, drop the old check digit, recompute the new one.
func isbn10to13(s string) string {
	base := "978" + s[:9]
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(base[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += 3 * d
		}
	}
	check := (10 - sum%10) % 10
	return base + string(rune('0'+check))
}
