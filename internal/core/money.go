// Package core provides money parsing and handling utilities.
//
// Amounts are stored as integer cents to avoid floating-point drift in
// aggregation. Parsing tolerates the formatting found in exported payment
// reports: currency symbols, thousands separators and either decimal mark.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

type Money struct {
	Cents int64
}

// currencyRunes are stripped before numeric parsing.
const currencyRunes = "$€£¥"

// ParseAmountToCents converts a raw amount string to cents with half-up
// rounding on the third decimal place.
//
// It strips currency symbols, spaces and thousands separators, and accepts
// both dot (1200.50) and comma (1200,50) decimal marks. When both separators
// appear the last one is treated as the decimal mark. Negative amounts are
// rejected; zero is allowed.
//
// Examples:
//
//	ParseAmountToCents("$1,200.00") -> 120000, nil
//	ParseAmountToCents("1.200,50")  -> 120050, nil
//	ParseAmountToCents("-5.00")     -> 0, ErrInvalidAmount
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") {
		return 0, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune(currencyRunes, r) {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()
	if s == "" {
		return 0, ErrInvalidAmount
	}

	// Resolve separators: the last of '.' or ',' is the decimal mark, any
	// earlier occurrences of either are thousands separators.
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	decIdx := lastDot
	if lastComma > decIdx {
		decIdx = lastComma
	}

	intPart := s
	fracPart := ""
	if decIdx >= 0 {
		digitsAfter := len(s) - decIdx - 1
		singleSeparator := (lastDot >= 0) != (lastComma >= 0)
		if singleSeparator && digitsAfter == 3 {
			// A lone separator with exactly three trailing digits is a
			// thousands separator ("1,200"), not a decimal mark.
			intPart = s
		} else {
			intPart = s[:decIdx]
			fracPart = s[decIdx+1:]
		}
	}
	intPart = strings.Map(dropSeparator, intPart)
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	// Two fractional digits, half-up on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

func dropSeparator(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}

// Dollars returns the amount as a float64 for display and rate math.
// Use cents for sums to avoid floating-point precision issues.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}
