// Package core provides the assessment domain model.
//
// This file contains the currency and label formatting used by the budget
// analysis. Amounts are whole currency units.
package core

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// FormatCurrency renders an amount with a dollar sign and thousands
// separators.
//
// Examples:
//
//	FormatCurrency(1500) -> "$1,500"
//	FormatCurrency(-300) -> "-$300"
//	FormatCurrency(0)    -> "$0"
func FormatCurrency(amount int64) string {
	if amount < 0 {
		// -amount overflows for MinInt64; humanize handles the sign itself.
		return "-$" + strings.TrimPrefix(humanize.Comma(amount), "-")
	}
	return "$" + humanize.Comma(amount)
}

// Capitalize upper-cases the first letter of s and lower-cases the rest,
// so "eating OUT" becomes "Eating out".
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
