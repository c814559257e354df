// Package pricing turns formatted price text into numbers and decides which
// scraped room labels and prices are trustworthy.
package pricing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	// Ceiling is the exclusive upper bound of a plausible nightly price
	Ceiling = 10000.0

	// DefaultCurrency applies when price text carries no known symbol
	DefaultCurrency = "EUR"
)

// noisePhrases are placeholder or error texts that selectors sometimes pick
// up instead of a room label
var noisePhrases = []string{
	"something went wrong",
	"please try again",
	"loading",
	"unavailable",
	"error",
}

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"€", "EUR"},
	{"£", "GBP"},
	{"$", "USD"},
}

var (
	symbolStripper = strings.NewReplacer("€", "", "$", "", "£", "", "¥", "")
	firstNumber    = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseFormatted converts a formatted price such as "€1.6K", "€763" or
// "$2M" into a number. It reports false, never a zero price, when the text
// does not parse.
func ParseFormatted(s string) (float64, bool) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, symbolStripper.Replace(s))
	if clean == "" {
		return 0, false
	}

	multiplier := 1.0
	switch clean[len(clean)-1] {
	case 'K', 'k':
		multiplier = 1000
		clean = clean[:len(clean)-1]
	case 'M', 'm':
		multiplier = 1000000
		clean = clean[:len(clean)-1]
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

// ParseText extracts the first number from free-form price text such as
// "Price € 1,234" after dropping thousands separators.
func ParseText(s string) (float64, bool) {
	m := firstNumber.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Sane reports whether price is a plausible nightly price
func Sane(price float64) bool {
	return price > 0 && price < Ceiling
}

// ValidRoomType reports whether label can be promoted to a quote
func ValidRoomType(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return false
	}
	for _, phrase := range noisePhrases {
		if strings.Contains(l, phrase) {
			return false
		}
	}
	return true
}

// DetectCurrency infers an ISO currency code from symbols in text
func DetectCurrency(text string) string {
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code
		}
	}
	return DefaultCurrency
}
