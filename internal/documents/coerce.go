package documents

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
}

// parseDate tries each accepted layout and returns the calendar date in canonical form.
func parseDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

// dateOr normalizes value or falls back.
func dateOr(value, fallback string) string {
	if d, ok := parseDate(value); ok {
		return d
	}
	return fallback
}

// Numbers outside these bounds coerce to zero. The length check runs before
// any parse so oversized mantissas are never materialised.
const (
	maxNumberLen     = 64
	maxIntegerDigits = 15
	maxScale         = 20
)

// currencyCodes may prefix a numeric string, compared case-insensitively.
var currencyCodes = []string{"PHP", "USD", "EUR"}

// parseNumber is lenient: thousands separators and a currency prefix are
// stripped, anything unparsable or out of range is zero.
func parseNumber(value string) decimal.Decimal {
	value = strings.ReplaceAll(value, ",", "")
	value = trimCurrency(value)
	if value == "" || len(value) > maxNumberLen {
		return decimal.Zero
	}
	switch c := value[0]; {
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return bounded(d)
}

func trimCurrency(value string) string {
	isPrefix := func(r rune) bool { return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) }
	value = strings.TrimLeftFunc(value, isPrefix)
	for _, code := range currencyCodes {
		if len(value) >= len(code) && strings.EqualFold(value[:len(code)], code) {
			value = value[len(code):]
			break
		}
	}
	return strings.TrimSpace(strings.TrimLeftFunc(value, isPrefix))
}

// bounded zeroes values with more than maxIntegerDigits integer digits or
// more than maxScale fractional digits.
func bounded(d decimal.Decimal) decimal.Decimal {
	exp := int(d.Exponent())
	if -exp > maxScale || d.NumDigits()+exp > maxIntegerDigits {
		return decimal.Zero
	}
	return d
}
