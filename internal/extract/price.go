package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// currencyTokenRE matches a decimal number with a currency symbol or 3-letter
// code directly before or after it. Heuristic candidates must carry currency
// adjacency; bare numbers are too noisy.
var currencyTokenRE = regexp.MustCompile(
	`(?i)(?:([$€£¥]|USD|EUR|GBP|JPY|CAD|AUD)\s?)?(\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)(?:\s?([$€£¥]|USD|EUR|GBP|JPY|CAD|AUD))?`,
)

// amountRE extracts a bare decimal number from structured-data values where
// currency is carried separately.
var amountRE = regexp.MustCompile(`-?\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|-?\d+(?:[.,]\d{1,2})?`)

var symbolCurrency = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// ParseAmount parses a numeric price string, tolerating thousands separators
// and decimal-comma locales. Negative values are rejected: a price cannot be
// negative, so they read as parse failures.
func ParseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "-") {
		return 0, false
	}
	m := amountRE.FindString(raw)
	if m == "" || strings.HasPrefix(m, "-") {
		return 0, false
	}
	normalized := normalizeSeparators(m)
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// normalizeSeparators rewrites a localized number into strconv form. When both
// separators appear, the last one is the decimal mark. A lone comma followed
// by exactly two digits reads as a decimal mark, otherwise as thousands.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

// FindPriceToken scans text for a currency-adjacent price token and returns
// the raw match, parsed value, and resolved currency.
func FindPriceToken(text string) (raw string, value float64, currency string, ok bool) {
	for _, m := range currencyTokenRE.FindAllStringSubmatch(text, -1) {
		cur := m[1]
		if cur == "" {
			cur = m[3]
		}
		if cur == "" {
			continue
		}
		v, parsed := ParseAmount(m[2])
		if !parsed {
			continue
		}
		return strings.TrimSpace(m[0]), v, ResolveCurrency(cur), true
	}
	return "", 0, "", false
}

// ResolveCurrency maps a matched symbol or code onto an ISO currency code.
func ResolveCurrency(token string) string {
	token = strings.TrimSpace(token)
	if code, ok := symbolCurrency[token]; ok {
		return code
	}
	return strings.ToUpper(token)
}
