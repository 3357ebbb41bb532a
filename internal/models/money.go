package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// supportedCurrencies maps ISO 4217 codes to their minor unit exponent.
var supportedCurrencies = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"CAD": 2,
	"AUD": 2,
	"CHF": 2,
	"JPY": 0,
	"XOF": 0,
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSupportedCurrency reports whether code (already normalized) is accepted.
func IsSupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}

// FormatMinor renders a minor-unit amount in major units, e.g. 1050 USD -> "10.50".
func FormatMinor(amount int64, currency string) string {
	exp, ok := supportedCurrencies[currency]
	if !ok {
		exp = 2
	}
	return decimal.New(amount, -exp).StringFixed(exp)
}
