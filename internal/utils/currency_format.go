package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitExponents lists ISO-4217 currencies whose minor unit is not 1/100.
var minorUnitExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// CurrencyPrecision returns the number of minor-unit digits for a currency code.
func CurrencyPrecision(currencyCode string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(currencyCode)]; ok {
		return exp
	}
	return 2
}

// FormatMinorUnits renders an integer amount of minor units as a decimal string.
// Example: 1050 USD returns "10.50"
// Example: 1050 JPY returns "1050"
// Example: 1050 KWD returns "1.050"
func FormatMinorUnits(amount int64, currencyCode string) string {
	precision := CurrencyPrecision(currencyCode)
	return decimal.New(amount, -precision).StringFixed(precision)
}
