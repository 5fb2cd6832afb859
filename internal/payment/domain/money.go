package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies the card gateway bills in whole units.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {},
	"XOF": {}, "XPF": {},
}

func minorExponent(currency string) int32 {
	if _, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// ToMinorUnits converts 12.34 USD to 1234.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	exp := minorExponent(currency)
	return amount.Shift(exp).Round(0).IntPart()
}

// FromMinorUnits converts 1234 USD back to 12.34.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -minorExponent(currency))
}
