package pipeline

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	fiatPlaces   = 2
	cryptoPlaces = 8
)

var (
	symbols      = map[string]string{"NGN": "₦", "USD": "$"}
	asciiSymbols = map[string]string{"NGN": "N", "USD": "$"}
)

// Format renders an amount for display: fiat with two decimals and thousands
// separators, crypto with up to eight decimals and trailing zeros removed.
// Known currencies get their symbol as prefix; others are written as
// "CODE 1,234.00". No exchange rates are involved.
func Format(amount decimal.Decimal, currency string) string {
	return format(amount, currency, symbols)
}

// FormatASCII is Format with ASCII-only prefixes ("N" instead of "₦"), for
// receipts and SMS text.
func FormatASCII(amount decimal.Decimal, currency string) string {
	return format(amount, currency, asciiSymbols)
}

func format(amount decimal.Decimal, currency string, table map[string]string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	var num string
	if IsCrypto(code) {
		num = amount.Round(cryptoPlaces).String()
	} else {
		num = amount.StringFixed(fiatPlaces)
	}
	num = groupThousands(num)

	if sym, ok := table[code]; ok {
		return sign + sym + num
	}
	if code == "" {
		return sign + num
	}
	return code + " " + sign + num
}

// groupThousands inserts commas into the integer part of a plain decimal string.
func groupThousands(num string) string {
	intPart, frac, hasFrac := strings.Cut(num, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return intPart + "." + frac
	}
	return intPart
}
