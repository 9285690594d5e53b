package dashboard

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

var currencySymbols = map[string]string{
	"NGN": "₦",
	"USD": "$",
	"GBP": "£",
	"EUR": "€",
}

// Currencies without a minor unit; everything else uses two digits
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
}

// FormatMoney renders minor units for display, e.g. 24000000 NGN -> "₦240,000.00"
func FormatMoney(amount domain.Money, currency string) string {
	prefix, ok := currencySymbols[currency]
	if !ok {
		prefix = currency + " "
	}

	sign := ""
	units := int64(amount)
	if units < 0 {
		sign = "-"
		units = -units
	}

	if zeroDecimalCurrencies[currency] {
		return sign + prefix + humanize.Comma(units)
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, prefix, humanize.Comma(units/100), units%100)
}

// FormatPercent renders a [0,1] fraction as a percentage with two decimals
func FormatPercent(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
