package types

import (
	"regexp"
	"strings"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MoneyPrecision is the number of decimal places every monetary result is rounded to.
const MoneyPrecision = 2

// DefaultCurrency is used when neither the request nor the subscription names one.
const DefaultCurrency = "USD"

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// zeroDecimalCurrencies have no minor unit; amounts are sent to providers as-is.
var zeroDecimalCurrencies = []string{
	"BIF", "CLP", "DJF", "GNF", "JPY", "KMF", "KRW", "MGA",
	"PYG", "RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF",
}

// RoundAmount rounds a monetary amount half away from zero to MoneyPrecision places.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPrecision)
}

// NormalizeCurrency upper-cases the code and applies the default when empty.
func NormalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

func ValidateCurrencyCode(currency string) error {
	if !currencyPattern.MatchString(strings.ToUpper(currency)) {
		return ierr.NewError("invalid currency code").
			WithHint("Currency must be a three letter ISO 4217 code").
			WithReportableDetails(map[string]any{
				"currency": currency,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func IsZeroDecimalCurrency(currency string) bool {
	return lo.Contains(zeroDecimalCurrencies, strings.ToUpper(currency))
}

// ToMinorUnits converts a decimal amount to the provider's integer minor units.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimalCurrency(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a decimal amount.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	if IsZeroDecimalCurrency(currency) {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}
