package stripe

import (
	"context"
	"errors"
	"strings"
	"testing"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

type fakeCalculations struct {
	params *stripe.TaxCalculationCreateParams
	calc   *stripe.TaxCalculation
	err    error
}

func (f *fakeCalculations) Create(_ context.Context, params *stripe.TaxCalculationCreateParams) (*stripe.TaxCalculation, error) {
	f.params = params
	return f.calc, f.err
}

func TestCalculateTax_MapsRequestAndBreakdown(t *testing.T) {
	fake := &fakeCalculations{calc: &stripe.TaxCalculation{
		ID:                 "taxcalc_1",
		TaxAmountExclusive: 725,
		LineItems: &stripe.TaxCalculationLineItemList{
			Data: []*stripe.TaxCalculationLineItem{{
				Reference: "charge",
				TaxBreakdown: []*stripe.TaxCalculationLineItemTaxBreakdown{
					{
						Amount:         600,
						Jurisdiction:   &stripe.TaxCalculationLineItemTaxBreakdownJurisdiction{Country: "US", DisplayName: "California"},
						TaxRateDetails: &stripe.TaxCalculationLineItemTaxBreakdownTaxRateDetails{PercentageDecimal: "6.0"},
					},
					{
						Amount:       125,
						Jurisdiction: &stripe.TaxCalculationLineItemTaxBreakdownJurisdiction{Country: "US"},
					},
				},
			}},
		},
	}}
	client := newTaxClient(fake, logger.NewNopLogger())

	resp, err := client.CalculateTax(context.Background(), tax.PlatformTaxRequest{
		Currency:        "USD",
		LineItems:       []tax.PlatformLineItem{{AmountMinorUnits: 10000, Reference: "charge", TaxCode: "txcd_10000000"}},
		CustomerAddress: tax.Address{Country: "US", State: "CA", PostalCode: "94105"},
	})
	require.NoError(t, err)

	require.NotNil(t, fake.params)
	assert.Equal(t, "usd", *fake.params.Currency)
	require.Len(t, fake.params.LineItems, 1)
	assert.Equal(t, int64(10000), *fake.params.LineItems[0].Amount)
	assert.Equal(t, "txcd_10000000", *fake.params.LineItems[0].TaxCode)
	assert.Equal(t, "CA", *fake.params.CustomerDetails.Address.State)
	assert.Nil(t, fake.params.CustomerDetails.Address.City)
	assert.Equal(t, "billing", *fake.params.CustomerDetails.AddressSource)
	require.NotNil(t, fake.params.IdempotencyKey)
	assert.True(t, strings.HasPrefix(*fake.params.IdempotencyKey, "platform_tax-"))

	assert.Equal(t, int64(725), resp.TaxAmountExclusiveMinorUnits)
	require.Len(t, resp.LineItems, 1)
	require.Len(t, resp.LineItems[0].TaxBreakdown, 2)
	assert.Equal(t, "California", resp.LineItems[0].TaxBreakdown[0].Jurisdiction)
	assert.Equal(t, "0.06", resp.LineItems[0].TaxBreakdown[0].Rate.String())
	assert.Equal(t, "US", resp.LineItems[0].TaxBreakdown[1].Jurisdiction)
	assert.True(t, resp.LineItems[0].TaxBreakdown[1].Rate.IsZero())
}

func TestCalculateTax_ErrorIsMarked(t *testing.T) {
	client := newTaxClient(&fakeCalculations{err: errors.New("rate limited")}, logger.NewNopLogger())

	_, err := client.CalculateTax(context.Background(), tax.PlatformTaxRequest{Currency: "USD"})
	require.Error(t, err)
	assert.True(t, ierr.IsHTTPClient(err))
}

func TestCalculationKeyIsStable(t *testing.T) {
	req := tax.PlatformTaxRequest{
		Currency:        "USD",
		LineItems:       []tax.PlatformLineItem{{AmountMinorUnits: 10000, Reference: "charge"}},
		CustomerAddress: tax.Address{Country: "US", State: "CA"},
	}
	key := calculationKey(req)
	assert.Equal(t, key, calculationKey(req))

	req.LineItems[0].AmountMinorUnits = 10001
	assert.NotEqual(t, key, calculationKey(req))
}
