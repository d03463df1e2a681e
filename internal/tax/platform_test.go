package tax

import (
	"testing"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPlatformRequest(t *testing.T) {
	req := Request{
		Amount:       decimal.RequireFromString("1500"),
		Currency:     "jpy",
		Jurisdiction: types.Jurisdiction{Country: "jp"},
		LineItems: []LineItem{
			{Reference: "seats", Amount: decimal.RequireFromString("1000")},
			{Amount: decimal.RequireFromString("500"), TaxCode: "txcd_custom"},
		},
	}

	out := toPlatformRequest(req, "txcd_default")
	assert.Equal(t, "JPY", out.Currency)
	require.Len(t, out.LineItems, 2)
	assert.Equal(t, int64(1000), out.LineItems[0].AmountMinorUnits, "zero decimal currency")
	assert.Equal(t, "txcd_default", out.LineItems[0].TaxCode)
	assert.Equal(t, "charge", out.LineItems[1].Reference)
	assert.Equal(t, "txcd_custom", out.LineItems[1].TaxCode)
	assert.Equal(t, "JP", out.CustomerAddress.Country)
}

func TestFromPlatformResponse_AggregatesByJurisdiction(t *testing.T) {
	req := Request{
		Amount:       decimal.RequireFromString("200"),
		Currency:     "usd",
		Jurisdiction: types.Jurisdiction{Country: "US", State: lo.ToPtr("WA")},
	}
	resp := &PlatformTaxResponse{
		LineItems: []PlatformLineItemResult{
			{Reference: "a", TaxBreakdown: []PlatformTaxBreakdown{{Jurisdiction: "Washington", Rate: decimal.RequireFromString("0.065"), TaxAmountMinorUnits: 650}}},
			{Reference: "b", TaxBreakdown: []PlatformTaxBreakdown{{Jurisdiction: "Washington", Rate: decimal.RequireFromString("0.065"), TaxAmountMinorUnits: 650}}},
		},
		TaxAmountExclusiveMinorUnits: 1300,
	}

	result := fromPlatformResponse(req, resp)
	require.Len(t, result.Taxes, 1)
	assert.Equal(t, "13.00", result.Taxes[0].Amount.StringFixed(2))
	assert.Equal(t, "13.00", result.TaxAmount.StringFixed(2))
	assert.Equal(t, "213.00", result.TotalAmount.StringFixed(2))
	assert.Equal(t, "0.065", result.TaxRate.String())
	assert.Equal(t, "US-WA", result.Jurisdiction.Code)
}

