package invoice

import (
	"context"
	"testing"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testContext() context.Context {
	ctx := types.SetTenantID(context.Background(), "tenant_test")
	return types.SetUserID(ctx, "user_test")
}

func buildTaxedInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := Build(testContext(), BuildParams{
		CustomerID: "cust_1",
		Currency:   "usd",
		LineItems: []LineItemParams{
			{
				Description:  "Pro plan",
				LineItemType: types.LineItemTypeSubscription,
				Quantity:     d("1"),
				UnitPrice:    d("100"),
				TaxRate:      lo.ToPtr(d("0.1")),
			},
		},
	}, FormatNumber("202403", 1), testNow)
	require.NoError(t, err)
	return inv
}

func TestBuild(t *testing.T) {
	inv, err := Build(testContext(), BuildParams{
		CustomerID:   "cust_1",
		Currency:     "eur",
		PaymentTerms: types.PaymentTermsNet15,
		LineItems: []LineItemParams{
			{Description: "Seats", Quantity: d("3"), UnitPrice: d("19.99"), TaxRate: lo.ToPtr(d("0.2"))},
			{Description: "Setup", Quantity: d("1"), UnitPrice: d("50"), DiscountAmount: lo.ToPtr(d("10"))},
		},
	}, FormatNumber("202403", 7), testNow)
	require.NoError(t, err)

	assert.Equal(t, "INV-202403-0007", inv.InvoiceNumber)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, types.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "109.97", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "11.99", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "10.00", inv.DiscountAmount.StringFixed(2))
	assert.Equal(t, "111.96", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, "111.96", inv.AmountDue.StringFixed(2))
	assert.True(t, inv.AmountPaid.IsZero())
	assert.Equal(t, testNow.AddDate(0, 0, 15), inv.DueDate)
	assert.Equal(t, "tenant_test", inv.TenantID)
	assert.Len(t, inv.LineItems, 2)
	for _, item := range inv.LineItems {
		assert.Equal(t, inv.ID, item.InvoiceID)
	}
	assert.Equal(t, types.LineItemTypeOneTime, inv.LineItems[0].LineItemType)
	require.NoError(t, inv.Validate())
}

func TestBuild_DefaultsAndExplicitDueDate(t *testing.T) {
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	inv, err := Build(testContext(), BuildParams{
		CustomerID: "cust_1",
		DueDate:    &due,
		LineItems:  []LineItemParams{{Quantity: d("1"), UnitPrice: d("0")}},
	}, FormatNumber("202403", 2), testNow)
	require.NoError(t, err)

	assert.Equal(t, types.DefaultCurrency, inv.Currency)
	assert.Equal(t, types.PaymentTermsNet30, inv.PaymentTerms)
	assert.Equal(t, due, inv.DueDate)
	assert.True(t, inv.TotalAmount.IsZero())
}

func TestBuild_Validation(t *testing.T) {
	valid := LineItemParams{Quantity: d("1"), UnitPrice: d("10")}

	tests := []struct {
		name   string
		params BuildParams
	}{
		{
			name:   "missing customer",
			params: BuildParams{LineItems: []LineItemParams{valid}},
		},
		{
			name:   "no line items",
			params: BuildParams{CustomerID: "cust_1"},
		},
		{
			name: "zero quantity",
			params: BuildParams{CustomerID: "cust_1", LineItems: []LineItemParams{
				{Quantity: d("0"), UnitPrice: d("10")},
			}},
		},
		{
			name: "negative price",
			params: BuildParams{CustomerID: "cust_1", LineItems: []LineItemParams{
				{Quantity: d("1"), UnitPrice: d("-10")},
			}},
		},
		{
			name: "tax rate above one",
			params: BuildParams{CustomerID: "cust_1", LineItems: []LineItemParams{
				{Quantity: d("1"), UnitPrice: d("10"), TaxRate: lo.ToPtr(d("1.5"))},
			}},
		},
		{
			name: "negative discount",
			params: BuildParams{CustomerID: "cust_1", LineItems: []LineItemParams{
				{Quantity: d("1"), UnitPrice: d("10"), DiscountAmount: lo.ToPtr(d("-1"))},
			}},
		},
		{
			name:   "bad currency",
			params: BuildParams{CustomerID: "cust_1", Currency: "dollars", LineItems: []LineItemParams{valid}},
		},
		{
			name:   "bad payment terms",
			params: BuildParams{CustomerID: "cust_1", PaymentTerms: "net_7", LineItems: []LineItemParams{valid}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(testContext(), tt.params, FormatNumber("202403", 1), testNow)
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
		})
	}
}

func TestPaymentLifecycle(t *testing.T) {
	inv := buildTaxedInvoice(t)
	require.Equal(t, "110.00", inv.TotalAmount.StringFixed(2))

	_, err := inv.MarkAsPaid(d("10"), testNow)
	require.Error(t, err, "drafts cannot take payments")
	assert.True(t, ierr.IsConflict(err))

	sent, err := inv.Send(testNow)
	require.NoError(t, err)
	assert.Equal(t, "draft", sent.FromStatus)
	assert.Equal(t, "pending", sent.ToStatus)

	partial, err := inv.MarkAsPaid(d("50"), testNow)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, "60.00", inv.AmountDue.StringFixed(2))
	assert.Nil(t, inv.PaidDate)
	assert.Equal(t, "pending", partial.FromStatus)
	assert.Equal(t, "partially_paid", partial.ToStatus)
	assert.Equal(t, "50", partial.Amounts["payment_amount"].String())

	paid, err := inv.MarkAsPaid(d("60"), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.AmountDue.IsZero())
	require.NotNil(t, inv.PaidDate)
	assert.Equal(t, testNow.Add(time.Hour), *inv.PaidDate)
	assert.Equal(t, "partially_paid", paid.FromStatus)
	assert.Equal(t, "paid", paid.ToStatus)
	require.NoError(t, inv.Validate())

	_, err = inv.MarkAsPaid(d("1"), testNow)
	assert.True(t, ierr.IsConflict(err))
	_, err = inv.Void(testNow)
	assert.True(t, ierr.IsConflict(err))
	assert.True(t, ierr.IsConflict(inv.CanDelete()))
	assert.True(t, ierr.IsConflict(inv.CanUpdate()))
}

func TestMarkAsPaid_Overpayment(t *testing.T) {
	inv := buildTaxedInvoice(t)
	_, err := inv.Send(testNow)
	require.NoError(t, err)

	_, err = inv.MarkAsPaid(d("200"), testNow)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.AmountDue.IsZero())
	require.NoError(t, inv.Validate())
}

func TestMarkAsPaid_NonPositiveAmount(t *testing.T) {
	inv := buildTaxedInvoice(t)
	_, err := inv.Send(testNow)
	require.NoError(t, err)

	_, err = inv.MarkAsPaid(d("0"), testNow)
	assert.True(t, ierr.IsValidation(err))
	_, err = inv.MarkAsPaid(d("-5"), testNow)
	assert.True(t, ierr.IsValidation(err))
}

func TestVoid(t *testing.T) {
	inv := buildTaxedInvoice(t)

	tr, err := inv.Void(testNow)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusVoided, inv.Status)
	require.NotNil(t, inv.VoidedDate)
	assert.Equal(t, "voided", tr.ToStatus)

	_, err = inv.Void(testNow)
	assert.True(t, ierr.IsConflict(err))
	_, err = inv.Send(testNow)
	assert.True(t, ierr.IsConflict(err))
	assert.NoError(t, inv.CanDelete())
}

func TestReplaceLineItems(t *testing.T) {
	inv := buildTaxedInvoice(t)
	_, err := inv.Send(testNow)
	require.NoError(t, err)
	_, err = inv.MarkAsPaid(d("50"), testNow)
	require.NoError(t, err)

	tr, err := inv.ReplaceLineItems(testContext(), []LineItemParams{
		{Description: "Basic plan", Quantity: d("1"), UnitPrice: d("80")},
	}, testNow)
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.Equal(t, "80.00", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, "30.00", inv.AmountDue.StringFixed(2))
	assert.Equal(t, types.InvoiceStatusPartiallyPaid, inv.Status)

	tr, err = inv.ReplaceLineItems(testContext(), []LineItemParams{
		{Description: "Starter plan", Quantity: d("1"), UnitPrice: d("40")},
	}, testNow)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, types.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.AmountDue.IsZero())
	require.NoError(t, inv.Validate())

	_, err = inv.ReplaceLineItems(testContext(), []LineItemParams{
		{Quantity: d("1"), UnitPrice: d("1")},
	}, testNow)
	assert.True(t, ierr.IsConflict(err))
}

func TestValidate_DetectsBrokenInvariants(t *testing.T) {
	inv := buildTaxedInvoice(t)
	inv.TotalAmount = d("1")
	assert.True(t, ierr.IsSystem(inv.Validate()))

	inv = buildTaxedInvoice(t)
	inv.AmountDue = d("-1")
	assert.True(t, ierr.IsSystem(inv.Validate()))
}

func TestNumbering(t *testing.T) {
	assert.Equal(t, "INV-202401-0001", FormatNumber("202401", 1))
	assert.Equal(t, "INV-202401-12345", FormatNumber("202401", 12345))

	seq, ok := ParseSequence("INV-202401-0042", "202401")
	assert.True(t, ok)
	assert.Equal(t, int64(42), seq)

	_, ok = ParseSequence("INV-202312-0042", "202401")
	assert.False(t, ok)
	_, ok = ParseSequence("INV-202401-abcd", "202401")
	assert.False(t, ok)

	fallback := FallbackNumber(testNow)
	assert.Regexp(t, `^INV-202403-\d{4}$`, fallback)
}
