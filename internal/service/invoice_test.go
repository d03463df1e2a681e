package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/audit"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *InvoiceServiceSuite) createRequest(customerID string) dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		CustomerID: customerID,
		Currency:   "usd",
		LineItems: []dto.InvoiceLineItemRequest{
			{
				Description:  "Pro plan",
				LineItemType: types.LineItemTypeSubscription,
				Quantity:     d("1"),
				UnitPrice:    d("100"),
				TaxRate:      lo.ToPtr(d("0.1")),
			},
		},
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoice_NumbersSequentially() {
	first, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)
	second, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)

	s.Equal("INV-202403-0001", first.InvoiceNumber)
	s.Equal("INV-202403-0002", second.InvoiceNumber)
	s.Equal(types.InvoiceStatusDraft, first.Status)
	s.Equal("110.00", first.TotalAmount.StringFixed(2))
	s.Equal(types.PaymentTermsNet30, first.PaymentTerms)
	s.Equal(s.GetNow().AddDate(0, 0, 30), first.DueDate)
	s.Equal(1, first.Version)

	other, err := s.service.CreateInvoice(testutil.WithTenant(s.GetContext(), "tenant_other"), s.createRequest("cust_1"))
	s.Require().NoError(err)
	s.Equal("INV-202403-0001", other.InvoiceNumber, "sequences are per tenant")
}

func (s *InvoiceServiceSuite) TestCreateInvoice_DefaultsCurrency() {
	req := s.createRequest("cust_1")
	req.Currency = ""

	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal(s.GetConfig().Invoice.DefaultCurrency, resp.Currency)
}

func (s *InvoiceServiceSuite) TestCreateInvoice_RetriesOnNumberCollision() {
	takenReq := s.createRequest("cust_0")
	taken, err := invoice.Build(s.GetContext(), takenReq.ToBuildParams(), "INV-202403-0001", s.GetNow())
	s.Require().NoError(err)
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), taken))

	resp, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)
	s.Equal("INV-202403-0002", resp.InvoiceNumber)

	s.NoError(gatherCompare(s.GetRegistry(), `
# HELP billingcore_invoice_number_retries_total Invoice creations retried after an invoice number collision.
# TYPE billingcore_invoice_number_retries_total counter
billingcore_invoice_number_retries_total 1
`, "billingcore_invoice_number_retries_total"))
}

func (s *InvoiceServiceSuite) TestCreateInvoice_RetriesExhausted() {
	s.GetStores().InvoiceRepo.FailCreates(ierr.NewError("duplicate invoice number").Mark(ierr.ErrAlreadyExists))

	_, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().Error(err)
	s.True(ierr.IsConflict(err))

	// one initial attempt plus the configured retries
	retries := s.GetConfig().Invoice.NumberRetryMax + 1
	s.NoError(gatherCompare(s.GetRegistry(), fmt.Sprintf(`
# HELP billingcore_invoice_number_retries_total Invoice creations retried after an invoice number collision.
# TYPE billingcore_invoice_number_retries_total counter
billingcore_invoice_number_retries_total %d
`, retries), "billingcore_invoice_number_retries_total"))
}

func (s *InvoiceServiceSuite) TestCreateInvoice_StoreFailureIsNotRetried() {
	s.GetStores().InvoiceRepo.FailCreates(ierr.NewError("connection refused").Mark(ierr.ErrDatabase))

	_, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))
	s.False(ierr.IsConflict(err))

	s.NoError(gatherCompare(s.GetRegistry(), `
# HELP billingcore_invoice_number_retries_total Invoice creations retried after an invoice number collision.
# TYPE billingcore_invoice_number_retries_total counter
billingcore_invoice_number_retries_total 0
`, "billingcore_invoice_number_retries_total"))
}

func (s *InvoiceServiceSuite) TestCreateInvoice_Validation() {
	tests := []struct {
		name string
		req  dto.CreateInvoiceRequest
	}{
		{"missing customer", dto.CreateInvoiceRequest{LineItems: s.createRequest("").LineItems}},
		{"no line items", dto.CreateInvoiceRequest{CustomerID: "cust_1"}},
		{"negative price", dto.CreateInvoiceRequest{CustomerID: "cust_1", LineItems: []dto.InvoiceLineItemRequest{
			{Quantity: d("1"), UnitPrice: d("-1")},
		}}},
		{"bad terms", dto.CreateInvoiceRequest{CustomerID: "cust_1", PaymentTerms: "net_99", LineItems: s.createRequest("").LineItems}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CreateInvoice(s.GetContext(), tt.req)
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}
}

func (s *InvoiceServiceSuite) TestPaymentLifecycle() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)
	id := created.ID

	_, err = s.service.MarkAsPaid(s.GetContext(), id, dto.MarkAsPaidRequest{Amount: d("10")})
	s.True(ierr.IsConflict(err), "drafts cannot take payments")

	sent, err := s.service.SendInvoice(s.GetContext(), id)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPending, sent.Status)

	partial, err := s.service.MarkAsPaid(s.GetContext(), id, dto.MarkAsPaidRequest{Amount: d("50")})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPartiallyPaid, partial.Status)
	s.Equal("60.00", partial.AmountDue.StringFixed(2))

	paid, err := s.service.MarkAsPaid(s.GetContext(), id, dto.MarkAsPaidRequest{Amount: d("60")})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, paid.Status)
	s.True(paid.AmountDue.IsZero())
	s.Equal("110.00", paid.AmountPaid.StringFixed(2))
	s.NotNil(paid.PaidDate)

	_, err = s.service.MarkAsPaid(s.GetContext(), id, dto.MarkAsPaidRequest{Amount: d("1")})
	s.True(ierr.IsConflict(err))
	_, err = s.service.VoidInvoice(s.GetContext(), id)
	s.True(ierr.IsConflict(err))
	_, err = s.service.UpdateInvoice(s.GetContext(), id, dto.UpdateInvoiceRequest{Notes: lo.ToPtr("late")})
	s.True(ierr.IsConflict(err))
	s.True(ierr.IsConflict(s.service.DeleteInvoice(s.GetContext(), id)))

	transitions := s.GetPublisher().TransitionsFor(types.EntityTypeInvoice, id)
	s.Require().Len(transitions, 3)
	s.Equal([]string{"pending", "partially_paid", "paid"}, lo.Map(transitions, func(t *audit.StateTransition, _ int) string {
		return t.ToStatus
	}))
	s.Equal("60", transitions[2].Amounts["payment_amount"].String())

	stored, err := s.service.GetInvoice(s.GetContext(), id)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.Status)
	s.Equal(4, stored.Version)
}

func (s *InvoiceServiceSuite) TestMarkAsPaid_RejectsNonPositiveAmount() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)

	_, err = s.service.MarkAsPaid(s.GetContext(), created.ID, dto.MarkAsPaidRequest{Amount: d("0")})
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestUpdateInvoice() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)

	due := s.GetNow().AddDate(0, 1, 0)
	s.GetClock().Advance(time.Hour)
	updated, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		LineItems: []dto.InvoiceLineItemRequest{
			{Description: "Seats", Quantity: d("3"), UnitPrice: d("20")},
		},
		DueDate: &due,
		Notes:   lo.ToPtr("renegotiated"),
	})
	s.Require().NoError(err)
	s.Equal("60.00", updated.TotalAmount.StringFixed(2))
	s.Equal("60.00", updated.AmountDue.StringFixed(2))
	s.Equal(due, updated.DueDate)
	s.Equal("renegotiated", updated.Notes)
	s.Equal(2, updated.Version)
	s.Equal(s.GetNow().Add(time.Hour), updated.UpdatedAt)
	s.Len(updated.LineItems, 1)

	_, err = s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{})
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestVoidAndDelete() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)

	voided, err := s.service.VoidInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusVoided, voided.Status)

	_, err = s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{Notes: lo.ToPtr("x")})
	s.True(ierr.IsConflict(err))

	s.Require().NoError(s.service.DeleteInvoice(s.GetContext(), created.ID))
	_, err = s.service.GetInvoice(s.GetContext(), created.ID)
	s.True(ierr.IsNotFound(err))
}

// paidAfterLoadStore records a full payment right after the first Get,
// between DeleteInvoice loading the invoice and deleting it.
type paidAfterLoadStore struct {
	invoice.Repository
	once sync.Once
	pay  func()
}

func (r *paidAfterLoadStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := r.Repository.Get(ctx, id)
	if err == nil {
		r.once.Do(r.pay)
	}
	return inv, err
}

func (s *InvoiceServiceSuite) TestDeleteInvoice_RejectsPaymentAfterLoad() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.createRequest("cust_1"))
	s.Require().NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.InvoiceRepo = &paidAfterLoadStore{
		Repository: params.InvoiceRepo,
		pay: func() {
			_, err := s.service.MarkAsPaid(s.GetContext(), created.ID, dto.MarkAsPaidRequest{Amount: created.AmountDue})
			s.Require().NoError(err)
		},
	}

	err = NewInvoiceService(params).DeleteInvoice(s.GetContext(), created.ID)
	s.True(ierr.IsConflict(err))

	stored, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.Status)
}

func (s *InvoiceServiceSuite) TestConcurrentCreatesGetUniqueNumbers() {
	const n = 20
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := s.service.CreateInvoice(s.GetContext(), s.createRequest(fmt.Sprintf("cust_%d", i%2)))
			errs[i] = err
			if err == nil {
				numbers[i] = resp.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}
	s.Len(lo.Uniq(numbers), n)

	list, err := s.service.ListInvoices(s.GetContext(), &types.InvoiceFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		CustomerID:  "cust_1",
	})
	s.Require().NoError(err)
	s.Len(list.Items, n/2)
	s.Equal(n/2, list.Pagination.Total)
	for _, item := range list.Items {
		s.Equal("cust_1", item.CustomerID)
	}
}
