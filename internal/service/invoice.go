package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/audit"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// InvoiceService computes, numbers and moves invoices through their lifecycle.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	SendInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	MarkAsPaid(ctx context.Context, id string, req dto.MarkAsPaidRequest) (*dto.InvoiceResponse, error)
	VoidInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
}

type invoiceService struct {
	ServiceParams
	numberLocks *keyedMutex
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		numberLocks:   newKeyedMutex(),
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if req.Currency == "" {
		req.Currency = s.Config.Invoice.DefaultCurrency
	}
	if req.PaymentTerms == "" {
		req.PaymentTerms = s.Config.Invoice.DefaultPaymentTerms
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	yearMonth := types.YearMonth(now)
	params := req.ToBuildParams()

	unlock := s.numberLocks.Lock(types.GetTenantID(ctx) + ":" + yearMonth)
	defer unlock()

	var created *invoice.Invoice
	attempt := 0
	operation := func() error {
		attempt++
		number := s.nextInvoiceNumber(ctx, yearMonth, now)

		inv, err := invoice.Build(ctx, params, number, now)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = s.DB.WithTx(ctx, func(ctx context.Context) error {
			return s.InvoiceRepo.Create(ctx, inv)
		})
		if err == nil {
			created = inv
			return nil
		}
		if ierr.IsAlreadyExists(err) {
			s.Metrics.IncInvoiceNumberRetry()
			s.Logger.Warnw("invoice number taken, retrying",
				"invoice_number", number,
				"attempt", attempt,
			)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, s.numberBackoff(ctx)); err != nil {
		s.Logger.Errorw("failed to create invoice",
			"customer_id", req.CustomerID,
			"attempts", attempt,
			"error", err,
		)
		if ierr.IsAlreadyExists(err) {
			return nil, ierr.WithError(err).
				WithHint("Could not allocate a unique invoice number, please retry").
				WithReportableDetails(map[string]any{
					"year_month": yearMonth,
					"attempts":   attempt,
				}).
				Mark(ierr.ErrConflict)
		}
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", created.ID,
		"invoice_number", created.InvoiceNumber,
		"total_amount", created.TotalAmount.String(),
	)
	return dto.NewInvoiceResponse(created), nil
}

// nextInvoiceNumber takes the next sequence for the month and falls back to
// a clock derived number when the sequence store is unavailable.
func (s *invoiceService) nextInvoiceNumber(ctx context.Context, yearMonth string, now time.Time) string {
	seq, err := s.InvoiceRepo.NextSequence(ctx, yearMonth)
	if err != nil {
		s.Logger.Warnw("invoice sequence unavailable, using fallback number",
			"year_month", yearMonth,
			"error", err,
		)
		return invoice.FallbackNumber(now)
	}
	return invoice.FormatNumber(yearMonth, seq)
}

func (s *invoiceService) numberBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, s.Config.Invoice.NumberRetryMax), ctx)
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &types.InvoiceFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.QueryFilter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = dto.NewInvoiceResponse(inv)
	}
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	return s.transition(ctx, id, "send", func(inv *invoice.Invoice, now time.Time) (*audit.StateTransition, error) {
		return inv.Send(now)
	})
}

func (s *invoiceService) MarkAsPaid(ctx context.Context, id string, req dto.MarkAsPaidRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, "mark_as_paid", func(inv *invoice.Invoice, now time.Time) (*audit.StateTransition, error) {
		return inv.MarkAsPaid(req.Amount, now)
	})
}

func (s *invoiceService) VoidInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	return s.transition(ctx, id, "void", func(inv *invoice.Invoice, now time.Time) (*audit.StateTransition, error) {
		return inv.Void(now)
	})
}

// UpdateInvoice replaces line items and/or the due date of an unpaid invoice.
// Totals are re-derived and earlier payments are kept.
func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, "update", func(inv *invoice.Invoice, now time.Time) (*audit.StateTransition, error) {
		if err := inv.CanUpdate(); err != nil {
			return nil, err
		}
		var t *audit.StateTransition
		if len(req.LineItems) > 0 {
			var err error
			if t, err = inv.ReplaceLineItems(ctx, req.LineItemParams(), now); err != nil {
				return nil, err
			}
		}
		if req.DueDate != nil {
			inv.DueDate = req.DueDate.UTC()
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		return t, nil
	})
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := inv.CanDelete(); err != nil {
		return err
	}
	// The version check rejects the delete if a payment landed after the load.
	if err := s.InvoiceRepo.Delete(ctx, inv); err != nil {
		s.Logger.Errorw("failed to delete invoice",
			"invoice_id", id,
			"error", err,
		)
		return err
	}
	return nil
}

// transition loads the invoice, applies op, checks the monetary invariants
// and persists with an optimistic version check.
func (s *invoiceService) transition(
	ctx context.Context,
	id string,
	op string,
	apply func(inv *invoice.Invoice, now time.Time) (*audit.StateTransition, error),
) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	t, err := apply(inv, now)
	if err != nil {
		return nil, err
	}
	inv.Touch(ctx, now)

	if err := inv.Validate(); err != nil {
		s.Logger.Errorw("invoice invariant violated",
			"invoice_id", id,
			"operation", op,
			"error", err,
		)
		return nil, err
	}

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		s.Logger.Warnw("failed to persist invoice",
			"invoice_id", id,
			"operation", op,
			"error", err,
		)
		return nil, err
	}

	s.publishTransitions(ctx, t)
	return dto.NewInvoiceResponse(inv), nil
}
