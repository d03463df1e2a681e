package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/audit"
	"github.com/flexprice/billingcore/internal/domain/billingcycle"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// BillingCycleService schedules recurring billing and turns due cycles into
// invoices.
type BillingCycleService interface {
	ScheduleRecurringBilling(ctx context.Context, req dto.ScheduleBillingCycleRequest) (*dto.BillingCycleResponse, error)
	// ProcessBillingCycle invoices a pending cycle exactly once. The cycle is
	// marked paid as soon as the invoice exists.
	ProcessBillingCycle(ctx context.Context, id string) (*dto.BillingCycleResponse, error)
	CancelBillingCycle(ctx context.Context, id string) (*dto.BillingCycleResponse, error)
	GetBillingCycle(ctx context.Context, id string) (*dto.BillingCycleResponse, error)
	ListBillingCycles(ctx context.Context, filter *types.BillingCycleFilter) (*dto.ListBillingCyclesResponse, error)
	// ProcessDueCycles processes pending cycles of the tenant in ctx whose
	// billing date is at or before now.
	ProcessDueCycles(ctx context.Context, now time.Time) (*dto.ProcessDueCyclesResponse, error)
}

// revertTimeout bounds the rollback of a failed claim, which runs even after
// the caller's context is done.
const revertTimeout = 5 * time.Second

type billingCycleService struct {
	ServiceParams
	invoices InvoiceService
	pricing  PricingService
}

func NewBillingCycleService(params ServiceParams, invoices InvoiceService, pricing PricingService) BillingCycleService {
	return &billingCycleService{
		ServiceParams: params,
		invoices:      invoices,
		pricing:       pricing,
	}
}

func (s *billingCycleService) ScheduleRecurringBilling(ctx context.Context, req dto.ScheduleBillingCycleRequest) (*dto.BillingCycleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	period, err := billingcycle.NextPeriod(s.Clock.Now(), req.CycleType)
	if err != nil {
		return nil, err
	}

	priced, err := s.pricing.PriceSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}

	cycle := billingcycle.New(ctx, lo.ToPtr(sub.ID), req.CycleType, period, priced.FinalAmount, sub.Currency)
	if err := cycle.Validate(); err != nil {
		return nil, err
	}

	if err := s.BillingCycleRepo.Create(ctx, cycle); err != nil {
		s.Logger.Errorw("failed to schedule billing cycle",
			"subscription_id", sub.ID,
			"cycle_type", req.CycleType,
			"error", err,
		)
		return nil, err
	}

	s.Logger.Infow("scheduled billing cycle",
		"billing_cycle_id", cycle.ID,
		"subscription_id", sub.ID,
		"billing_date", cycle.BillingDate,
		"total_amount", cycle.TotalAmount.String(),
	)
	return &dto.BillingCycleResponse{BillingCycle: cycle}, nil
}

func (s *billingCycleService) ProcessBillingCycle(ctx context.Context, id string) (*dto.BillingCycleResponse, error) {
	cycle, err := s.BillingCycleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Claim the cycle. Only one caller can move it out of pending.
	claim, err := cycle.BeginProcessing(s.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.BillingCycleRepo.UpdateIfStatus(ctx, cycle, types.BillingCycleStatusPending); err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, claim)

	var completed *audit.StateTransition
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.generateInvoice(ctx, cycle)
		if err != nil {
			return err
		}
		completed, err = cycle.CompleteProcessing(inv.ID, inv.TotalAmount, inv.Currency, s.Clock.Now())
		if err != nil {
			return err
		}
		return s.BillingCycleRepo.UpdateIfStatus(ctx, cycle, types.BillingCycleStatusProcessing)
	})
	if err != nil {
		s.Metrics.IncBillingCycleError(err)
		s.Logger.Errorw("failed to process billing cycle",
			"billing_cycle_id", id,
			"error", err,
		)
		s.revertProcessing(ctx, id, err)
		return nil, err
	}

	s.recordTransitions(ctx, completed)
	s.Logger.Infow("processed billing cycle",
		"billing_cycle_id", id,
		"invoice_id", lo.FromPtr(cycle.InvoiceID),
		"total_amount", cycle.TotalAmount.String(),
	)
	return &dto.BillingCycleResponse{BillingCycle: cycle}, nil
}

func (s *billingCycleService) generateInvoice(ctx context.Context, cycle *billingcycle.BillingCycle) (*dto.InvoiceResponse, error) {
	if cycle.SubscriptionID == nil {
		return nil, ierr.NewError("billing cycle has no subscription").
			WithHint("Only subscription billing cycles can be invoiced").
			WithReportableDetails(map[string]any{
				"billing_cycle_id": cycle.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, *cycle.SubscriptionID)
	if err != nil {
		return nil, err
	}

	amount := cycle.TotalAmount
	if amount.IsZero() {
		priced, err := s.pricing.PriceSubscription(ctx, sub)
		if err != nil {
			return nil, err
		}
		amount = priced.FinalAmount
	}

	start, end := cycle.StartDate, cycle.EndDate
	return s.invoices.CreateInvoice(ctx, dto.CreateInvoiceRequest{
		CustomerID:     sub.CustomerID,
		SubscriptionID: lo.ToPtr(sub.ID),
		BillingCycleID: lo.ToPtr(cycle.ID),
		Currency:       lo.Ternary(cycle.Currency == "", sub.Currency, cycle.Currency),
		LineItems: []dto.InvoiceLineItemRequest{
			{
				Description: fmt.Sprintf("%s subscription %s to %s",
					cycle.CycleType, start.Format(time.DateOnly), end.Format(time.DateOnly)),
				LineItemType: types.LineItemTypeSubscription,
				Quantity:     decimal.NewFromInt(1),
				UnitPrice:    amount,
				PeriodStart:  &start,
				PeriodEnd:    &end,
			},
		},
	})
}

// revertProcessing returns a claimed cycle to pending so a later run can
// retry it. It reloads the cycle because the in-memory copy may already
// carry the failed completion. The revert is detached from ctx so a cancelled
// or expired caller cannot leave the cycle stuck in processing.
func (s *billingCycleService) revertProcessing(ctx context.Context, id string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()

	cycle, err := s.BillingCycleRepo.Get(ctx, id)
	if err != nil {
		s.Logger.Errorw("failed to load billing cycle for revert",
			"billing_cycle_id", id,
			"error", err,
		)
		return
	}

	t, err := cycle.RevertProcessing(cause.Error(), s.Clock.Now())
	if err != nil {
		s.Logger.Errorw("billing cycle cannot be reverted",
			"billing_cycle_id", id,
			"status", cycle.Status,
			"error", err,
		)
		return
	}
	if err := s.BillingCycleRepo.UpdateIfStatus(ctx, cycle, types.BillingCycleStatusProcessing); err != nil {
		s.Logger.Errorw("failed to revert billing cycle to pending",
			"billing_cycle_id", id,
			"error", err,
		)
		return
	}
	s.recordTransitions(ctx, t)
}

func (s *billingCycleService) CancelBillingCycle(ctx context.Context, id string) (*dto.BillingCycleResponse, error) {
	cycle, err := s.BillingCycleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t, err := cycle.Cancel(s.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.BillingCycleRepo.UpdateIfStatus(ctx, cycle, types.BillingCycleStatusPending); err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, t)
	return &dto.BillingCycleResponse{BillingCycle: cycle}, nil
}

func (s *billingCycleService) GetBillingCycle(ctx context.Context, id string) (*dto.BillingCycleResponse, error) {
	if id == "" {
		return nil, ierr.NewError("billing_cycle_id is required").
			WithHint("Billing cycle ID is required").
			Mark(ierr.ErrValidation)
	}

	cycle, err := s.BillingCycleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.BillingCycleResponse{BillingCycle: cycle}, nil
}

func (s *billingCycleService) ListBillingCycles(ctx context.Context, filter *types.BillingCycleFilter) (*dto.ListBillingCyclesResponse, error) {
	if filter == nil {
		filter = &types.BillingCycleFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.QueryFilter.Validate(); err != nil {
		return nil, err
	}

	cycles, err := s.BillingCycleRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.BillingCycleRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.BillingCycleResponse, len(cycles))
	for i, c := range cycles {
		items[i] = &dto.BillingCycleResponse{BillingCycle: c}
	}
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *billingCycleService) ProcessDueCycles(ctx context.Context, now time.Time) (*dto.ProcessDueCyclesResponse, error) {
	reclaimed, err := s.reclaimStale(ctx, now)
	if err != nil {
		return nil, err
	}

	filter := &types.BillingCycleFilter{
		QueryFilter:       types.NewNoLimitQueryFilter(),
		Statuses:          []types.BillingCycleStatus{types.BillingCycleStatusPending},
		BillingDateBefore: &now,
	}
	if s.Config.Scheduler.BatchSize > 0 {
		filter.QueryFilter.Limit = lo.ToPtr(s.Config.Scheduler.BatchSize)
	}

	due, err := s.BillingCycleRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProcessDueCyclesResponse{Due: len(due), Reclaimed: reclaimed}
	if len(due) == 0 {
		return resp, nil
	}

	var mu sync.Mutex
	p := pool.New().
		WithErrors().
		WithContext(ctx).
		WithMaxGoroutines(max(s.Config.Scheduler.Concurrency, 1))

	for _, cycle := range due {
		id := cycle.ID
		p.Go(func(ctx context.Context) error {
			_, err := s.ProcessBillingCycle(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				resp.Processed++
			case ierr.IsConflict(err):
				// Another worker claimed it first.
				resp.Skipped++
			default:
				resp.Failed++
				resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", id, err))
				return err
			}
			return nil
		})
	}
	err = p.Wait()

	s.Metrics.AddBatchItems(metrics.JobProcessDueCycles, metrics.OutcomeProcessed, resp.Processed)
	s.Metrics.AddBatchItems(metrics.JobProcessDueCycles, metrics.OutcomeSkipped, resp.Skipped)
	s.Metrics.AddBatchItems(metrics.JobProcessDueCycles, metrics.OutcomeFailed, resp.Failed)

	s.Logger.Infow("processed due billing cycles",
		"due", resp.Due,
		"processed", resp.Processed,
		"skipped", resp.Skipped,
		"failed", resp.Failed,
		"reclaimed", resp.Reclaimed,
	)
	return resp, err
}

// reclaimStale returns cycles whose claim is older than Scheduler.StaleAfter
// to pending. Such claims belong to processors that died before they could
// complete or revert.
func (s *billingCycleService) reclaimStale(ctx context.Context, now time.Time) (int, error) {
	staleAfter := s.Config.Scheduler.StaleAfter
	if staleAfter <= 0 {
		return 0, nil
	}

	claimed, err := s.BillingCycleRepo.List(ctx, &types.BillingCycleFilter{
		QueryFilter:       types.NewNoLimitQueryFilter(),
		Statuses:          []types.BillingCycleStatus{types.BillingCycleStatusProcessing},
		BillingDateBefore: &now,
	})
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-staleAfter)
	reclaimed := 0
	for _, cycle := range claimed {
		if cycle.ProcessingStartedAt == nil || cycle.ProcessingStartedAt.After(cutoff) {
			continue
		}
		started := *cycle.ProcessingStartedAt
		t, err := cycle.RevertProcessing("processing claim expired", now)
		if err != nil {
			continue
		}
		if err := s.BillingCycleRepo.UpdateIfStatus(ctx, cycle, types.BillingCycleStatusProcessing); err != nil {
			if ierr.IsConflict(err) {
				continue
			}
			return reclaimed, err
		}
		s.Logger.Warnw("reclaimed stale billing cycle",
			"billing_cycle_id", cycle.ID,
			"processing_started_at", started,
		)
		s.recordTransitions(ctx, t)
		reclaimed++
	}
	s.Metrics.AddBatchItems(metrics.JobProcessDueCycles, metrics.OutcomeReclaimed, reclaimed)
	return reclaimed, nil
}

func (s *billingCycleService) recordTransitions(ctx context.Context, transitions ...*audit.StateTransition) {
	for _, t := range transitions {
		if t != nil {
			s.Metrics.IncBillingCycleTransition(t.FromStatus, t.ToStatus)
		}
	}
	s.publishTransitions(ctx, transitions...)
}
