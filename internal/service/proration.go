package service

import (
	"context"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/proration"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
)

// ProrationService prorates subscription amount changes over the unused part
// of the current period.
type ProrationService interface {
	CalculateProration(ctx context.Context, req dto.CalculateProrationRequest) (*dto.ProrationResponse, error)
}

type prorationService struct {
	ServiceParams
}

func NewProrationService(params ServiceParams) ProrationService {
	return &prorationService{
		ServiceParams: params,
	}
}

// CalculateProration returns a zero result rather than an error when the
// subscription does not exist. The amount itself is checked by
// proration.Calculate.
func (s *prorationService) CalculateProration(ctx context.Context, req dto.CalculateProrationRequest) (*dto.ProrationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	changeDate := lo.FromPtrOr(req.ChangeDate, s.Clock.Now()).UTC()

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("proration requested for unknown subscription",
				"subscription_id", req.SubscriptionID,
			)
			return &dto.ProrationResponse{Result: proration.ZeroResult(req.SubscriptionID, changeDate)}, nil
		}
		return nil, err
	}

	result, err := proration.Calculate(proration.Params{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		CurrentAmount:  sub.Amount,
		NewAmount:      req.NewAmount,
		ChangeDate:     changeDate,
	})
	if err != nil {
		return nil, err
	}
	return &dto.ProrationResponse{Result: result}, nil
}
