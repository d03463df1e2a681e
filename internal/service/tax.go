package service

import (
	"context"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// TaxService calculates tax for charges and manages the rates and exemptions
// the calculation depends on.
type TaxService interface {
	// CalculateTax resolves tax for a charge and records the result.
	CalculateTax(ctx context.Context, req dto.CalculateTaxRequest) (*dto.TaxCalculationResponse, error)

	// Tax rates
	CreateTaxRate(ctx context.Context, req dto.CreateTaxRateRequest) (*dto.TaxRateResponse, error)
	GetTaxRate(ctx context.Context, id string) (*dto.TaxRateResponse, error)
	ListTaxRates(ctx context.Context, filter *types.TaxRateFilter) (*dto.ListTaxRatesResponse, error)
	UpdateTaxRate(ctx context.Context, id string, req dto.UpdateTaxRateRequest) (*dto.TaxRateResponse, error)
	DeleteTaxRate(ctx context.Context, id string) error

	// Tax exemptions
	CreateTaxExemption(ctx context.Context, req dto.CreateTaxExemptionRequest) (*dto.TaxExemptionResponse, error)
	GetTaxExemption(ctx context.Context, id string) (*dto.TaxExemptionResponse, error)
	ListTaxExemptions(ctx context.Context, filter *types.TaxExemptionFilter) (*dto.ListTaxExemptionsResponse, error)
	UpdateTaxExemptionStatus(ctx context.Context, id string, req dto.UpdateTaxExemptionStatusRequest) (*dto.TaxExemptionResponse, error)

	// Applied tax
	ListTaxApplied(ctx context.Context, filter *types.TaxAppliedFilter) (*dto.ListTaxAppliedResponse, error)
}

type taxService struct {
	ServiceParams
}

func NewTaxService(params ServiceParams) TaxService {
	return &taxService{
		ServiceParams: params,
	}
}

func (s *taxService) CalculateTax(ctx context.Context, req dto.CalculateTaxRequest) (*dto.TaxCalculationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	taxReq := req.ToTaxRequest(now)
	result, err := s.TaxResolver.CalculateTax(ctx, taxReq)
	if err != nil {
		return nil, err
	}

	record := s.toTaxApplied(ctx, req, taxReq, result)
	if err := s.TaxAppliedRepo.Create(ctx, record); err != nil {
		s.Logger.Errorw("failed to record applied tax",
			"customer_id", lo.FromPtr(req.CustomerID),
			"jurisdiction", taxReq.Jurisdiction.Code(),
			"error", err,
		)
		return nil, err
	}

	s.Logger.Debugw("calculated tax",
		"tax_applied_id", record.ID,
		"method", result.CalculationMethod,
		"jurisdiction", record.JurisdictionCode,
		"tax_amount", result.TaxAmount.String(),
	)

	return &dto.TaxCalculationResponse{
		Result:       result,
		TaxAppliedID: record.ID,
	}, nil
}

func (s *taxService) toTaxApplied(ctx context.Context, req dto.CalculateTaxRequest, taxReq tax.Request, result *tax.Result) *taxapplied.TaxApplied {
	record := taxapplied.New(ctx, taxReq.At)
	record.CustomerID = req.CustomerID
	record.InvoiceID = req.InvoiceID
	record.JurisdictionCode = taxReq.Jurisdiction.Code()
	record.JurisdictionName = taxReq.Jurisdiction.Code()
	record.Country = taxReq.Jurisdiction.Country
	record.State = taxReq.Jurisdiction.State
	if result.Jurisdiction != nil && result.Jurisdiction.Name != "" {
		record.JurisdictionName = result.Jurisdiction.Name
	}
	record.TaxableAmount = result.Amount
	record.TaxAmount = result.TaxAmount
	record.TaxRate = result.TaxRate
	record.Currency = result.Currency
	record.CalculationMethod = result.CalculationMethod
	if result.Exemption != nil {
		record.ExemptionID = lo.ToPtr(result.Exemption.ID)
		record.ExemptionType = lo.ToPtr(result.Exemption.Type)
	}
	return record
}

func (s *taxService) CreateTaxRate(ctx context.Context, req dto.CreateTaxRateRequest) (*dto.TaxRateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rate := req.ToTaxRate(ctx)
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	if err := s.TaxRateRepo.Create(ctx, rate); err != nil {
		s.Logger.Errorw("failed to create tax rate",
			"jurisdiction", rate.JurisdictionCode,
			"error", err,
		)
		return nil, err
	}
	s.invalidateRates(ctx)

	return &dto.TaxRateResponse{TaxRate: rate}, nil
}

func (s *taxService) GetTaxRate(ctx context.Context, id string) (*dto.TaxRateResponse, error) {
	if id == "" {
		return nil, ierr.NewError("tax_rate_id is required").
			WithHint("Tax rate ID is required").
			Mark(ierr.ErrValidation)
	}

	rate, err := s.TaxRateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.TaxRateResponse{TaxRate: rate}, nil
}

func (s *taxService) ListTaxRates(ctx context.Context, filter *types.TaxRateFilter) (*dto.ListTaxRatesResponse, error) {
	if filter == nil {
		filter = &types.TaxRateFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.QueryFilter.Validate(); err != nil {
		return nil, err
	}

	rates, err := s.TaxRateRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.TaxRateRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TaxRateResponse, len(rates))
	for i, r := range rates {
		items[i] = &dto.TaxRateResponse{TaxRate: r}
	}
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *taxService) UpdateTaxRate(ctx context.Context, id string, req dto.UpdateTaxRateRequest) (*dto.TaxRateResponse, error) {
	rate, err := s.TaxRateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(rate)
	rate.Touch(ctx, s.Clock.Now())
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	if err := s.TaxRateRepo.Update(ctx, rate); err != nil {
		s.Logger.Errorw("failed to update tax rate",
			"tax_rate_id", id,
			"error", err,
		)
		return nil, err
	}
	s.invalidateRates(ctx)

	return &dto.TaxRateResponse{TaxRate: rate}, nil
}

func (s *taxService) DeleteTaxRate(ctx context.Context, id string) error {
	if err := s.TaxRateRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateRates(ctx)
	return nil
}

func (s *taxService) invalidateRates(ctx context.Context) {
	if s.RateCache != nil {
		s.RateCache.Invalidate(ctx)
	}
}

func (s *taxService) CreateTaxExemption(ctx context.Context, req dto.CreateTaxExemptionRequest) (*dto.TaxExemptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exemption := req.ToTaxExemption(ctx, s.Clock.Now())
	if err := exemption.Validate(); err != nil {
		return nil, err
	}

	if err := s.TaxExemptionRepo.Create(ctx, exemption); err != nil {
		s.Logger.Errorw("failed to create tax exemption",
			"certificate_number", exemption.CertificateNumber,
			"error", err,
		)
		return nil, err
	}
	return &dto.TaxExemptionResponse{TaxExemption: exemption}, nil
}

func (s *taxService) GetTaxExemption(ctx context.Context, id string) (*dto.TaxExemptionResponse, error) {
	exemption, err := s.TaxExemptionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.TaxExemptionResponse{TaxExemption: exemption}, nil
}

func (s *taxService) ListTaxExemptions(ctx context.Context, filter *types.TaxExemptionFilter) (*dto.ListTaxExemptionsResponse, error) {
	if filter == nil {
		filter = &types.TaxExemptionFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.QueryFilter.Validate(); err != nil {
		return nil, err
	}

	exemptions, err := s.TaxExemptionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TaxExemptionResponse, len(exemptions))
	for i, e := range exemptions {
		items[i] = &dto.TaxExemptionResponse{TaxExemption: e}
	}
	resp := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

// UpdateTaxExemptionStatus moves a certificate through review. Expired is
// terminal; everything else may be re-reviewed.
func (s *taxService) UpdateTaxExemptionStatus(ctx context.Context, id string, req dto.UpdateTaxExemptionStatusRequest) (*dto.TaxExemptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exemption, err := s.TaxExemptionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if exemption.Status == types.ExemptionStatusExpired && req.Status != types.ExemptionStatusExpired {
		return nil, ierr.NewError("expired exemptions cannot change status").
			WithHint("Register a new exemption certificate instead").
			WithReportableDetails(map[string]any{
				"exemption_id": id,
				"status":       req.Status,
			}).
			Mark(ierr.ErrConflict)
	}

	exemption.Status = req.Status
	exemption.Touch(ctx, s.Clock.Now())
	if err := s.TaxExemptionRepo.Update(ctx, exemption); err != nil {
		s.Logger.Errorw("failed to update tax exemption status",
			"exemption_id", id,
			"status", req.Status,
			"error", err,
		)
		return nil, err
	}
	return &dto.TaxExemptionResponse{TaxExemption: exemption}, nil
}

func (s *taxService) ListTaxApplied(ctx context.Context, filter *types.TaxAppliedFilter) (*dto.ListTaxAppliedResponse, error) {
	if filter == nil {
		filter = &types.TaxAppliedFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.QueryFilter.Validate(); err != nil {
		return nil, err
	}

	records, err := s.TaxAppliedRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TaxAppliedResponse, len(records))
	for i, r := range records {
		items[i] = &dto.TaxAppliedResponse{TaxApplied: r}
	}
	resp := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
