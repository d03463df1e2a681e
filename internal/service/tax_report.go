package service

import (
	"context"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/report"
	"github.com/flexprice/billingcore/internal/types"
)

// TaxReportService builds tax reports from recorded calculations.
type TaxReportService interface {
	GenerateTaxReport(ctx context.Context, req dto.GenerateTaxReportRequest) (*dto.TaxReportResponse, error)
	// ExportTaxReport generates the report and renders it as CSV.
	ExportTaxReport(ctx context.Context, req dto.GenerateTaxReportRequest) ([]byte, error)
}

type taxReportService struct {
	ServiceParams
}

func NewTaxReportService(params ServiceParams) TaxReportService {
	return &taxReportService{
		ServiceParams: params,
	}
}

func (s *taxReportService) GenerateTaxReport(ctx context.Context, req dto.GenerateTaxReportRequest) (*dto.TaxReportResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	filter := &types.TaxAppliedFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		CreatedAfter:  &req.PeriodStart,
		CreatedBefore: &req.PeriodEnd,
	}
	j := req.Jurisdiction()
	if j != nil {
		filter.Country = j.Country
		filter.State = j.State
	}

	records, err := s.TaxAppliedRepo.List(ctx, filter)
	if err != nil {
		s.Logger.Errorw("failed to load applied tax for report",
			"report_type", req.ReportType,
			"period_start", req.PeriodStart,
			"period_end", req.PeriodEnd,
			"error", err,
		)
		return nil, err
	}

	r := report.Build(report.Params{
		ReportType:   req.ReportType,
		PeriodStart:  req.PeriodStart,
		PeriodEnd:    req.PeriodEnd,
		Jurisdiction: j,
		TenantID:     types.GetTenantID(ctx),
		GeneratedAt:  s.Clock.Now().UTC(),
	}, records)

	s.Logger.Infow("generated tax report",
		"report_id", r.ID,
		"report_type", r.ReportType,
		"transactions", r.Totals.TotalTransactions,
	)
	return &dto.TaxReportResponse{TaxReport: r}, nil
}

func (s *taxReportService) ExportTaxReport(ctx context.Context, req dto.GenerateTaxReportRequest) ([]byte, error) {
	resp, err := s.GenerateTaxReport(ctx, req)
	if err != nil {
		return nil, err
	}
	return report.ExportReportToCSV(resp.TaxReport)
}
