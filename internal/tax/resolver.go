package tax

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// Resolver calculates tax for a charge. Exemptions are checked first; the
// configured provider is used otherwise.
type Resolver struct {
	cfg        config.TaxConfig
	rates      RateSource
	exemptions taxexemption.Repository
	platform   PlatformClient
	external   ExternalClient
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// ResolverParams collects the resolver's collaborators. Platform and External
// may be nil when the corresponding provider is not configured.
type ResolverParams struct {
	Config     config.TaxConfig
	Rates      RateSource
	Exemptions taxexemption.Repository
	Platform   PlatformClient
	External   ExternalClient
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		cfg:        p.Config,
		rates:      p.Rates,
		exemptions: p.Exemptions,
		platform:   p.Platform,
		external:   p.External,
		logger:     lo.Ternary(p.Logger == nil, logger.NewNopLogger(), p.Logger),
		metrics:    p.Metrics,
	}
}

// Provider is the configured provider, manual when unset.
func (r *Resolver) Provider() types.TaxProvider {
	if r.cfg.Provider == "" {
		return types.TaxProviderManual
	}
	return r.cfg.Provider
}

func (r *Resolver) CalculateTax(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}
	req.Jurisdiction = req.Jurisdiction.Normalize()

	exemption, err := r.findExemption(ctx, req)
	if err != nil {
		return nil, err
	}
	if exemption != nil {
		r.logger.Debugw("tax exemption applied",
			"exemption_id", exemption.ID,
			"jurisdiction", req.Jurisdiction.Code(),
		)
		r.metrics.IncTaxCalculation("exempt")
		return ExemptResult(req, exemption), nil
	}

	var result *Result
	switch r.Provider() {
	case types.TaxProviderManual:
		result, err = r.calculateManual(ctx, req)
	case types.TaxProviderIntegratedPlatform:
		result, err = r.calculateWithFallback(ctx, req)
	case types.TaxProviderExternal:
		result, err = r.calculateExternal(ctx, req)
	default:
		err = r.cfg.Provider.Validate()
	}
	if err != nil {
		return nil, err
	}

	r.metrics.IncTaxCalculation(string(result.CalculationMethod))
	return result, nil
}

func (r *Resolver) findExemption(ctx context.Context, req Request) (*taxexemption.TaxExemption, error) {
	if r.exemptions == nil {
		return nil, nil
	}

	var explicit *taxexemption.TaxExemption
	if req.ExemptionID != nil && *req.ExemptionID != "" {
		e, err := r.exemptions.Get(ctx, *req.ExemptionID)
		if err != nil {
			return nil, err
		}
		explicit = e
	}

	approved := lo.ToPtr(types.ExemptionStatusApproved)
	candidates, err := r.exemptions.List(ctx, &types.TaxExemptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		TenantLevel: true,
		Status:      approved,
	})
	if err != nil {
		return nil, err
	}
	if req.CustomerID != nil && *req.CustomerID != "" {
		customerExemptions, err := r.exemptions.List(ctx, &types.TaxExemptionFilter{
			QueryFilter: types.NewNoLimitQueryFilter(),
			CustomerID:  req.CustomerID,
			Status:      approved,
		})
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, customerExemptions...)
	}

	return SelectExemption(explicit, candidates, req.CustomerID, req.Jurisdiction, req.At), nil
}

func (r *Resolver) calculateManual(ctx context.Context, req Request) (*Result, error) {
	rates, err := r.rates.RatesForCountry(ctx, req.Jurisdiction.Country)
	if err != nil {
		return nil, err
	}
	return CalculateManual(req, SelectRate(rates, req.Jurisdiction, req.At)), nil
}

// calculateWithFallback tries the tax platform and, only on a provider
// failure, retries with manual rates. The provider error is logged and kept
// on the result; it is never returned. A cancelled caller is not a provider
// failure and is surfaced.
func (r *Resolver) calculateWithFallback(ctx context.Context, req Request) (*Result, error) {
	result, providerErr := r.calculatePlatform(ctx, req)
	if providerErr == nil {
		return result, nil
	}
	if !ierr.IsProvider(providerErr) {
		return nil, providerErr
	}
	if ctx.Err() != nil {
		return nil, ierr.WithError(ctx.Err()).
			WithHint("Tax calculation was cancelled").
			Mark(ierr.ErrSystem)
	}

	r.logger.Warnw("tax platform failed, falling back to manual rates",
		"error", providerErr,
		"jurisdiction", req.Jurisdiction.Code(),
		"amount", req.Amount.String(),
	)
	r.metrics.IncTaxFallback(string(types.TaxProviderIntegratedPlatform), providerErr)

	result, err := r.calculateManual(ctx, req)
	if err != nil {
		return nil, err
	}
	result.FallbackReason = providerErr.Error()
	return result, nil
}

func (r *Resolver) calculatePlatform(ctx context.Context, req Request) (*Result, error) {
	if !r.cfg.IntegratedPlatform.Enabled || r.platform == nil {
		return nil, ierr.NewError("integrated tax platform is not enabled").
			WithHint("Enable tax.integrated_platform or select another tax provider").
			Mark(ierr.ErrConfiguration)
	}

	callCtx, cancel := r.providerContext(ctx)
	defer cancel()

	resp, err := r.platform.CalculateTax(callCtx, toPlatformRequest(req, r.cfg.IntegratedPlatform.TaxCode))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Tax platform calculation failed").
			WithReportableDetails(map[string]any{
				"provider": types.TaxProviderIntegratedPlatform,
			}).
			Mark(ierr.ErrProvider)
	}
	if resp == nil {
		return nil, ierr.NewError("tax platform returned an empty response").
			Mark(ierr.ErrProvider)
	}
	return fromPlatformResponse(req, resp), nil
}

func (r *Resolver) calculateExternal(ctx context.Context, req Request) (*Result, error) {
	if r.cfg.External.APIURL == "" || r.external == nil {
		return nil, ierr.NewError("external tax provider is not configured").
			WithHint("Set tax.external.api_url to use the external tax provider").
			Mark(ierr.ErrConfiguration)
	}

	callCtx, cancel := r.providerContext(ctx)
	defer cancel()

	resp, err := r.external.CalculateTax(callCtx, ExternalTaxRequest{
		TenantID:     types.GetTenantID(ctx),
		CustomerID:   req.CustomerID,
		Amount:       req.Amount,
		Currency:     types.NormalizeCurrency(req.Currency),
		Country:      req.Jurisdiction.Country,
		State:        req.Jurisdiction.State,
		LineItems:    req.LineItems,
		CalculatedAt: req.At,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("External tax provider calculation failed").
			Mark(ierr.ErrProvider)
	}
	if resp == nil {
		return nil, ierr.NewError("external tax provider returned an empty response").
			Mark(ierr.ErrProvider)
	}
	return fromExternalResponse(req, resp), nil
}

func (r *Resolver) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.ProviderTimeout)
}
