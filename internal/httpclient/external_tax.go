package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/idempotency"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/tax"
)

const externalTaxPath = "/v1/tax/calculate"

var _ tax.ExternalClient = (*ExternalTaxClient)(nil)

// ExternalTaxClient posts tax calculations to a generic JSON tax provider.
type ExternalTaxClient struct {
	client  Client
	baseURL string
	apiKey  string
	logger  *logger.Logger
}

// NewExternalTaxClient returns nil when no provider URL is configured.
func NewExternalTaxClient(cfg *config.Configuration, log *logger.Logger) *ExternalTaxClient {
	ext := cfg.Tax.External
	if ext.APIURL == "" {
		return nil
	}
	return &ExternalTaxClient{
		client: NewDefaultClient(ClientConfig{
			Timeout:      ext.Timeout,
			RetryMax:     ext.RetryMax,
			RetryWaitMin: ext.RetryWaitMin,
			RetryWaitMax: ext.RetryWaitMax,
			RateLimit:    ext.RateLimit,
		}, log),
		baseURL: strings.TrimRight(ext.APIURL, "/"),
		apiKey:  ext.APIKey,
		logger:  log,
	}
}

func (c *ExternalTaxClient) CalculateTax(ctx context.Context, req tax.ExternalTaxRequest) (*tax.ExternalTaxResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode tax request").
			Mark(ierr.ErrSystem)
	}

	headers := map[string]string{
		"Accept":               "application/json",
		idempotency.HeaderName: externalTaxKey(req),
	}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	resp, err := c.client.Send(ctx, &Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + externalTaxPath,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		if httpErr, ok := IsHTTPError(err); ok {
			c.logger.Errorw("external tax provider rejected request",
				"status_code", httpErr.StatusCode,
				"response", string(httpErr.Response),
			)
		}
		return nil, err
	}

	var out tax.ExternalTaxResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, ierr.WithError(err).
			WithHint("External tax provider returned an invalid response").
			Mark(ierr.ErrHTTPClient)
	}
	return &out, nil
}

// externalTaxKey is stable across retries of the same calculation.
func externalTaxKey(req tax.ExternalTaxRequest) string {
	params := map[string]interface{}{
		"tenant_id":     req.TenantID,
		"amount":        req.Amount.String(),
		"currency":      req.Currency,
		"country":       req.Country,
		"calculated_at": req.CalculatedAt.UTC().Format(time.RFC3339Nano),
	}
	if req.CustomerID != nil {
		params["customer_id"] = *req.CustomerID
	}
	if req.State != nil {
		params["state"] = *req.State
	}
	return idempotency.NewGenerator().GenerateKey(idempotency.ScopeExternalTax, params)
}
