package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/idempotency"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.Tax.External.APIURL = url
	cfg.Tax.External.APIKey = "secret"
	cfg.Tax.External.RetryMax = 2
	cfg.Tax.External.RetryWaitMin = time.Millisecond
	cfg.Tax.External.RetryWaitMax = 5 * time.Millisecond
	cfg.Tax.External.RateLimit = 0
	return cfg
}

func TestExternalTaxClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, externalTaxPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get(idempotency.HeaderName), "external_tax-"))

		var req tax.ExternalTaxRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "US", req.Country)
		assert.Equal(t, "100", req.Amount.String())

		_ = json.NewEncoder(w).Encode(tax.ExternalTaxResponse{
			TaxAmount:        decimal.RequireFromString("8.25"),
			TaxRate:          decimal.RequireFromString("0.0825"),
			JurisdictionCode: "US-TX",
			JurisdictionName: "Texas",
		})
	}))
	defer srv.Close()

	client := NewExternalTaxClient(testConfig(srv.URL+"/"), logger.NewNopLogger())
	require.NotNil(t, client)

	resp, err := client.CalculateTax(context.Background(), tax.ExternalTaxRequest{
		Amount:   decimal.NewFromInt(100),
		Currency: "USD",
		Country:  "US",
	})
	require.NoError(t, err)
	assert.Equal(t, "8.25", resp.TaxAmount.String())
	assert.Equal(t, "Texas", resp.JurisdictionName)
}

func TestExternalTaxClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	keys := map[string]struct{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys[r.Header.Get(idempotency.HeaderName)] = struct{}{}
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"tax_amount":"1.5","tax_rate":"0.015"}`))
	}))
	defer srv.Close()

	client := NewExternalTaxClient(testConfig(srv.URL), logger.NewNopLogger())
	resp, err := client.CalculateTax(context.Background(), tax.ExternalTaxRequest{Country: "US", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "1.5", resp.TaxAmount.String())
	assert.Len(t, keys, 1, "retries reuse the idempotency key")
}

func TestExternalTaxClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unknown jurisdiction"}`))
	}))
	defer srv.Close()

	client := NewExternalTaxClient(testConfig(srv.URL), logger.NewNopLogger())
	_, err := client.CalculateTax(context.Background(), tax.ExternalTaxRequest{Country: "ZZ", Currency: "USD"})
	require.Error(t, err)
	assert.True(t, ierr.IsHTTPClient(err))

	httpErr, ok := IsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Contains(t, string(httpErr.Response), "unknown jurisdiction")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewExternalTaxClient_Unconfigured(t *testing.T) {
	assert.Nil(t, NewExternalTaxClient(config.GetDefaultConfig(), logger.NewNopLogger()))
}

func TestDefaultClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewDefaultClient(ClientConfig{RateLimit: 0.001}, logger.NewNopLogger())
	_, err := client.Send(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err, "first request uses the initial burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Send(ctx, &Request{Method: http.MethodGet, URL: srv.URL})
	assert.True(t, ierr.IsHTTPClient(err))
}
