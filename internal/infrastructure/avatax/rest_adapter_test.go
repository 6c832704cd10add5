package avatax

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRESTAdapter(t *testing.T, handler http.HandlerFunc) *RESTAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{
		AccountNumber: "2000000001",
		LicenseKey:    "secret",
		ServiceURL:    server.URL,
		Protocol:      ProtocolREST,
		Timeout:       5 * time.Second,
	}
	return NewRESTAdapter(cfg, zap.NewNop())
}

func calculationRequest(t *testing.T) *tax.CalculationRequest {
	t.Helper()
	shipFrom, err := valueobject.NewAddress("100 Warehouse Rd", "Dallas", "75201", "TX", "US")
	require.NoError(t, err)
	shipTo, err := valueobject.NewAddress("1 Main St", "Austin", "73301", "TX", "US")
	require.NoError(t, err)

	return &tax.CalculationRequest{
		CompanyCode:  "DEFAULT",
		DocCode:      "INV/000001",
		DocType:      tax.DocTypeSalesInvoice,
		DocDate:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CustomerCode: "CUST-9",
		UserName:     "jdoe",
		ShipFrom:     shipFrom,
		ShipTo:       shipTo,
		Lines: []tax.RequestLine{{
			LineNumber: 1,
			ItemCode:   "WIDGET",
			Quantity:   decimal.NewFromInt(2),
			Amount:     decimal.NewFromInt(200),
		}},
		CurrencyCode: "USD",
		Commit:       true,
	}
}

func TestRESTCalculateTax(t *testing.T) {
	var payload restCreateTransaction
	adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/transactions/create", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "2000000001", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 42,
			"code": "INV/000001",
			"status": "Committed",
			"totalTax": 16.5,
			"lines": [
				{"lineNumber": "1", "tax": 16.5, "details": [{"rate": 0.0625, "tax": 12.5}, {"rate": 0.02, "tax": 4.0}]}
			]
		}`))
	})

	result, err := adapter.CalculateTax(context.Background(), calculationRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "INV/000001", payload.Code)
	assert.Equal(t, "SalesInvoice", payload.Type)
	assert.Equal(t, "2026-08-01", payload.Date)
	assert.Equal(t, "jdoe", payload.SalespersonCode)
	assert.True(t, payload.Commit)
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, "1", payload.Lines[0].Number)
	require.NotNil(t, payload.Addresses.ShipTo)
	assert.Equal(t, "Austin", payload.Addresses.ShipTo.City)
	assert.Nil(t, payload.TaxOverride)

	assert.True(t, result.TotalTax.Equal(decimal.NewFromFloat(16.5)))
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 1, result.Lines[0].LineNumber)
	assert.True(t, result.Lines[0].Rate.Equal(decimal.NewFromFloat(8.25)), "detail rates sum to a percentage, got %s", result.Lines[0].Rate)
	assert.True(t, result.Lines[0].Tax.Equal(decimal.NewFromFloat(16.5)))
}

func TestRESTCalculateTaxDateOverride(t *testing.T) {
	var payload restCreateTransaction
	adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"totalTax": 0, "lines": []}`))
	})

	req := calculationRequest(t)
	req.TaxDate = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := adapter.CalculateTax(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, payload.TaxOverride)
	assert.Equal(t, "TaxDate", payload.TaxOverride.Type)
	assert.Equal(t, "2026-03-15", payload.TaxOverride.TaxDate)
}

func TestRESTErrorEnvelope(t *testing.T) {
	adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{
			"error": {
				"code": "DocStatusInvalid",
				"message": "The document status is invalid for this operation.",
				"details": [{"number": 300, "message": "DocStatus is invalid", "description": "Expected Saved|Posted"}]
			}
		}`))
	})

	_, err := adapter.CalculateTax(context.Background(), calculationRequest(t))
	require.Error(t, err)
	assert.True(t, tax.IsDocStatusError(err))

	var remote *tax.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 300, remote.Code)
	assert.Equal(t, "The document status is invalid for this operation.", remote.Summary)
	assert.Equal(t, "Expected Saved|Posted", remote.Details)
}

func TestRESTUnauthorized(t *testing.T) {
	adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.CalculateTax(context.Background(), calculationRequest(t))
	require.ErrorIs(t, err, tax.ErrUnauthorized)
}

func TestRESTTransactionActions(t *testing.T) {
	var gotPath, gotQuery string
	adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	require.NoError(t, adapter.CommitTax(ctx, "DEFAULT", "INV/000001", tax.DocTypeSalesInvoice))
	assert.Equal(t, "/api/v2/companies/DEFAULT/transactions/INV%2F000001/commit", gotPath, "document codes are path-escaped")
	assert.Equal(t, "documentType=SalesInvoice", gotQuery)

	require.NoError(t, adapter.VoidTax(ctx, "DEFAULT", "INV/000001", tax.DocTypeSalesInvoice, tax.VoidReasonDocVoided))
	assert.Equal(t, "/api/v2/companies/DEFAULT/transactions/INV%2F000001/void", gotPath)

	require.NoError(t, adapter.UnvoidTax(ctx, "DEFAULT", "INV/000001", tax.DocTypeSalesInvoice))
	assert.Equal(t, "/api/v2/companies/DEFAULT/transactions/INV%2F000001/unvoid", gotPath)
}

func TestRESTPing(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2/utilities/ping", r.URL.Path)
			w.Write([]byte(`{"authenticated": true, "version": "25.8.0"}`))
		})
		result, err := adapter.Ping(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Authenticated)
		assert.Equal(t, "25.8.0", result.ServiceVersion)
	})

	t.Run("bad credentials", func(t *testing.T) {
		adapter := newRESTAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"authenticated": false}`))
		})
		_, err := adapter.Ping(context.Background())
		require.ErrorIs(t, err, tax.ErrUnauthorized)
	})
}
