package avatax

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"go.uber.org/zap"
)

// RESTAdapter talks to the remote tax service over its JSON REST v2 API
type RESTAdapter struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

var _ tax.Calculator = (*RESTAdapter)(nil)

// NewRESTAdapter creates a new REST protocol adapter
func NewRESTAdapter(config Config, logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// CalculateTax creates a transaction remotely and normalizes the response
func (a *RESTAdapter) CalculateTax(ctx context.Context, req *tax.CalculationRequest) (*tax.CalculationResult, error) {
	payload := a.buildCreateTransaction(req)

	var txn restTransaction
	if err := a.do(ctx, http.MethodPost, "/api/v2/transactions/create", payload, &txn); err != nil {
		return nil, err
	}

	result := &tax.CalculationResult{
		TotalTax: txn.TotalTax,
		Lines:    make([]tax.ResultLine, 0, len(txn.Lines)),
	}
	for idx := range txn.Lines {
		line := &txn.Lines[idx]
		result.Lines = append(result.Lines, tax.ResultLine{
			LineNumber: line.number(),
			Rate:       line.rate(),
			Tax:        line.Tax,
		})
	}
	return result, nil
}

// CommitTax finalizes an existing remote transaction
func (a *RESTAdapter) CommitTax(ctx context.Context, companyCode, docCode string, docType tax.DocumentType) error {
	path := a.transactionPath(companyCode, docCode, "commit", docType)
	return a.do(ctx, http.MethodPost, path, restCommitRequest{Commit: true}, nil)
}

// VoidTax cancels a committed remote transaction
func (a *RESTAdapter) VoidTax(ctx context.Context, companyCode, docCode string, docType tax.DocumentType, reason tax.VoidReason) error {
	path := a.transactionPath(companyCode, docCode, "void", docType)
	return a.do(ctx, http.MethodPost, path, restVoidRequest{Code: string(reason)}, nil)
}

// UnvoidTax restores a voided remote transaction
func (a *RESTAdapter) UnvoidTax(ctx context.Context, companyCode, docCode string, docType tax.DocumentType) error {
	path := a.transactionPath(companyCode, docCode, "unvoid", docType)
	return a.do(ctx, http.MethodPost, path, nil, nil)
}

// Ping verifies connectivity and credentials
func (a *RESTAdapter) Ping(ctx context.Context) (*tax.PingResult, error) {
	var resp restPingResponse
	if err := a.do(ctx, http.MethodGet, "/api/v2/utilities/ping", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Authenticated {
		return nil, tax.ErrUnauthorized
	}
	return &tax.PingResult{
		Authenticated:  true,
		ServiceVersion: resp.Version,
	}, nil
}

func (a *RESTAdapter) buildCreateTransaction(req *tax.CalculationRequest) *restCreateTransaction {
	const dateLayout = "2006-01-02"

	payload := &restCreateTransaction{
		Code:                     req.DocCode,
		Type:                     req.DocType.String(),
		CompanyCode:              req.CompanyCode,
		Date:                     req.DocDate.Format(dateLayout),
		CustomerCode:             req.CustomerCode,
		SalespersonCode:          req.UserName,
		BusinessIdentificationNo: req.VATID,
		ExemptionNo:              req.ExemptionNumber,
		CustomerUsageType:        req.ExemptionCode,
		CurrencyCode:             req.CurrencyCode,
		ReportingLocationCode:    req.LocationCode,
		ReferenceCode:            req.ReferenceCode,
		Addresses: restAddresses{
			ShipFrom: toRestAddress(req.ShipFrom),
			ShipTo:   toRestAddress(req.ShipTo),
		},
		Lines:  make([]restLine, 0, len(req.Lines)),
		Commit: req.Commit,
	}

	if req.TaxDateOverridden() {
		payload.TaxOverride = &restTaxOverride{
			Type:    "TaxDate",
			TaxDate: req.TaxDate.Format(dateLayout),
			Reason:  "Refund of original transaction",
		}
	}

	for _, line := range req.Lines {
		payload.Lines = append(payload.Lines, restLine{
			Number:      strconv.Itoa(line.LineNumber),
			Quantity:    line.Quantity,
			Amount:      line.Amount,
			ItemCode:    line.ItemCode,
			TaxCode:     line.TaxCode,
			Description: line.Description,
			Discounted:  line.Discounted,
		})
	}

	return payload
}

func toRestAddress(addr valueobject.Address) *restAddress {
	if addr.IsZero() {
		return nil
	}
	return &restAddress{
		Line1:      addr.Street(),
		Line2:      addr.Street2(),
		City:       addr.City(),
		Region:     addr.StateCode(),
		PostalCode: addr.Zip(),
		Country:    addr.CountryCode(),
	}
}

func (a *RESTAdapter) transactionPath(companyCode, docCode, action string, docType tax.DocumentType) string {
	return fmt.Sprintf("/api/v2/companies/%s/transactions/%s/%s?documentType=%s",
		url.PathEscape(companyCode), url.PathEscape(docCode), action, docType)
}

func (a *RESTAdapter) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("avatax: encode request: %w", err)
		}
		if a.config.Verbose {
			a.logger.Debug("request", zap.String("path", path), zap.ByteString("body", buf))
		}
		reader = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.config.ServiceURL+path, reader)
	if err != nil {
		return fmt.Errorf("avatax: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", a.authHeader())

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", tax.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("avatax: read response: %w", err)
	}
	if a.config.Verbose {
		a.logger.Debug("response", zap.Int("status", resp.StatusCode), zap.ByteString("body", payload))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return tax.ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		return a.parseError(resp.StatusCode, payload)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("avatax: decode response: %w", err)
		}
	}
	return nil
}

// parseError maps the service's error envelope to a RemoteError. The
// numeric code lives on the first detail entry; the envelope code is a
// symbolic name.
func (a *RESTAdapter) parseError(status int, payload []byte) error {
	var envelope restErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Error.Message == "" {
		return &tax.RemoteError{
			Code:    status,
			Summary: fmt.Sprintf("unexpected response status %d", status),
			Details: string(payload),
		}
	}

	remote := &tax.RemoteError{
		Code:    status,
		Summary: envelope.Error.Message,
	}
	if len(envelope.Error.Details) > 0 {
		detail := envelope.Error.Details[0]
		if detail.Number != 0 {
			remote.Code = detail.Number
		}
		remote.Details = firstOf(detail.Description, detail.Message)
	}
	return remote
}

func (a *RESTAdapter) authHeader() string {
	creds := a.config.AccountNumber + ":" + a.config.LicenseKey
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
