package avatax

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapServiceNS  = "http://avatax.avalara.com/services"
	soapSecurityNS = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"

	soapDateLayout = "2006-01-02"
)

// SOAPAdapter talks to the legacy SOAP endpoint of the remote tax service.
// Requests are built and parsed with etree; the endpoint predates the REST
// API and does not expose an unvoid operation.
type SOAPAdapter struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

var _ tax.Calculator = (*SOAPAdapter)(nil)

// NewSOAPAdapter creates a new SOAP protocol adapter
func NewSOAPAdapter(config Config, logger *zap.Logger) *SOAPAdapter {
	return &SOAPAdapter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// CalculateTax issues a GetTax call and normalizes the response
func (a *SOAPAdapter) CalculateTax(ctx context.Context, req *tax.CalculationRequest) (*tax.CalculationResult, error) {
	body := a.newOperation("GetTax")
	request := body.CreateElement("GetTaxRequest")

	addText(request, "CompanyCode", req.CompanyCode)
	addText(request, "DocType", req.DocType.String())
	addText(request, "DocCode", req.DocCode)
	addText(request, "DocDate", req.DocDate.Format(soapDateLayout))
	addText(request, "CustomerCode", req.CustomerCode)
	addText(request, "SalespersonCode", req.UserName)
	addText(request, "BusinessIdentificationNo", req.VATID)
	addText(request, "ExemptionNo", req.ExemptionNumber)
	addText(request, "CustomerUsageType", req.ExemptionCode)
	addText(request, "CurrencyCode", req.CurrencyCode)
	addText(request, "LocationCode", req.LocationCode)
	addText(request, "ReferenceCode", req.ReferenceCode)
	addText(request, "Commit", strconv.FormatBool(req.Commit))
	addText(request, "DetailLevel", "Line")

	if req.TaxDateOverridden() {
		override := request.CreateElement("TaxOverride")
		addText(override, "TaxOverrideType", "TaxDate")
		addText(override, "TaxDate", req.TaxDate.Format(soapDateLayout))
		addText(override, "Reason", "Refund of original transaction")
	}

	addresses := request.CreateElement("Addresses")
	addSoapAddress(addresses, "O", req.ShipFrom)
	addSoapAddress(addresses, "D", req.ShipTo)
	addText(request, "OriginCode", "O")
	addText(request, "DestinationCode", "D")

	lines := request.CreateElement("Lines")
	for _, line := range req.Lines {
		el := lines.CreateElement("Line")
		addText(el, "No", strconv.Itoa(line.LineNumber))
		addText(el, "OriginCode", "O")
		addText(el, "DestinationCode", "D")
		addText(el, "ItemCode", line.ItemCode)
		addText(el, "TaxCode", line.TaxCode)
		addText(el, "Qty", line.Quantity.String())
		addText(el, "Amount", line.Amount.String())
		addText(el, "Discounted", strconv.FormatBool(line.Discounted))
		addText(el, "Description", line.Description)
	}

	result, err := a.call(ctx, "GetTax", body, "GetTaxResult")
	if err != nil {
		return nil, err
	}

	out := &tax.CalculationResult{TotalTax: findDecimal(result, "TotalTax")}
	for _, el := range result.FindElements(".//TaxLine") {
		rate := findDecimal(el, "Rate").Mul(decimal.NewFromInt(100))
		no, _ := strconv.Atoi(findText(el, "No"))
		out.Lines = append(out.Lines, tax.ResultLine{
			LineNumber: no,
			Rate:       rate,
			Tax:        findDecimal(el, "Tax"),
		})
	}
	return out, nil
}

// CommitTax finalizes an existing remote transaction
func (a *SOAPAdapter) CommitTax(ctx context.Context, companyCode, docCode string, docType tax.DocumentType) error {
	body := a.newOperation("CommitTax")
	request := body.CreateElement("CommitTaxRequest")
	addText(request, "CompanyCode", companyCode)
	addText(request, "DocType", docType.String())
	addText(request, "DocCode", docCode)

	_, err := a.call(ctx, "CommitTax", body, "CommitTaxResult")
	return err
}

// VoidTax cancels a committed remote transaction via CancelTax
func (a *SOAPAdapter) VoidTax(ctx context.Context, companyCode, docCode string, docType tax.DocumentType, reason tax.VoidReason) error {
	body := a.newOperation("CancelTax")
	request := body.CreateElement("CancelTaxRequest")
	addText(request, "CompanyCode", companyCode)
	addText(request, "DocType", docType.String())
	addText(request, "DocCode", docCode)
	addText(request, "CancelCode", string(reason))

	_, err := a.call(ctx, "CancelTax", body, "CancelTaxResult")
	return err
}

// UnvoidTax is not available on the legacy SOAP endpoint
func (a *SOAPAdapter) UnvoidTax(ctx context.Context, companyCode, docCode string, docType tax.DocumentType) error {
	return &tax.RemoteError{
		Code:    http.StatusNotImplemented,
		Summary: "the legacy soap endpoint cannot unvoid transactions; switch the account to the rest endpoint",
	}
}

// Ping verifies connectivity and credentials, reporting the license
// expiration when the service includes it.
func (a *SOAPAdapter) Ping(ctx context.Context) (*tax.PingResult, error) {
	body := a.newOperation("Ping")
	addText(body, "Message", "")

	result, err := a.call(ctx, "Ping", body, "PingResult")
	if err != nil {
		return nil, err
	}

	ping := &tax.PingResult{
		Authenticated:  true,
		ServiceVersion: findText(result, "Version"),
	}
	if expires := findText(result, "Expires"); expires != "" {
		if t, perr := time.Parse(soapDateLayout, expires); perr == nil {
			ping.CredentialExpiration = &t
		}
	}
	return ping, nil
}

// newOperation returns the operation element of a fresh request body
func (a *SOAPAdapter) newOperation(name string) *etree.Element {
	return etree.NewElement(name)
}

// buildEnvelope wraps an operation in a SOAP envelope with the
// WS-Security header carrying the account credentials.
func (a *SOAPAdapter) buildEnvelope(operation *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	envelope := doc.CreateElement("soap:Envelope")
	envelope.CreateAttr("xmlns:soap", soapEnvelopeNS)
	envelope.CreateAttr("xmlns", soapServiceNS)

	header := envelope.CreateElement("soap:Header")
	security := header.CreateElement("wsse:Security")
	security.CreateAttr("xmlns:wsse", soapSecurityNS)
	token := security.CreateElement("wsse:UsernameToken")
	addText(token, "wsse:Username", a.config.AccountNumber)
	addText(token, "wsse:Password", a.config.LicenseKey)

	profile := header.CreateElement("Profile")
	addText(profile, "Client", "taxconnector")
	addText(profile, "Adapter", "taxconnector,go")

	soapBody := envelope.CreateElement("soap:Body")
	soapBody.AddChild(operation)

	return doc
}

func (a *SOAPAdapter) call(ctx context.Context, action string, operation *etree.Element, resultTag string) (*etree.Element, error) {
	doc := a.buildEnvelope(operation)
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("avatax: encode soap request: %w", err)
	}
	if a.config.Verbose {
		a.logger.Debug("soap request", zap.String("action", action), zap.ByteString("body", payload))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.ServiceURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("avatax: build soap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", soapServiceNS+"/"+action)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tax.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("avatax: read soap response: %w", err)
	}
	if a.config.Verbose {
		a.logger.Debug("soap response", zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, tax.ErrUnauthorized
	}

	parsed := etree.NewDocument()
	if err := parsed.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("avatax: parse soap response: %w", err)
	}

	if fault := parsed.FindElement("//Fault"); fault != nil {
		return nil, &tax.RemoteError{
			Code:    resp.StatusCode,
			Summary: findText(fault, "faultstring"),
		}
	}

	result := parsed.FindElement("//" + resultTag)
	if result == nil {
		return nil, &tax.RemoteError{
			Code:    resp.StatusCode,
			Summary: fmt.Sprintf("soap response has no %s element", resultTag),
		}
	}

	if code := findText(result, "ResultCode"); code != "" && code != "Success" {
		return nil, a.parseMessages(result)
	}
	return result, nil
}

// parseMessages maps the result's Messages block onto a RemoteError. The
// document-status conflict has no numeric code on this endpoint; it is
// recognized by its summary.
func (a *SOAPAdapter) parseMessages(result *etree.Element) error {
	remote := &tax.RemoteError{Code: 1, Summary: "remote service reported an error"}
	if msg := result.FindElement(".//Message"); msg != nil {
		remote.Summary = findText(msg, "Summary")
		remote.Details = findText(msg, "Details")
	}
	if strings.Contains(remote.Summary, "DocStatus") {
		remote.Code = tax.ErrCodeDocStatus
	}
	return remote
}

func addSoapAddress(parent *etree.Element, code string, addr valueobject.Address) {
	if addr.IsZero() {
		return
	}
	el := parent.CreateElement("BaseAddress")
	addText(el, "AddressCode", code)
	addText(el, "Line1", addr.Street())
	addText(el, "Line2", addr.Street2())
	addText(el, "City", addr.City())
	addText(el, "Region", addr.StateCode())
	addText(el, "PostalCode", addr.Zip())
	addText(el, "Country", addr.CountryCode())
}

func addText(parent *etree.Element, tag, text string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(text)
	return el
}

func findText(parent *etree.Element, tag string) string {
	if el := parent.FindElement(".//" + tag); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func findDecimal(parent *etree.Element, tag string) decimal.Decimal {
	text := findText(parent, tag)
	if text == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}
