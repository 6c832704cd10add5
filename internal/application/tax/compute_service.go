package tax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ComputeService builds calculation requests from taxable documents, calls
// the remote service and reconciles results back onto the documents.
type ComputeService struct {
	documents  tax.DocumentRepository
	customers  tax.CustomerRepository
	resolver   *RateResolver
	calculator tax.Calculator
	settings   tax.Settings
	logger     *zap.Logger
}

// NewComputeService creates a new ComputeService
func NewComputeService(
	documents tax.DocumentRepository,
	customers tax.CustomerRepository,
	resolver *RateResolver,
	calculator tax.Calculator,
	settings tax.Settings,
	logger *zap.Logger,
) *ComputeService {
	return &ComputeService{
		documents:  documents,
		customers:  customers,
		resolver:   resolver,
		calculator: calculator,
		settings:   settings,
		logger:     logger,
	}
}

// Compute runs a remote tax calculation for the document. A nil result with
// a nil error means no calculation applies: the integration is disabled or
// the document has no line the remote service should see. In both cases the
// document's local estimates remain authoritative.
//
// When commit is set the transaction is finalized remotely. A remote
// document-status conflict (a previously voided transaction under the same
// code) is recovered by unvoiding and re-committing the existing
// transaction; its amounts were already reconciled by the preceding
// non-commit computation, so no result is returned.
func (s *ComputeService) Compute(ctx context.Context, doc *tax.Document, commit bool) (*tax.CalculationResult, error) {
	if s.settings.Disabled {
		return nil, nil
	}

	commit = commit && !s.settings.DisableDocumentRecording

	docType, err := doc.WireDocType(commit)
	if err != nil {
		return nil, err
	}

	lines := tax.PrepareRequestLines(doc, docType, tax.LineAdapterOptions{UseUPC: s.settings.UseUPC})
	if len(lines) == 0 {
		return nil, nil
	}

	req, err := s.buildRequest(ctx, doc, docType, lines, commit)
	if err != nil {
		return nil, err
	}

	if s.settings.LineLevelGranularity && !commit {
		return s.computePerLine(ctx, req)
	}

	result, err := s.calculator.CalculateTax(ctx, req)
	if err != nil {
		if commit && tax.IsDocStatusError(err) {
			return nil, s.recoverVoided(ctx, req)
		}
		return nil, err
	}
	return result, nil
}

// recoverVoided unvoids a remote transaction that exists in voided state
// under the document code, then commits it again.
func (s *ComputeService) recoverVoided(ctx context.Context, req *tax.CalculationRequest) error {
	s.logger.Warn("remote transaction voided, recovering",
		zap.String("doc_code", req.DocCode),
		zap.String("doc_type", req.DocType.String()),
	)
	if err := s.calculator.UnvoidTax(ctx, req.CompanyCode, req.DocCode, req.DocType); err != nil {
		return fmt.Errorf("unvoid remote transaction %s: %w", req.DocCode, err)
	}
	if err := s.calculator.CommitTax(ctx, req.CompanyCode, req.DocCode, req.DocType); err != nil {
		return fmt.Errorf("commit remote transaction %s: %w", req.DocCode, err)
	}
	return nil
}

// computePerLine issues one remote calculation per request line and merges
// the outcomes. Legacy mode for hosts reconciling at line granularity; only
// valid for non-committing calls.
func (s *ComputeService) computePerLine(ctx context.Context, req *tax.CalculationRequest) (*tax.CalculationResult, error) {
	merged := &tax.CalculationResult{TotalTax: decimal.Zero}
	for _, line := range req.Lines {
		lineReq := *req
		lineReq.Lines = []tax.RequestLine{line}
		lineReq.DocCode = fmt.Sprintf("%s-%d", req.DocCode, line.LineNumber)

		result, err := s.calculator.CalculateTax(ctx, &lineReq)
		if err != nil {
			return nil, err
		}
		merged.TotalTax = merged.TotalTax.Add(result.TotalTax)
		for _, rl := range result.Lines {
			rl.LineNumber = line.LineNumber
			merged.Lines = append(merged.Lines, rl)
		}
	}
	return merged, nil
}

func (s *ComputeService) buildRequest(ctx context.Context, doc *tax.Document, docType tax.DocumentType, lines []tax.RequestLine, commit bool) (*tax.CalculationRequest, error) {
	customer, err := s.customers.FindByID(ctx, doc.CompanyID, doc.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer for document %s: %w", doc.Number, err)
	}

	customerCode := doc.CustomerCode
	if customerCode == "" {
		customerCode = customer.Code
	}
	if customerCode == "" {
		if !s.settings.AutoGenerateCustomerCode {
			return nil, shared.NewDomainError(
				"MISSING_CUSTOMER_CODE",
				fmt.Sprintf("Customer %s has no tax service code; assign one or enable automatic generation", customer.Name),
			)
		}
		customerCode = customer.GenerateCode()
		if err := s.customers.Save(ctx, customer); err != nil {
			return nil, fmt.Errorf("save generated customer code: %w", err)
		}
	}

	shipTo := s.sourcingAddress(doc, customer)
	if shipTo.IsZero() {
		return nil, shared.NewDomainError(
			"MISSING_ADDRESS",
			fmt.Sprintf("Document %s has no destination address for tax sourcing", doc.Number),
		)
	}
	if doc.ShipFrom.IsZero() {
		return nil, shared.NewDomainError(
			"MISSING_ADDRESS",
			fmt.Sprintf("Document %s has no origin address for tax sourcing", doc.Number),
		)
	}

	if err := s.checkAddressValidated(doc.Number, shipTo, doc.ShipFrom); err != nil {
		return nil, err
	}

	exemptionNumber, exemptionCode := s.resolveExemption(doc, customer, shipTo)

	req := &tax.CalculationRequest{
		CompanyCode:     s.settings.CompanyCode,
		DocCode:         doc.Number,
		DocType:         docType,
		DocDate:         doc.Date,
		CustomerCode:    customerCode,
		VATID:           firstNonEmpty(doc.VATID, customer.VATID),
		UserName:        doc.UserName,
		ShipFrom:        doc.ShipFrom,
		ShipTo:          shipTo,
		Lines:           lines,
		ExemptionNumber: exemptionNumber,
		ExemptionCode:   exemptionCode,
		CurrencyCode:    string(doc.Currency),
		LocationCode:    firstNonEmpty(doc.LocationCode, doc.WarehouseCode),
		ReferenceCode:   doc.ReferenceNumber,
		TaxDate:         s.originTaxDate(ctx, doc),
		Commit:          commit,
	}
	return req, nil
}

// sourcingAddress picks the destination the transaction is taxed at
func (s *ComputeService) sourcingAddress(doc *tax.Document, customer *tax.Customer) valueobject.Address {
	if doc.TaxOnShippingAddress && !doc.ShipTo.IsZero() {
		return doc.ShipTo
	}
	return customer.InvoiceAddress
}

// checkAddressValidated enforces strict address validation on both parties
// for covered countries. Outside covered countries the remote service cannot
// validate the address anyway, and when validation is delegated to the
// remote service no local timestamp is required.
func (s *ComputeService) checkAddressValidated(docNumber string, shipTo, shipFrom valueobject.Address) error {
	if s.settings.AddressValidationDelegated || !s.settings.ForceAddressValidation {
		return nil
	}
	if s.settings.CountryCovered(shipTo.CountryCode()) && !shipTo.IsValidated() {
		return shared.NewDomainError(
			"ADDRESS_NOT_VALIDATED",
			fmt.Sprintf("Destination address %q of document %s must pass address validation before taxes can be computed", shipTo.String(), docNumber),
		)
	}
	if s.settings.CountryCovered(shipFrom.CountryCode()) && !shipFrom.IsValidated() {
		return shared.NewDomainError(
			"ADDRESS_NOT_VALIDATED",
			fmt.Sprintf("Origin address %q of document %s must pass address validation before taxes can be computed", shipFrom.String(), docNumber),
		)
	}
	return nil
}

// resolveExemption returns the exemption fields for the request. Locked
// documents (refunds) keep their copied fields untouched; otherwise the
// customer's regional grants are consulted.
func (s *ComputeService) resolveExemption(doc *tax.Document, customer *tax.Customer, shipTo valueobject.Address) (string, string) {
	if doc.ExemptionLocked {
		return doc.ExemptionNumber, doc.ExemptionCode
	}
	if grant := customer.ExemptionFor(shipTo); grant != nil {
		doc.SetExemption(grant.ExemptionNumber, grant.ExemptionCode)
		return grant.ExemptionNumber, grant.ExemptionCode
	}
	return doc.ExemptionNumber, doc.ExemptionCode
}

// originTaxDate returns the origin document date for refunds, so the remote
// service applies the rates in force when the original sale happened.
func (s *ComputeService) originTaxDate(ctx context.Context, doc *tax.Document) time.Time {
	if doc.ReferenceNumber == "" {
		return time.Time{}
	}
	origin, err := s.documents.FindByNumber(ctx, doc.CompanyID, doc.ReferenceNumber)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("origin document lookup failed",
				zap.String("reference", doc.ReferenceNumber),
				zap.Error(err),
			)
		}
		return time.Time{}
	}
	return origin.Date
}

// Apply reconciles a remote calculation result onto the document: per-line
// amounts are stored, remote-sourced line taxes are swapped for the resolved
// host rates, and purchase-type documents get their amounts redirected into
// the expensed-tax fields. Applying the same result twice yields the same
// document state.
func (s *ComputeService) Apply(ctx context.Context, doc *tax.Document, docType tax.DocumentType, result *tax.CalculationResult) error {
	if result == nil {
		return nil
	}

	expensed := docType.IsPurchase()

	for idx := range doc.Lines {
		line := &doc.Lines[idx]
		entry := result.LineByNumber(line.LineNumber)
		if entry == nil {
			continue
		}

		rate, err := s.resolver.Resolve(ctx, doc.CompanyID, entry.Rate, expensed)
		if err != nil {
			return err
		}

		doc.ReconcileLine(line.LineNumber, rate.Applied(), entry.Tax)
	}

	doc.ReconcileTotal(docType, result.TotalTax)

	s.logger.Debug("applied remote tax result",
		zap.String("document", doc.Number),
		zap.String("doc_type", docType.String()),
		zap.String("total_tax", result.TotalTax.String()),
	)

	return nil
}

// ComputeAndApply runs a computation and reconciles the outcome, persisting
// the document. A no-op computation leaves the document untouched.
func (s *ComputeService) ComputeAndApply(ctx context.Context, doc *tax.Document, commit bool) error {
	result, err := s.Compute(ctx, doc, commit)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	docType, err := doc.WireDocType(commit && !s.settings.DisableDocumentRecording)
	if err != nil {
		return err
	}
	if err := s.Apply(ctx, doc, docType, result); err != nil {
		return err
	}
	doc.AddDomainEvent(tax.NewRemoteTaxAppliedEvent(doc, docType, result.TotalTax, commit))

	return s.documents.Save(ctx, doc)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
