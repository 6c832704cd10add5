package tax

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentService drives the taxable document lifecycle and hooks the
// remote tax calculation into its transitions: an estimate on confirmation,
// a final computation around posting, and a remote void on cancellation.
type DocumentService struct {
	documents  tax.DocumentRepository
	customers  tax.CustomerRepository
	compute    *ComputeService
	calculator tax.Calculator
	status     tax.CredentialStatusStore
	settings   tax.Settings
	logger     *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documents tax.DocumentRepository,
	customers tax.CustomerRepository,
	compute *ComputeService,
	calculator tax.Calculator,
	status tax.CredentialStatusStore,
	settings tax.Settings,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		documents:  documents,
		customers:  customers,
		compute:    compute,
		calculator: calculator,
		status:     status,
		settings:   settings,
		logger:     logger,
	}
}

// CreateDocument creates a new draft document for a customer
func (s *DocumentService) CreateDocument(ctx context.Context, companyID uuid.UUID, req *CreateDocumentRequest) (*DocumentResponse, error) {
	customer, err := s.customers.FindByID(ctx, companyID, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	kind := tax.DocumentKind(req.Kind)
	number, err := s.documents.NextNumber(ctx, companyID, kind)
	if err != nil {
		return nil, fmt.Errorf("allocate document number: %w", err)
	}

	doc, err := tax.NewDocument(companyID, number, kind, customer.ID, customer.Name, valueobject.Currency(req.Currency))
	if err != nil {
		return nil, err
	}
	doc.CustomerCode = customer.Code
	doc.VATID = customer.VATID
	doc.UserName = req.UserName
	doc.WarehouseCode = req.WarehouseCode
	doc.LocationCode = req.LocationCode
	if req.TaxOnShippingAddress != nil {
		doc.TaxOnShippingAddress = *req.TaxOnShippingAddress
	}

	if req.ShipFrom != nil {
		addr, err := req.ShipFrom.toAddress()
		if err != nil {
			return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
		}
		doc.SetShipFrom(addr)
	}
	if req.ShipTo != nil {
		addr, err := req.ShipTo.toAddress()
		if err != nil {
			return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
		}
		if err := doc.SetShipTo(addr); err != nil {
			return nil, err
		}
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	return toDocumentResponse(doc), nil
}

// GetDocument loads one document
func (s *DocumentService) GetDocument(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

// ListDocuments returns a page of documents
func (s *DocumentService) ListDocuments(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]*DocumentResponse, int64, error) {
	docs, total, err := s.documents.FindAll(ctx, companyID, filter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]*DocumentResponse, len(docs))
	for i, doc := range docs {
		responses[i] = toDocumentResponse(doc)
	}
	return responses, total, nil
}

// AddLine appends a line to a draft or confirmed document
func (s *DocumentService) AddLine(ctx context.Context, companyID, id uuid.UUID, req *AddLineRequest) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	taxes := make([]tax.AppliedTax, 0, len(req.Taxes))
	for _, t := range req.Taxes {
		taxes = append(taxes, tax.AppliedTax{
			TaxRateID:  t.TaxRateID,
			Name:       t.Name,
			Percent:    t.Percent,
			IsRemote:   t.IsRemote,
			IsExpensed: t.IsExpensed,
		})
	}

	if _, err := doc.AddLine(req.ProductID, req.ProductCode, req.Barcode, req.TaxCode, req.Description,
		req.Quantity, req.UnitPrice, req.UnitCost, req.DiscountPercent, taxes); err != nil {
		return nil, err
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return toDocumentResponse(doc), nil
}

// UpdateLine modifies a line's quantity, price, or discount. Any change
// invalidates previously computed remote amounts.
func (s *DocumentService) UpdateLine(ctx context.Context, companyID, id uuid.UUID, lineNumber int, req *UpdateLineRequest) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if req.Quantity != nil {
		if err := doc.UpdateLineQuantity(lineNumber, *req.Quantity); err != nil {
			return nil, err
		}
	}
	if req.UnitPrice != nil {
		if err := doc.UpdateLinePrice(lineNumber, *req.UnitPrice); err != nil {
			return nil, err
		}
	}
	if req.DiscountPercent != nil {
		if err := doc.UpdateLineDiscount(lineNumber, *req.DiscountPercent); err != nil {
			return nil, err
		}
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return toDocumentResponse(doc), nil
}

// ValidateShipTo marks the destination address as validated. Stands in for
// the address-validation workflow, which confirms the address against the
// remote service's carrier database.
func (s *DocumentService) ValidateShipTo(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if doc.ShipTo.IsZero() {
		return nil, shared.NewDomainError("MISSING_ADDRESS", fmt.Sprintf("Document %s has no destination address", doc.Number))
	}
	doc.ShipTo = doc.ShipTo.MarkValidated(time.Now())
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return toDocumentResponse(doc), nil
}

// Confirm confirms a draft document and computes a tax estimate. Strict
// configurations refuse confirmation while the destination address is
// unvalidated, so bad addresses are caught before any commitment is made.
func (s *DocumentService) Confirm(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkConfirmGate(doc); err != nil {
		return nil, err
	}

	if err := doc.Confirm(); err != nil {
		return nil, err
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := s.compute.ComputeAndApply(ctx, doc, false); err != nil {
		return nil, err
	}

	return toDocumentResponse(doc), nil
}

// checkConfirmGate enforces strict address validation on both parties at
// confirmation time
func (s *DocumentService) checkConfirmGate(doc *tax.Document) error {
	if s.settings.AddressValidationDelegated || !s.settings.ForceAddressValidation || !doc.HasRemoteTax() {
		return nil
	}
	if !doc.ShipTo.IsZero() && s.settings.CountryCovered(doc.ShipTo.CountryCode()) && !doc.ShipTo.IsValidated() {
		return shared.NewDomainError(
			"ADDRESS_NOT_VALIDATED",
			fmt.Sprintf("Destination address of document %s must be validated before confirmation", doc.Number),
		)
	}
	if !doc.ShipFrom.IsZero() && s.settings.CountryCovered(doc.ShipFrom.CountryCode()) && !doc.ShipFrom.IsValidated() {
		return shared.NewDomainError(
			"ADDRESS_NOT_VALIDATED",
			fmt.Sprintf("Origin address of document %s must be validated before confirmation", doc.Number),
		)
	}
	return nil
}

// Post finalizes a document. Taxes are computed without committing first,
// so the accounting entries carry the authoritative amounts; the remote
// commit then happens under the permanent document number.
func (s *DocumentService) Post(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if err := s.compute.ComputeAndApply(ctx, doc, false); err != nil {
		return nil, err
	}

	// Invoices and refunds are numbered in a separate legal sequence at
	// posting time; orders keep their number.
	finalNumber := doc.Number
	if doc.Kind != tax.KindOrder {
		finalNumber, err = s.documents.NextNumber(ctx, companyID, doc.Kind)
		if err != nil {
			return nil, fmt.Errorf("allocate final number: %w", err)
		}
	}

	if err := doc.Post(finalNumber); err != nil {
		return nil, err
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := s.compute.ComputeAndApply(ctx, doc, true); err != nil {
		return nil, err
	}

	return toDocumentResponse(doc), nil
}

// Cancel cancels a document. When the document carried remote tax and was
// committed remotely, the remote transaction is voided first; a failed void
// blocks the cancellation so host and remote never diverge silently.
func (s *DocumentService) Cancel(ctx context.Context, companyID, id uuid.UUID, reason string) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if s.shouldVoidRemote(doc) {
		docType, derr := doc.WireDocType(true)
		if derr != nil {
			return nil, derr
		}
		if verr := s.calculator.VoidTax(ctx, s.settings.CompanyCode, doc.Number, docType, tax.VoidReasonDocVoided); verr != nil {
			return nil, fmt.Errorf("void remote transaction %s: %w", doc.Number, verr)
		}
		s.logger.Info("voided remote transaction",
			zap.String("document", doc.Number),
			zap.String("doc_type", docType.String()),
		)
	}

	if err := doc.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return toDocumentResponse(doc), nil
}

// shouldVoidRemote reports whether cancelling the document requires a
// remote void: only posted documents with remote tax in a covered country
// ever reached the remote ledger.
func (s *DocumentService) shouldVoidRemote(doc *tax.Document) bool {
	if s.settings.Disabled || s.settings.DisableDocumentRecording {
		return false
	}
	if doc.Status != tax.StatusPosted || !doc.HasRemoteTax() {
		return false
	}
	if doc.ShipTo.IsZero() {
		return true
	}
	return s.settings.CountryCovered(doc.ShipTo.CountryCode())
}

// CreateRefund creates a credit note from a posted document. The refund
// carries the origin's exemption treatment, locked against re-derivation,
// and references the origin number so the origin date is used as tax date.
func (s *DocumentService) CreateRefund(ctx context.Context, companyID, originID uuid.UUID) (*DocumentResponse, error) {
	origin, err := s.documents.FindByID(ctx, companyID, originID)
	if err != nil {
		return nil, err
	}

	number, err := s.documents.NextNumber(ctx, companyID, tax.KindRefund)
	if err != nil {
		return nil, fmt.Errorf("allocate refund number: %w", err)
	}

	refund, err := tax.NewRefundFrom(origin, number)
	if err != nil {
		return nil, err
	}

	if err := s.documents.Save(ctx, refund); err != nil {
		return nil, fmt.Errorf("save refund: %w", err)
	}
	return toDocumentResponse(refund), nil
}

// ComputeTax runs an on-demand tax estimate for a document
func (s *DocumentService) ComputeTax(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.compute.ComputeAndApply(ctx, doc, false); err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

// Ping checks connectivity and credentials against the remote service and
// records the reported credential expiration.
func (s *DocumentService) Ping(ctx context.Context, companyID uuid.UUID) (*PingResponse, error) {
	if s.settings.Disabled || s.calculator == nil {
		return nil, shared.NewDomainError("TAX_SERVICE_DISABLED", "The tax service integration is disabled")
	}
	result, err := s.calculator.Ping(ctx)
	if err != nil {
		return nil, err
	}
	if result.CredentialExpiration != nil && s.status != nil {
		if serr := s.status.RecordCredentialExpiration(ctx, companyID, *result.CredentialExpiration); serr != nil {
			s.logger.Warn("failed to record credential expiration", zap.Error(serr))
		}
	}
	return &PingResponse{
		Authenticated:        result.Authenticated,
		ServiceVersion:       result.ServiceVersion,
		CredentialExpiration: result.CredentialExpiration,
	}, nil
}
