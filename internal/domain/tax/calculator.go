package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DocumentType is the document type on the remote tax service wire.
// Quote calls always use the sales-order type so they are never persisted
// remotely; commit calls use the invoice types. Purchase-prefixed variants
// carry expensed ("use") tax documents.
type DocumentType string

const (
	DocTypeSalesOrder            DocumentType = "SalesOrder"
	DocTypeSalesInvoice          DocumentType = "SalesInvoice"
	DocTypeReturnInvoice         DocumentType = "ReturnInvoice"
	DocTypePurchaseOrder         DocumentType = "PurchaseOrder"
	DocTypePurchaseInvoice       DocumentType = "PurchaseInvoice"
	DocTypePurchaseReturnInvoice DocumentType = "PurchaseReturnInvoice"
)

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// IsPurchase returns true for purchase-prefixed (expensed tax) types
func (t DocumentType) IsPurchase() bool {
	return strings.HasPrefix(string(t), "Purchase")
}

// PurchaseVariant returns the purchase-prefixed equivalent of the type,
// used when the document carries expensed taxes.
func (t DocumentType) PurchaseVariant() DocumentType {
	switch t {
	case DocTypeSalesOrder:
		return DocTypePurchaseOrder
	case DocTypeSalesInvoice:
		return DocTypePurchaseInvoice
	case DocTypeReturnInvoice:
		return DocTypePurchaseReturnInvoice
	}
	return t
}

// VoidReason is the reason code sent with a void request
type VoidReason string

const (
	VoidReasonDocDeleted VoidReason = "DocDeleted"
	VoidReasonDocVoided  VoidReason = "DocVoided"
	VoidReasonAdjustment VoidReason = "AdjustmentCancelled"
)

// RequestLine is one line of a calculation request
type RequestLine struct {
	LineNumber  int
	ItemCode    string
	TaxCode     string
	Description string
	Quantity    decimal.Decimal
	// Amount is the signed, discounted line amount (or the signed cost
	// basis for purchase-type documents).
	Amount         decimal.Decimal
	Discounted     bool
	DiscountAmount decimal.Decimal
}

// CalculationRequest is the full payload for a remote tax calculation
type CalculationRequest struct {
	CompanyCode  string
	DocCode      string
	DocType      DocumentType
	DocDate      time.Time
	CustomerCode string
	VATID        string
	// UserName names the user who owns the document; the remote service
	// records it as the transaction's salesperson code.
	UserName string

	ShipFrom valueobject.Address
	ShipTo   valueobject.Address

	Lines []RequestLine

	ExemptionNumber string
	ExemptionCode   string

	CurrencyCode  string
	LocationCode  string
	ReferenceCode string

	// TaxDate is the origin document date for refunds; the remote service
	// taxes the transaction as of this date. Zero means the DocDate applies.
	TaxDate time.Time
	// Commit finalizes the transaction remotely; a non-commit call is an
	// estimate that leaves no remote record.
	Commit bool
}

// TaxDateOverridden returns true when a distinct tax date applies
func (r *CalculationRequest) TaxDateOverridden() bool {
	return !r.TaxDate.IsZero() && !r.TaxDate.Equal(r.DocDate)
}

// ResultLine is the remote tax computed for one request line
type ResultLine struct {
	LineNumber int
	Rate       decimal.Decimal
	Tax        decimal.Decimal
}

// CalculationResult is the normalized outcome of a remote tax calculation
type CalculationResult struct {
	TotalTax decimal.Decimal
	Lines    []ResultLine
}

// LineByNumber returns the result line matching the given line number
func (r *CalculationResult) LineByNumber(n int) *ResultLine {
	for idx := range r.Lines {
		if r.Lines[idx].LineNumber == n {
			return &r.Lines[idx]
		}
	}
	return nil
}

// PingResult reports the outcome of a connectivity/credentials check
type PingResult struct {
	Authenticated        bool
	ServiceVersion       string
	CredentialExpiration *time.Time
}

// Sentinel errors returned by calculator implementations
var (
	// ErrUnauthorized indicates the account number or license key was rejected
	ErrUnauthorized = errors.New("tax: service rejected credentials")
	// ErrServiceUnavailable indicates the remote service could not be reached
	ErrServiceUnavailable = errors.New("tax: service unavailable")
)

// Remote error codes with dedicated handling
const (
	// ErrCodeDocStatus is returned when an operation conflicts with the
	// remote document's status, e.g. committing a document that exists in
	// voided state. Recovered by unvoiding and re-committing.
	ErrCodeDocStatus = 300
)

// RemoteError is a structured error returned by the remote tax service
type RemoteError struct {
	Code    int
	Summary string
	Details string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("tax: remote error %d: %s (%s)", e.Code, e.Summary, e.Details)
	}
	return fmt.Sprintf("tax: remote error %d: %s", e.Code, e.Summary)
}

// IsDocStatusError returns true if err is a remote document-status conflict
// (error code 300), recoverable by unvoiding the remote transaction.
func IsDocStatusError(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Code == ErrCodeDocStatus
}

// Calculator is the port to the remote tax service. Implementations exist
// per wire protocol; all of them normalize results and errors to the types
// above so callers never see protocol details.
type Calculator interface {
	// CalculateTax computes (and, when req.Commit is set, finalizes) the
	// taxes for a document.
	CalculateTax(ctx context.Context, req *CalculationRequest) (*CalculationResult, error)
	// CommitTax finalizes an already-created remote transaction.
	CommitTax(ctx context.Context, companyCode, docCode string, docType DocumentType) error
	// VoidTax cancels a committed remote transaction.
	VoidTax(ctx context.Context, companyCode, docCode string, docType DocumentType, reason VoidReason) error
	// UnvoidTax restores a voided remote transaction.
	UnvoidTax(ctx context.Context, companyCode, docCode string, docType DocumentType) error
	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) (*PingResult, error)
}
