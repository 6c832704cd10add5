package tax

import (
	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types for the tax document aggregate
const (
	EventDocumentCreated   = "tax.document.created"
	EventDocumentConfirmed = "tax.document.confirmed"
	EventDocumentPosted    = "tax.document.posted"
	EventDocumentCancelled = "tax.document.cancelled"
	EventRefundCreated     = "tax.document.refund_created"
	EventRemoteTaxApplied  = "tax.document.remote_tax_applied"
)

// DocumentCreatedEvent is raised when a taxable document is created
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	Number       string       `json:"number"`
	Kind         DocumentKind `json:"kind"`
	CustomerName string       `json:"customer_name"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(doc *Document) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDocumentCreated, "TaxDocument", doc.ID, doc.CompanyID),
		Number:          doc.Number,
		Kind:            doc.Kind,
		CustomerName:    doc.CustomerName,
	}
}

// DocumentConfirmedEvent is raised when a document is confirmed
type DocumentConfirmedEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
}

// NewDocumentConfirmedEvent creates a new DocumentConfirmedEvent
func NewDocumentConfirmedEvent(doc *Document) *DocumentConfirmedEvent {
	return &DocumentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDocumentConfirmed, "TaxDocument", doc.ID, doc.CompanyID),
		Number:          doc.Number,
	}
}

// DocumentPostedEvent is raised when a document is posted under its final number
type DocumentPostedEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
}

// NewDocumentPostedEvent creates a new DocumentPostedEvent
func NewDocumentPostedEvent(doc *Document) *DocumentPostedEvent {
	return &DocumentPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDocumentPosted, "TaxDocument", doc.ID, doc.CompanyID),
		Number:          doc.Number,
	}
}

// DocumentCancelledEvent is raised when a document is cancelled
type DocumentCancelledEvent struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// NewDocumentCancelledEvent creates a new DocumentCancelledEvent
func NewDocumentCancelledEvent(doc *Document) *DocumentCancelledEvent {
	return &DocumentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDocumentCancelled, "TaxDocument", doc.ID, doc.CompanyID),
		Number:          doc.Number,
		Reason:          doc.CancelReason,
	}
}

// RefundCreatedEvent is raised when a credit note is created from a posted document
type RefundCreatedEvent struct {
	shared.BaseDomainEvent
	Number       string `json:"number"`
	OriginNumber string `json:"origin_number"`
}

// NewRefundCreatedEvent creates a new RefundCreatedEvent
func NewRefundCreatedEvent(refund, origin *Document) *RefundCreatedEvent {
	return &RefundCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventRefundCreated, "TaxDocument", refund.ID, refund.CompanyID),
		Number:          refund.Number,
		OriginNumber:    origin.Number,
	}
}

// RemoteTaxAppliedEvent is raised when a remote tax result is reconciled
// onto the document
type RemoteTaxAppliedEvent struct {
	shared.BaseDomainEvent
	Number    string          `json:"number"`
	DocType   DocumentType    `json:"doc_type"`
	TotalTax  decimal.Decimal `json:"total_tax"`
	Committed bool            `json:"committed"`
}

// NewRemoteTaxAppliedEvent creates a new RemoteTaxAppliedEvent
func NewRemoteTaxAppliedEvent(doc *Document, docType DocumentType, totalTax decimal.Decimal, committed bool) *RemoteTaxAppliedEvent {
	return &RemoteTaxAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventRemoteTaxApplied, "TaxDocument", doc.ID, doc.CompanyID),
		Number:          doc.Number,
		DocType:         docType,
		TotalTax:        totalTax,
		Committed:       committed,
	}
}
