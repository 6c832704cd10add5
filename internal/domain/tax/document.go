package tax

import (
	"fmt"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind distinguishes what the taxable document is in the host
// accounting flow. The wire document type sent to the tax service is derived
// from the kind, the commit flag and the tax classes present on the lines.
type DocumentKind string

const (
	KindOrder   DocumentKind = "ORDER"   // quotation / sales order
	KindInvoice DocumentKind = "INVOICE" // customer invoice
	KindRefund  DocumentKind = "REFUND"  // credit note / return invoice
)

// IsValid checks if the kind is a valid DocumentKind
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindOrder, KindInvoice, KindRefund:
		return true
	}
	return false
}

// String returns the string representation of DocumentKind
func (k DocumentKind) String() string {
	return string(k)
}

// DocumentStatus represents the lifecycle status of a taxable document
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusConfirmed DocumentStatus = "CONFIRMED"
	StatusPosted    DocumentStatus = "POSTED"
	StatusCancelled DocumentStatus = "CANCELLED"
)

// IsValid checks if the status is a valid DocumentStatus
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusPosted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s DocumentStatus) CanTransitionTo(target DocumentStatus) bool {
	switch s {
	case StatusDraft:
		return target == StatusConfirmed || target == StatusPosted || target == StatusCancelled
	case StatusConfirmed:
		return target == StatusPosted || target == StatusCancelled
	case StatusPosted, StatusCancelled:
		return false // Terminal states
	}
	return false
}

// AppliedTax is a snapshot of a tax assigned to a document line. Remote-sourced
// assignments are replaced during reconciliation; any other assignment is kept.
type AppliedTax struct {
	TaxRateID  uuid.UUID       `json:"tax_rate_id"`
	Name       string          `json:"name"`
	Percent    decimal.Decimal `json:"percent"`
	IsRemote   bool            `json:"is_remote"`
	IsExpensed bool            `json:"is_expensed"`
}

// DocumentLine represents a sellable/billable line of a taxable document
type DocumentLine struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	// LineNumber is the stable per-document key used to match per-line
	// entries in the remote tax result.
	LineNumber      int
	ProductID       uuid.UUID
	ProductCode     string
	Barcode         string
	TaxCode         string
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	UnitCost        decimal.Decimal // cost basis, used for expensed ("use") tax
	DiscountPercent decimal.Decimal
	Taxes           []AppliedTax `gorm:"serializer:json"`
	// LocalTaxAmount is the host's own estimate; shown until a remote
	// computation succeeds, and again whenever the line is edited.
	LocalTaxAmount decimal.Decimal
	// RemoteTaxAmount is the customer-charged tax computed by the remote
	// service. Zero until a remote call succeeded for the current revision.
	RemoteTaxAmount decimal.Decimal
	// RemoteTaxExpenseAmount is the company-absorbed ("use") tax computed by
	// the remote service. Never part of the customer-facing total.
	RemoteTaxExpenseAmount decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Subtotal returns the untaxed line amount: price * qty * (1 - discount/100)
func (l *DocumentLine) Subtotal() decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	factor := one.Sub(l.DiscountPercent.Div(hundred))
	return l.UnitPrice.Mul(l.Quantity).Mul(factor)
}

// TaxAmount returns the effective customer-charged tax for the line:
// the remote amount when present, the local estimate otherwise.
func (l *DocumentLine) TaxAmount() decimal.Decimal {
	if !l.RemoteTaxAmount.IsZero() {
		return l.RemoteTaxAmount
	}
	return l.LocalTaxAmount
}

// HasRemoteTax returns true if any assigned tax is remote-sourced
func (l *DocumentLine) HasRemoteTax() bool {
	for _, t := range l.Taxes {
		if t.IsRemote {
			return true
		}
	}
	return false
}

// HasExpensedTax returns true if any assigned tax is company-absorbed
func (l *DocumentLine) HasExpensedTax() bool {
	for _, t := range l.Taxes {
		if t.IsExpensed {
			return true
		}
	}
	return false
}

// resetRemoteTax clears remote-sourced amounts, signalling that the line is
// stale and must be recomputed on the next compute call.
func (l *DocumentLine) resetRemoteTax() {
	l.RemoteTaxAmount = decimal.Zero
	l.RemoteTaxExpenseAmount = decimal.Zero
	l.UpdatedAt = time.Now()
}

// Document is the aggregate root for a taxable document: a sales order,
// customer invoice or credit note whose taxes are delegated to the remote
// tax service.
type Document struct {
	shared.CompanyAggregateRoot
	Number string
	Kind   DocumentKind
	Status DocumentStatus

	CustomerID   uuid.UUID
	CustomerName string
	CustomerCode string
	VATID        string
	// UserName names the user (salesperson) owning the document; it is
	// reported to the remote service with every calculation.
	UserName string

	Date     time.Time
	Currency valueobject.Currency

	ShipFrom valueobject.Address `gorm:"type:jsonb"`
	ShipTo   valueobject.Address `gorm:"type:jsonb"`
	// TaxOnShippingAddress selects the ship-to address as the tax sourcing
	// address; when false the customer's invoice address is used instead.
	TaxOnShippingAddress bool

	ExemptionNumber string
	ExemptionCode   string
	// ExemptionLocked prevents exemption fields from being re-derived from
	// partner defaults, so refunds keep the origin document's treatment.
	ExemptionLocked bool

	LocationCode  string
	WarehouseCode string
	// ReferenceNumber links a refund to its origin document number; the
	// origin's date is used as the tax date when present.
	ReferenceNumber string

	Lines []DocumentLine `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`

	// LocalTaxAmount is the host's aggregate tax estimate.
	LocalTaxAmount decimal.Decimal
	// RemoteTaxAmount supersedes LocalTaxAmount when non-zero.
	RemoteTaxAmount decimal.Decimal
	// RemoteTaxExpenseAmount aggregates company-absorbed tax. It reduces
	// margin but never appears in the customer-facing tax total.
	RemoteTaxExpenseAmount decimal.Decimal

	ConfirmedAt  *time.Time
	PostedAt     *time.Time
	CancelledAt  *time.Time
	CancelReason string

	nextLineNumber int `gorm:"-"`
}

// NewDocument creates a new taxable document in draft status
func NewDocument(companyID uuid.UUID, number string, kind DocumentKind, customerID uuid.UUID, customerName string, currency valueobject.Currency) (*Document, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Document number cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", fmt.Sprintf("Invalid document kind %q", kind))
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	doc := &Document{
		CompanyAggregateRoot:   shared.NewCompanyAggregateRoot(companyID),
		Number:                 number,
		Kind:                   kind,
		Status:                 StatusDraft,
		CustomerID:             customerID,
		CustomerName:           customerName,
		Date:                   time.Now(),
		Currency:               currency,
		TaxOnShippingAddress:   true,
		Lines:                  make([]DocumentLine, 0),
		LocalTaxAmount:         decimal.Zero,
		RemoteTaxAmount:        decimal.Zero,
		RemoteTaxExpenseAmount: decimal.Zero,
	}

	doc.AddDomainEvent(NewDocumentCreatedEvent(doc))

	return doc, nil
}

// IsRefund returns true for credit notes / return invoices
func (d *Document) IsRefund() bool {
	return d.Kind == KindRefund
}

// Sign returns the document sign convention: -1 for refunds, +1 otherwise
func (d *Document) Sign() decimal.Decimal {
	if d.IsRefund() {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// CanModify returns true if lines and protected fields can still be edited
func (d *Document) CanModify() bool {
	return d.Status == StatusDraft || d.Status == StatusConfirmed
}

// AddLine adds a new line to the document. Only allowed before posting.
func (d *Document) AddLine(productID uuid.UUID, productCode, barcode, taxCode, description string, quantity, unitPrice, unitCost, discountPercent decimal.Decimal, taxes []AppliedTax) (*DocumentLine, error) {
	if !d.CanModify() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add lines to a finalized document")
	}
	if quantity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_DISCOUNT", "Discount must be between 0 and 100 percent")
	}

	d.nextLineNumber = d.maxLineNumber() + 1
	now := time.Now()
	line := DocumentLine{
		ID:                     uuid.New(),
		DocumentID:             d.ID,
		LineNumber:             d.nextLineNumber,
		ProductID:              productID,
		ProductCode:            productCode,
		Barcode:                barcode,
		TaxCode:                taxCode,
		Description:            description,
		Quantity:               quantity,
		UnitPrice:              unitPrice,
		UnitCost:               unitCost,
		DiscountPercent:        discountPercent,
		Taxes:                  taxes,
		LocalTaxAmount:         decimal.Zero,
		RemoteTaxAmount:        decimal.Zero,
		RemoteTaxExpenseAmount: decimal.Zero,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	d.Lines = append(d.Lines, line)
	d.ResetRemoteTax()

	return &d.Lines[len(d.Lines)-1], nil
}

func (d *Document) maxLineNumber() int {
	max := 0
	for _, l := range d.Lines {
		if l.LineNumber > max {
			max = l.LineNumber
		}
	}
	return max
}

// GetLine returns a line by its line number
func (d *Document) GetLine(lineNumber int) *DocumentLine {
	for idx := range d.Lines {
		if d.Lines[idx].LineNumber == lineNumber {
			return &d.Lines[idx]
		}
	}
	return nil
}

// UpdateLineQuantity updates a line quantity and invalidates remote amounts
func (d *Document) UpdateLineQuantity(lineNumber int, quantity decimal.Decimal) error {
	return d.updateLine(lineNumber, func(l *DocumentLine) error {
		if quantity.IsNegative() {
			return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
		}
		l.Quantity = quantity
		return nil
	})
}

// UpdateLinePrice updates a line unit price and invalidates remote amounts
func (d *Document) UpdateLinePrice(lineNumber int, unitPrice decimal.Decimal) error {
	return d.updateLine(lineNumber, func(l *DocumentLine) error {
		if unitPrice.IsNegative() {
			return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
		}
		l.UnitPrice = unitPrice
		return nil
	})
}

// UpdateLineDiscount updates a line discount and invalidates remote amounts
func (d *Document) UpdateLineDiscount(lineNumber int, discountPercent decimal.Decimal) error {
	return d.updateLine(lineNumber, func(l *DocumentLine) error {
		if discountPercent.IsNegative() || discountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewDomainError("INVALID_DISCOUNT", "Discount must be between 0 and 100 percent")
		}
		l.DiscountPercent = discountPercent
		return nil
	})
}

// UpdateLineTaxes replaces a line's tax assignment and invalidates remote amounts
func (d *Document) UpdateLineTaxes(lineNumber int, taxes []AppliedTax) error {
	return d.updateLine(lineNumber, func(l *DocumentLine) error {
		l.Taxes = taxes
		return nil
	})
}

func (d *Document) updateLine(lineNumber int, apply func(*DocumentLine) error) error {
	if !d.CanModify() {
		return shared.NewDomainError("INVALID_STATE", "Cannot update lines on a finalized document")
	}
	line := d.GetLine(lineNumber)
	if line == nil {
		return shared.NewDomainError("LINE_NOT_FOUND", fmt.Sprintf("Document line %d not found", lineNumber))
	}
	if err := apply(line); err != nil {
		return err
	}
	line.UpdatedAt = time.Now()
	d.ResetRemoteTax()
	return nil
}

// SetShipTo changes the shipping address and invalidates remote amounts
func (d *Document) SetShipTo(addr valueobject.Address) error {
	if !d.CanModify() {
		return shared.NewDomainError("INVALID_STATE", "Cannot change addresses on a finalized document")
	}
	d.ShipTo = addr
	d.ResetRemoteTax()
	return nil
}

// SetShipFrom sets the origin (warehouse or company) address
func (d *Document) SetShipFrom(addr valueobject.Address) {
	d.ShipFrom = addr
	d.UpdatedAt = time.Now()
}

// SetExemption sets the exemption fields, unless they are locked
func (d *Document) SetExemption(number, code string) {
	if d.ExemptionLocked {
		return
	}
	d.ExemptionNumber = number
	d.ExemptionCode = code
	d.UpdatedAt = time.Now()
}

// ResetRemoteTax zeroes all remote-sourced amounts on the document and its
// lines. The local estimates become visible again until the next compute.
func (d *Document) ResetRemoteTax() {
	d.RemoteTaxAmount = decimal.Zero
	d.RemoteTaxExpenseAmount = decimal.Zero
	for idx := range d.Lines {
		d.Lines[idx].resetRemoteTax()
	}
	d.UpdatedAt = time.Now()
}

// HasRemoteTax returns true if any line carries a remote-sourced tax
func (d *Document) HasRemoteTax() bool {
	for idx := range d.Lines {
		if d.Lines[idx].HasRemoteTax() {
			return true
		}
	}
	return false
}

// HasExpensedTax returns true if any line carries a company-absorbed tax
func (d *Document) HasExpensedTax() bool {
	for idx := range d.Lines {
		if d.Lines[idx].HasExpensedTax() {
			return true
		}
	}
	return false
}

// WireDocType derives the document type sent to the remote service.
// Non-committing calls always quote as a sales order. Committing calls use
// the invoice type, or the return type for refunds. When expensed ("use")
// taxes are present the purchase-prefixed variant is substituted. Mixing
// customer-charged and company-absorbed remote taxes on one document has no
// consistent wire representation and is rejected.
func (d *Document) WireDocType(commit bool) (DocumentType, error) {
	remote, expensed := 0, 0
	for idx := range d.Lines {
		for _, t := range d.Lines[idx].Taxes {
			if !t.IsRemote {
				continue
			}
			remote++
			if t.IsExpensed {
				expensed++
			}
		}
	}
	if expensed > 0 && expensed != remote {
		return "", shared.NewDomainError(
			"MIXED_TAX_TYPES",
			fmt.Sprintf("Document %s mixes customer-charged and expensed taxes; split it into separate documents", d.Number),
		)
	}

	docType := DocTypeSalesOrder
	if commit {
		if d.IsRefund() {
			docType = DocTypeReturnInvoice
		} else {
			docType = DocTypeSalesInvoice
		}
	}
	if expensed > 0 {
		docType = docType.PurchaseVariant()
	}
	return docType, nil
}

// AmountUntaxed returns the sum of line subtotals
func (d *Document) AmountUntaxed() decimal.Decimal {
	total := decimal.Zero
	for idx := range d.Lines {
		total = total.Add(d.Lines[idx].Subtotal())
	}
	return total
}

// TaxAmount returns the effective customer-charged tax total: the remote
// amount when present, the local estimate otherwise.
func (d *Document) TaxAmount() decimal.Decimal {
	if !d.RemoteTaxAmount.IsZero() {
		return d.RemoteTaxAmount
	}
	return d.LocalTaxAmount
}

// AmountTotal returns untaxed + customer-charged tax. Expensed tax is a
// company cost and is excluded.
func (d *Document) AmountTotal() decimal.Decimal {
	return d.AmountUntaxed().Add(d.TaxAmount())
}

// SignedTotal applies the document sign convention to the total
func (d *Document) SignedTotal() decimal.Decimal {
	return d.AmountTotal().Mul(d.Sign())
}

// SignedTaxAmount applies the document sign convention to the tax amount
func (d *Document) SignedTaxAmount() decimal.Decimal {
	return d.TaxAmount().Mul(d.Sign())
}

// applyRemoteLine stores a remote per-line amount. Amounts are stored
// positive; sign conventions are applied at the document level.
func (d *Document) applyRemoteLine(lineNumber int, amount decimal.Decimal) bool {
	line := d.GetLine(lineNumber)
	if line == nil {
		return false
	}
	line.RemoteTaxAmount = amount.Abs()
	line.RemoteTaxExpenseAmount = decimal.Zero
	line.UpdatedAt = time.Now()
	return true
}

// applyRemoteTotal stores the aggregate remote amount, stored positive
func (d *Document) applyRemoteTotal(total decimal.Decimal) {
	d.RemoteTaxAmount = total.Abs()
	d.RemoteTaxExpenseAmount = decimal.Zero
	d.UpdatedAt = time.Now()
}

// redirectTaxToExpense moves remote amounts into the expensed-tax fields,
// zeroing the customer-facing ones. Used for purchase-type ("use tax")
// documents where tax is a company cost, not a customer charge.
func (d *Document) redirectTaxToExpense() {
	for idx := range d.Lines {
		line := &d.Lines[idx]
		line.RemoteTaxExpenseAmount = line.RemoteTaxAmount
		line.RemoteTaxAmount = decimal.Zero
	}
	d.RemoteTaxExpenseAmount = d.RemoteTaxAmount
	d.RemoteTaxAmount = decimal.Zero
	d.UpdatedAt = time.Now()
}

// replaceRemoteTaxes swaps the remote-sourced components of a line's tax
// assignment for the resolved rate, preserving non-remote taxes.
func (d *Document) replaceRemoteTaxes(lineNumber int, resolved AppliedTax) {
	line := d.GetLine(lineNumber)
	if line == nil {
		return
	}
	kept := make([]AppliedTax, 0, len(line.Taxes)+1)
	for _, t := range line.Taxes {
		if !t.IsRemote {
			kept = append(kept, t)
		}
	}
	line.Taxes = append(kept, resolved)
	line.UpdatedAt = time.Now()
}

// ReconcileLine stores a remote per-line amount and swaps the line's
// remote-sourced taxes for the resolved host rate. Amounts are stored
// positive; the document sign convention applies at presentation time.
func (d *Document) ReconcileLine(lineNumber int, resolved AppliedTax, amount decimal.Decimal) {
	if !d.applyRemoteLine(lineNumber, amount) {
		return
	}
	d.replaceRemoteTaxes(lineNumber, resolved)
}

// ReconcileTotal stores the aggregate remote amount. For purchase-type
// documents the amounts are redirected into the expensed-tax fields, since
// use tax is a company cost rather than a customer charge.
func (d *Document) ReconcileTotal(docType DocumentType, total decimal.Decimal) {
	d.applyRemoteTotal(total)
	if docType.IsPurchase() {
		d.redirectTaxToExpense()
	}
}

// Confirm confirms the document, transitioning from DRAFT to CONFIRMED
func (d *Document) Confirm() error {
	if !d.Status.CanTransitionTo(StatusConfirmed) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm document in %s status", d.Status))
	}
	if len(d.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Cannot confirm a document without lines")
	}

	now := time.Now()
	d.Status = StatusConfirmed
	d.ConfirmedAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(NewDocumentConfirmedEvent(d))

	return nil
}

// Post finalizes the document under its permanent number. The number is
// assigned here because the remote commit call requires a stable document
// code that only exists after posting.
func (d *Document) Post(finalNumber string) error {
	if !d.Status.CanTransitionTo(StatusPosted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot post document in %s status", d.Status))
	}
	if len(d.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Cannot post a document without lines")
	}
	if finalNumber != "" {
		d.Number = finalNumber
	}

	now := time.Now()
	d.Status = StatusPosted
	d.PostedAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(NewDocumentPostedEvent(d))

	return nil
}

// Cancel cancels the document. Voiding the remote transaction for documents
// that carried remote tax is the application layer's responsibility and must
// happen before this transition.
func (d *Document) Cancel(reason string) error {
	if d.Status == StatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Document is already cancelled")
	}
	if d.Status == StatusPosted && d.Kind == KindOrder {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a completed order")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	d.Status = StatusCancelled
	d.CancelledAt = &now
	d.CancelReason = reason
	d.UpdatedAt = now

	d.AddDomainEvent(NewDocumentCancelledEvent(d))

	return nil
}

// NewRefundFrom creates a credit note for the given origin document. The
// exemption treatment, warehouse, location and shipping address selection
// are propagated and the exemption fields are locked, so the refund matches
// the origin transaction's tax treatment exactly.
func NewRefundFrom(origin *Document, number string) (*Document, error) {
	if origin.Status != StatusPosted {
		return nil, shared.NewDomainError("INVALID_STATE", "Refunds can only be created from posted documents")
	}

	refund, err := NewDocument(origin.CompanyID, number, KindRefund, origin.CustomerID, origin.CustomerName, origin.Currency)
	if err != nil {
		return nil, err
	}

	refund.CustomerCode = origin.CustomerCode
	refund.VATID = origin.VATID
	refund.UserName = origin.UserName
	refund.ShipFrom = origin.ShipFrom
	refund.ShipTo = origin.ShipTo
	refund.TaxOnShippingAddress = origin.TaxOnShippingAddress
	refund.WarehouseCode = origin.WarehouseCode
	refund.LocationCode = origin.LocationCode
	refund.ReferenceNumber = origin.Number
	refund.ExemptionNumber = origin.ExemptionNumber
	refund.ExemptionCode = origin.ExemptionCode
	refund.ExemptionLocked = true

	for idx := range origin.Lines {
		src := &origin.Lines[idx]
		taxes := make([]AppliedTax, len(src.Taxes))
		copy(taxes, src.Taxes)
		if _, err := refund.AddLine(src.ProductID, src.ProductCode, src.Barcode, src.TaxCode, src.Description,
			src.Quantity, src.UnitPrice, src.UnitCost, src.DiscountPercent, taxes); err != nil {
			return nil, err
		}
	}

	refund.AddDomainEvent(NewRefundCreatedEvent(refund, origin))

	return refund, nil
}
