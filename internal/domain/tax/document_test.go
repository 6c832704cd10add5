package tax

import (
	"testing"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(t *testing.T, kind DocumentKind) *Document {
	t.Helper()
	doc, err := NewDocument(uuid.New(), "SO/000001", kind, uuid.New(), "Acme Corp", valueobject.USD)
	require.NoError(t, err)
	return doc
}

func remoteSalesTax(percent float64) []AppliedTax {
	return []AppliedTax{{
		TaxRateID: uuid.New(),
		Name:      "AVT-Sales",
		Percent:   decimal.NewFromFloat(percent),
		IsRemote:  true,
	}}
}

func remoteUseTax(percent float64) []AppliedTax {
	return []AppliedTax{{
		TaxRateID:  uuid.New(),
		Name:       "AVT-Use",
		Percent:    decimal.NewFromFloat(percent),
		IsRemote:   true,
		IsExpensed: true,
	}}
}

func addTestLine(t *testing.T, doc *Document, qty, price float64, taxes []AppliedTax) *DocumentLine {
	t.Helper()
	line, err := doc.AddLine(uuid.New(), "WIDGET", "", "", "Widget",
		decimal.NewFromFloat(qty), decimal.NewFromFloat(price), decimal.NewFromFloat(price*0.6),
		decimal.Zero, taxes)
	require.NoError(t, err)
	return line
}

func TestNewDocument(t *testing.T) {
	tests := []struct {
		name       string
		number     string
		kind       DocumentKind
		customerID uuid.UUID
		wantErr    bool
	}{
		{"valid order", "SO/000001", KindOrder, uuid.New(), false},
		{"valid invoice", "INV/000001", KindInvoice, uuid.New(), false},
		{"empty number", "", KindOrder, uuid.New(), true},
		{"invalid kind", "SO/000001", DocumentKind("BOGUS"), uuid.New(), true},
		{"nil customer", "SO/000001", KindOrder, uuid.Nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(uuid.New(), tt.number, tt.kind, tt.customerID, "Acme", valueobject.USD)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusDraft, doc.Status)
			assert.True(t, doc.TaxOnShippingAddress)
			assert.Len(t, doc.GetDomainEvents(), 1)
		})
	}
}

func TestDocumentStatusTransitions(t *testing.T) {
	tests := []struct {
		from    DocumentStatus
		to      DocumentStatus
		allowed bool
	}{
		{StatusDraft, StatusConfirmed, true},
		{StatusDraft, StatusPosted, true},
		{StatusDraft, StatusCancelled, true},
		{StatusConfirmed, StatusPosted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusDraft, false},
		{StatusPosted, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDocumentLifecycle(t *testing.T) {
	doc := newTestDocument(t, KindInvoice)

	// Cannot confirm without lines
	require.Error(t, doc.Confirm())

	addTestLine(t, doc, 1, 100, remoteSalesTax(8.25))
	require.NoError(t, doc.Confirm())
	assert.Equal(t, StatusConfirmed, doc.Status)
	require.NotNil(t, doc.ConfirmedAt)

	require.NoError(t, doc.Post("INV/000042"))
	assert.Equal(t, StatusPosted, doc.Status)
	assert.Equal(t, "INV/000042", doc.Number)

	// Posted invoices can still be cancelled; cancelled is terminal
	require.NoError(t, doc.Cancel("customer request"))
	assert.Equal(t, StatusCancelled, doc.Status)
	require.Error(t, doc.Cancel("again"))
}

func TestDocumentCancelRequiresReason(t *testing.T) {
	doc := newTestDocument(t, KindOrder)
	require.Error(t, doc.Cancel(""))
	require.NoError(t, doc.Cancel("mistake"))
}

func TestLineSubtotal(t *testing.T) {
	doc := newTestDocument(t, KindOrder)
	line := addTestLine(t, doc, 2, 100, remoteSalesTax(10))
	require.NoError(t, doc.UpdateLineDiscount(line.LineNumber, decimal.NewFromInt(10)))

	got := doc.GetLine(line.LineNumber).Subtotal()
	assert.True(t, got.Equal(decimal.NewFromInt(180)), "got %s", got)
}

func TestLineEditsResetRemoteAmounts(t *testing.T) {
	edits := []struct {
		name string
		edit func(doc *Document, lineNumber int) error
	}{
		{"quantity", func(d *Document, n int) error { return d.UpdateLineQuantity(n, decimal.NewFromInt(3)) }},
		{"price", func(d *Document, n int) error { return d.UpdateLinePrice(n, decimal.NewFromInt(50)) }},
		{"discount", func(d *Document, n int) error { return d.UpdateLineDiscount(n, decimal.NewFromInt(5)) }},
		{"taxes", func(d *Document, n int) error { return d.UpdateLineTaxes(n, remoteSalesTax(6)) }},
	}

	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			doc := newTestDocument(t, KindOrder)
			line := addTestLine(t, doc, 2, 100, remoteSalesTax(10))
			doc.ReconcileLine(line.LineNumber, remoteSalesTax(10)[0], decimal.NewFromInt(20))
			doc.ReconcileTotal(DocTypeSalesOrder, decimal.NewFromInt(20))
			require.False(t, doc.RemoteTaxAmount.IsZero())

			require.NoError(t, tt.edit(doc, line.LineNumber))

			assert.True(t, doc.RemoteTaxAmount.IsZero())
			assert.True(t, doc.GetLine(line.LineNumber).RemoteTaxAmount.IsZero())
		})
	}
}

func TestShipToChangeResetsRemoteAmounts(t *testing.T) {
	doc := newTestDocument(t, KindOrder)
	line := addTestLine(t, doc, 1, 100, remoteSalesTax(10))
	doc.ReconcileLine(line.LineNumber, remoteSalesTax(10)[0], decimal.NewFromInt(10))
	doc.ReconcileTotal(DocTypeSalesOrder, decimal.NewFromInt(10))

	addr, err := valueobject.NewAddress("1 Main St", "Austin", "78701", "TX", "US")
	require.NoError(t, err)
	require.NoError(t, doc.SetShipTo(addr))

	assert.True(t, doc.RemoteTaxAmount.IsZero())
}

func TestWireDocType(t *testing.T) {
	tests := []struct {
		name   string
		kind   DocumentKind
		taxes  []AppliedTax
		commit bool
		want   DocumentType
	}{
		{"quote is always a sales order", KindInvoice, remoteSalesTax(8), false, DocTypeSalesOrder},
		{"commit invoice", KindInvoice, remoteSalesTax(8), true, DocTypeSalesInvoice},
		{"commit refund", KindRefund, remoteSalesTax(8), true, DocTypeReturnInvoice},
		{"expensed quote", KindOrder, remoteUseTax(8), false, DocTypePurchaseOrder},
		{"expensed commit", KindInvoice, remoteUseTax(8), true, DocTypePurchaseInvoice},
		{"expensed refund", KindRefund, remoteUseTax(8), true, DocTypePurchaseReturnInvoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newTestDocument(t, tt.kind)
			addTestLine(t, doc, 1, 100, tt.taxes)

			got, err := doc.WireDocType(tt.commit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWireDocTypeRejectsMixedTaxClasses(t *testing.T) {
	doc := newTestDocument(t, KindInvoice)
	addTestLine(t, doc, 1, 100, remoteSalesTax(8))
	addTestLine(t, doc, 1, 50, remoteUseTax(8))

	_, err := doc.WireDocType(true)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "MIXED_TAX_TYPES", domainErr.Code)
}

func TestDocumentTotalsAndSign(t *testing.T) {
	doc := newTestDocument(t, KindRefund)
	line := addTestLine(t, doc, 2, 100, remoteSalesTax(10))
	doc.ReconcileLine(line.LineNumber, remoteSalesTax(10)[0], decimal.NewFromInt(-20))
	doc.ReconcileTotal(DocTypeReturnInvoice, decimal.NewFromInt(-20))

	// Remote amounts are stored positive
	assert.True(t, doc.RemoteTaxAmount.Equal(decimal.NewFromInt(20)))
	assert.True(t, doc.GetLine(line.LineNumber).RemoteTaxAmount.Equal(decimal.NewFromInt(20)))

	// Sign convention is applied at presentation
	assert.True(t, doc.AmountTotal().Equal(decimal.NewFromInt(220)))
	assert.True(t, doc.SignedTotal().Equal(decimal.NewFromInt(-220)))
	assert.True(t, doc.SignedTaxAmount().Equal(decimal.NewFromInt(-20)))
}

func TestReconcileTotalRedirectsExpensedTax(t *testing.T) {
	doc := newTestDocument(t, KindInvoice)
	line := addTestLine(t, doc, 1, 100, remoteUseTax(8.25))
	doc.ReconcileLine(line.LineNumber, remoteUseTax(8.25)[0], decimal.NewFromFloat(8.25))
	doc.ReconcileTotal(DocTypePurchaseInvoice, decimal.NewFromFloat(8.25))

	// Use tax is a company cost, never a customer charge
	assert.True(t, doc.RemoteTaxAmount.IsZero())
	assert.True(t, doc.RemoteTaxExpenseAmount.Equal(decimal.NewFromFloat(8.25)))
	got := doc.GetLine(line.LineNumber)
	assert.True(t, got.RemoteTaxAmount.IsZero())
	assert.True(t, got.RemoteTaxExpenseAmount.Equal(decimal.NewFromFloat(8.25)))

	// The customer-facing total excludes expensed tax
	assert.True(t, doc.AmountTotal().Equal(decimal.NewFromInt(100)))
}

func TestReconcileIsIdempotent(t *testing.T) {
	doc := newTestDocument(t, KindInvoice)
	line := addTestLine(t, doc, 2, 100, remoteSalesTax(10))

	apply := func() {
		doc.ReconcileLine(line.LineNumber, remoteSalesTax(10)[0], decimal.NewFromInt(20))
		doc.ReconcileTotal(DocTypeSalesInvoice, decimal.NewFromInt(20))
	}
	apply()
	first := doc.AmountTotal()
	firstTaxes := len(doc.GetLine(line.LineNumber).Taxes)

	apply()
	assert.True(t, doc.AmountTotal().Equal(first))
	assert.Equal(t, firstTaxes, len(doc.GetLine(line.LineNumber).Taxes))
}

func TestReplaceRemoteTaxesKeepsLocalOnes(t *testing.T) {
	doc := newTestDocument(t, KindInvoice)
	local := AppliedTax{TaxRateID: uuid.New(), Name: "Eco Fee", Percent: decimal.NewFromInt(1)}
	line := addTestLine(t, doc, 1, 100, append(remoteSalesTax(8), local))

	resolved := AppliedTax{TaxRateID: uuid.New(), Name: "AVT-Sales 8.25%", Percent: decimal.NewFromFloat(8.25), IsRemote: true}
	doc.ReconcileLine(line.LineNumber, resolved, decimal.NewFromFloat(8.25))

	taxes := doc.GetLine(line.LineNumber).Taxes
	require.Len(t, taxes, 2)
	assert.Equal(t, "Eco Fee", taxes[0].Name)
	assert.Equal(t, "AVT-Sales 8.25%", taxes[1].Name)
}

func TestNewRefundFrom(t *testing.T) {
	origin := newTestDocument(t, KindInvoice)
	origin.ExemptionNumber = "EX-123"
	origin.ExemptionCode = "G"
	origin.WarehouseCode = "WH1"
	addTestLine(t, origin, 2, 100, remoteSalesTax(8.25))

	// Only posted documents can be refunded
	_, err := NewRefundFrom(origin, "RINV/000001")
	require.Error(t, err)

	require.NoError(t, origin.Post("INV/000007"))

	refund, err := NewRefundFrom(origin, "RINV/000001")
	require.NoError(t, err)
	assert.Equal(t, KindRefund, refund.Kind)
	assert.True(t, refund.IsRefund())
	assert.Equal(t, "INV/000007", refund.ReferenceNumber)
	assert.Equal(t, "EX-123", refund.ExemptionNumber)
	assert.Equal(t, "G", refund.ExemptionCode)
	assert.True(t, refund.ExemptionLocked)
	assert.Equal(t, "WH1", refund.WarehouseCode)
	require.Len(t, refund.Lines, len(origin.Lines))

	// Locked exemption fields cannot be re-derived
	refund.SetExemption("OTHER", "X")
	assert.Equal(t, "EX-123", refund.ExemptionNumber)
}

func TestFinalizedDocumentRejectsEdits(t *testing.T) {
	doc := newTestDocument(t, KindInvoice)
	line := addTestLine(t, doc, 1, 100, remoteSalesTax(8))
	require.NoError(t, doc.Post("INV/000001"))

	_, err := doc.AddLine(uuid.New(), "X", "", "", "x", decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.Zero, decimal.Zero, nil)
	require.Error(t, err)
	require.Error(t, doc.UpdateLineQuantity(line.LineNumber, decimal.NewFromInt(5)))
	require.Error(t, doc.SetShipTo(valueobject.Address{}))
}
