package tax

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLine(taxes []AppliedTax) *DocumentLine {
	return &DocumentLine{
		ID:          uuid.New(),
		LineNumber:  1,
		ProductCode: "WIDGET",
		Barcode:     "012345678905",
		Description: "Blue widget",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.NewFromInt(100),
		UnitCost:    decimal.NewFromInt(60),
		Taxes:       taxes,
	}
}

func TestPrepareRequestLineSkipsIneligibleLines(t *testing.T) {
	sign := decimal.NewFromInt(1)

	t.Run("no remote tax", func(t *testing.T) {
		line := testLine([]AppliedTax{{Name: "Local VAT", Percent: decimal.NewFromInt(5)}})
		assert.Nil(t, PrepareRequestLine(line, sign, DocTypeSalesOrder, LineAdapterOptions{}))
	})

	t.Run("no taxes at all", func(t *testing.T) {
		line := testLine(nil)
		assert.Nil(t, PrepareRequestLine(line, sign, DocTypeSalesOrder, LineAdapterOptions{}))
	})

	t.Run("zero quantity", func(t *testing.T) {
		line := testLine(remoteSalesTax(8))
		line.Quantity = decimal.Zero
		assert.Nil(t, PrepareRequestLine(line, sign, DocTypeSalesOrder, LineAdapterOptions{}))
	})
}

func TestPrepareRequestLineAmount(t *testing.T) {
	tests := []struct {
		name           string
		sign           int64
		discount       float64
		docType        DocumentType
		wantAmount     string
		wantDiscount   string
		wantDiscounted bool
	}{
		{"plain sale", 1, 0, DocTypeSalesOrder, "200", "0", false},
		{"discounted sale", 1, 10, DocTypeSalesOrder, "180", "20", true},
		{"refund flips sign", -1, 10, DocTypeReturnInvoice, "-180", "-20", true},
		{"purchase uses cost basis", 1, 0, DocTypePurchaseInvoice, "120", "0", false},
		// The sale discount lowers the customer's price, not the cost the
		// company paid, so the use-tax basis stays at the full cost.
		{"discounted purchase keeps full cost", 1, 10, DocTypePurchaseInvoice, "120", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := testLine(remoteSalesTax(8))
			line.DiscountPercent = decimal.NewFromFloat(tt.discount)

			got := PrepareRequestLine(line, decimal.NewFromInt(tt.sign), tt.docType, LineAdapterOptions{})
			require.NotNil(t, got)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(tt.wantAmount)), "amount %s", got.Amount)
			assert.True(t, got.DiscountAmount.Equal(decimal.RequireFromString(tt.wantDiscount)), "discount %s", got.DiscountAmount)
			assert.Equal(t, tt.wantDiscounted, got.Discounted)
		})
	}
}

func TestPrepareRequestLineItemCode(t *testing.T) {
	line := testLine(remoteSalesTax(8))

	t.Run("defaults to product code", func(t *testing.T) {
		got := PrepareRequestLine(line, decimal.NewFromInt(1), DocTypeSalesOrder, LineAdapterOptions{})
		require.NotNil(t, got)
		assert.Equal(t, "WIDGET", got.ItemCode)
	})

	t.Run("upc prefix when enabled", func(t *testing.T) {
		got := PrepareRequestLine(line, decimal.NewFromInt(1), DocTypeSalesOrder, LineAdapterOptions{UseUPC: true})
		require.NotNil(t, got)
		assert.Equal(t, "upc:012345678905", got.ItemCode)
	})

	t.Run("upc enabled without barcode", func(t *testing.T) {
		bare := testLine(remoteSalesTax(8))
		bare.Barcode = ""
		got := PrepareRequestLine(bare, decimal.NewFromInt(1), DocTypeSalesOrder, LineAdapterOptions{UseUPC: true})
		require.NotNil(t, got)
		assert.Equal(t, "WIDGET", got.ItemCode)
	})
}

func TestPrepareRequestLineDescriptionFallback(t *testing.T) {
	line := testLine(remoteSalesTax(8))
	line.Description = "  "
	got := PrepareRequestLine(line, decimal.NewFromInt(1), DocTypeSalesOrder, LineAdapterOptions{})
	require.NotNil(t, got)
	assert.Equal(t, "WIDGET", got.Description)
}

func TestPrepareRequestLines(t *testing.T) {
	doc := newTestDocument(t, KindOrder)
	addTestLine(t, doc, 1, 100, remoteSalesTax(8))
	addTestLine(t, doc, 1, 50, nil) // not remote-taxed, skipped
	addTestLine(t, doc, 1, 25, remoteSalesTax(8))

	lines := PrepareRequestLines(doc, DocTypeSalesOrder, LineAdapterOptions{})
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].LineNumber)
	assert.Equal(t, 3, lines[1].LineNumber)
}
