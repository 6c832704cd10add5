package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineAdapterOptions tune how document lines are rendered for the remote
// service.
type LineAdapterOptions struct {
	// UseUPC renders the line item code as "upc:<barcode>" when the product
	// has a barcode, letting the remote service match its UPC tax catalog.
	UseUPC bool
}

// PrepareRequestLine converts one document line into a calculation request
// line. Returns nil for lines the remote service should never see: lines
// without a remote-sourced tax, and zero-quantity lines.
//
// The amount is sign * price * qty * (1 - discount/100). For purchase-type
// (expensed tax) documents the unit cost replaces the sales price and no
// discount applies: use tax is assessed on what the company paid, and sale
// discounts do not change what it paid.
func PrepareRequestLine(line *DocumentLine, sign decimal.Decimal, docType DocumentType, opts LineAdapterOptions) *RequestLine {
	if !line.HasRemoteTax() {
		return nil
	}
	if line.Quantity.IsZero() {
		return nil
	}

	unit := line.UnitPrice
	discount := line.DiscountPercent
	if docType.IsPurchase() {
		unit = line.UnitCost
		discount = decimal.Zero
	}

	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	gross := unit.Mul(line.Quantity)
	amount := sign.Mul(gross).Mul(one.Sub(discount.Div(hundred)))

	itemCode := line.ProductCode
	if opts.UseUPC && line.Barcode != "" {
		itemCode = "upc:" + line.Barcode
	}

	description := strings.TrimSpace(line.Description)
	if description == "" {
		description = itemCode
	}

	return &RequestLine{
		LineNumber:     line.LineNumber,
		ItemCode:       itemCode,
		TaxCode:        line.TaxCode,
		Description:    description,
		Quantity:       line.Quantity,
		Amount:         amount,
		Discounted:     !discount.IsZero(),
		DiscountAmount: sign.Mul(gross).Sub(amount),
	}
}

// PrepareRequestLines converts all eligible document lines. An empty result
// means the document has nothing the remote service should compute.
func PrepareRequestLines(doc *Document, docType DocumentType, opts LineAdapterOptions) []RequestLine {
	sign := doc.Sign()
	lines := make([]RequestLine, 0, len(doc.Lines))
	for idx := range doc.Lines {
		if rl := PrepareRequestLine(&doc.Lines[idx], sign, docType, opts); rl != nil {
			lines = append(lines, *rl)
		}
	}
	return lines
}
