package tax

import (
	"time"

	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddressDTO carries an address across the service boundary
type AddressDTO struct {
	Street      string `json:"street"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	StateCode   string `json:"state_code"`
	CountryCode string `json:"country_code"`
	Validated   bool   `json:"validated"`
}

func (d *AddressDTO) toAddress() (valueobject.Address, error) {
	opts := []valueobject.AddressOption{}
	if d.Street2 != "" {
		opts = append(opts, valueobject.WithStreet2(d.Street2))
	}
	if d.Validated {
		opts = append(opts, valueobject.WithValidatedAt(time.Now()))
	}
	return valueobject.NewAddress(d.Street, d.City, d.Zip, d.StateCode, d.CountryCode, opts...)
}

func fromAddress(a valueobject.Address) *AddressDTO {
	if a.IsZero() {
		return nil
	}
	return &AddressDTO{
		Street:      a.Street(),
		Street2:     a.Street2(),
		City:        a.City(),
		Zip:         a.Zip(),
		StateCode:   a.StateCode(),
		CountryCode: a.CountryCode(),
		Validated:   a.IsValidated(),
	}
}

// AppliedTaxDTO carries a line tax assignment
type AppliedTaxDTO struct {
	TaxRateID  uuid.UUID       `json:"tax_rate_id"`
	Name       string          `json:"name"`
	Percent    decimal.Decimal `json:"percent"`
	IsRemote   bool            `json:"is_remote"`
	IsExpensed bool            `json:"is_expensed"`
}

// CreateDocumentRequest creates a new draft document
type CreateDocumentRequest struct {
	Kind                 string      `json:"kind" binding:"required,oneof=ORDER INVOICE REFUND"`
	CustomerID           uuid.UUID   `json:"customer_id" binding:"required"`
	UserName             string      `json:"user_name"`
	Currency             string      `json:"currency"`
	WarehouseCode        string      `json:"warehouse_code"`
	LocationCode         string      `json:"location_code"`
	TaxOnShippingAddress *bool       `json:"tax_on_shipping_address"`
	ShipFrom             *AddressDTO `json:"ship_from"`
	ShipTo               *AddressDTO `json:"ship_to"`
}

// AddLineRequest appends a line to a document
type AddLineRequest struct {
	ProductID       uuid.UUID       `json:"product_id"`
	ProductCode     string          `json:"product_code" binding:"required"`
	Barcode         string          `json:"barcode"`
	TaxCode         string          `json:"tax_code"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Taxes           []AppliedTaxDTO `json:"taxes"`
}

// UpdateLineRequest modifies line fields; nil fields are left unchanged
type UpdateLineRequest struct {
	Quantity        *decimal.Decimal `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

// CancelDocumentRequest cancels a document
type CancelDocumentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// LineResponse is the service-boundary view of a document line
type LineResponse struct {
	LineNumber             int             `json:"line_number"`
	ProductCode            string          `json:"product_code"`
	Barcode                string          `json:"barcode,omitempty"`
	Description            string          `json:"description"`
	Quantity               decimal.Decimal `json:"quantity"`
	UnitPrice              decimal.Decimal `json:"unit_price"`
	UnitCost               decimal.Decimal `json:"unit_cost"`
	DiscountPercent        decimal.Decimal `json:"discount_percent"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	Taxes                  []AppliedTaxDTO `json:"taxes"`
	TaxAmount              decimal.Decimal `json:"tax_amount"`
	RemoteTaxAmount        decimal.Decimal `json:"remote_tax_amount"`
	RemoteTaxExpenseAmount decimal.Decimal `json:"remote_tax_expense_amount"`
}

// DocumentResponse is the service-boundary view of a document
type DocumentResponse struct {
	ID                     uuid.UUID       `json:"id"`
	Number                 string          `json:"number"`
	Kind                   string          `json:"kind"`
	Status                 string          `json:"status"`
	CustomerID             uuid.UUID       `json:"customer_id"`
	CustomerName           string          `json:"customer_name"`
	CustomerCode           string          `json:"customer_code,omitempty"`
	UserName               string          `json:"user_name,omitempty"`
	Date                   time.Time       `json:"date"`
	Currency               string          `json:"currency"`
	ShipFrom               *AddressDTO     `json:"ship_from,omitempty"`
	ShipTo                 *AddressDTO     `json:"ship_to,omitempty"`
	TaxOnShippingAddress   bool            `json:"tax_on_shipping_address"`
	ExemptionNumber        string          `json:"exemption_number,omitempty"`
	ExemptionCode          string          `json:"exemption_code,omitempty"`
	ExemptionLocked        bool            `json:"exemption_locked"`
	ReferenceNumber        string          `json:"reference_number,omitempty"`
	Lines                  []LineResponse  `json:"lines"`
	AmountUntaxed          decimal.Decimal `json:"amount_untaxed"`
	TaxAmount              decimal.Decimal `json:"tax_amount"`
	RemoteTaxAmount        decimal.Decimal `json:"remote_tax_amount"`
	RemoteTaxExpenseAmount decimal.Decimal `json:"remote_tax_expense_amount"`
	AmountTotal            decimal.Decimal `json:"amount_total"`
	SignedTotal            decimal.Decimal `json:"signed_total"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// PingResponse reports a connectivity check outcome
type PingResponse struct {
	Authenticated        bool       `json:"authenticated"`
	ServiceVersion       string     `json:"service_version,omitempty"`
	CredentialExpiration *time.Time `json:"credential_expiration,omitempty"`
}

func toLineResponse(l *tax.DocumentLine) LineResponse {
	taxes := make([]AppliedTaxDTO, len(l.Taxes))
	for i, t := range l.Taxes {
		taxes[i] = AppliedTaxDTO{
			TaxRateID:  t.TaxRateID,
			Name:       t.Name,
			Percent:    t.Percent,
			IsRemote:   t.IsRemote,
			IsExpensed: t.IsExpensed,
		}
	}
	return LineResponse{
		LineNumber:             l.LineNumber,
		ProductCode:            l.ProductCode,
		Barcode:                l.Barcode,
		Description:            l.Description,
		Quantity:               l.Quantity,
		UnitPrice:              l.UnitPrice,
		UnitCost:               l.UnitCost,
		DiscountPercent:        l.DiscountPercent,
		Subtotal:               l.Subtotal(),
		Taxes:                  taxes,
		TaxAmount:              l.TaxAmount(),
		RemoteTaxAmount:        l.RemoteTaxAmount,
		RemoteTaxExpenseAmount: l.RemoteTaxExpenseAmount,
	}
}

func toDocumentResponse(doc *tax.Document) *DocumentResponse {
	lines := make([]LineResponse, len(doc.Lines))
	for i := range doc.Lines {
		lines[i] = toLineResponse(&doc.Lines[i])
	}
	return &DocumentResponse{
		ID:                     doc.ID,
		Number:                 doc.Number,
		Kind:                   doc.Kind.String(),
		Status:                 doc.Status.String(),
		CustomerID:             doc.CustomerID,
		CustomerName:           doc.CustomerName,
		CustomerCode:           doc.CustomerCode,
		UserName:               doc.UserName,
		Date:                   doc.Date,
		Currency:               string(doc.Currency),
		ShipFrom:               fromAddress(doc.ShipFrom),
		ShipTo:                 fromAddress(doc.ShipTo),
		TaxOnShippingAddress:   doc.TaxOnShippingAddress,
		ExemptionNumber:        doc.ExemptionNumber,
		ExemptionCode:          doc.ExemptionCode,
		ExemptionLocked:        doc.ExemptionLocked,
		ReferenceNumber:        doc.ReferenceNumber,
		Lines:                  lines,
		AmountUntaxed:          doc.AmountUntaxed(),
		TaxAmount:              doc.TaxAmount(),
		RemoteTaxAmount:        doc.RemoteTaxAmount,
		RemoteTaxExpenseAmount: doc.RemoteTaxExpenseAmount,
		AmountTotal:            doc.AmountTotal(),
		SignedTotal:            doc.SignedTotal(),
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}
}
