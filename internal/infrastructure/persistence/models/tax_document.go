package models

import (
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxDocumentModel is the persistence model for taxable documents
type TaxDocumentModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index:idx_tax_documents_company;uniqueIndex:ux_tax_documents_number"`
	Version   int       `gorm:"not null;default:1"`

	Number string `gorm:"not null;uniqueIndex:ux_tax_documents_number"`
	Kind   string `gorm:"not null"`
	Status string `gorm:"not null;index"`

	CustomerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerName string
	CustomerCode string
	VATID        string `gorm:"column:vat_id"`
	UserName     string

	Date     time.Time `gorm:"not null"`
	Currency string    `gorm:"size:3;not null"`

	ShipFrom valueobject.Address `gorm:"type:jsonb"`
	ShipTo   valueobject.Address `gorm:"type:jsonb"`

	TaxOnShippingAddress bool
	ExemptionNumber      string
	ExemptionCode        string
	ExemptionLocked      bool

	LocationCode    string
	WarehouseCode   string
	ReferenceNumber string `gorm:"index"`

	LocalTaxAmount         decimal.Decimal `gorm:"type:decimal(18,6)"`
	RemoteTaxAmount        decimal.Decimal `gorm:"type:decimal(18,6)"`
	RemoteTaxExpenseAmount decimal.Decimal `gorm:"type:decimal(18,6)"`

	ConfirmedAt  *time.Time
	PostedAt     *time.Time
	CancelledAt  *time.Time
	CancelReason string

	Lines []TaxDocumentLineModel `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TaxDocumentModel
func (TaxDocumentModel) TableName() string {
	return "tax_documents"
}

// TaxDocumentLineModel is the persistence model for document lines
type TaxDocumentLineModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index"`
	LineNumber int       `gorm:"not null"`

	ProductID   uuid.UUID `gorm:"type:uuid"`
	ProductCode string
	Barcode     string
	TaxCode     string
	Description string

	Quantity        decimal.Decimal `gorm:"type:decimal(18,6)"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,6)"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(18,6)"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(9,5)"`

	Taxes []tax.AppliedTax `gorm:"serializer:json"`

	LocalTaxAmount         decimal.Decimal `gorm:"type:decimal(18,6)"`
	RemoteTaxAmount        decimal.Decimal `gorm:"type:decimal(18,6)"`
	RemoteTaxExpenseAmount decimal.Decimal `gorm:"type:decimal(18,6)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TaxDocumentLineModel
func (TaxDocumentLineModel) TableName() string {
	return "tax_document_lines"
}

// FromDocument converts a domain document to its persistence model
func FromDocument(doc *tax.Document) *TaxDocumentModel {
	model := &TaxDocumentModel{
		ID:                     doc.ID,
		CompanyID:              doc.CompanyID,
		Version:                doc.Version,
		Number:                 doc.Number,
		Kind:                   doc.Kind.String(),
		Status:                 doc.Status.String(),
		CustomerID:             doc.CustomerID,
		CustomerName:           doc.CustomerName,
		CustomerCode:           doc.CustomerCode,
		VATID:                  doc.VATID,
		UserName:               doc.UserName,
		Date:                   doc.Date,
		Currency:               string(doc.Currency),
		ShipFrom:               doc.ShipFrom,
		ShipTo:                 doc.ShipTo,
		TaxOnShippingAddress:   doc.TaxOnShippingAddress,
		ExemptionNumber:        doc.ExemptionNumber,
		ExemptionCode:          doc.ExemptionCode,
		ExemptionLocked:        doc.ExemptionLocked,
		LocationCode:           doc.LocationCode,
		WarehouseCode:          doc.WarehouseCode,
		ReferenceNumber:        doc.ReferenceNumber,
		LocalTaxAmount:         doc.LocalTaxAmount,
		RemoteTaxAmount:        doc.RemoteTaxAmount,
		RemoteTaxExpenseAmount: doc.RemoteTaxExpenseAmount,
		ConfirmedAt:            doc.ConfirmedAt,
		PostedAt:               doc.PostedAt,
		CancelledAt:            doc.CancelledAt,
		CancelReason:           doc.CancelReason,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
		Lines:                  make([]TaxDocumentLineModel, len(doc.Lines)),
	}
	for i := range doc.Lines {
		model.Lines[i] = fromDocumentLine(&doc.Lines[i])
	}
	return model
}

func fromDocumentLine(line *tax.DocumentLine) TaxDocumentLineModel {
	return TaxDocumentLineModel{
		ID:                     line.ID,
		DocumentID:             line.DocumentID,
		LineNumber:             line.LineNumber,
		ProductID:              line.ProductID,
		ProductCode:            line.ProductCode,
		Barcode:                line.Barcode,
		TaxCode:                line.TaxCode,
		Description:            line.Description,
		Quantity:               line.Quantity,
		UnitPrice:              line.UnitPrice,
		UnitCost:               line.UnitCost,
		DiscountPercent:        line.DiscountPercent,
		Taxes:                  line.Taxes,
		LocalTaxAmount:         line.LocalTaxAmount,
		RemoteTaxAmount:        line.RemoteTaxAmount,
		RemoteTaxExpenseAmount: line.RemoteTaxExpenseAmount,
		CreatedAt:              line.CreatedAt,
		UpdatedAt:              line.UpdatedAt,
	}
}

// ToDomain converts the persistence model back to a domain document
func (m *TaxDocumentModel) ToDomain() *tax.Document {
	doc := &tax.Document{
		CompanyAggregateRoot:   rootFrom(m.ID, m.CompanyID, m.Version, m.CreatedAt, m.UpdatedAt),
		Number:                 m.Number,
		Kind:                   tax.DocumentKind(m.Kind),
		Status:                 tax.DocumentStatus(m.Status),
		CustomerID:             m.CustomerID,
		CustomerName:           m.CustomerName,
		CustomerCode:           m.CustomerCode,
		VATID:                  m.VATID,
		UserName:               m.UserName,
		Date:                   m.Date,
		Currency:               valueobject.Currency(m.Currency),
		ShipFrom:               m.ShipFrom,
		ShipTo:                 m.ShipTo,
		TaxOnShippingAddress:   m.TaxOnShippingAddress,
		ExemptionNumber:        m.ExemptionNumber,
		ExemptionCode:          m.ExemptionCode,
		ExemptionLocked:        m.ExemptionLocked,
		LocationCode:           m.LocationCode,
		WarehouseCode:          m.WarehouseCode,
		ReferenceNumber:        m.ReferenceNumber,
		LocalTaxAmount:         m.LocalTaxAmount,
		RemoteTaxAmount:        m.RemoteTaxAmount,
		RemoteTaxExpenseAmount: m.RemoteTaxExpenseAmount,
		ConfirmedAt:            m.ConfirmedAt,
		PostedAt:               m.PostedAt,
		CancelledAt:            m.CancelledAt,
		CancelReason:           m.CancelReason,
		Lines:                  make([]tax.DocumentLine, len(m.Lines)),
	}
	for i := range m.Lines {
		doc.Lines[i] = m.Lines[i].toDomain()
	}
	return doc
}

func (m *TaxDocumentLineModel) toDomain() tax.DocumentLine {
	return tax.DocumentLine{
		ID:                     m.ID,
		DocumentID:             m.DocumentID,
		LineNumber:             m.LineNumber,
		ProductID:              m.ProductID,
		ProductCode:            m.ProductCode,
		Barcode:                m.Barcode,
		TaxCode:                m.TaxCode,
		Description:            m.Description,
		Quantity:               m.Quantity,
		UnitPrice:              m.UnitPrice,
		UnitCost:               m.UnitCost,
		DiscountPercent:        m.DiscountPercent,
		Taxes:                  m.Taxes,
		LocalTaxAmount:         m.LocalTaxAmount,
		RemoteTaxAmount:        m.RemoteTaxAmount,
		RemoteTaxExpenseAmount: m.RemoteTaxExpenseAmount,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func rootFrom(id, companyID uuid.UUID, version int, createdAt, updatedAt time.Time) shared.CompanyAggregateRoot {
	return shared.CompanyAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        id,
				CreatedAt: createdAt,
				UpdatedAt: updatedAt,
			},
			Version: version,
		},
		CompanyID: companyID,
	}
}
