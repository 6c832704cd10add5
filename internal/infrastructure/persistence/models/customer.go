package models

import (
	"time"

	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
)

// CustomerModel is the persistence model for customers
type CustomerModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`

	Name      string `gorm:"not null"`
	Code      string `gorm:"index"`
	VATID     string `gorm:"column:vat_id"`
	TaxExempt bool

	InvoiceAddress valueobject.Address `gorm:"type:jsonb"`

	Exemptions []ExemptionAddressModel `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for CustomerModel
func (CustomerModel) TableName() string {
	return "tax_customers"
}

// ExemptionAddressModel is the persistence model for regional exemption grants
type ExemptionAddressModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`

	CountryCode     string `gorm:"size:2;not null"`
	StateCode       string `gorm:"size:8"`
	CountryWide     bool   `gorm:"not null"`
	ExemptionNumber string
	ExemptionCode   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExemptionAddressModel
func (ExemptionAddressModel) TableName() string {
	return "tax_exemption_addresses"
}

// FromCustomer converts a domain customer to its persistence model
func FromCustomer(customer *tax.Customer) *CustomerModel {
	model := &CustomerModel{
		ID:             customer.ID,
		CompanyID:      customer.CompanyID,
		Version:        customer.Version,
		Name:           customer.Name,
		Code:           customer.Code,
		VATID:          customer.VATID,
		TaxExempt:      customer.TaxExempt,
		InvoiceAddress: customer.InvoiceAddress,
		CreatedAt:      customer.CreatedAt,
		UpdatedAt:      customer.UpdatedAt,
		Exemptions:     make([]ExemptionAddressModel, len(customer.Exemptions)),
	}
	for i, e := range customer.Exemptions {
		model.Exemptions[i] = ExemptionAddressModel{
			ID:              e.ID,
			CustomerID:      e.CustomerID,
			CountryCode:     e.CountryCode,
			StateCode:       e.StateCode,
			CountryWide:     e.CountryWide,
			ExemptionNumber: e.ExemptionNumber,
			ExemptionCode:   e.ExemptionCode,
			CreatedAt:       e.CreatedAt,
			UpdatedAt:       e.UpdatedAt,
		}
	}
	return model
}

// ToDomain converts the persistence model back to a domain customer
func (m *CustomerModel) ToDomain() *tax.Customer {
	customer := &tax.Customer{
		CompanyAggregateRoot: rootFrom(m.ID, m.CompanyID, m.Version, m.CreatedAt, m.UpdatedAt),
		Name:                 m.Name,
		Code:                 m.Code,
		VATID:                m.VATID,
		TaxExempt:            m.TaxExempt,
		InvoiceAddress:       m.InvoiceAddress,
		Exemptions:           make([]tax.ExemptionAddress, len(m.Exemptions)),
	}
	for i, e := range m.Exemptions {
		customer.Exemptions[i] = tax.ExemptionAddress{
			ID:              e.ID,
			CustomerID:      e.CustomerID,
			CountryCode:     e.CountryCode,
			StateCode:       e.StateCode,
			CountryWide:     e.CountryWide,
			ExemptionNumber: e.ExemptionNumber,
			ExemptionCode:   e.ExemptionCode,
			CreatedAt:       e.CreatedAt,
			UpdatedAt:       e.UpdatedAt,
		}
	}
	return customer
}

// DocumentSequenceModel allocates gapless per-kind document numbers
type DocumentSequenceModel struct {
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"primaryKey"`
	NextValue int64     `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

// TableName returns the table name for DocumentSequenceModel
func (DocumentSequenceModel) TableName() string {
	return "tax_document_sequences"
}

// CredentialStatusModel records the latest reported credential expiration
type CredentialStatusModel struct {
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExpiresAt time.Time `gorm:"not null"`
	CheckedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for CredentialStatusModel
func (CredentialStatusModel) TableName() string {
	return "tax_credential_status"
}
