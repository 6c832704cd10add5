package models

import (
	"time"

	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRateModel is the persistence model for tax rates. The unique index over
// (company, percent, class) is what resolves concurrent first-sight creation:
// the loser of the race gets a duplicate-key error and re-reads the winner.
type TaxRateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_tax_rates_percent_class"`
	Version   int       `gorm:"not null;default:1"`

	Name       string          `gorm:"not null"`
	Percent    decimal.Decimal `gorm:"type:decimal(9,5);not null;uniqueIndex:ux_tax_rates_percent_class"`
	IsRemote   bool            `gorm:"not null;uniqueIndex:ux_tax_rates_percent_class"`
	IsExpensed bool            `gorm:"not null;uniqueIndex:ux_tax_rates_percent_class"`
	Active     bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TaxRateModel
func (TaxRateModel) TableName() string {
	return "tax_rates"
}

// FromTaxRate converts a domain tax rate to its persistence model
func FromTaxRate(rate *tax.TaxRate) *TaxRateModel {
	return &TaxRateModel{
		ID:         rate.ID,
		CompanyID:  rate.CompanyID,
		Version:    rate.Version,
		Name:       rate.Name,
		Percent:    rate.Percent,
		IsRemote:   rate.IsRemote,
		IsExpensed: rate.IsExpensed,
		Active:     rate.Active,
		CreatedAt:  rate.CreatedAt,
		UpdatedAt:  rate.UpdatedAt,
	}
}

// ToDomain converts the persistence model back to a domain tax rate
func (m *TaxRateModel) ToDomain() *tax.TaxRate {
	return &tax.TaxRate{
		CompanyAggregateRoot: rootFrom(m.ID, m.CompanyID, m.Version, m.CreatedAt, m.UpdatedAt),
		Name:                 m.Name,
		Percent:              m.Percent,
		IsRemote:             m.IsRemote,
		IsExpensed:           m.IsExpensed,
		Active:               m.Active,
	}
}
