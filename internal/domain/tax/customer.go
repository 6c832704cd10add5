package tax

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ExemptionAddress grants a tax exemption for shipments into a region.
// A record either covers one state or, when CountryWide is set, the whole
// country.
type ExemptionAddress struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CountryCode     string    `gorm:"size:2;not null"`
	StateCode       string    `gorm:"size:8"`
	CountryWide     bool      `gorm:"not null"`
	ExemptionNumber string
	ExemptionCode   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Matches reports whether this exemption covers the given destination.
// State-specific records only cover their state; country-wide records cover
// every destination in their country.
func (e *ExemptionAddress) Matches(shipTo valueobject.Address) bool {
	if !strings.EqualFold(e.CountryCode, shipTo.CountryCode()) {
		return false
	}
	if e.CountryWide {
		return true
	}
	return e.StateCode != "" && strings.EqualFold(e.StateCode, shipTo.StateCode())
}

// ResolveExemption picks the exemption applying to a destination. A
// state-specific match wins over a country-wide one, so the most specific
// grant applies.
func ResolveExemption(candidates []ExemptionAddress, shipTo valueobject.Address) *ExemptionAddress {
	var countryWide *ExemptionAddress
	for idx := range candidates {
		e := &candidates[idx]
		if !e.Matches(shipTo) {
			continue
		}
		if !e.CountryWide {
			return e
		}
		if countryWide == nil {
			countryWide = e
		}
	}
	return countryWide
}

// Customer is the subset of the partner record the tax integration needs:
// identity codes for the remote service plus exemption grants.
type Customer struct {
	shared.CompanyAggregateRoot
	Name string `gorm:"not null"`
	// Code identifies the customer on the remote tax service. Required
	// before any calculation; may be auto-generated from the record ID.
	Code  string `gorm:"index"`
	VATID string
	// TaxExempt customers are exempt everywhere; regional grants live in
	// Exemptions.
	TaxExempt  bool
	Exemptions []ExemptionAddress `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`

	InvoiceAddress valueobject.Address `gorm:"type:jsonb"`
}

// NewCustomer creates a new customer record
func NewCustomer(companyID uuid.UUID, name string) (*Customer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	return &Customer{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
	}, nil
}

// HasCode returns true if the customer already carries a remote service code
func (c *Customer) HasCode() bool {
	return strings.TrimSpace(c.Code) != ""
}

// GenerateCode assigns a customer code derived from the record identity.
// No-op when a code already exists.
func (c *Customer) GenerateCode() string {
	if c.HasCode() {
		return c.Code
	}
	c.Code = fmt.Sprintf("CUST-%s", strings.ToUpper(c.ID.String()[:8]))
	c.IncrementVersion()
	return c.Code
}

// ExemptionFor returns the exemption grant covering the destination, nil if
// none applies
func (c *Customer) ExemptionFor(shipTo valueobject.Address) *ExemptionAddress {
	return ResolveExemption(c.Exemptions, shipTo)
}

// AddExemption registers a regional exemption grant
func (c *Customer) AddExemption(countryCode, stateCode, number, code string, countryWide bool) (*ExemptionAddress, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	stateCode = strings.ToUpper(strings.TrimSpace(stateCode))
	if len(countryCode) != 2 {
		return nil, shared.NewDomainError("INVALID_COUNTRY", "Exemption country must be a 2-letter ISO code")
	}
	if !countryWide && stateCode == "" {
		return nil, shared.NewDomainError("INVALID_STATE", "State-level exemption requires a state code")
	}
	now := time.Now()
	exemption := ExemptionAddress{
		ID:              uuid.New(),
		CustomerID:      c.ID,
		CountryCode:     countryCode,
		StateCode:       stateCode,
		CountryWide:     countryWide,
		ExemptionNumber: number,
		ExemptionCode:   code,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	c.Exemptions = append(c.Exemptions, exemption)
	c.IncrementVersion()
	return &c.Exemptions[len(c.Exemptions)-1], nil
}
