package tax

import (
	"fmt"
	"strings"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rate name prefixes. Customer-charged remote rates carry the sales prefix,
// company-absorbed ("use tax") rates the use prefix.
const (
	RatePrefixSales = "AVT-Sales"
	RatePrefixUse   = "AVT-Use"
)

// TaxRate is a host-side tax record mirroring a percentage returned by the
// remote service. Remote rates are lazily cloned from a zero-percent
// template the first time a percentage is seen, so accounting configuration
// (posting accounts etc.) is inherited from the template.
type TaxRate struct {
	shared.CompanyAggregateRoot
	Name    string          `gorm:"not null"`
	Percent decimal.Decimal `gorm:"type:decimal(9,5);not null"`
	// IsRemote marks rates managed by the remote tax service integration.
	IsRemote bool `gorm:"not null"`
	// IsExpensed marks rates whose amount is a company cost (use tax)
	// rather than a customer charge.
	IsExpensed bool `gorm:"not null"`
	// Active rates are offered for assignment; inactive ones are kept for
	// historical documents and reactivated when their percentage reappears.
	Active bool `gorm:"not null;default:true"`
}

// RateName builds the display name for a remote rate, e.g. "AVT-Sales 8.25%"
func RateName(percent decimal.Decimal, expensed bool) string {
	prefix := RatePrefixSales
	if expensed {
		prefix = RatePrefixUse
	}
	p := strings.TrimRight(strings.TrimRight(percent.StringFixed(5), "0"), ".")
	if p == "" || p == "-" {
		p = "0"
	}
	return fmt.Sprintf("%s %s%%", prefix, p)
}

// NewTaxRateTemplate creates the zero-percent template rate that percentage
// clones inherit from. One template exists per tax class (sales / use).
func NewTaxRateTemplate(companyID uuid.UUID, expensed bool) *TaxRate {
	return &TaxRate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 RateName(decimal.Zero, expensed),
		Percent:              decimal.Zero,
		IsRemote:             true,
		IsExpensed:           expensed,
		Active:               true,
	}
}

// CloneForPercent derives a new active rate from the template for the given
// percentage, keeping the template's tax class.
func (r *TaxRate) CloneForPercent(percent decimal.Decimal) (*TaxRate, error) {
	if !r.IsRemote {
		return nil, shared.NewDomainError("INVALID_TEMPLATE", "Only remote-managed rates can serve as templates")
	}
	if percent.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PERCENT", "Tax percentage cannot be negative")
	}
	clone := &TaxRate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(r.CompanyID),
		Name:                 RateName(percent, r.IsExpensed),
		Percent:              percent,
		IsRemote:             true,
		IsExpensed:           r.IsExpensed,
		Active:               true,
	}
	return clone, nil
}

// Reactivate marks an archived rate active again
func (r *TaxRate) Reactivate() {
	if r.Active {
		return
	}
	r.Active = true
	r.IncrementVersion()
}

// Applied renders the rate as a line tax assignment snapshot
func (r *TaxRate) Applied() AppliedTax {
	return AppliedTax{
		TaxRateID:  r.ID,
		Name:       r.Name,
		Percent:    r.Percent,
		IsRemote:   r.IsRemote,
		IsExpensed: r.IsExpensed,
	}
}
