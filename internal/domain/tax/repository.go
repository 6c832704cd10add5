package tax

import (
	"context"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentRepository defines persistence for taxable documents
type DocumentRepository interface {
	Save(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Document, error)
	FindByNumber(ctx context.Context, companyID uuid.UUID, number string) (*Document, error)
	FindAll(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]*Document, int64, error)
	// NextNumber allocates the next document number in the sequence for
	// the given kind.
	NextNumber(ctx context.Context, companyID uuid.UUID, kind DocumentKind) (string, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

// TaxRateRepository defines persistence for tax rates. The table carries a
// unique constraint over (company, percent, is_remote, is_expensed); Save
// maps violations to shared.ErrAlreadyExists so callers can recover from
// concurrent creation.
type TaxRateRepository interface {
	Save(ctx context.Context, rate *TaxRate) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*TaxRate, error)
	// FindByPercent looks up the remote rate for a percentage and tax
	// class, including archived rates so they can be reactivated.
	FindByPercent(ctx context.Context, companyID uuid.UUID, percent decimal.Decimal, expensed bool) (*TaxRate, error)
	// FindTemplate returns the zero-percent template for a tax class.
	FindTemplate(ctx context.Context, companyID uuid.UUID, expensed bool) (*TaxRate, error)
}

// CustomerRepository defines persistence for customer records
type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Customer, error)
}
