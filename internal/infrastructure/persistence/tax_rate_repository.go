package persistence

import (
	"context"
	"errors"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTaxRateRepository implements tax.TaxRateRepository using GORM
type GormTaxRateRepository struct {
	db *gorm.DB
}

var _ tax.TaxRateRepository = (*GormTaxRateRepository)(nil)

// NewGormTaxRateRepository creates a new GormTaxRateRepository
func NewGormTaxRateRepository(db *gorm.DB) *GormTaxRateRepository {
	return &GormTaxRateRepository{db: db}
}

// Save persists a tax rate. New rows are inserted with a plain Create so a
// violation of the (company, percent, is_remote, is_expensed) unique index
// surfaces as shared.ErrAlreadyExists and the resolver can recover from
// creation races; an upsert here would silently overwrite the race winner.
func (r *GormTaxRateRepository) Save(ctx context.Context, rate *tax.TaxRate) error {
	model := models.FromTaxRate(rate)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.TaxRateModel{}).Where("id = ?", model.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			return tx.Create(model).Error
		}
		return tx.Model(&models.TaxRateModel{}).Where("id = ?", model.ID).Select("*").Updates(model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID finds a tax rate by ID within a company
func (r *GormTaxRateRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.TaxRate, error) {
	var model models.TaxRateModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPercent finds the remote rate for a percentage and tax class.
// Archived rates are included so callers can reactivate them.
func (r *GormTaxRateRepository) FindByPercent(ctx context.Context, companyID uuid.UUID, percent decimal.Decimal, expensed bool) (*tax.TaxRate, error) {
	var model models.TaxRateModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND percent = ? AND is_remote = ? AND is_expensed = ?", companyID, percent, true, expensed).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindTemplate returns the zero-percent template rate for a tax class
func (r *GormTaxRateRepository) FindTemplate(ctx context.Context, companyID uuid.UUID, expensed bool) (*tax.TaxRate, error) {
	return r.FindByPercent(ctx, companyID, decimal.Zero, expensed)
}
