package persistence

import (
	"context"
	"errors"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements tax.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

var _ tax.CustomerRepository = (*GormCustomerRepository)(nil)

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Save persists a customer and its exemption grants
func (r *GormCustomerRepository) Save(ctx context.Context, customer *tax.Customer) error {
	model := models.FromCustomer(customer)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Omit("Exemptions").Save(model).Error; err != nil {
			return err
		}
		if len(model.Exemptions) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model.Exemptions).Error
	})
}

// FindByID finds a customer by ID within a company
func (r *GormCustomerRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Preload("Exemptions").
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
