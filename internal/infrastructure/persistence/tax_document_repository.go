package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements tax.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

var _ tax.DocumentRepository = (*GormDocumentRepository)(nil)

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// Save persists a document and its lines
func (r *GormDocumentRepository) Save(ctx context.Context, doc *tax.Document) error {
	model := models.FromDocument(doc)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Omit("Lines").Save(model).Error; err != nil {
			return err
		}
		// Lines are replaced wholesale; reconciliation rewrites most of
		// them anyway.
		if err := tx.Where("document_id = ?", model.ID).Delete(&models.TaxDocumentLineModel{}).Error; err != nil {
			return err
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Create(&model.Lines).Error
	})
}

// FindByID finds a document by ID within a company
func (r *GormDocumentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*tax.Document, error) {
	var model models.TaxDocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a document by its number within a company
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, companyID uuid.UUID, number string) (*tax.Document, error) {
	var model models.TaxDocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Where("company_id = ? AND number = ?", companyID, number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds documents matching the filter within a company
func (r *GormDocumentRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]*tax.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TaxDocumentModel{}).Where("company_id = ?", companyID)

	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if kind, ok := filter.Filters["kind"].(string); ok && kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if customerID, ok := filter.Filters["customer_id"].(uuid.UUID); ok && customerID != uuid.Nil {
		query = query.Where("customer_id = ?", customerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir != "asc" {
		orderDir = "desc"
	}

	var documentModels []models.TaxDocumentModel
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&documentModels).Error; err != nil {
		return nil, 0, err
	}

	docs := make([]*tax.Document, len(documentModels))
	for i := range documentModels {
		docs[i] = documentModels[i].ToDomain()
	}
	return docs, total, nil
}

// NextNumber allocates the next document number for a kind. Invoices and
// refunds draw from their own legal sequences.
func (r *GormDocumentRepository) NextNumber(ctx context.Context, companyID uuid.UUID, kind tax.DocumentKind) (string, error) {
	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq models.DocumentSequenceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ? AND kind = ?", companyID, kind.String()).
			First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = models.DocumentSequenceModel{CompanyID: companyID, Kind: kind.String(), NextValue: 1}
			if cerr := tx.Create(&seq).Error; cerr != nil {
				return cerr
			}
		} else if err != nil {
			return err
		}
		value = seq.NextValue
		seq.NextValue++
		return tx.Save(&seq).Error
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%06d", numberPrefix(kind), value), nil
}

func numberPrefix(kind tax.DocumentKind) string {
	switch kind {
	case tax.KindInvoice:
		return "INV"
	case tax.KindRefund:
		return "RINV"
	default:
		return "SO"
	}
}

// Delete removes a document within a company
func (r *GormDocumentRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Delete(&models.TaxDocumentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
