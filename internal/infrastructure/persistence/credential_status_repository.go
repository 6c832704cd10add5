package persistence

import (
	"context"
	"time"

	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialStatusRepository implements tax.CredentialStatusStore using GORM
type GormCredentialStatusRepository struct {
	db *gorm.DB
}

var _ tax.CredentialStatusStore = (*GormCredentialStatusRepository)(nil)

// NewGormCredentialStatusRepository creates a new GormCredentialStatusRepository
func NewGormCredentialStatusRepository(db *gorm.DB) *GormCredentialStatusRepository {
	return &GormCredentialStatusRepository{db: db}
}

// RecordCredentialExpiration upserts the latest reported expiration
func (r *GormCredentialStatusRepository) RecordCredentialExpiration(ctx context.Context, companyID uuid.UUID, expiresAt time.Time) error {
	record := models.CredentialStatusModel{
		CompanyID: companyID,
		ExpiresAt: expiresAt,
		CheckedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
}
