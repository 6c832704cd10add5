package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerSaveAndFind(t *testing.T) {
	db := testDB(t)
	repo := NewGormCustomerRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	customer, err := tax.NewCustomer(companyID, "Acme Corp")
	require.NoError(t, err)
	customer.Code = "CUST-9"
	customer.VATID = "US123456"
	customer.InvoiceAddress = testAddress(t)
	_, err = customer.AddExemption("US", "TX", "EX-77", "RESALE", false)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, customer))

	loaded, err := repo.FindByID(ctx, companyID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", loaded.Name)
	assert.Equal(t, "CUST-9", loaded.Code)
	assert.Equal(t, "US123456", loaded.VATID)
	assert.Equal(t, "Austin", loaded.InvoiceAddress.City())
	require.Len(t, loaded.Exemptions, 1)
	assert.Equal(t, "EX-77", loaded.Exemptions[0].ExemptionNumber)

	_, err = repo.FindByID(ctx, uuid.New(), customer.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCustomerSaveUpdates(t *testing.T) {
	db := testDB(t)
	repo := NewGormCustomerRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	customer, err := tax.NewCustomer(companyID, "Acme Corp")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, customer))

	customer.GenerateCode()
	_, err = customer.AddExemption("CA", "", "CA-1", "G", true)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, customer))

	loaded, err := repo.FindByID(ctx, companyID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.Code, loaded.Code)
	require.Len(t, loaded.Exemptions, 1)
	assert.True(t, loaded.Exemptions[0].CountryWide)
}

func TestRecordCredentialExpiration(t *testing.T) {
	db := testDB(t)
	repo := NewGormCredentialStatusRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	first := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordCredentialExpiration(ctx, companyID, first))

	// A later check overwrites the stored expiration instead of adding a row
	second := time.Date(2027, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordCredentialExpiration(ctx, companyID, second))

	var records []models.CredentialStatusModel
	require.NoError(t, db.DB.Where("company_id = ?", companyID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, 2027, records[0].ExpiresAt.Year())
}
