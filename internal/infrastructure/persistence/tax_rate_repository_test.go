package persistence

import (
	"context"
	"testing"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxRateSaveAndFindByPercent(t *testing.T) {
	db := testDB(t)
	repo := NewGormTaxRateRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	template := tax.NewTaxRateTemplate(companyID, false)
	require.NoError(t, repo.Save(ctx, template))

	rate, err := template.CloneForPercent(decimal.NewFromFloat(8.25))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, rate))

	loaded, err := repo.FindByPercent(ctx, companyID, decimal.NewFromFloat(8.25), false)
	require.NoError(t, err)
	assert.Equal(t, rate.ID, loaded.ID)
	assert.Equal(t, "AVT-Sales 8.25%", loaded.Name)
	assert.True(t, loaded.Active)

	_, err = repo.FindByPercent(ctx, companyID, decimal.NewFromFloat(8.25), true)
	require.ErrorIs(t, err, shared.ErrNotFound, "tax classes are looked up separately")
}

func TestTaxRateDuplicatePercentRejected(t *testing.T) {
	db := testDB(t)
	repo := NewGormTaxRateRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	template := tax.NewTaxRateTemplate(companyID, false)
	first, err := template.CloneForPercent(decimal.NewFromFloat(8.25))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	// Same percentage and class under a different ID violates the unique index
	second, err := template.CloneForPercent(decimal.NewFromFloat(8.25))
	require.NoError(t, err)
	require.ErrorIs(t, repo.Save(ctx, second), shared.ErrAlreadyExists)

	// The use-tax class is a separate row
	useTemplate := tax.NewTaxRateTemplate(companyID, true)
	useRate, err := useTemplate.CloneForPercent(decimal.NewFromFloat(8.25))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, useRate))
}

func TestTaxRateUpdateExisting(t *testing.T) {
	db := testDB(t)
	repo := NewGormTaxRateRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	template := tax.NewTaxRateTemplate(companyID, false)
	rate, err := template.CloneForPercent(decimal.NewFromFloat(7))
	require.NoError(t, err)
	rate.Active = false
	require.NoError(t, repo.Save(ctx, rate))

	// Archived rates are still found so they can be reactivated
	loaded, err := repo.FindByPercent(ctx, companyID, decimal.NewFromInt(7), false)
	require.NoError(t, err)
	assert.False(t, loaded.Active)

	loaded.Reactivate()
	require.NoError(t, repo.Save(ctx, loaded))

	reloaded, err := repo.FindByPercent(ctx, companyID, decimal.NewFromInt(7), false)
	require.NoError(t, err)
	assert.True(t, reloaded.Active)
	assert.Equal(t, loaded.ID, reloaded.ID)
}

func TestTaxRateFindTemplate(t *testing.T) {
	db := testDB(t)
	repo := NewGormTaxRateRepository(db.DB)
	companyID := uuid.New()
	ctx := context.Background()

	_, err := repo.FindTemplate(ctx, companyID, false)
	require.ErrorIs(t, err, shared.ErrNotFound)

	template := tax.NewTaxRateTemplate(companyID, false)
	require.NoError(t, repo.Save(ctx, template))

	loaded, err := repo.FindTemplate(ctx, companyID, false)
	require.NoError(t, err)
	assert.Equal(t, template.ID, loaded.ID)
	assert.Equal(t, "AVT-Sales 0%", loaded.Name)
}
