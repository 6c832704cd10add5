package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateResolver maps percentages returned by the remote service onto host
// tax rate records. Rates are created lazily: the first time a percentage
// is seen it is cloned from the zero-percent template of its tax class, so
// the template's accounting configuration carries over.
type RateResolver struct {
	rates  tax.TaxRateRepository
	logger *zap.Logger
}

// NewRateResolver creates a new RateResolver
func NewRateResolver(rates tax.TaxRateRepository, logger *zap.Logger) *RateResolver {
	return &RateResolver{
		rates:  rates,
		logger: logger,
	}
}

// Resolve returns the active host rate for a remote percentage, reactivating
// an archived rate or cloning the template as needed. Concurrent first-sight
// creation is resolved through the unique constraint: the loser of the race
// re-reads the winner's row.
func (r *RateResolver) Resolve(ctx context.Context, companyID uuid.UUID, percent decimal.Decimal, expensed bool) (*tax.TaxRate, error) {
	percent = percent.Round(5)
	if percent.IsNegative() {
		percent = percent.Abs()
	}

	existing, err := r.rates.FindByPercent(ctx, companyID, percent, expensed)
	if err == nil {
		return r.ensureActive(ctx, existing)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("resolve tax rate: %w", err)
	}

	template, err := r.rates.FindTemplate(ctx, companyID, expensed)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(
				"RATE_TEMPLATE_MISSING",
				fmt.Sprintf("No %s template rate is configured; create the zero-percent rate first", tax.RateName(decimal.Zero, expensed)),
			)
		}
		return nil, fmt.Errorf("resolve tax rate template: %w", err)
	}

	clone, err := template.CloneForPercent(percent)
	if err != nil {
		return nil, err
	}

	if err := r.rates.Save(ctx, clone); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost a concurrent creation race; the winner's row is
			// authoritative.
			winner, ferr := r.rates.FindByPercent(ctx, companyID, percent, expensed)
			if ferr != nil {
				return nil, fmt.Errorf("resolve tax rate after conflict: %w", ferr)
			}
			return r.ensureActive(ctx, winner)
		}
		return nil, fmt.Errorf("save tax rate: %w", err)
	}

	r.logger.Info("created tax rate",
		zap.String("name", clone.Name),
		zap.String("percent", percent.String()),
		zap.Bool("expensed", expensed),
	)

	return clone, nil
}

func (r *RateResolver) ensureActive(ctx context.Context, rate *tax.TaxRate) (*tax.TaxRate, error) {
	if rate.Active {
		return rate, nil
	}
	rate.Reactivate()
	if err := r.rates.Save(ctx, rate); err != nil {
		return nil, fmt.Errorf("reactivate tax rate: %w", err)
	}
	r.logger.Info("reactivated tax rate", zap.String("name", rate.Name))
	return rate, nil
}
