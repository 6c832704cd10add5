package tax

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Settings is the per-company behavioral configuration of the tax
// integration. Connection details (credentials, endpoint, protocol) live in
// the infrastructure adapter config; these flags steer the application
// services.
type Settings struct {
	// CompanyCode identifies the company on the remote tax service.
	CompanyCode string
	// Disabled turns the integration off entirely; compute calls return
	// no result and documents keep their local estimates.
	Disabled bool
	// DisableDocumentRecording suppresses committing: documents are still
	// quoted but never recorded remotely.
	DisableDocumentRecording bool
	// AutoGenerateCustomerCode assigns a customer code on the fly instead
	// of failing when one is missing.
	AutoGenerateCustomerCode bool
	// ForceAddressValidation refuses confirmation and computation for
	// documents whose origin or destination address was never validated.
	ForceAddressValidation bool
	// AddressValidationDelegated trusts the remote service to validate
	// addresses during calculation, so no local validation timestamps are
	// required even under ForceAddressValidation.
	AddressValidationDelegated bool
	// AddressValidationCountries limits validation and voiding to
	// destinations in these countries. Empty means US and Canada.
	AddressValidationCountries []string
	// UseUPC renders item codes as "upc:<barcode>" when available.
	UseUPC bool
	// LineLevelGranularity requests one remote calculation per line instead
	// of one per document. Quote-only legacy mode.
	LineLevelGranularity bool
}

// DefaultSettings returns settings with conservative defaults
func DefaultSettings() Settings {
	return Settings{
		AddressValidationCountries: []string{"US", "CA"},
	}
}

// CountryCovered reports whether address validation and remote voiding
// apply to the given country
func (s Settings) CountryCovered(countryCode string) bool {
	countries := s.AddressValidationCountries
	if len(countries) == 0 {
		countries = []string{"US", "CA"}
	}
	for _, c := range countries {
		if c == countryCode {
			return true
		}
	}
	return false
}

// CredentialStatusStore persists the outcome of credential checks so
// operators can see upcoming license expirations.
type CredentialStatusStore interface {
	RecordCredentialExpiration(ctx context.Context, companyID uuid.UUID, expiresAt time.Time) error
}
