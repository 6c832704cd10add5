package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Address is a value object representing a postal address used for tax
// sourcing. It carries an optional validation timestamp: an address is
// "validated" once an address-validation workflow has confirmed it against
// the carrier database, and strict tax configurations refuse to compute
// taxes for unvalidated addresses.
type Address struct {
	street      string
	street2     string
	city        string
	zip         string
	stateCode   string
	countryCode string
	validatedAt *time.Time
}

// AddressOption is a functional option for configuring Address
type AddressOption func(*Address)

// WithStreet2 sets the secondary street line
func WithStreet2(street2 string) AddressOption {
	return func(a *Address) {
		a.street2 = strings.TrimSpace(street2)
	}
}

// WithValidatedAt marks the address as validated at the given time
func WithValidatedAt(t time.Time) AddressOption {
	return func(a *Address) {
		a.validatedAt = &t
	}
}

// NewAddress creates a new Address. City, zip and country are required;
// state is required for countries that source taxes at state level but is
// not enforced here.
func NewAddress(street, city, zip, stateCode, countryCode string, opts ...AddressOption) (Address, error) {
	street = strings.TrimSpace(street)
	city = strings.TrimSpace(city)
	zip = strings.TrimSpace(zip)
	stateCode = strings.ToUpper(strings.TrimSpace(stateCode))
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))

	if city == "" {
		return Address{}, errors.New("address city cannot be empty")
	}
	if zip == "" {
		return Address{}, errors.New("address zip cannot be empty")
	}
	if countryCode == "" {
		return Address{}, errors.New("address country cannot be empty")
	}
	if len(countryCode) != 2 {
		return Address{}, errors.New("address country must be a 2-letter ISO code")
	}

	addr := Address{
		street:      street,
		city:        city,
		zip:         zip,
		stateCode:   stateCode,
		countryCode: countryCode,
	}
	for _, opt := range opts {
		opt(&addr)
	}
	return addr, nil
}

// Street returns the primary street line
func (a Address) Street() string { return a.street }

// Street2 returns the secondary street line
func (a Address) Street2() string { return a.street2 }

// City returns the city
func (a Address) City() string { return a.city }

// Zip returns the postal code
func (a Address) Zip() string { return a.zip }

// StateCode returns the state/province code
func (a Address) StateCode() string { return a.stateCode }

// CountryCode returns the 2-letter ISO country code
func (a Address) CountryCode() string { return a.countryCode }

// IsZero returns true if the address is the zero value
func (a Address) IsZero() bool {
	return a.city == "" && a.zip == "" && a.countryCode == ""
}

// IsValidated returns true if the address passed an address-validation check
func (a Address) IsValidated() bool {
	return a.validatedAt != nil
}

// ValidatedAt returns the validation timestamp, or nil if never validated
func (a Address) ValidatedAt() *time.Time {
	return a.validatedAt
}

// MarkValidated returns a copy of the address validated at the given time
func (a Address) MarkValidated(t time.Time) Address {
	a.validatedAt = &t
	return a
}

type addressJSON struct {
	Street      string     `json:"street,omitempty"`
	Street2     string     `json:"street2,omitempty"`
	City        string     `json:"city,omitempty"`
	Zip         string     `json:"zip,omitempty"`
	StateCode   string     `json:"state_code,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{
		Street:      a.street,
		Street2:     a.street2,
		City:        a.city,
		Zip:         a.zip,
		StateCode:   a.stateCode,
		CountryCode: a.countryCode,
		ValidatedAt: a.validatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Address) UnmarshalJSON(data []byte) error {
	var raw addressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.street = raw.Street
	a.street2 = raw.Street2
	a.city = raw.City
	a.zip = raw.Zip
	a.stateCode = raw.StateCode
	a.countryCode = raw.CountryCode
	a.validatedAt = raw.ValidatedAt
	return nil
}

// Value implements driver.Valuer for database storage
func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into Address", value)
	}
}

// String returns a single-line rendering of the address
func (a Address) String() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.street, a.street2, a.city, a.stateCode, a.zip, a.countryCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
