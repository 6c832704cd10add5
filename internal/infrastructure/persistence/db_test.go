package persistence

import (
	"testing"

	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/erp/taxconnector/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testDB opens an in-memory sqlite database with the full schema. A single
// connection is enforced so every query sees the same in-memory database.
func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func testAddress(t *testing.T) valueobject.Address {
	t.Helper()
	addr, err := valueobject.NewAddress("1 Main St", "Austin", "73301", "TX", "US")
	require.NoError(t, err)
	return addr
}

func testDocument(t *testing.T, companyID uuid.UUID) *tax.Document {
	t.Helper()
	doc, err := tax.NewDocument(companyID, "SO/000001", tax.KindOrder, uuid.New(), "Acme Corp", valueobject.USD)
	require.NoError(t, err)
	doc.UserName = "jdoe"
	doc.SetShipFrom(testAddress(t))
	require.NoError(t, doc.SetShipTo(testAddress(t)))

	_, err = doc.AddLine(uuid.New(), "WIDGET", "012345678905", "", "Blue widget",
		decimal.NewFromInt(2), decimal.NewFromInt(100), decimal.NewFromInt(60),
		decimal.Zero, []tax.AppliedTax{{
			TaxRateID: uuid.New(),
			Name:      "AVT-Sales 8.25%",
			Percent:   decimal.NewFromFloat(8.25),
			IsRemote:  true,
		}})
	require.NoError(t, err)
	return doc
}
