package testing

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Fixture helpers insert rows with raw SQL so module tests can seed data
// without importing the repositories they are testing.

// fixtureTime is the created_at used for seeded rows.
var fixtureTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// SeedUser inserts a user with a placeholder password hash and returns its id.
func SeedUser(t *testing.T, db *sql.DB, username, role string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO users
		(id, email, username, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 'x', ?, 1, ?, ?)`,
		id, username+"@example.com", username, role, fixtureTime.Unix(), fixtureTime.Unix())
	if err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return id
}

// SeedPortfolio inserts a portfolio owned by userID and returns its id.
func SeedPortfolio(t *testing.T, db *sql.DB, userID, name string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO portfolios
		(id, user_id, name, currency, created_at, updated_at)
		VALUES (?, ?, ?, 'EUR', ?, ?)`,
		id, userID, name, fixtureTime.Unix(), fixtureTime.Unix())
	if err != nil {
		t.Fatalf("Failed to seed portfolio %s: %v", name, err)
	}
	return id
}

// InvestmentFixture describes a seeded investment. Zero values get defaults.
type InvestmentFixture struct {
	Symbol       string
	Type         string
	Sector       string
	Quantity     float64
	AverageCost  float64
	CurrentPrice float64
	PurchaseDate string
}

// SeedInvestment inserts an investment without transactions and returns its id.
func SeedInvestment(t *testing.T, db *sql.DB, portfolioID string, f InvestmentFixture) string {
	t.Helper()

	if f.Type == "" {
		f.Type = "stock"
	}
	if f.PurchaseDate == "" {
		f.PurchaseDate = "2024-01-02"
	}

	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO investments
		(id, portfolio_id, symbol, name, type, sector, currency, quantity, average_cost,
		 current_price, purchase_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'EUR', ?, ?, ?, ?, ?, ?)`,
		id, portfolioID, f.Symbol, f.Symbol, f.Type, f.Sector, f.Quantity, f.AverageCost,
		f.CurrentPrice, f.PurchaseDate, fixtureTime.Unix(), fixtureTime.Unix())
	if err != nil {
		t.Fatalf("Failed to seed investment %s: %v", f.Symbol, err)
	}
	return id
}

// SeedTransaction inserts a transaction row as-is (no ledger recompute) and returns its id.
func SeedTransaction(t *testing.T, db *sql.DB, investmentID, txType string, quantity, price, fees float64, date string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO transactions
		(id, investment_id, type, quantity, price, fees, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, investmentID, txType, quantity, price, fees, date, fixtureTime.Unix())
	if err != nil {
		t.Fatalf("Failed to seed %s transaction: %v", txType, err)
	}
	return id
}

// SeedSnapshot upserts a portfolio snapshot.
func SeedSnapshot(t *testing.T, db *sql.DB, portfolioID, date string, value, cost float64) {
	t.Helper()

	_, err := db.Exec(`INSERT OR REPLACE INTO portfolio_snapshots
		(portfolio_id, date, total_value, total_cost, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		portfolioID, date, value, cost, fixtureTime.Unix())
	if err != nil {
		t.Fatalf("Failed to seed snapshot %s: %v", date, err)
	}
}
