// Package investments implements holdings within portfolios, their prices and
// the ledger-derived position fields.
package investments

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const investmentColumns = `i.id, i.portfolio_id, i.symbol, i.name, i.type, i.sector, i.currency,
	i.quantity, i.average_cost, i.current_price, i.realized_gain, i.dividends,
	i.purchase_date, i.notes, i.price_updated_at, i.created_at, i.updated_at`

// Repository handles investment database operations
type Repository struct {
	db  database.Querier // folio.db - investments table
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new investment repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "investment").Logger(),
		now: time.Now,
	}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log, now: r.now}
}

// Create inserts inv with a zero position; the ledger fills the position in.
func (r *Repository) Create(inv *domain.Investment) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := r.now().UTC().Truncate(time.Second)
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO investments
		(id, portfolio_id, symbol, name, type, sector, currency, quantity, average_cost,
		 current_price, realized_gain, dividends, purchase_date, notes, price_updated_at,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, 0, 0, ?, ?, ?, ?, ?)`,
		inv.ID, inv.PortfolioID, inv.Symbol, inv.Name, string(inv.Type), inv.Sector, inv.Currency,
		inv.CurrentPrice, inv.PurchaseDate, inv.Notes, unixOrNil(inv.PriceUpdatedAt),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}
	return nil
}

// GetByID returns an investment regardless of owner.
func (r *Repository) GetByID(id string) (*domain.Investment, error) {
	return r.getOne("SELECT "+investmentColumns+" FROM investments i WHERE i.id = ?", id)
}

// GetForUser returns an investment held in one of userID's portfolios.
func (r *Repository) GetForUser(userID, id string) (*domain.Investment, error) {
	return r.getOne(`SELECT `+investmentColumns+` FROM investments i
		JOIN portfolios p ON p.id = i.portfolio_id
		WHERE i.id = ? AND p.user_id = ?`, id, userID)
}

func (r *Repository) getOne(query string, args ...interface{}) (*domain.Investment, error) {
	inv, err := scanInvestment(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("investment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	return inv, nil
}

// ListByPortfolio returns the investments of a portfolio ordered by symbol.
func (r *Repository) ListByPortfolio(portfolioID string) ([]domain.Investment, error) {
	return r.query("SELECT "+investmentColumns+" FROM investments i WHERE i.portfolio_id = ? ORDER BY i.symbol, i.created_at",
		portfolioID)
}

// ListForUser returns the user's investments, optionally limited to one portfolio.
// Investments in archived portfolios are excluded unless includeArchived is set.
func (r *Repository) ListForUser(userID, portfolioID string, includeArchived bool) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments i
		JOIN portfolios p ON p.id = i.portfolio_id
		WHERE p.user_id = ?`
	args := []interface{}{userID}
	if portfolioID != "" {
		query += " AND p.id = ?"
		args = append(args, portfolioID)
	}
	if !includeArchived {
		query += " AND p.is_archived = 0"
	}
	query += " ORDER BY i.symbol, i.created_at"
	return r.query(query, args...)
}

func (r *Repository) query(query string, args ...interface{}) ([]domain.Investment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments: %w", err)
	}
	defer rows.Close()

	investments := make([]domain.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}
	return investments, nil
}

// Update persists descriptive fields. Position fields are owned by the ledger.
func (r *Repository) Update(inv *domain.Investment) error {
	inv.UpdatedAt = r.now().UTC().Truncate(time.Second)
	res, err := r.db.Exec(`UPDATE investments
		SET symbol = ?, name = ?, type = ?, sector = ?, currency = ?, purchase_date = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		inv.Symbol, inv.Name, string(inv.Type), inv.Sector, inv.Currency, inv.PurchaseDate, inv.Notes,
		inv.UpdatedAt.Unix(), inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update investment: %w", err)
	}
	return requireAffected(res)
}

// UpdatePrice sets the current price of one investment.
func (r *Repository) UpdatePrice(id string, price float64, at time.Time) error {
	res, err := r.db.Exec("UPDATE investments SET current_price = ?, price_updated_at = ?, updated_at = ? WHERE id = ?",
		price, at.UTC().Unix(), at.UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	return requireAffected(res)
}

// UpdatePriceBySymbol sets the price of every investment with symbol in a
// portfolio and returns the number of rows changed.
func (r *Repository) UpdatePriceBySymbol(portfolioID, symbol string, price float64, at time.Time) (int64, error) {
	res, err := r.db.Exec(`UPDATE investments SET current_price = ?, price_updated_at = ?, updated_at = ?
		WHERE portfolio_id = ? AND symbol = ?`,
		price, at.UTC().Unix(), at.UTC().Unix(), portfolioID, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}
	return res.RowsAffected()
}

// Delete removes an investment and its transactions.
func (r *Repository) Delete(id string) error {
	res, err := r.db.Exec("DELETE FROM investments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete investment: %w", err)
	}
	return requireAffected(res)
}

// Totals returns the investment count and the current value of all holdings
// across all users.
func (r *Repository) Totals() (count int, value float64, err error) {
	err = r.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(quantity * current_price), 0) FROM investments").
		Scan(&count, &value)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to total investments: %w", err)
	}
	return count, domain.RoundMoney(value), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvestment(row rowScanner) (*domain.Investment, error) {
	var (
		inv          domain.Investment
		invType      string
		priceUpdated sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(&inv.ID, &inv.PortfolioID, &inv.Symbol, &inv.Name, &invType, &inv.Sector,
		&inv.Currency, &inv.Quantity, &inv.AverageCost, &inv.CurrentPrice, &inv.RealizedGain,
		&inv.Dividends, &inv.PurchaseDate, &inv.Notes, &priceUpdated, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	inv.Type = domain.InvestmentType(invType)
	if priceUpdated.Valid {
		t := time.Unix(priceUpdated.Int64, 0).UTC()
		inv.PriceUpdatedAt = &t
	}
	inv.CreatedAt = time.Unix(createdAt, 0).UTC()
	inv.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &inv, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("investment")
	}
	return nil
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}
