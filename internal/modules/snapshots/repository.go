// Package snapshots records daily portfolio values for time-based reports.
package snapshots

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// DailyTotal is the sum of all matching portfolio snapshots on one date.
type DailyTotal struct {
	Date       string  `json:"date"`
	TotalValue float64 `json:"total_value"`
	TotalCost  float64 `json:"total_cost"`
}

// Repository handles portfolio_snapshots database operations
type Repository struct {
	db  *sql.DB // folio.db - portfolio_snapshots table
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// Upsert stores s, replacing any snapshot for the same portfolio and date.
func (r *Repository) Upsert(s domain.Snapshot) error {
	_, err := r.db.Exec(`INSERT INTO portfolio_snapshots (portfolio_id, date, total_value, total_cost, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			total_value = excluded.total_value,
			total_cost = excluded.total_cost,
			recorded_at = excluded.recorded_at`,
		s.PortfolioID, s.Date, s.TotalValue, s.TotalCost, s.RecordedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// ListByPortfolio returns the snapshots of one portfolio between from and to
// (inclusive, either may be empty) in date order.
func (r *Repository) ListByPortfolio(portfolioID, from, to string) ([]domain.Snapshot, error) {
	query := "SELECT portfolio_id, date, total_value, total_cost, recorded_at FROM portfolio_snapshots WHERE portfolio_id = ?"
	args := []interface{}{portfolioID}
	query, args = dateRange(query, args, "date", from, to)
	query += " ORDER BY date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]domain.Snapshot, 0)
	for rows.Next() {
		var (
			s          domain.Snapshot
			recordedAt int64
		)
		if err := rows.Scan(&s.PortfolioID, &s.Date, &s.TotalValue, &s.TotalCost, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.RecordedAt = time.Unix(recordedAt, 0).UTC()
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// DailyTotals sums the user's snapshots per date, optionally for one portfolio.
// Archived portfolios are included so history does not change when archiving.
func (r *Repository) DailyTotals(userID, portfolioID, from, to string) ([]DailyTotal, error) {
	query := `SELECT s.date, SUM(s.total_value), SUM(s.total_cost)
		FROM portfolio_snapshots s
		JOIN portfolios p ON p.id = s.portfolio_id
		WHERE p.user_id = ?`
	args := []interface{}{userID}
	if portfolioID != "" {
		query += " AND p.id = ?"
		args = append(args, portfolioID)
	}
	query, args = dateRange(query, args, "s.date", from, to)
	query += " GROUP BY s.date ORDER BY s.date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	totals := make([]DailyTotal, 0)
	for rows.Next() {
		var d DailyTotal
		if err := rows.Scan(&d.Date, &d.TotalValue, &d.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		d.TotalValue = domain.RoundMoney(d.TotalValue)
		d.TotalCost = domain.RoundMoney(d.TotalCost)
		totals = append(totals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily totals: %w", err)
	}
	return totals, nil
}

// Count returns the number of stored snapshots.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM portfolio_snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

func dateRange(query string, args []interface{}, column, from, to string) (string, []interface{}) {
	var conds []string
	if from != "" {
		conds = append(conds, column+" >= ?")
		args = append(args, from)
	}
	if to != "" {
		conds = append(conds, column+" <= ?")
		args = append(args, to)
	}
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
	}
	return query, args
}
