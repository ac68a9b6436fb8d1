// Package portfolios implements user-owned portfolios and their summaries.
package portfolios

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

const portfolioColumns = `id, user_id, name, description, currency, is_archived, created_at, updated_at`

// Repository handles portfolio database operations.
// Every read and write except ListActive and Count is scoped to the owning user.
type Repository struct {
	db  *sql.DB // folio.db - portfolios table
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
		now: time.Now,
	}
}

// Create inserts p. A duplicate name for the same user returns ErrConflict.
func (r *Repository) Create(p *domain.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := r.now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO portfolios
		(id, user_id, name, description, currency, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, p.Currency, boolToInt(p.IsArchived), now.Unix(), now.Unix(),
	)
	if database.IsUniqueViolation(err) {
		return domain.Conflictf("portfolio %q already exists", p.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// GetForUser returns the portfolio id owned by userID. Portfolios owned by other
// users are reported as not found.
func (r *Repository) GetForUser(userID, id string) (*domain.Portfolio, error) {
	row := r.db.QueryRow("SELECT "+portfolioColumns+" FROM portfolios WHERE id = ? AND user_id = ?", id, userID)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("portfolio")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// List returns the user's portfolios ordered by name.
func (r *Repository) List(userID string, includeArchived bool) ([]domain.Portfolio, error) {
	query := "SELECT " + portfolioColumns + " FROM portfolios WHERE user_id = ?"
	if !includeArchived {
		query += " AND is_archived = 0"
	}
	query += " ORDER BY name COLLATE NOCASE"
	return r.query(query, userID)
}

// ListActive returns every non-archived portfolio across all users.
func (r *Repository) ListActive() ([]domain.Portfolio, error) {
	return r.query("SELECT " + portfolioColumns + " FROM portfolios WHERE is_archived = 0 ORDER BY user_id, name")
}

func (r *Repository) query(query string, args ...interface{}) ([]domain.Portfolio, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]domain.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return portfolios, nil
}

// Update persists name, description, currency and archive flag.
func (r *Repository) Update(p *domain.Portfolio) error {
	p.UpdatedAt = r.now().UTC().Truncate(time.Second)
	res, err := r.db.Exec(`UPDATE portfolios
		SET name = ?, description = ?, currency = ?, is_archived = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		p.Name, p.Description, p.Currency, boolToInt(p.IsArchived), p.UpdatedAt.Unix(), p.ID, p.UserID,
	)
	if database.IsUniqueViolation(err) {
		return domain.Conflictf("portfolio %q already exists", p.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a portfolio; investments, transactions and snapshots cascade.
func (r *Repository) Delete(userID, id string) error {
	res, err := r.db.Exec("DELETE FROM portfolios WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	r.log.Info().Str("portfolio_id", id).Msg("Portfolio deleted")
	return nil
}

// Count returns the number of portfolios across all users.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM portfolios").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count portfolios: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (*domain.Portfolio, error) {
	var (
		p         domain.Portfolio
		archived  int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Currency, &archived,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.IsArchived = archived == 1
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("portfolio")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
