// Package ledger stores investment transactions and derives positions from them.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is a transaction joined with the investment and portfolio it belongs to.
type Entry struct {
	domain.Transaction
	Symbol      string  `json:"symbol"`
	PortfolioID string  `json:"portfolio_id"`
	Amount      float64 `json:"amount"`
}

// Filter narrows transaction listings. UserID is always required by callers
// serving HTTP requests so results stay within the owner's data.
type Filter struct {
	UserID       string
	PortfolioID  string
	InvestmentID string
	Type         domain.TransactionType
	From         string // inclusive YYYY-MM-DD
	To           string // inclusive YYYY-MM-DD
	Limit        int    // 0 for no limit
	Offset       int
}

const entrySelect = `SELECT t.id, t.investment_id, t.type, t.quantity, t.price, t.fees,
	t.transaction_date, t.notes, t.created_at, t.rowid, i.symbol, i.portfolio_id
	FROM transactions t
	JOIN investments i ON i.id = t.investment_id
	JOIN portfolios p ON p.id = i.portfolio_id`

// Repository handles transaction database operations
type Repository struct {
	db  database.Querier // folio.db - transactions table
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new transaction repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
		now: time.Now,
	}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log, now: r.now}
}

// Create inserts t, assigning an id and creation time.
func (r *Repository) Create(t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC().Truncate(time.Second)
	}
	res, err := r.db.Exec(`INSERT INTO transactions
		(id, investment_id, type, quantity, price, fees, transaction_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.InvestmentID, string(t.Type), t.Quantity, t.Price, t.Fees, t.TransactionDate,
		t.Notes, t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		t.Seq = seq
	}
	return nil
}

// Update persists the editable fields of t.
func (r *Repository) Update(t *domain.Transaction) error {
	res, err := r.db.Exec(`UPDATE transactions
		SET type = ?, quantity = ?, price = ?, fees = ?, transaction_date = ?, notes = ?
		WHERE id = ?`,
		string(t.Type), t.Quantity, t.Price, t.Fees, t.TransactionDate, t.Notes, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a transaction.
func (r *Repository) Delete(id string) error {
	res, err := r.db.Exec("DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireAffected(res)
}

// GetForUser returns a transaction whose investment belongs to one of userID's portfolios.
func (r *Repository) GetForUser(userID, id string) (*Entry, error) {
	row := r.db.QueryRow(entrySelect+" WHERE t.id = ? AND p.user_id = ?", id, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return e, nil
}

// ListByInvestment returns every transaction of an investment in ledger order.
func (r *Repository) ListByInvestment(investmentID string) ([]domain.Transaction, error) {
	entries, _, err := r.list(Filter{InvestmentID: investmentID}, "t.transaction_date, t.created_at, t.rowid", false)
	if err != nil {
		return nil, err
	}
	txs := make([]domain.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = e.Transaction
	}
	return txs, nil
}

// List returns matching entries newest first and the total match count.
func (r *Repository) List(f Filter) ([]Entry, int, error) {
	return r.list(f, "t.transaction_date DESC, t.created_at DESC, t.rowid DESC", true)
}

func (r *Repository) list(f Filter, orderBy string, withTotal bool) ([]Entry, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.UserID != "" {
		conds = append(conds, "p.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.PortfolioID != "" {
		conds = append(conds, "i.portfolio_id = ?")
		args = append(args, f.PortfolioID)
	}
	if f.InvestmentID != "" {
		conds = append(conds, "t.investment_id = ?")
		args = append(args, f.InvestmentID)
	}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.From != "" {
		conds = append(conds, "t.transaction_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "t.transaction_date <= ?")
		args = append(args, f.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	total := 0
	if withTotal {
		countQuery := `SELECT COUNT(*) FROM transactions t
			JOIN investments i ON i.id = t.investment_id
			JOIN portfolios p ON p.id = i.portfolio_id` + where
		if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
		}
	}

	query := entrySelect + where + " ORDER BY " + orderBy
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating transactions: %w", err)
	}
	if !withTotal {
		total = len(entries)
	}
	return entries, total, nil
}

// Count returns the number of transactions across all users.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e         Entry
		txType    string
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.InvestmentID, &txType, &e.Quantity, &e.Price, &e.Fees,
		&e.TransactionDate, &e.Notes, &createdAt, &e.Seq, &e.Symbol, &e.PortfolioID); err != nil {
		return nil, err
	}
	e.Type = domain.TransactionType(txType)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.Amount = e.Transaction.Amount()
	return &e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("transaction")
	}
	return nil
}
