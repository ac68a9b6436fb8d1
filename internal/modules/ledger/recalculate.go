package ledger

import (
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
)

// Recalculate replays the investment's transactions and stores the resulting
// position on the investment row. Run it inside the same SQL transaction as the
// mutation that triggered it so a rejected ledger leaves nothing behind.
func (r *Repository) Recalculate(investmentID string) (domain.Position, error) {
	txs, err := r.ListByInvestment(investmentID)
	if err != nil {
		return domain.Position{}, err
	}

	pos, err := domain.Replay(txs)
	if err != nil {
		return domain.Position{}, err
	}

	res, err := r.db.Exec(`UPDATE investments
		SET quantity = ?, average_cost = ?, realized_gain = ?, dividends = ?, updated_at = ?
		WHERE id = ?`,
		pos.Quantity, pos.AverageCost, pos.RealizedGain, pos.Dividends,
		r.now().UTC().Unix(), investmentID,
	)
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to store position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.Position{}, domain.NotFoundf("investment")
	}

	r.log.Debug().
		Str("investment_id", investmentID).
		Int("transactions", len(txs)).
		Float64("quantity", pos.Quantity).
		Float64("average_cost", pos.AverageCost).
		Msg("Position recalculated")
	return pos, nil
}

// today returns the current date in DateLayout.
func (r *Repository) today() string {
	return r.now().UTC().Format(domain.DateLayout)
}

// RecordInitialBuy records the opening purchase of a newly created investment.
func (r *Repository) RecordInitialBuy(inv *domain.Investment, quantity, price float64) (*domain.Transaction, error) {
	date := inv.PurchaseDate
	if date == "" {
		date = r.today()
	}
	t := &domain.Transaction{
		InvestmentID:    inv.ID,
		Type:            domain.TransactionBuy,
		Quantity:        quantity,
		Price:           price,
		TransactionDate: date,
		Notes:           "Initial purchase",
		CreatedAt:       r.now().UTC().Truncate(time.Second),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := r.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}
