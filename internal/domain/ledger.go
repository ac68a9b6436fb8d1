package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Position is the state of an investment after replaying its transactions
// with the average-cost method.
type Position struct {
	Quantity     float64
	AverageCost  float64
	RealizedGain float64
	Dividends    float64
}

// SortTransactions orders transactions by date, then creation time, then
// insertion order. Transactions without a Seq keep their relative order.
func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].TransactionDate != txs[j].TransactionDate {
			return txs[i].TransactionDate < txs[j].TransactionDate
		}
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].Seq < txs[j].Seq
	})
}

// Replay folds transactions into a Position. The input slice is sorted in place.
// A sell of more units than held at that point returns ErrInsufficientQuantity.
func Replay(txs []Transaction) (Position, error) {
	SortTransactions(txs)

	quantity := decimal.Zero
	basis := decimal.Zero
	realized := decimal.Zero
	dividends := decimal.Zero

	for _, tx := range txs {
		qty := Dec(tx.Quantity)
		price := Dec(tx.Price)
		fees := Dec(tx.Fees)

		switch tx.Type {
		case TransactionBuy:
			basis = basis.Add(qty.Mul(price)).Add(fees)
			quantity = quantity.Add(qty)

		case TransactionSell:
			if qty.GreaterThan(quantity) {
				return Position{}, fmt.Errorf("sell of %s on %s exceeds held %s: %w",
					qty.String(), tx.TransactionDate, quantity.String(), ErrInsufficientQuantity)
			}
			avg := averageCost(basis, quantity)
			realized = realized.Add(qty.Mul(price.Sub(avg))).Sub(fees)
			quantity = quantity.Sub(qty)
			if quantity.IsZero() {
				basis = decimal.Zero
			} else {
				basis = basis.Sub(qty.Mul(avg))
			}

		case TransactionDividend:
			dividends = dividends.Add(qty.Mul(price)).Sub(fees)

		case TransactionFee:
			realized = realized.Sub(qty.Mul(price)).Sub(fees)

		case TransactionSplit:
			// Basis is unchanged; only the unit count moves.
			quantity = quantity.Mul(qty)

		default:
			return Position{}, NewValidationError("type", "unknown transaction type %q", tx.Type)
		}
	}

	return Position{
		Quantity:     quantity.Round(8).InexactFloat64(),
		AverageCost:  averageCost(basis, quantity).Round(6).InexactFloat64(),
		RealizedGain: Money(realized),
		Dividends:    Money(dividends),
	}, nil
}

func averageCost(basis, quantity decimal.Decimal) decimal.Decimal {
	if quantity.IsZero() {
		return decimal.Zero
	}
	return basis.Div(quantity)
}

// Amount is the cash value of a transaction: buys include fees, sells and
// dividends are net of fees, fees are the total charge, splits carry no cash.
func (t Transaction) Amount() float64 {
	gross := Dec(t.Quantity).Mul(Dec(t.Price))
	fees := Dec(t.Fees)
	switch t.Type {
	case TransactionBuy, TransactionFee:
		return Money(gross.Add(fees))
	case TransactionSell, TransactionDividend:
		return Money(gross.Sub(fees))
	default:
		return 0
	}
}

// Validate checks a transaction's fields independent of ledger state.
func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return NewValidationError("type", "must be one of buy, sell, dividend, fee, split")
	}
	if t.Quantity <= 0 {
		if t.Type == TransactionSplit {
			return NewValidationError("quantity", "split ratio must be positive")
		}
		return NewValidationError("quantity", "must be positive")
	}
	if t.Price < 0 {
		return NewValidationError("price", "must not be negative")
	}
	if t.Fees < 0 {
		return NewValidationError("fees", "must not be negative")
	}
	if _, err := ParseDate("transaction_date", t.TransactionDate); err != nil {
		return err
	}
	return nil
}
