// Package transactions records buys, sells, dividends, fees and splits against
// investments and keeps each investment's position in step with its ledger.
package transactions

import (
	"database/sql"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// InvestmentGetter resolves an investment owned by a user.
type InvestmentGetter interface {
	GetForUser(userID, id string) (*domain.Investment, error)
}

// Recalculator rebuilds an investment position inside a SQL transaction.
type Recalculator interface {
	Recalculate(tx *sql.Tx, investmentID string) (domain.Position, error)
}

// Input is the payload for recording a transaction. Quantity defaults to 1 for
// dividends and fees so Price can carry the total amount.
type Input struct {
	Type            domain.TransactionType `json:"type"`
	Quantity        float64                `json:"quantity"`
	Price           float64                `json:"price"`
	Fees            float64                `json:"fees"`
	TransactionDate string                 `json:"transaction_date"`
	Notes           string                 `json:"notes"`
}

// UpdateInput carries optional changes to a recorded transaction.
type UpdateInput struct {
	Type            *domain.TransactionType `json:"type"`
	Quantity        *float64                `json:"quantity"`
	Price           *float64                `json:"price"`
	Fees            *float64                `json:"fees"`
	TransactionDate *string                 `json:"transaction_date"`
	Notes           *string                 `json:"notes"`
}

// Service implements transaction rules.
type Service struct {
	db          *sql.DB
	ledger      *ledger.Repository
	investments InvestmentGetter
	recalc      Recalculator
	events      *events.Manager
	log         zerolog.Logger
	now         func() time.Time
}

// NewService creates a new transaction service
func NewService(
	db *sql.DB,
	ledgerRepo *ledger.Repository,
	investments InvestmentGetter,
	recalc Recalculator,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:          db,
		ledger:      ledgerRepo,
		investments: investments,
		recalc:      recalc,
		events:      eventManager,
		log:         log.With().Str("service", "transactions").Logger(),
		now:         time.Now,
	}
}

// List returns the user's transactions matching f. f.UserID is overwritten.
func (s *Service) List(userID string, f ledger.Filter) ([]ledger.Entry, int, error) {
	f.UserID = userID
	if f.Type != "" && !f.Type.IsValid() {
		return nil, 0, domain.NewValidationError("type", "must be one of buy, sell, dividend, fee, split")
	}
	if f.From != "" {
		if _, err := domain.ParseDate("from", f.From); err != nil {
			return nil, 0, err
		}
	}
	if f.To != "" {
		if _, err := domain.ParseDate("to", f.To); err != nil {
			return nil, 0, err
		}
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.ledger.List(f)
}

// ListForInvestment returns every transaction of an investment, newest first.
func (s *Service) ListForInvestment(userID, investmentID string) ([]ledger.Entry, error) {
	if _, err := s.investments.GetForUser(userID, investmentID); err != nil {
		return nil, err
	}
	entries, _, err := s.ledger.List(ledger.Filter{UserID: userID, InvestmentID: investmentID})
	return entries, err
}

// Get returns one transaction.
func (s *Service) Get(userID, id string) (*ledger.Entry, error) {
	return s.ledger.GetForUser(userID, id)
}

// Create records a transaction and recomputes the investment. A ledger that
// would sell more than is held is rejected and nothing is stored.
func (s *Service) Create(userID, investmentID string, in Input) (*ledger.Entry, error) {
	inv, err := s.investments.GetForUser(userID, investmentID)
	if err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		InvestmentID:    inv.ID,
		Type:            in.Type,
		Quantity:        in.Quantity,
		Price:           in.Price,
		Fees:            in.Fees,
		TransactionDate: strings.TrimSpace(in.TransactionDate),
		Notes:           strings.TrimSpace(in.Notes),
	}
	s.applyDefaults(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if err := s.ledger.WithTx(tx).Create(t); err != nil {
			return err
		}
		_, err := s.recalc.Recalculate(tx, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	entry := &ledger.Entry{Transaction: *t, Symbol: inv.Symbol, PortfolioID: inv.PortfolioID, Amount: t.Amount()}
	s.emit(userID, entry, events.TransactionRecorded)
	return entry, nil
}

// Update changes a transaction and recomputes its investment.
func (s *Service) Update(userID, id string, in UpdateInput) (*ledger.Entry, error) {
	entry, err := s.ledger.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}

	t := entry.Transaction
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.Quantity != nil {
		t.Quantity = *in.Quantity
	}
	if in.Price != nil {
		t.Price = *in.Price
	}
	if in.Fees != nil {
		t.Fees = *in.Fees
	}
	if in.TransactionDate != nil {
		t.TransactionDate = strings.TrimSpace(*in.TransactionDate)
	}
	if in.Notes != nil {
		t.Notes = strings.TrimSpace(*in.Notes)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if err := s.ledger.WithTx(tx).Update(&t); err != nil {
			return err
		}
		_, err := s.recalc.Recalculate(tx, t.InvestmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	entry.Transaction = t
	entry.Amount = t.Amount()
	s.emit(userID, entry, events.TransactionUpdated)
	return entry, nil
}

// Delete removes a transaction and recomputes its investment. Deleting a buy
// that later sells depend on is rejected.
func (s *Service) Delete(userID, id string) error {
	entry, err := s.ledger.GetForUser(userID, id)
	if err != nil {
		return err
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if err := s.ledger.WithTx(tx).Delete(id); err != nil {
			return err
		}
		_, err := s.recalc.Recalculate(tx, entry.InvestmentID)
		return err
	})
	if err != nil {
		return err
	}

	s.emit(userID, entry, events.TransactionDeleted)
	return nil
}

func (s *Service) applyDefaults(t *domain.Transaction) {
	if t.TransactionDate == "" {
		t.TransactionDate = s.now().UTC().Format(domain.DateLayout)
	}
	if t.Quantity == 0 && (t.Type == domain.TransactionDividend || t.Type == domain.TransactionFee) {
		t.Quantity = 1
	}
}

func (s *Service) emit(userID string, e *ledger.Entry, eventType events.EventType) {
	s.events.Emit("transactions", userID, &events.TransactionData{
		Type:            eventType,
		TransactionID:   e.ID,
		InvestmentID:    e.InvestmentID,
		PortfolioID:     e.PortfolioID,
		Symbol:          e.Symbol,
		Kind:            string(e.Type),
		Quantity:        e.Quantity,
		Amount:          e.Amount,
		TransactionDate: e.TransactionDate,
	})
}
