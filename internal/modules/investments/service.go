package investments

import (
	"database/sql"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/rs/zerolog"
)

const maxSymbolLength = 20

// PortfolioGetter resolves a portfolio owned by a user.
type PortfolioGetter interface {
	GetForUser(userID, id string) (*domain.Portfolio, error)
}

// CreateInput is the payload for adding an investment. A positive Quantity records
// an opening buy at PurchasePrice dated PurchaseDate.
type CreateInput struct {
	Symbol        string                `json:"symbol"`
	Name          string                `json:"name"`
	Type          domain.InvestmentType `json:"type"`
	Sector        string                `json:"sector"`
	Currency      string                `json:"currency"`
	Quantity      float64               `json:"quantity"`
	PurchasePrice float64               `json:"purchase_price"`
	CurrentPrice  *float64              `json:"current_price"`
	PurchaseDate  string                `json:"purchase_date"`
	Notes         string                `json:"notes"`
}

// UpdateInput carries optional descriptive changes.
type UpdateInput struct {
	Symbol       *string                `json:"symbol"`
	Name         *string                `json:"name"`
	Type         *domain.InvestmentType `json:"type"`
	Sector       *string                `json:"sector"`
	Currency     *string                `json:"currency"`
	PurchaseDate *string                `json:"purchase_date"`
	Notes        *string                `json:"notes"`
}

// PriceUpdateResult reports a bulk price update.
type PriceUpdateResult struct {
	Updated int      `json:"updated"`
	Unknown []string `json:"unknown"`
}

// Service implements investment rules and owns ledger recomputation.
type Service struct {
	db         *sql.DB
	repo       *Repository
	ledger     *ledger.Repository
	portfolios PortfolioGetter
	events     *events.Manager
	log        zerolog.Logger
	now        func() time.Time
}

// NewService creates a new investment service. db must be the connection the
// repositories use so that ledger writes can share a transaction.
func NewService(
	db *sql.DB,
	repo *Repository,
	ledgerRepo *ledger.Repository,
	portfolios PortfolioGetter,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		ledger:     ledgerRepo,
		portfolios: portfolios,
		events:     eventManager,
		log:        log.With().Str("service", "investments").Logger(),
		now:        time.Now,
	}
}

// Repository exposes the underlying repository to collaborating services.
func (s *Service) Repository() *Repository {
	return s.repo
}

// List returns the valued investments of a portfolio owned by userID.
func (s *Service) List(userID, portfolioID string) ([]domain.InvestmentView, error) {
	if _, err := s.portfolios.GetForUser(userID, portfolioID); err != nil {
		return nil, err
	}
	invs, err := s.repo.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.InvestmentView, len(invs))
	for i, inv := range invs {
		views[i] = domain.NewInvestmentView(inv)
	}
	return views, nil
}

// Get returns one valued investment.
func (s *Service) Get(userID, id string) (*domain.InvestmentView, error) {
	inv, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}
	view := domain.NewInvestmentView(*inv)
	return &view, nil
}

// Create adds an investment to a portfolio, recording the opening buy when a
// quantity is given.
func (s *Service) Create(userID, portfolioID string, in CreateInput) (*domain.InvestmentView, error) {
	p, err := s.portfolios.GetForUser(userID, portfolioID)
	if err != nil {
		return nil, err
	}

	inv := &domain.Investment{
		PortfolioID: p.ID,
		Symbol:      in.Symbol,
		Name:        in.Name,
		Type:        in.Type,
		Sector:      in.Sector,
		Currency:    in.Currency,
		Notes:       in.Notes,
	}
	if inv.Currency == "" {
		inv.Currency = p.Currency
	}
	inv.PurchaseDate = in.PurchaseDate
	if inv.PurchaseDate == "" {
		inv.PurchaseDate = s.now().UTC().Format(domain.DateLayout)
	}
	if err := normalize(inv); err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, domain.NewValidationError("quantity", "must not be negative")
	}
	if in.PurchasePrice < 0 {
		return nil, domain.NewValidationError("purchase_price", "must not be negative")
	}

	inv.CurrentPrice = in.PurchasePrice
	if in.CurrentPrice != nil {
		if *in.CurrentPrice < 0 {
			return nil, domain.NewValidationError("current_price", "must not be negative")
		}
		inv.CurrentPrice = *in.CurrentPrice
	}
	if inv.CurrentPrice > 0 {
		at := s.now().UTC().Truncate(time.Second)
		inv.PriceUpdatedAt = &at
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if err := s.repo.WithTx(tx).Create(inv); err != nil {
			return err
		}
		if in.Quantity == 0 {
			return nil
		}
		ledgerTx := s.ledger.WithTx(tx)
		if _, err := ledgerTx.RecordInitialBuy(inv, in.Quantity, in.PurchasePrice); err != nil {
			return err
		}
		pos, err := ledgerTx.Recalculate(inv.ID)
		if err != nil {
			return err
		}
		inv.Quantity = pos.Quantity
		inv.AverageCost = pos.AverageCost
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(userID, inv, events.InvestmentCreated)
	view := domain.NewInvestmentView(*inv)
	return &view, nil
}

// Update changes descriptive fields of an investment.
func (s *Service) Update(userID, id string, in UpdateInput) (*domain.InvestmentView, error) {
	inv, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}
	if in.Symbol != nil {
		inv.Symbol = *in.Symbol
	}
	if in.Name != nil {
		inv.Name = *in.Name
	}
	if in.Type != nil {
		inv.Type = *in.Type
	}
	if in.Sector != nil {
		inv.Sector = *in.Sector
	}
	if in.Currency != nil {
		inv.Currency = *in.Currency
	}
	if in.PurchaseDate != nil {
		inv.PurchaseDate = *in.PurchaseDate
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
	if err := normalize(inv); err != nil {
		return nil, err
	}
	if err := s.repo.Update(inv); err != nil {
		return nil, err
	}

	s.emit(userID, inv, events.InvestmentUpdated)
	view := domain.NewInvestmentView(*inv)
	return &view, nil
}

// Delete removes an investment and its transactions.
func (s *Service) Delete(userID, id string) error {
	inv, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.emit(userID, inv, events.InvestmentDeleted)
	return nil
}

// UpdatePrice sets the current price of one investment.
func (s *Service) UpdatePrice(userID, id string, price float64) (*domain.InvestmentView, error) {
	if price < 0 {
		return nil, domain.NewValidationError("price", "must not be negative")
	}
	inv, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC().Truncate(time.Second)
	if err := s.repo.UpdatePrice(id, price, at); err != nil {
		return nil, err
	}
	inv.CurrentPrice = price
	inv.PriceUpdatedAt = &at

	s.events.Emit("investments", userID, &events.PriceUpdatedData{
		PortfolioID: inv.PortfolioID,
		Prices:      map[string]float64{inv.Symbol: price},
	})
	view := domain.NewInvestmentView(*inv)
	return &view, nil
}

// UpdatePrices sets prices by symbol across one portfolio in a single transaction.
// Symbols not held in the portfolio are reported back rather than failing the batch.
func (s *Service) UpdatePrices(userID, portfolioID string, prices map[string]float64) (*PriceUpdateResult, error) {
	if len(prices) == 0 {
		return nil, domain.NewValidationError("prices", "at least one price is required")
	}
	if _, err := s.portfolios.GetForUser(userID, portfolioID); err != nil {
		return nil, err
	}

	normalized := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		sym := domain.NormalizeSymbol(symbol)
		if sym == "" {
			return nil, domain.NewValidationError("prices", "symbol must not be empty")
		}
		if price < 0 {
			return nil, domain.NewValidationError("prices", "price for %s must not be negative", sym)
		}
		normalized[sym] = price
	}

	result := &PriceUpdateResult{Unknown: []string{}}
	applied := make(map[string]float64, len(normalized))
	at := s.now().UTC().Truncate(time.Second)

	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		for sym, price := range normalized {
			n, err := repo.UpdatePriceBySymbol(portfolioID, sym, price, at)
			if err != nil {
				return err
			}
			if n == 0 {
				result.Unknown = append(result.Unknown, sym)
				continue
			}
			result.Updated += int(n)
			applied[sym] = price
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(result.Unknown)

	if len(applied) > 0 {
		s.events.Emit("investments", userID, &events.PriceUpdatedData{PortfolioID: portfolioID, Prices: applied})
	}
	return result, nil
}

// Recalculate replays the transactions of an investment inside tx and stores
// the resulting position.
func (s *Service) Recalculate(tx *sql.Tx, investmentID string) (domain.Position, error) {
	return s.ledger.WithTx(tx).Recalculate(investmentID)
}

func (s *Service) emit(userID string, inv *domain.Investment, eventType events.EventType) {
	s.events.Emit("investments", userID, &events.InvestmentData{
		Type:         eventType,
		InvestmentID: inv.ID,
		PortfolioID:  inv.PortfolioID,
		Symbol:       inv.Symbol,
	})
}

func normalize(inv *domain.Investment) error {
	inv.Symbol = domain.NormalizeSymbol(inv.Symbol)
	if inv.Symbol == "" {
		return domain.NewValidationError("symbol", "is required")
	}
	if utf8.RuneCountInString(inv.Symbol) > maxSymbolLength {
		return domain.NewValidationError("symbol", "must be at most %d characters", maxSymbolLength)
	}
	inv.Name = strings.TrimSpace(inv.Name)
	if inv.Name == "" {
		inv.Name = inv.Symbol
	}
	if inv.Type == "" {
		inv.Type = domain.InvestmentStock
	}
	if !inv.Type.IsValid() {
		return domain.NewValidationError("type", "unknown investment type %q", string(inv.Type))
	}
	inv.Sector = strings.TrimSpace(inv.Sector)
	inv.Currency = domain.NormalizeCurrency(inv.Currency)
	if len(inv.Currency) != 3 {
		return domain.NewValidationError("currency", "must be a 3-letter ISO 4217 code")
	}
	if _, err := domain.ParseDate("purchase_date", inv.PurchaseDate); err != nil {
		return err
	}
	inv.Notes = strings.TrimSpace(inv.Notes)
	return nil
}
