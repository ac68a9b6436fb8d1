package snapshots

import (
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

// PortfolioSource lists portfolios for snapshotting and ownership checks.
type PortfolioSource interface {
	ListActive() ([]domain.Portfolio, error)
	GetForUser(userID, id string) (*domain.Portfolio, error)
}

// InvestmentLister loads the holdings of a portfolio.
type InvestmentLister interface {
	ListByPortfolio(portfolioID string) ([]domain.Investment, error)
}

// RecordResult summarises one snapshot run.
type RecordResult struct {
	Date       string  `json:"date"`
	Portfolios int     `json:"portfolios"`
	TotalValue float64 `json:"total_value"`
}

// Service records and reads portfolio snapshots.
type Service struct {
	repo        *Repository
	portfolios  PortfolioSource
	investments InvestmentLister
	events      *events.Manager
	log         zerolog.Logger
	now         func() time.Time
}

// NewService creates a new snapshot service
func NewService(
	repo *Repository,
	portfolios PortfolioSource,
	investments InvestmentLister,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		portfolios:  portfolios,
		investments: investments,
		events:      eventManager,
		log:         log.With().Str("service", "snapshots").Logger(),
		now:         time.Now,
	}
}

// Repository exposes the underlying repository to report builders.
func (s *Service) Repository() *Repository {
	return s.repo
}

// RecordAll upserts today's snapshot for every non-archived portfolio and emits
// one SnapshotRecorded event per owner. A failing portfolio is logged and skipped.
func (s *Service) RecordAll() (*RecordResult, error) {
	now := s.now().UTC()
	date := now.Format(domain.DateLayout)

	list, err := s.portfolios.ListActive()
	if err != nil {
		return nil, err
	}

	result := &RecordResult{Date: date}
	perUser := make(map[string]*events.SnapshotRecordedData)
	var userOrder []string

	for _, p := range list {
		invs, err := s.investments.ListByPortfolio(p.ID)
		if err != nil {
			s.log.Error().Err(err).Str("portfolio_id", p.ID).Msg("Failed to load holdings for snapshot")
			continue
		}
		summary := domain.Summarize(p, invs)
		snap := domain.Snapshot{
			PortfolioID: p.ID,
			Date:        date,
			TotalValue:  summary.CurrentValue,
			TotalCost:   summary.TotalCost,
			RecordedAt:  now,
		}
		if err := s.repo.Upsert(snap); err != nil {
			s.log.Error().Err(err).Str("portfolio_id", p.ID).Msg("Failed to store snapshot")
			continue
		}

		result.Portfolios++
		result.TotalValue = domain.RoundMoney(result.TotalValue + snap.TotalValue)

		data, ok := perUser[p.UserID]
		if !ok {
			data = &events.SnapshotRecordedData{Date: date}
			perUser[p.UserID] = data
			userOrder = append(userOrder, p.UserID)
		}
		data.Portfolios++
		data.TotalValue = domain.RoundMoney(data.TotalValue + snap.TotalValue)
	}

	for _, userID := range userOrder {
		s.events.Emit("snapshots", userID, perUser[userID])
	}

	s.log.Info().
		Str("date", date).
		Int("portfolios", result.Portfolios).
		Float64("total_value", result.TotalValue).
		Msg("Snapshots recorded")
	return result, nil
}

// ListForPortfolio returns the snapshots of a portfolio owned by userID.
func (s *Service) ListForPortfolio(userID, portfolioID, from, to string) ([]domain.Snapshot, error) {
	if _, err := s.portfolios.GetForUser(userID, portfolioID); err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListByPortfolio(portfolioID, from, to)
}

func validateRange(from, to string) error {
	if from != "" {
		if _, err := domain.ParseDate("from", from); err != nil {
			return err
		}
	}
	if to != "" {
		if _, err := domain.ParseDate("to", to); err != nil {
			return err
		}
	}
	if from != "" && to != "" && from > to {
		return domain.NewValidationError("from", "must not be after to")
	}
	return nil
}
