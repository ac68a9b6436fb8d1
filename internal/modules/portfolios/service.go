package portfolios

import (
	"strings"
	"unicode/utf8"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

const maxNameLength = 100

// InvestmentLister loads the holdings of a portfolio.
type InvestmentLister interface {
	ListByPortfolio(portfolioID string) ([]domain.Investment, error)
}

// Input is the create/update payload.
type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
}

// Service implements portfolio rules on top of the repository.
type Service struct {
	repo        *Repository
	investments InvestmentLister
	events      *events.Manager
	log         zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *Repository, investments InvestmentLister, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		investments: investments,
		events:      eventManager,
		log:         log.With().Str("service", "portfolios").Logger(),
	}
}

// Repository exposes the underlying repository to collaborating services.
func (s *Service) Repository() *Repository {
	return s.repo
}

// List returns the user's portfolios.
func (s *Service) List(userID string, includeArchived bool) ([]domain.Portfolio, error) {
	return s.repo.List(userID, includeArchived)
}

// Get returns a portfolio owned by userID.
func (s *Service) Get(userID, id string) (*domain.Portfolio, error) {
	return s.repo.GetForUser(userID, id)
}

// Create validates in and stores a new portfolio for userID.
func (s *Service) Create(userID string, in Input) (*domain.Portfolio, error) {
	p := &domain.Portfolio{UserID: userID}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(p); err != nil {
		return nil, err
	}
	s.emit(userID, p, events.PortfolioCreated)
	return p, nil
}

// Update replaces the editable fields of a portfolio.
func (s *Service) Update(userID, id string, in Input) (*domain.Portfolio, error) {
	p, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(p); err != nil {
		return nil, err
	}
	s.emit(userID, p, events.PortfolioUpdated)
	return p, nil
}

// SetArchived archives or restores a portfolio. Archived portfolios are hidden
// from default listings and skipped by daily snapshots.
func (s *Service) SetArchived(userID, id string, archived bool) (*domain.Portfolio, error) {
	p, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}
	if p.IsArchived == archived {
		return p, nil
	}
	p.IsArchived = archived
	if err := s.repo.Update(p); err != nil {
		return nil, err
	}
	s.emit(userID, p, events.PortfolioUpdated)
	return p, nil
}

// Delete removes a portfolio and everything in it.
func (s *Service) Delete(userID, id string) error {
	p, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(userID, id); err != nil {
		return err
	}
	s.emit(userID, p, events.PortfolioDeleted)
	return nil
}

// Summary aggregates the holdings of one portfolio.
func (s *Service) Summary(userID, id string) (*domain.PortfolioSummary, error) {
	p, err := s.repo.GetForUser(userID, id)
	if err != nil {
		return nil, err
	}
	invs, err := s.investments.ListByPortfolio(p.ID)
	if err != nil {
		return nil, err
	}
	summary := domain.Summarize(*p, invs)
	return &summary, nil
}

// Summaries aggregates every portfolio of the user.
func (s *Service) Summaries(userID string, includeArchived bool) ([]domain.PortfolioSummary, error) {
	list, err := s.repo.List(userID, includeArchived)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PortfolioSummary, 0, len(list))
	for _, p := range list {
		invs, err := s.investments.ListByPortfolio(p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Summarize(p, invs))
	}
	return out, nil
}

func (s *Service) emit(userID string, p *domain.Portfolio, eventType events.EventType) {
	s.events.Emit("portfolios", userID, &events.PortfolioData{
		Type:        eventType,
		PortfolioID: p.ID,
		Name:        p.Name,
	})
}

func apply(p *domain.Portfolio, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return domain.NewValidationError("name", "must be at most %d characters", maxNameLength)
	}
	currency := domain.NormalizeCurrency(in.Currency)
	if len(currency) != 3 {
		return domain.NewValidationError("currency", "must be a 3-letter ISO 4217 code")
	}

	p.Name = name
	p.Description = strings.TrimSpace(in.Description)
	p.Currency = currency
	return nil
}
