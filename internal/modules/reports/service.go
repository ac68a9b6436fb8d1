package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

const (
	defaultPerformers = 5
	maxPerformers     = 50
	defaultSMAPeriod  = 7
	maxSMAPeriod      = 200
	unclassified      = "Unclassified"
)

// PortfolioSource lists the caller's portfolios.
type PortfolioSource interface {
	List(userID string, includeArchived bool) ([]domain.Portfolio, error)
	GetForUser(userID, id string) (*domain.Portfolio, error)
}

// InvestmentSource lists the caller's holdings.
type InvestmentSource interface {
	ListForUser(userID, portfolioID string, includeArchived bool) ([]domain.Investment, error)
}

// TransactionSource lists ledger entries.
type TransactionSource interface {
	List(f ledger.Filter) ([]ledger.Entry, int, error)
}

// SnapshotSource sums recorded snapshots per day.
type SnapshotSource interface {
	DailyTotals(userID, portfolioID, from, to string) ([]snapshots.DailyTotal, error)
}

// Query holds report parameters. Zero values select defaults.
type Query struct {
	PortfolioID string
	Year        int
	From        string
	To          string
	Limit       int
	SMAPeriod   int
}

// Service builds reports, caching results per user.
type Service struct {
	portfolios   PortfolioSource
	investments  InvestmentSource
	transactions TransactionSource
	snapshots    SnapshotSource
	cache        *cache.Repository
	cacheTTL     time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewService creates a new report service. A nil cache disables caching.
func NewService(
	portfolios PortfolioSource,
	investments InvestmentSource,
	transactions TransactionSource,
	snapshotSource SnapshotSource,
	cacheRepo *cache.Repository,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios:   portfolios,
		investments:  investments,
		transactions: transactions,
		snapshots:    snapshotSource,
		cache:        cacheRepo,
		cacheTTL:     cacheTTL,
		log:          log.With().Str("service", "reports").Logger(),
		now:          time.Now,
	}
}

// cached returns the stored report for key or builds and stores it. A result is
// not stored when the user's data changed while it was being built.
// Cache failures are logged and never fail the request.
func cached[T any](s *Service, userID, kind string, q Query, build func() (T, error)) (T, error) {
	defer utils.OperationTimer("report_"+kind, s.log)()

	if s.cache == nil || s.cacheTTL <= 0 {
		return build()
	}

	key := fmt.Sprintf("report:%s:%s:%s:%d:%s:%s:%d:%d",
		userID, kind, q.PortfolioID, q.Year, q.From, q.To, q.Limit, q.SMAPeriod)

	generation := s.cache.Generation(userID)

	var hit T
	ok, err := s.cache.GetIfFresh(key, &hit)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Report cache read failed")
	} else if ok {
		return hit, nil
	}

	result, err := build()
	if err != nil {
		return result, err
	}
	stored, err := s.cache.StoreIfCurrent(key, userID, result, s.cacheTTL, generation)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Report cache write failed")
	} else if !stored {
		s.log.Debug().Str("key", key).Msg("Skipped caching report built before an invalidation")
	}
	return result, nil
}

// checkPortfolio verifies the optional portfolio filter belongs to userID and
// returns it (nil when no filter is set).
func (s *Service) checkPortfolio(userID string, q Query) (*domain.Portfolio, error) {
	if q.PortfolioID == "" {
		return nil, nil
	}
	return s.portfolios.GetForUser(userID, q.PortfolioID)
}

// holdings loads the investments a report covers. Archived portfolios only
// count when selected explicitly.
func (s *Service) holdings(userID string, q Query) ([]domain.Investment, error) {
	if _, err := s.checkPortfolio(userID, q); err != nil {
		return nil, err
	}
	return s.investments.ListForUser(userID, q.PortfolioID, q.PortfolioID != "")
}

// Summary builds the performance summary.
func (s *Service) Summary(userID string, q Query) (*Summary, error) {
	q.Limit = clampLimit(q.Limit)
	return cached(s, userID, "summary", q, func() (*Summary, error) {
		invs, err := s.holdings(userID, q)
		if err != nil {
			return nil, err
		}

		portfolioCount := 1
		if q.PortfolioID == "" {
			list, err := s.portfolios.List(userID, false)
			if err != nil {
				return nil, err
			}
			portfolioCount = len(list)
		}

		var acc domain.Accumulator
		for _, inv := range invs {
			acc.Add(inv)
		}

		ranked := rankPerformers(invs)
		summary := &Summary{
			Totals:          acc.Totals(),
			PortfolioCount:  portfolioCount,
			InvestmentCount: acc.Count(),
			TopPerformers:   head(ranked, q.Limit),
			WorstPerformers: tail(ranked, q.Limit),
		}
		if len(ranked) > 0 {
			best, worst := ranked[0], ranked[len(ranked)-1]
			summary.Best = &best
			summary.Worst = &worst
		}
		return summary, nil
	})
}

// rankPerformers orders held investments by gain percentage, best first.
// Positions with no cost basis have no meaningful percentage and are skipped.
func rankPerformers(invs []domain.Investment) []Performer {
	ranked := make([]Performer, 0, len(invs))
	for _, inv := range invs {
		v := domain.Value(inv)
		if v.TotalCost <= 0 {
			continue
		}
		ranked = append(ranked, Performer{
			InvestmentID: inv.ID,
			PortfolioID:  inv.PortfolioID,
			Symbol:       inv.Symbol,
			Name:         inv.Name,
			Type:         string(inv.Type),
			CurrentValue: v.CurrentValue,
			GainLoss:     v.GainLoss,
			GainLossPct:  v.GainLossPct,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].GainLossPct != ranked[j].GainLossPct {
			return ranked[i].GainLossPct > ranked[j].GainLossPct
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked
}

func head(ranked []Performer, n int) []Performer {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Performer, n)
	copy(out, ranked[:n])
	return out
}

// tail returns the n worst performers, worst first.
func tail(ranked []Performer, n int) []Performer {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Performer, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		out = append(out, ranked[i])
	}
	return out
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultPerformers
	}
	if n > maxPerformers {
		return maxPerformers
	}
	return n
}

// Distribution splits current value by type, portfolio and sector.
func (s *Service) Distribution(userID string, q Query) (*Distribution, error) {
	return cached(s, userID, "distribution", q, func() (*Distribution, error) {
		invs, err := s.holdings(userID, q)
		if err != nil {
			return nil, err
		}
		names, err := s.portfolioNames(userID)
		if err != nil {
			return nil, err
		}
		return distribute(invs, names), nil
	})
}

func (s *Service) portfolioNames(userID string) (map[string]string, error) {
	list, err := s.portfolios.List(userID, true)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(list))
	for _, p := range list {
		names[p.ID] = p.Name
	}
	return names, nil
}

func distribute(invs []domain.Investment, portfolioNames map[string]string) *Distribution {
	var total domain.Accumulator
	byType := newBucketer()
	byPortfolio := newBucketer()
	bySector := newBucketer()

	for _, inv := range invs {
		total.Add(inv)
		byType.add(string(inv.Type), string(inv.Type), inv)
		byPortfolio.add(inv.PortfolioID, portfolioNames[inv.PortfolioID], inv)
		sector := inv.Sector
		if sector == "" {
			sector = unclassified
		}
		bySector.add(sector, sector, inv)
	}

	return &Distribution{
		TotalValue:  domain.Money(total.Value()),
		ByType:      byType.buckets(total),
		ByPortfolio: byPortfolio.buckets(total),
		BySector:    bySector.buckets(total),
	}
}

type bucketer struct {
	order  []string
	labels map[string]string
	accs   map[string]*domain.Accumulator
}

func newBucketer() *bucketer {
	return &bucketer{
		labels: make(map[string]string),
		accs:   make(map[string]*domain.Accumulator),
	}
}

func (b *bucketer) add(key, label string, inv domain.Investment) {
	acc, ok := b.accs[key]
	if !ok {
		acc = &domain.Accumulator{}
		b.accs[key] = acc
		b.labels[key] = label
		b.order = append(b.order, key)
	}
	acc.Add(inv)
}

func (b *bucketer) buckets(total domain.Accumulator) []Bucket {
	out := make([]Bucket, 0, len(b.order))
	for _, key := range b.order {
		acc := b.accs[key]
		out = append(out, Bucket{
			Key:        key,
			Label:      b.labels[key],
			Value:      domain.Money(acc.Value()),
			Percentage: domain.Percent(acc.Value(), total.Value()),
			Count:      acc.Count(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Transactions returns every ledger entry the report covers, oldest first.
func (s *Service) Transactions(userID string, q Query) ([]ledger.Entry, error) {
	if _, err := s.checkPortfolio(userID, q); err != nil {
		return nil, err
	}
	if err := validateRange(q.From, q.To); err != nil {
		return nil, err
	}
	entries, _, err := s.transactions.List(ledger.Filter{
		UserID:      userID,
		PortfolioID: q.PortfolioID,
		From:        q.From,
		To:          q.To,
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Investments returns the valued holdings the report covers.
func (s *Service) Investments(userID string, q Query) ([]domain.InvestmentView, error) {
	invs, err := s.holdings(userID, q)
	if err != nil {
		return nil, err
	}
	views := make([]domain.InvestmentView, 0, len(invs))
	for _, inv := range invs {
		views = append(views, domain.NewInvestmentView(inv))
	}
	return views, nil
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
