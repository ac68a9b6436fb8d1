// Package dashboard assembles the user and administrator dashboards.
package dashboard

import (
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/reports"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/aristath/folio/internal/sysinfo"
	"github.com/rs/zerolog"
)

const (
	performerCount      = 5
	recentTransactions  = 10
	recentActivityCount = 10
	recentSignups       = 5
)

// PortfolioSummaries lists the caller's portfolios with totals.
type PortfolioSummaries interface {
	Summaries(userID string, includeArchived bool) ([]domain.PortfolioSummary, error)
}

// ReportSource provides the performance and allocation reports.
type ReportSource interface {
	Summary(userID string, q reports.Query) (*reports.Summary, error)
	Distribution(userID string, q reports.Query) (*reports.Distribution, error)
}

// TransactionSource lists ledger entries newest first.
type TransactionSource interface {
	List(f ledger.Filter) ([]ledger.Entry, int, error)
	Count() (int, error)
}

// ActivitySource lists the caller's activity feed.
type ActivitySource interface {
	ListForUser(userID string, limit int) ([]domain.Activity, error)
}

// UserDirectory provides account statistics for administrators.
type UserDirectory interface {
	Stats() (users.Stats, error)
	List(filter users.ListFilter) ([]domain.User, int, error)
}

// Counter counts rows of one entity.
type Counter interface {
	Count() (int, error)
}

// AssetTotals reports the number of investments and their combined value.
type AssetTotals interface {
	Totals() (count int, value float64, err error)
}

// UserDashboard is the home view of a signed-in user.
type UserDashboard struct {
	Portfolios         []domain.PortfolioSummary `json:"portfolios"`
	Totals             domain.Totals             `json:"totals"`
	Allocation         []reports.Bucket          `json:"allocation"`
	TopPerformers      []reports.Performer       `json:"top_performers"`
	WorstPerformers    []reports.Performer       `json:"worst_performers"`
	RecentTransactions []ledger.Entry            `json:"recent_transactions"`
	RecentActivity     []domain.Activity         `json:"recent_activity"`
}

// EntityCounts counts the tracked records across all users.
type EntityCounts struct {
	Portfolios   int `json:"portfolios"`
	Investments  int `json:"investments"`
	Transactions int `json:"transactions"`
	Snapshots    int `json:"snapshots"`
}

// AdminDashboard is the administrator overview.
type AdminDashboard struct {
	Users         users.Stats      `json:"users"`
	Entities      EntityCounts     `json:"entities"`
	AssetsTracked float64          `json:"assets_tracked"`
	System        sysinfo.Host     `json:"system"`
	Databases     []sysinfo.DBInfo `json:"databases"`
	DatabaseMB    float64          `json:"database_mb"`
	RecentSignups []domain.User    `json:"recent_signups"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// Sources groups what the admin dashboard counts.
type Sources struct {
	Users        UserDirectory
	Portfolios   Counter
	Investments  AssetTotals
	Transactions TransactionSource
	Snapshots    Counter
	Databases    []*database.DB
}

// Service builds dashboards.
type Service struct {
	portfolios PortfolioSummaries
	reports    ReportSource
	activity   ActivitySource
	admin      Sources
	log        zerolog.Logger
	now        func() time.Time
}

// NewService creates a new dashboard service
func NewService(
	portfolios PortfolioSummaries,
	reportSource ReportSource,
	activity ActivitySource,
	admin Sources,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios: portfolios,
		reports:    reportSource,
		activity:   activity,
		admin:      admin,
		log:        log.With().Str("service", "dashboard").Logger(),
		now:        time.Now,
	}
}

// ForUser builds the dashboard of userID from active portfolios.
func (s *Service) ForUser(userID string) (*UserDashboard, error) {
	summaries, err := s.portfolios.Summaries(userID, false)
	if err != nil {
		return nil, err
	}
	perf, err := s.reports.Summary(userID, reports.Query{Limit: performerCount})
	if err != nil {
		return nil, err
	}
	dist, err := s.reports.Distribution(userID, reports.Query{})
	if err != nil {
		return nil, err
	}
	txs, _, err := s.admin.Transactions.List(ledger.Filter{UserID: userID, Limit: recentTransactions})
	if err != nil {
		return nil, err
	}
	recent, err := s.activity.ListForUser(userID, recentActivityCount)
	if err != nil {
		return nil, err
	}

	return &UserDashboard{
		Portfolios:         summaries,
		Totals:             perf.Totals,
		Allocation:         dist.ByType,
		TopPerformers:      perf.TopPerformers,
		WorstPerformers:    perf.WorstPerformers,
		RecentTransactions: txs,
		RecentActivity:     recent,
	}, nil
}

// ForAdmin builds the administrator overview.
func (s *Service) ForAdmin() (*AdminDashboard, error) {
	stats, err := s.admin.Users.Stats()
	if err != nil {
		return nil, err
	}
	signups, _, err := s.admin.Users.List(users.ListFilter{Limit: recentSignups})
	if err != nil {
		return nil, err
	}

	var counts EntityCounts
	if counts.Portfolios, err = s.admin.Portfolios.Count(); err != nil {
		return nil, err
	}
	investmentCount, assets, err := s.admin.Investments.Totals()
	if err != nil {
		return nil, err
	}
	counts.Investments = investmentCount
	if counts.Transactions, err = s.admin.Transactions.Count(); err != nil {
		return nil, err
	}
	if counts.Snapshots, err = s.admin.Snapshots.Count(); err != nil {
		return nil, err
	}

	dbs, dbTotal := sysinfo.Databases(s.log, s.admin.Databases...)
	return &AdminDashboard{
		Users:         stats,
		Entities:      counts,
		AssetsTracked: domain.RoundMoney(assets),
		System:        sysinfo.SampleHost(s.log),
		Databases:     dbs,
		DatabaseMB:    dbTotal,
		RecentSignups: signups,
		GeneratedAt:   s.now().UTC(),
	}, nil
}
