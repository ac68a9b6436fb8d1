package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/activity"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/dashboard"
	"github.com/aristath/folio/internal/modules/investments"
	"github.com/aristath/folio/internal/modules/portfolios"
	"github.com/aristath/folio/internal/modules/reports"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/modules/transactions"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/aristath/folio/internal/realtime"
	"github.com/aristath/folio/internal/reliability"
	"github.com/rs/zerolog"
)

// s3InitTimeout bounds loading the S3 client configuration at startup.
const s3InitTimeout = 10 * time.Second

// InitializeServices creates the event bus, all services, and the event listeners
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.UserRepo == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	em := container.EventManager

	// Accounts
	container.Tokens = auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	container.AuthMiddleware = auth.NewMiddleware(container.Tokens, container.UserRepo, log)
	container.UserService = users.NewService(container.UserRepo, em, log)
	container.AuthService = auth.NewService(container.UserService, container.Tokens, em, cfg.AllowRegistration, log)

	// Holdings
	container.PortfolioService = portfolios.NewService(container.PortfolioRepo, container.InvestmentRepo, em, log)
	container.InvestmentService = investments.NewService(
		container.FolioDB.Conn(),
		container.InvestmentRepo,
		container.LedgerRepo,
		container.PortfolioRepo,
		em,
		log,
	)
	container.TransactionService = transactions.NewService(
		container.FolioDB.Conn(),
		container.LedgerRepo,
		container.InvestmentRepo,
		container.InvestmentService,
		em,
		log,
	)

	// Reporting
	container.SnapshotService = snapshots.NewService(
		container.SnapshotRepo,
		container.PortfolioRepo,
		container.InvestmentRepo,
		em,
		log,
	)
	container.ReportService = reports.NewService(
		container.PortfolioRepo,
		container.InvestmentRepo,
		container.LedgerRepo,
		container.SnapshotRepo,
		container.CacheRepo,
		cfg.ReportCacheTTL,
		log,
	)
	container.DashboardService = dashboard.NewService(
		container.PortfolioService,
		container.ReportService,
		container.ActivityRepo,
		dashboard.Sources{
			Users:        container.UserService,
			Portfolios:   container.PortfolioRepo,
			Investments:  container.InvestmentRepo,
			Transactions: container.LedgerRepo,
			Snapshots:    container.SnapshotRepo,
			Databases:    container.Databases(),
		},
		log,
	)

	// Backups
	var store reliability.ObjectStore
	if cfg.Backup.S3Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), s3InitTimeout)
		s3Store, err := reliability.NewS3Store(ctx, cfg.Backup, log)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		store = s3Store
	}
	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		cfg.BackupDir(),
		store,
		cfg.Backup.Retention,
		cfg.Version,
		em,
		log,
	)

	// Listeners
	container.ActivityListener = activity.NewListener(container.ActivityRepo, log)
	container.ActivityListener.Subscribe(container.EventBus)
	container.CacheInvalidator = cache.NewInvalidator(container.CacheRepo, log)
	container.CacheInvalidator.Subscribe(container.EventBus)
	container.Hub = realtime.NewHub(log)
	container.Hub.Subscribe(container.EventBus)

	log.Debug().Int("subscribers", container.EventBus.SubscriberCount()).Msg("Services initialized")
	return nil
}
