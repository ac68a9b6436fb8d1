// Package di wires databases, repositories, services, handlers, and jobs.
package di

import (
	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/activity"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/dashboard"
	"github.com/aristath/folio/internal/modules/investments"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/portfolios"
	"github.com/aristath/folio/internal/modules/reports"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/modules/transactions"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/aristath/folio/internal/realtime"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and handed to the server and the CLI.
type Container struct {
	// Databases
	FolioDB *database.DB // users, portfolios, investments, transactions, snapshots, activity
	CacheDB *database.DB // report cache

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	UserRepo       *users.Repository
	PortfolioRepo  *portfolios.Repository
	InvestmentRepo *investments.Repository
	LedgerRepo     *ledger.Repository
	SnapshotRepo   *snapshots.Repository
	ActivityRepo   *activity.Repository
	CacheRepo      *cache.Repository

	// Services
	Tokens             *auth.TokenService
	AuthMiddleware     *auth.Middleware
	AuthService        *auth.Service
	UserService        *users.Service
	PortfolioService   *portfolios.Service
	InvestmentService  *investments.Service
	TransactionService *transactions.Service
	SnapshotService    *snapshots.Service
	ReportService      *reports.Service
	DashboardService   *dashboard.Service
	BackupService      *reliability.BackupService

	// Event listeners
	Hub              *realtime.Hub
	ActivityListener *activity.Listener
	CacheInvalidator *cache.Invalidator

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering.
type JobInstances struct {
	Snapshot    *scheduler.SnapshotJob
	Backup      *scheduler.BackupJob
	Maintenance *scheduler.MaintenanceJob
}

// Databases returns every open database, in backup order.
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.FolioDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close stops the hub and closes the databases. The scheduler is stopped by its owner.
func (c *Container) Close() {
	if c.Hub != nil {
		c.Hub.Close()
	}
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
