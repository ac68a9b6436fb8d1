package di

import (
	"fmt"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/modules/activity"
	"github.com/aristath/folio/internal/modules/investments"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/portfolios"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.FolioDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	folio := container.FolioDB.Conn()

	container.UserRepo = users.NewRepository(folio, log)
	container.PortfolioRepo = portfolios.NewRepository(folio, log)
	container.InvestmentRepo = investments.NewRepository(folio, log)
	container.LedgerRepo = ledger.NewRepository(folio, log)
	container.SnapshotRepo = snapshots.NewRepository(folio, log)
	container.ActivityRepo = activity.NewRepository(folio, log)
	container.CacheRepo = cache.NewRepository(container.CacheDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
