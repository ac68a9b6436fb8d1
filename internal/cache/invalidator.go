package cache

import (
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

// Invalidator drops a user's cached results whenever their holdings change.
type Invalidator struct {
	repo *Repository
	log  zerolog.Logger
}

// NewInvalidator creates an invalidator for repo.
func NewInvalidator(repo *Repository, log zerolog.Logger) *Invalidator {
	return &Invalidator{
		repo: repo,
		log:  log.With().Str("component", "cache_invalidator").Logger(),
	}
}

// Subscribe registers the invalidator on bus and returns the subscription id.
func (i *Invalidator) Subscribe(bus *events.Bus) uint64 {
	return bus.Subscribe(i.handle, events.PortfolioDataChanged...)
}

func (i *Invalidator) handle(event *events.Event) {
	if event.UserID == "" {
		return
	}
	n, err := i.repo.InvalidateOwner(event.UserID)
	if err != nil {
		i.log.Error().Err(err).Str("user_id", event.UserID).Msg("Failed to invalidate cached reports")
		return
	}
	if n > 0 {
		i.log.Debug().Str("user_id", event.UserID).Int64("entries", n).Str("event", string(event.Type)).Msg("Invalidated cached reports")
	}
}
