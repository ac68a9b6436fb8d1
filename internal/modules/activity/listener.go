package activity

import (
	"encoding/json"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

// recorded lists the events that become activity entries. UserDeleted is
// absent because the row would reference a user that no longer exists, and
// snapshot and backup runs are system work rather than user actions.
var recorded = []events.EventType{
	events.PortfolioCreated, events.PortfolioUpdated, events.PortfolioDeleted,
	events.InvestmentCreated, events.InvestmentUpdated, events.InvestmentDeleted, events.PriceUpdated,
	events.TransactionRecorded, events.TransactionUpdated, events.TransactionDeleted,
	events.UserCreated, events.UserUpdated, events.UserLoggedIn,
}

// Listener persists user-scoped events as activity entries.
type Listener struct {
	repo *Repository
	log  zerolog.Logger
}

// NewListener creates a new activity listener
func NewListener(repo *Repository, log zerolog.Logger) *Listener {
	return &Listener{
		repo: repo,
		log:  log.With().Str("component", "activity_listener").Logger(),
	}
}

// Subscribe registers the listener on bus and returns the subscription id.
func (l *Listener) Subscribe(bus *events.Bus) uint64 {
	return bus.Subscribe(l.handle, recorded...)
}

func (l *Listener) handle(event *events.Event) {
	if event.UserID == "" || event.Data == nil {
		return
	}

	entry := &domain.Activity{
		UserID:    event.UserID,
		Type:      string(event.Type),
		Summary:   event.Data.Summary(),
		Payload:   payloadOf(event.Data),
		CreatedAt: event.Timestamp,
	}
	if err := l.repo.Create(entry); err != nil {
		l.log.Error().Err(err).
			Str("event_type", string(event.Type)).
			Str("user_id", event.UserID).
			Msg("Failed to record activity")
	}
}

// payloadOf flattens event data into a JSON object.
func payloadOf(data events.EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
