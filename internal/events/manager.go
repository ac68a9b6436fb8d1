package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
	now func() time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
		now: time.Now,
	}
}

// Bus returns the underlying bus for subscribers.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes typed event data on behalf of userID (empty for system events).
// A nil Manager is a no-op so services can be constructed without events in tests.
func (m *Manager) Emit(module, userID string, data EventData) {
	if m == nil || data == nil {
		return
	}

	event := &Event{
		Type:      data.EventType(),
		Timestamp: m.now().UTC(),
		Module:    module,
		UserID:    userID,
		Data:      data,
	}

	m.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Str("user_id", userID).
		Msg(data.Summary())

	m.bus.Publish(event)
}

// EmitError publishes an ErrorOccurred event.
func (m *Manager) EmitError(module string, err error, context string) {
	if m == nil || err == nil {
		return
	}
	m.log.Error().Err(err).Str("module", module).Str("context", context).Msg("Error event")
	m.Emit(module, "", &ErrorEventData{Error: err.Error(), Context: context})
}
