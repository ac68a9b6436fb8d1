package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/sysinfo"
	"github.com/rs/zerolog"
)

// healthCheckTimeout bounds the database ping done by /health.
const healthCheckTimeout = 2 * time.Second

// SystemHandlers serves health and status endpoints
type SystemHandlers struct {
	container   *di.Container
	version     string
	startupTime time.Time
	log         zerolog.Logger
}

// SystemStatus is the administrator view of the running server.
type SystemStatus struct {
	Status           string              `json:"status"`
	Version          string              `json:"version"`
	GoVersion        string              `json:"go_version"`
	StartedAt        time.Time           `json:"started_at"`
	UptimeSeconds    int64               `json:"uptime_seconds"`
	Host             sysinfo.Host        `json:"host"`
	Databases        []sysinfo.DBInfo    `json:"databases"`
	DatabaseMB       float64             `json:"database_mb"`
	WebsocketClients int                 `json:"websocket_clients"`
	EventSubscribers int                 `json:"event_subscribers"`
	Jobs             []scheduler.JobInfo `json:"jobs"`
	Backups          *BackupStatus       `json:"backups,omitempty"`
}

// BackupStatus summarises local backup state.
type BackupStatus struct {
	RemoteEnabled bool       `json:"remote_enabled"`
	LocalCount    int        `json:"local_count"`
	LastBackup    *time.Time `json:"last_backup,omitempty"`
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(container *di.Container, version string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		container:   container,
		version:     version,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth handles GET /health. It pings every database.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for _, db := range h.container.Databases() {
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			httputil.WriteJSON(w, h.log, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": db.Name(),
			})
			return
		}
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
		"service": "folio",
	})
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	c := h.container
	dbs, totalMB := sysinfo.Databases(h.log, c.Databases()...)

	status := SystemStatus{
		Status:        "ok",
		Version:       h.version,
		GoVersion:     runtime.Version(),
		StartedAt:     h.startupTime.UTC(),
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Host:          sysinfo.SampleHost(h.log),
		Databases:     dbs,
		DatabaseMB:    totalMB,
		Jobs:          []scheduler.JobInfo{},
	}
	if c.Hub != nil {
		status.WebsocketClients = c.Hub.ClientCount()
	}
	if c.EventBus != nil {
		status.EventSubscribers = c.EventBus.SubscriberCount()
	}
	if c.Scheduler != nil {
		status.Jobs = c.Scheduler.Jobs()
	}
	if c.BackupService != nil {
		status.Backups = h.backupStatus(r)
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, status)
}

func (h *SystemHandlers) backupStatus(r *http.Request) *BackupStatus {
	bs := &BackupStatus{RemoteEnabled: h.container.BackupService.RemoteEnabled()}
	listing, err := h.container.BackupService.List(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to list backups for status")
		return bs
	}
	bs.LocalCount = len(listing.Local)
	if len(listing.Local) > 0 {
		ts := listing.Local[0].Timestamp
		bs.LastBackup = &ts
	}
	return bs
}
