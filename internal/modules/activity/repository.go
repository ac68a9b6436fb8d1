// Package activity keeps the per-user audit trail fed by domain events.
package activity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Repository handles activity database operations
type Repository struct {
	db  *sql.DB // folio.db - activity table
	log zerolog.Logger
}

// NewRepository creates a new activity repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "activity").Logger(),
	}
}

// Create stores a, assigning an id when empty.
func (r *Repository) Create(a *domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	payload := []byte("{}")
	if len(a.Payload) > 0 {
		encoded, err := json.Marshal(a.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode activity payload: %w", err)
		}
		payload = encoded
	}

	_, err := r.db.Exec(`INSERT INTO activity (id, user_id, type, summary, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Type, a.Summary, string(payload), a.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListForUser returns the user's most recent entries, newest first.
func (r *Repository) ListForUser(userID string, limit int) ([]domain.Activity, error) {
	rows, err := r.db.Query(`SELECT id, user_id, type, summary, payload, created_at
		FROM activity WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			a         domain.Activity
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Summary, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
				r.log.Warn().Err(err).Str("id", a.ID).Msg("Ignoring malformed activity payload")
			}
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan prunes entries created before cutoff.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM activity WHERE created_at < ?", cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	return res.RowsAffected()
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
