// Package cache provides the msgpack-encoded, TTL-bound result cache stored in cache.db.
// Entries carry an owner so everything computed for one user can be dropped at once.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository provides cache operations on the cache_entries table.
type Repository struct {
	db  *sql.DB // cache.db
	log zerolog.Logger
	now func() time.Time

	// mu orders writes against invalidations; generations counts
	// invalidations per owner since start.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewRepository creates a new cache repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:          db,
		log:         log.With().Str("repo", "cache").Logger(),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// Generation returns the owner's invalidation counter. Read it before computing
// a value and pass it to StoreIfCurrent.
func (r *Repository) Generation(owner string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[owner]
}

// Store encodes value and saves it under key with expiration = now + ttl.
func (r *Repository) Store(key, owner string, value interface{}, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(key, owner, value, ttl)
}

// StoreIfCurrent is Store unless owner was invalidated after generation was read,
// in which case value may predate the change and is dropped. It reports whether
// the entry was written.
func (r *Repository) StoreIfCurrent(key, owner string, value interface{}, ttl time.Duration, generation uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[owner] != generation {
		return false, nil
	}
	if err := r.store(key, owner, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) store(key, owner string, value interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	expiresAt := r.now().Add(ttl).Unix()
	_, err = r.db.Exec(`INSERT OR REPLACE INTO cache_entries (key, owner, payload, expires_at)
		VALUES (?, ?, ?, ?)`, key, owner, payload, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

// GetIfFresh decodes the entry for key into dst when it exists and has not expired.
// It reports whether dst was filled.
func (r *Repository) GetIfFresh(key string, dst interface{}) (bool, error) {
	var payload []byte
	err := r.db.QueryRow("SELECT payload FROM cache_entries WHERE key = ? AND expires_at > ?",
		key, r.now().Unix()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(payload, dst); err != nil {
		// A payload from an older struct layout is treated as a miss.
		r.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		_, _ = r.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
		return false, nil
	}
	return true, nil
}

// InvalidateOwner deletes every entry belonging to owner and advances its generation.
func (r *Repository) InvalidateOwner(owner string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[owner]++

	res, err := r.db.Exec("DELETE FROM cache_entries WHERE owner = ?", owner)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache for %s: %w", owner, err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes entries whose expires_at has passed.
func (r *Repository) DeleteExpired() (int64, error) {
	res, err := r.db.Exec("DELETE FROM cache_entries WHERE expires_at <= ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries, fresh or not.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM cache_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
