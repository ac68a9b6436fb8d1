// Package users implements account storage and administrator user management.
package users

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// userColumns is the column list shared by every SELECT; order must match scanUser.
const userColumns = `id, email, username, password_hash, role, is_active, created_at, updated_at, last_login_at`

// ListFilter narrows and pages List results.
type ListFilter struct {
	Search string      // substring of email or username
	Role   domain.Role // empty for any role
	Active *bool       // nil for any state
	Limit  int         // defaults to 50, capped at 500
	Offset int
}

// Stats summarises the user base for the admin dashboard.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Admins   int `json:"admins"`
	NewSince int `json:"new_last_30_days"`
}

// Repository handles user database operations
type Repository struct {
	db  *sql.DB // folio.db - users table
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "user").Logger(),
		now: time.Now,
	}
}

// Create inserts a user, assigning an id and timestamps.
// A duplicate email or username returns an error wrapping domain.ErrConflict.
func (r *Repository) Create(u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := r.now().UTC().Truncate(time.Second)
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO users
		(id, email, username, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), boolToInt(u.IsActive),
		now.Unix(), now.Unix(),
	)
	if database.IsUniqueViolation(err) {
		return domain.Conflictf("email or username already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("User created")
	return nil
}

// GetByID returns a user by id
func (r *Repository) GetByID(id string) (*domain.User, error) {
	return r.getOne("id = ?", id)
}

// GetByEmail returns a user by email (case-insensitive)
func (r *Repository) GetByEmail(email string) (*domain.User, error) {
	return r.getOne("email = ?", strings.TrimSpace(email))
}

// GetByUsername returns a user by username (case-insensitive)
func (r *Repository) GetByUsername(username string) (*domain.User, error) {
	return r.getOne("username = ?", strings.TrimSpace(username))
}

// GetByLogin returns a user whose email or username matches identifier
func (r *Repository) GetByLogin(identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	return r.getOne("email = ? OR username = ?", identifier, identifier)
}

func (r *Repository) getOne(where string, args ...interface{}) (*domain.User, error) {
	row := r.db.QueryRow("SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List returns users matching filter ordered by creation time (newest first),
// together with the total number of matches ignoring paging.
func (r *Repository) List(filter ListFilter) ([]domain.User, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		conds = append(conds, "(email LIKE ? OR username LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if filter.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.Active != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, boolToInt(*filter.Active))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + userColumns + " FROM users" + where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := r.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}

	return users, total, nil
}

// ErrLastAdmin is returned when a change would leave no active administrator.
var ErrLastAdmin = fmt.Errorf("at least one active administrator is required: %w", domain.ErrConflict)

// otherActiveAdmin holds while an active administrator other than the row with
// the bound id exists. It is evaluated inside the writing statement, so the
// check and the write cannot interleave with a concurrent demotion.
const otherActiveAdmin = `EXISTS (SELECT 1 FROM users o WHERE o.id != ? AND o.role = 'admin' AND o.is_active = 1)`

// Update persists email, username, role and active flag.
func (r *Repository) Update(u *domain.User) error {
	return r.update(u, false)
}

// UpdateKeepingAdmin is Update for changes that take away an administrator;
// it fails with ErrLastAdmin when no other active administrator remains.
func (r *Repository) UpdateKeepingAdmin(u *domain.User) error {
	return r.update(u, true)
}

func (r *Repository) update(u *domain.User, keepAdmin bool) error {
	u.UpdatedAt = r.now().UTC().Truncate(time.Second)
	query := `UPDATE users SET email = ?, username = ?, role = ?, is_active = ?, updated_at = ?
		WHERE id = ?`
	args := []interface{}{u.Email, u.Username, string(u.Role), boolToInt(u.IsActive), u.UpdatedAt.Unix(), u.ID}
	if keepAdmin {
		query += " AND " + otherActiveAdmin
		args = append(args, u.ID)
	}

	res, err := r.db.Exec(query, args...)
	if database.IsUniqueViolation(err) {
		return domain.Conflictf("email or username already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return r.affectedOrLastAdmin(res, u.ID, keepAdmin)
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(id, hash string) error {
	res, err := r.db.Exec("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, r.now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(res, "user")
}

// TouchLogin records a successful sign-in.
func (r *Repository) TouchLogin(id string, at time.Time) error {
	if _, err := r.db.Exec("UPDATE users SET last_login_at = ? WHERE id = ?", at.UTC().Unix(), id); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Delete removes a user; portfolios and everything below cascade.
func (r *Repository) Delete(id string) error {
	return r.delete(id, false)
}

// DeleteKeepingAdmin is Delete for administrators; it fails with ErrLastAdmin
// when no other active administrator remains.
func (r *Repository) DeleteKeepingAdmin(id string) error {
	return r.delete(id, true)
}

func (r *Repository) delete(id string, keepAdmin bool) error {
	query := "DELETE FROM users WHERE id = ?"
	args := []interface{}{id}
	if keepAdmin {
		query += " AND " + otherActiveAdmin
		args = append(args, id)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := r.affectedOrLastAdmin(res, id, keepAdmin); err != nil {
		return err
	}
	r.log.Info().Str("user_id", id).Msg("User deleted")
	return nil
}

// affectedOrLastAdmin tells a missing row apart from a write refused by the
// otherActiveAdmin guard.
func (r *Repository) affectedOrLastAdmin(res sql.Result, id string, keepAdmin bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if !keepAdmin {
		return domain.NotFoundf("user")
	}
	if _, err := r.GetByID(id); err != nil {
		return err
	}
	return ErrLastAdmin
}

// CountActiveAdmins returns the number of active administrators.
func (r *Repository) CountActiveAdmins() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = ? AND is_active = 1", string(domain.RoleAdmin)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

// GetStats returns user counts; NewSince counts users created after since.
func (r *Repository) GetStats(since time.Time) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM users`, since.UTC().Unix()).Scan(&s.Total, &s.Active, &s.Admins, &s.NewSince)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get user stats: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		active    int
		createdAt int64
		updatedAt int64
		lastLogin sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &active,
		&createdAt, &updatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.IsActive = active == 1
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if lastLogin.Valid {
		t := time.Unix(lastLogin.Int64, 0).UTC()
		u.LastLoginAt = &t
	}
	return &u, nil
}

func requireAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("%s", entity)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
