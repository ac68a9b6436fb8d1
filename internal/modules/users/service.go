package users

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// CreateUserInput is the payload for creating an account.
type CreateUserInput struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	IsActive *bool       `json:"is_active"`
}

// UpdateUserInput carries optional changes; nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string      `json:"email"`
	Username *string      `json:"username"`
	Role     *domain.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
}

// Service implements account rules on top of the repository.
type Service struct {
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a new user service
func NewService(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("service", "users").Logger(),
		now:    time.Now,
	}
}

// Repository exposes the underlying repository to collaborating services.
func (s *Service) Repository() *Repository {
	return s.repo
}

// Get returns a user by id.
func (s *Service) Get(id string) (*domain.User, error) {
	return s.repo.GetByID(id)
}

// List returns a page of users and the total match count.
func (s *Service) List(filter ListFilter) ([]domain.User, int, error) {
	return s.repo.List(filter)
}

// Stats returns user counts for dashboards.
func (s *Service) Stats() (Stats, error) {
	return s.repo.GetStats(s.now().AddDate(0, 0, -30))
}

// CreateUser validates input, hashes the password and stores the account.
// actorID is the administrator performing the action (empty for self-registration).
func (s *Service) CreateUser(actorID string, in CreateUserInput) (*domain.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return nil, domain.NewValidationError("role", "must be user or admin")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := s.repo.Create(u); err != nil {
		return nil, err
	}

	s.emit(actorID, u, events.UserCreated)
	return u, nil
}

// UpdateUser applies admin changes. Administrators cannot demote or deactivate
// themselves, and the last active administrator cannot be demoted or deactivated.
func (s *Service) UpdateUser(actorID, id string, in UpdateUserInput) (*domain.User, error) {
	u, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	wasActiveAdmin := u.IsAdmin() && u.IsActive

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		u.Email = email
	}
	if in.Username != nil {
		username, err := normalizeUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		u.Username = username
	}
	if in.Role != nil {
		if !in.Role.IsValid() {
			return nil, domain.NewValidationError("role", "must be user or admin")
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	losesAdmin := wasActiveAdmin && (!u.IsAdmin() || !u.IsActive)
	if losesAdmin {
		if actorID == u.ID {
			return nil, fmt.Errorf("administrators cannot demote or deactivate themselves: %w", domain.ErrForbidden)
		}
	}

	update := s.repo.Update
	if losesAdmin {
		update = s.repo.UpdateKeepingAdmin
	}
	if err := update(u); err != nil {
		return nil, err
	}

	s.emit(actorID, u, events.UserUpdated)
	return u, nil
}

// ResetPassword sets a new password for a user (admin action).
func (s *Service) ResetPassword(actorID, id, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	u, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(id, hash); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Str("actor_id", actorID).Msg("Password reset")
	s.emit(actorID, u, events.UserUpdated)
	return nil
}

// DeleteUser removes an account and all of its data.
func (s *Service) DeleteUser(actorID, id string) error {
	if actorID == id {
		return fmt.Errorf("administrators cannot delete themselves: %w", domain.ErrForbidden)
	}
	u, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	remove := s.repo.Delete
	if u.IsAdmin() && u.IsActive {
		remove = s.repo.DeleteKeepingAdmin
	}
	if err := remove(id); err != nil {
		return err
	}
	s.emit(actorID, u, events.UserDeleted)
	return nil
}

// EnsureAdmin creates an active administrator with the given credentials unless a
// user with that email already exists. It reports whether a user was created.
func (s *Service) EnsureAdmin(email, username, password string) (*domain.User, bool, error) {
	existing, err := s.repo.GetByEmail(email)
	if err == nil {
		if !existing.IsAdmin() {
			s.log.Warn().Str("email", existing.Email).Msg("Bootstrap admin email belongs to a non-admin user")
		}
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	u, err := s.CreateUser("", CreateUserInput{
		Email:    email,
		Username: username,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	s.log.Info().Str("email", u.Email).Msg("Bootstrap administrator created")
	return u, true, nil
}

func (s *Service) emit(actorID string, u *domain.User, eventType events.EventType) {
	s.events.Emit("users", u.ID, &events.UserData{
		Type:     eventType,
		UserID:   u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		ActorID:  actorID,
		IsActive: u.IsActive,
	})
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError("email", "is not a valid address")
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if !usernamePattern.MatchString(username) {
		return "", domain.NewValidationError("username", "must be 3-32 letters, digits, '.', '_' or '-'")
	}
	return username, nil
}
