package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/rs/zerolog"
)

// ErrRegistrationClosed is returned by Register when self sign-up is disabled.
var ErrRegistrationClosed = fmt.Errorf("registration is disabled: %w", domain.ErrForbidden)

// Session is returned after a successful login, registration or refresh.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Service implements the account-facing authentication flows.
type Service struct {
	users             *users.Service
	tokens            *TokenService
	events            *events.Manager
	allowRegistration bool
	log               zerolog.Logger
	now               func() time.Time
}

// NewService creates a new auth service
func NewService(
	userService *users.Service,
	tokens *TokenService,
	eventManager *events.Manager,
	allowRegistration bool,
	log zerolog.Logger,
) *Service {
	return &Service{
		users:             userService,
		tokens:            tokens,
		events:            eventManager,
		allowRegistration: allowRegistration,
		log:               log.With().Str("service", "auth").Logger(),
		now:               time.Now,
	}
}

// Register creates a regular user account and signs it in.
func (s *Service) Register(email, username, password string) (*Session, error) {
	if !s.allowRegistration {
		return nil, ErrRegistrationClosed
	}
	u, err := s.users.CreateUser("", users.CreateUserInput{
		Email:    email,
		Username: username,
		Password: password,
		Role:     domain.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login authenticates by email or username. Unknown users, wrong passwords and
// inactive accounts all return the same unauthorized error.
func (s *Service) Login(identifier, password string) (*Session, error) {
	invalid := fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	if identifier == "" || password == "" {
		return nil, invalid
	}

	u, err := s.users.Repository().GetByLogin(identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !users.CheckPassword(u.PasswordHash, password) {
		s.log.Debug().Str("user_id", u.ID).Msg("Password mismatch")
		return nil, invalid
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrUnauthorized)
	}

	now := s.now().UTC().Truncate(time.Second)
	if err := s.users.Repository().TouchLogin(u.ID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now

	s.events.Emit("auth", u.ID, &events.UserData{
		Type:     events.UserLoggedIn,
		UserID:   u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		ActorID:  u.ID,
		IsActive: u.IsActive,
	})
	return s.issue(u)
}

// Me returns the current user.
func (s *Service) Me(userID string) (*domain.User, error) {
	return s.users.Get(userID)
}

// ChangePassword replaces the caller's password after checking the old one.
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	u, err := s.users.Get(userID)
	if err != nil {
		return err
	}
	if !users.CheckPassword(u.PasswordHash, oldPassword) {
		return domain.NewValidationError("current_password", "is incorrect")
	}
	if oldPassword == newPassword {
		return domain.NewValidationError("new_password", "must differ from the current password")
	}
	if err := users.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.Repository().UpdatePassword(userID, hash); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Msg("Password changed")
	return nil
}

// Refresh issues a new token for an authenticated, still active user.
func (s *Service) Refresh(userID string) (*Session, error) {
	u, err := s.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrUnauthorized)
	}
	return s.issue(u)
}

func (s *Service) issue(u *domain.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}
