package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when login/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing login.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a lookup finds nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidLogin is returned when the login doesn't meet constraints.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

const maxLoginLen = 64

// Registration holds the fields supplied by a registering client.
type Registration struct {
	Login       string
	Password    string
	Username    string
	Birthday    time.Time
	City        string
	Description string
}

// Service is the credential store: it verifies and creates users on top of store.UserStore.
type Service struct {
	store  store.UserStore
	hasher Hasher
	log    *zerolog.Logger
}

// NewService creates a new credential service.
func NewService(userStore store.UserStore, hasher Hasher, logger *zerolog.Logger) *Service {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:  userStore,
		hasher: hasher,
		log:    logger,
	}
}

// Verify returns the user whose login and password match.
func (s *Service) Verify(ctx context.Context, login, password string) (*store.User, error) {
	login = normalizeLogin(login)
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.log.Error().Err(err).Str("login", login).Msg("credential lookup failed")
		return nil, fmt.Errorf("verify %q: %w", login, err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			s.log.Warn().Err(err).Str("login", login).Msg("stored credential unusable")
		}
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Create registers a new user with a hashed password.
func (s *Service) Create(ctx context.Context, reg Registration) (*store.User, error) {
	login := normalizeLogin(reg.Login)
	if login == "" || len(login) > maxLoginLen || strings.ContainsAny(login, " \t") {
		return nil, ErrInvalidLogin
	}
	if reg.Password == "" {
		return nil, ErrInvalidPassword
	}

	hashed, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, store.NewUser{
		Login:        login,
		PasswordHash: hashed,
		Username:     reg.Username,
		Birthday:     reg.Birthday,
		City:         reg.City,
		Description:  reg.Description,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		s.log.Error().Err(err).Str("login", login).Msg("create user failed")
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("login", user.Login).Msg("user registered")
	return user, nil
}

// FindByLogin retrieves a user by login.
func (s *Service) FindByLogin(ctx context.Context, login string) (*store.User, error) {
	login = normalizeLogin(login)
	user, err := s.store.GetUserByLogin(ctx, login)
	return s.found(user, err, "login", login)
}

// FindByID retrieves a user by id.
func (s *Service) FindByID(ctx context.Context, id int64) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	return s.found(user, err, "user_id", fmt.Sprint(id))
}

// ListAll returns every registered user.
func (s *Service) ListAll(ctx context.Context) ([]*store.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list users failed")
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) found(user *store.User, err error, key, value string) (*store.User, error) {
	if err == nil {
		return user, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	s.log.Error().Err(err).Str(key, value).Msg("user lookup failed")
	return nil, fmt.Errorf("find user: %w", err)
}

// normalizeLogin is applied on every path that takes a login from a client.
func normalizeLogin(login string) string {
	return strings.TrimSpace(login)
}
