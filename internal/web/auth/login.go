package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/store"
)

// ErrInvalidCredentials is returned for an unknown email or wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore looks up and creates dashboard users
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*store.User, error)
	Create(ctx context.Context, u *store.User) error
}

// Session is the result of a successful login
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *store.User `json:"user"`
}

// Service logs users in and registers new ones
type Service struct {
	users  UserStore
	tokens *Tokens
}

// NewService creates a login service
func NewService(users UserStore, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login checks credentials and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Register creates a user with a hashed password. Roles default to recruiter.
func (s *Service) Register(ctx context.Context, email, name, password string, roles ...string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if len(roles) == 0 {
		roles = []string{RoleRecruiter}
	}

	ve := crm.NewValidationErrors()
	if !strings.Contains(email, "@") {
		ve.Add("email", fmt.Sprintf("invalid email %q", email))
	}
	for _, r := range roles {
		if !ValidRole(r) {
			ve.Add("roles", fmt.Sprintf("unknown role %q", r))
		}
	}
	if len(password) < MinPasswordLength {
		ve.Add("password", ErrPasswordTooShort.Error())
	}
	if ve.HasErrors() {
		return nil, ve
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &store.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash, Roles: roles}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
