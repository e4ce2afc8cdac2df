// Package users implements signup and login on top of the note catalog.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/notestash/notestash/internal/auth"
	apierr "github.com/notestash/notestash/internal/errors"
	"github.com/notestash/notestash/internal/metadata"
	"github.com/notestash/notestash/internal/uid"
)

// User is the public view of an account, as returned by signup and login.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Service implements account registration and authentication.
type Service struct {
	store      metadata.Store
	tokens     *auth.Tokens
	bcryptCost int
}

// NewService creates a users service. bcryptCost <= 0 selects the default.
func NewService(store metadata.Store, tokens *auth.Tokens, bcryptCost int) *Service {
	return &Service{store: store, tokens: tokens, bcryptCost: bcryptCost}
}

// Signup registers a new account. The email is lowercased before storage so
// logins are case-insensitive.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, apierr.ErrInvalidInput
	}
	if !strings.Contains(email, "@") {
		return nil, apierr.ErrInvalidInput.WithMessage("Invalid email address")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &metadata.UserRecord{
		ID:           uid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, metadata.ErrDuplicateEmail) {
			return nil, apierr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	slog.Info("User registered", "user_id", user.ID, "email", email)
	return &User{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Login authenticates an account and issues a token. Unknown email and wrong
// password produce the identical error so the response reveals neither.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, apierr.ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, apierr.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}

	slog.Info("User logged in", "user_id", user.ID)
	return token, &User{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}
