package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/notestash/notestash/internal/auth"
	apierr "github.com/notestash/notestash/internal/errors"
	"github.com/notestash/notestash/internal/metadata"
)

func newTestService() *Service {
	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)
	// bcrypt MinCost keeps the tests fast.
	return NewService(metadata.NewMemoryStore(), tokens, 4)
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, "Alex", "Alex@Example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if user.ID == "" {
		t.Error("Signup returned empty user ID")
	}
	if user.Email != "alex@example.com" {
		t.Errorf("email = %q, want lowercased", user.Email)
	}

	token, logged, err := svc.Login(ctx, "alex@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Error("Login returned empty token")
	}
	if logged.ID != user.ID || logged.Name != "Alex" {
		t.Errorf("logged-in user = %+v, want ID %q Name Alex", logged, user.ID)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name, email, password string
	}{
		{"", "a@example.com", "password123"},
		{"Alex", "", "password123"},
		{"Alex", "a@example.com", ""},
		{"Alex", "not-an-email", "password123"},
	}
	for _, c := range cases {
		_, err := svc.Signup(ctx, c.name, c.email, c.password)
		var ae *apierr.APIError
		if !errors.As(err, &ae) || ae.Code != "InvalidInput" {
			t.Errorf("Signup(%q, %q, ...) = %v, want InvalidInput", c.name, c.email, err)
		}
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "Alex", "a@example.com", "password123"); err != nil {
		t.Fatalf("first Signup failed: %v", err)
	}
	_, err := svc.Signup(ctx, "Blake", "A@EXAMPLE.COM", "different-pass")
	if !errors.Is(err, apierr.ErrAlreadyExists) {
		t.Errorf("duplicate Signup: got %v, want ErrAlreadyExists", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "Alex", "a@example.com", "password123"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	_, _, errUnknown := svc.Login(ctx, "nobody@example.com", "password123")
	_, _, errWrongPass := svc.Login(ctx, "a@example.com", "wrong-password")

	if !errors.Is(errUnknown, apierr.ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrongPass, apierr.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", errWrongPass)
	}
	if errUnknown.Error() != errWrongPass.Error() {
		t.Error("login failure modes produce different errors")
	}
}

func TestLoginTokenCarriesIdentity(t *testing.T) {
	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)
	svc := NewService(metadata.NewMemoryStore(), tokens, 4)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "Alex", "a@example.com", "password123")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token, _, err := svc.Login(ctx, "a@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	claims, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Name != "Alex" {
		t.Errorf("claims = %+v, want UserID %q Name Alex", claims, user.ID)
	}
}
