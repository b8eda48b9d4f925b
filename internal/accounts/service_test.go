package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

type fakeStore struct {
	byEmail map[string]*domain.User
	created []*domain.User
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byEmail: make(map[string]*domain.User)}
}

func (f *fakeStore) Create(_ context.Context, user *domain.User) error {
	if f.err != nil {
		return f.err
	}
	user.ID = uuid.New().String()
	f.byEmail[user.Email] = user
	f.created = append(f.created, user)
	return nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEmail[email], nil
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates buyer with hashed password", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		user, err := service.Register(ctx, RegisterInput{
			Username: "  alice  ",
			Email:    "Alice@Example.com",
			Password: " s3cret ",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if user.Username != "alice" {
			t.Errorf("expected trimmed username, got %q", user.Username)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected lowercased email, got %q", user.Email)
		}
		if user.Role != domain.RoleBuyer {
			t.Errorf("expected default role buyer, got %q", user.Role)
		}
		if user.PasswordHash == "" || user.PasswordHash == "s3cret" {
			t.Error("expected password to be stored as a hash")
		}
	})

	t.Run("seller starts unvalidated", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		user, err := service.Register(ctx, RegisterInput{
			Username: "bob", Email: "bob@example.com", Password: "pw123456", Role: "seller",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Role != domain.RoleSeller || user.Validated {
			t.Errorf("expected unvalidated seller, got role=%q validated=%v", user.Role, user.Validated)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		service := NewService(newFakeStore())

		_, err := service.Register(ctx, RegisterInput{Username: "x", Email: "", Password: "pw"})
		if !errors.Is(err, ErrMissingFields) {
			t.Errorf("expected ErrMissingFields, got %v", err)
		}
	})

	t.Run("rejects admin self-registration", func(t *testing.T) {
		service := NewService(newFakeStore())

		_, err := service.Register(ctx, RegisterInput{
			Username: "mallory", Email: "m@example.com", Password: "pw123456", Role: "admin",
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		if _, err := service.Register(ctx, RegisterInput{
			Username: "alice", Email: "alice@example.com", Password: "pw123456",
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := service.Register(ctx, RegisterInput{
			Username: "other", Email: "alice@example.com", Password: "pw123456",
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Errorf("expected ErrEmailTaken, got %v", err)
		}
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := NewService(store)

	if _, err := service.Register(ctx, RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "s3cret99",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		user, err := service.Authenticate(ctx, "alice@example.com", "s3cret99")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "alice@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email gets same error", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "nobody@example.com", "s3cret99")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}
