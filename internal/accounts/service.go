package accounts

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

var (
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password so
	// a failed login leaks nothing about which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrMissingFields = errors.New("username, email and password are required")
)

// Store is the persistence the account service needs. *UserRepository
// implements it against Postgres.
type Store interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates a new account. Input is trimmed before validation; the
// password is stored only as a bcrypt hash. Self-registration as admin is
// refused, and sellers start unvalidated until an admin approves them.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	password := strings.TrimSpace(in.Password)

	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	role := domain.Role(in.Role)
	if role == "" {
		role = domain.RoleBuyer
	}
	if role == domain.RoleAdmin || !role.Valid() {
		return nil, errors.New("invalid role")
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies email and password and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
