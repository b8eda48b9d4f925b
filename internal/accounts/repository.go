package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, validated, created_at`

func scanUser(row interface{ Scan(...any) error }, user *domain.User) error {
	return row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.Validated, &user.CreatedAt)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, validated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.Validated, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := &domain.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// List returns users, optionally filtered by role. An empty role lists
// everyone.
func (r *UserRepository) List(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	args := []any{}
	if role != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at DESC`
		args = append(args, role)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = $2
		WHERE id = $1
	`, id, role)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *UserRepository) SetValidated(ctx context.Context, id string, validated bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET validated = $2
		WHERE id = $1
	`, id, validated)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// BulkPromoteSellers turns every buyer into a validated seller and returns
// how many rows changed.
func (r *UserRepository) BulkPromoteSellers(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = $1, validated = TRUE
		WHERE role = $2
	`, domain.RoleSeller, domain.RoleBuyer)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// BulkResetBuyers demotes everyone except the acting admin back to an
// unvalidated buyer.
func (r *UserRepository) BulkResetBuyers(ctx context.Context, exceptID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = $1, validated = FALSE
		WHERE id <> $2
	`, domain.RoleBuyer, exceptID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE role = $1
	`, role).Scan(&count)
	return count, err
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
