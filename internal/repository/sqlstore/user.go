package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
)

// UserRepository resolves identities from the users table
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Resolve implements domain.IdentityResolver
func (r *UserRepository) Resolve(ctx context.Context, userID int64) (*domain.Identity, error) {
	var ident domain.Identity
	var userType int

	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, username, user_type FROM users WHERE id = ?`, userID,
	).Scan(&ident.ID, &ident.Name, &userType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.Error{Kind: domain.KindNotFound, Op: "resolve", Err: fmt.Errorf("user %d not found", userID)}
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	ident.Roles = domain.RolesFor(domain.UserType(userType))

	return &ident, nil
}

// Create inserts a user and returns its id. Used for seeding.
func (r *UserRepository) Create(ctx context.Context, username string, userType domain.UserType) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO users (username, user_type, created_at) VALUES (?, ?, ?)`,
		username, int(userType), toNanos(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read user id: %w", err)
	}
	return id, nil
}
