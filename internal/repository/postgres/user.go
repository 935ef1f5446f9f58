package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/jackc/pgx/v5"
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
	query := `SELECT id, username, user_type FROM users WHERE id = $1`

	var ident domain.Identity
	var userType int
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&ident.ID, &ident.Name, &userType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.Error{Kind: domain.KindNotFound, Op: "resolve", Err: fmt.Errorf("user %d not found", userID)}
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	ident.Roles = domain.RolesFor(domain.UserType(userType))

	return &ident, nil
}
