package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const indexColumns = `
	id, conversation_uuid, user_id, service_user_id, status,
	last_message, version, created_at, updated_at
`

// ConversationIndexRepository implements domain.IndexStore.
// Status changes take a row lock (SELECT ... FOR UPDATE) for the duration of
// the read-validate-write so concurrent transfers serialize on the row.
type ConversationIndexRepository struct {
	db *DB
}

// NewConversationIndexRepository creates a new conversation index repository
func NewConversationIndexRepository(db *DB) *ConversationIndexRepository {
	return &ConversationIndexRepository{db: db}
}

// Create inserts an active index record and mints its uuid
func (r *ConversationIndexRepository) Create(ctx context.Context, userID int64, lastMessage string) (*domain.ConversationIndex, error) {
	now := time.Now().UTC()
	conv := &domain.ConversationIndex{
		UUID:        uuid.New().String(),
		UserID:      userID,
		Status:      domain.StatusActive,
		LastMessage: lastMessage,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO conversation_index (
			conversation_uuid, user_id, status, last_message, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		conv.UUID,
		conv.UserID,
		string(conv.Status),
		conv.LastMessage,
		conv.Version,
		conv.CreatedAt,
		conv.UpdatedAt,
	).Scan(&conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation index: %w", err)
	}

	return conv, nil
}

// GetByUUID retrieves an index record by uuid
func (r *ConversationIndexRepository) GetByUUID(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	query := `SELECT ` + indexColumns + ` FROM conversation_index WHERE conversation_uuid = $1`

	conv, err := scanIndex(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("get", id)
		}
		return nil, fmt.Errorf("failed to get conversation index: %w", err)
	}

	return conv, nil
}

// ListByUser retrieves a user's conversations, most recently updated first
func (r *ConversationIndexRepository) ListByUser(ctx context.Context, userID int64) ([]domain.ConversationIndex, error) {
	query := `
		SELECT ` + indexColumns + `
		FROM conversation_index
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC
	`
	return r.list(ctx, query, userID)
}

// GetActiveByUser returns the user's most recently updated conversation that
// is not closed, or nil when there is none.
func (r *ConversationIndexRepository) GetActiveByUser(ctx context.Context, userID int64) (*domain.ConversationIndex, error) {
	query := `
		SELECT ` + indexColumns + `
		FROM conversation_index
		WHERE user_id = $1 AND status <> 'closed'
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`

	conv, err := scanIndex(r.db.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active conversation: %w", err)
	}

	return conv, nil
}

// ListTransferredByService retrieves conversations currently assigned to an agent
func (r *ConversationIndexRepository) ListTransferredByService(ctx context.Context, serviceUserID int64) ([]domain.ConversationIndex, error) {
	query := `
		SELECT ` + indexColumns + `
		FROM conversation_index
		WHERE service_user_id = $1 AND status = 'transferred'
		ORDER BY updated_at DESC, id DESC
	`
	return r.list(ctx, query, serviceUserID)
}

// ListTransferred retrieves every conversation waiting on a human agent
func (r *ConversationIndexRepository) ListTransferred(ctx context.Context) ([]domain.ConversationIndex, error) {
	query := `
		SELECT ` + indexColumns + `
		FROM conversation_index
		WHERE status = 'transferred'
		ORDER BY updated_at DESC, id DESC
	`
	return r.list(ctx, query)
}

// ListAll retrieves every index record
func (r *ConversationIndexRepository) ListAll(ctx context.Context) ([]domain.ConversationIndex, error) {
	query := `
		SELECT ` + indexColumns + `
		FROM conversation_index
		ORDER BY updated_at DESC, id DESC
	`
	return r.list(ctx, query)
}

// UpdateLastMessage overwrites the denormalized last message
func (r *ConversationIndexRepository) UpdateLastMessage(ctx context.Context, id, text string) error {
	_, err := r.mutate(ctx, id, domain.ActionTouch, func(c *domain.ConversationIndex) {
		c.LastMessage = text
	})
	return err
}

// Transfer assigns the conversation to a service agent
func (r *ConversationIndexRepository) Transfer(ctx context.Context, id string, serviceUserID int64) (*domain.ConversationIndex, error) {
	return r.mutate(ctx, id, domain.ActionTransfer, func(c *domain.ConversationIndex) {
		c.ServiceUserID = &serviceUserID
	})
}

// Close marks the conversation closed. Closing a closed conversation is a no-op.
func (r *ConversationIndexRepository) Close(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	return r.mutate(ctx, id, domain.ActionClose, nil)
}

// Delete removes an index record
func (r *ConversationIndexRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM conversation_index WHERE conversation_uuid = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation index: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("delete", id)
	}

	return nil
}

// Ping verifies database connectivity
func (r *ConversationIndexRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// mutate locks the row, checks the transition and writes the result
func (r *ConversationIndexRepository) mutate(
	ctx context.Context,
	id string,
	action domain.Action,
	apply func(*domain.ConversationIndex),
) (*domain.ConversationIndex, error) {
	var conv *domain.ConversationIndex
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + indexColumns + ` FROM conversation_index WHERE conversation_uuid = $1 FOR UPDATE`

		current, err := scanIndex(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NotFound(string(action), id)
			}
			return fmt.Errorf("failed to lock conversation index: %w", err)
		}

		next, err := domain.Transition(current.Status, action)
		if err != nil {
			return domain.Annotate(err, string(action), id)
		}
		conv = current
		if action == domain.ActionClose && current.Status == domain.StatusClosed {
			return nil
		}

		if apply != nil {
			apply(conv)
		}
		conv.Status = next
		conv.Version++
		conv.UpdatedAt = time.Now().UTC()

		update := `
			UPDATE conversation_index
			SET status = $2,
			    service_user_id = $3,
			    last_message = $4,
			    version = $5,
			    updated_at = $6
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, update,
			conv.ID,
			string(conv.Status),
			conv.ServiceUserID,
			conv.LastMessage,
			conv.Version,
			conv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update conversation index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return conv, nil
}

func (r *ConversationIndexRepository) list(ctx context.Context, query string, args ...any) ([]domain.ConversationIndex, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation index: %w", err)
	}
	defer rows.Close()

	conversations := []domain.ConversationIndex{}
	for rows.Next() {
		conv, err := scanIndex(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation index: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation index: %w", err)
	}

	return conversations, nil
}

func scanIndex(row pgx.Row) (*domain.ConversationIndex, error) {
	var conv domain.ConversationIndex
	var status string

	if err := row.Scan(
		&conv.ID,
		&conv.UUID,
		&conv.UserID,
		&conv.ServiceUserID,
		&status,
		&conv.LastMessage,
		&conv.Version,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	conv.Status = parsed
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()

	return &conv, nil
}
