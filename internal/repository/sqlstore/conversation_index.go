package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/google/uuid"
)

const indexColumns = `
	id, conversation_uuid, user_id, service_user_id, status,
	last_message, version, created_at, updated_at
`

// ConversationIndexRepository implements domain.IndexStore with optimistic
// concurrency: every write is conditioned on the version read, and a lost
// race re-reads and re-validates up to maxRetries times.
type ConversationIndexRepository struct {
	db         *DB
	maxRetries int
}

// NewConversationIndexRepository creates a new conversation index repository
func NewConversationIndexRepository(db *DB, maxRetries int) *ConversationIndexRepository {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ConversationIndexRepository{db: db, maxRetries: maxRetries}
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
		CreatedAt:   fromNanos(toNanos(now)),
		UpdatedAt:   fromNanos(toNanos(now)),
	}

	query := `
		INSERT INTO conversation_index (
			conversation_uuid, user_id, status, last_message, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.SQL.ExecContext(ctx, query,
		conv.UUID,
		conv.UserID,
		string(conv.Status),
		conv.LastMessage,
		conv.Version,
		toNanos(conv.CreatedAt),
		toNanos(conv.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation index: %w", err)
	}

	conv.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation index id: %w", err)
	}

	return conv, nil
}

// GetByUUID retrieves an index record by uuid
func (r *ConversationIndexRepository) GetByUUID(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	query := `SELECT ` + indexColumns + ` FROM conversation_index WHERE conversation_uuid = ?`

	conv, err := scanIndex(r.db.SQL.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		WHERE user_id = ?
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
		WHERE user_id = ? AND status <> 'closed'
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`

	conv, err := scanIndex(r.db.SQL.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		WHERE service_user_id = ? AND status = 'transferred'
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
	query := `SELECT ` + indexColumns + ` FROM conversation_index ORDER BY updated_at DESC, id DESC`
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
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM conversation_index WHERE conversation_uuid = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation index: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete conversation index: %w", err)
	}
	if n == 0 {
		return domain.NotFound("delete", id)
	}

	return nil
}

// Ping verifies database connectivity
func (r *ConversationIndexRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *ConversationIndexRepository) mutate(
	ctx context.Context,
	id string,
	action domain.Action,
	apply func(*domain.ConversationIndex),
) (*domain.ConversationIndex, error) {
	update := `
		UPDATE conversation_index
		SET status = ?, service_user_id = ?, last_message = ?, version = ?, updated_at = ?
		WHERE conversation_uuid = ? AND version = ?
	`

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		conv, err := r.GetByUUID(ctx, id)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil, domain.NotFound(string(action), id)
			}
			return nil, err
		}

		next, err := domain.Transition(conv.Status, action)
		if err != nil {
			return nil, domain.Annotate(err, string(action), id)
		}
		if action == domain.ActionClose && conv.Status == domain.StatusClosed {
			return conv, nil
		}

		if apply != nil {
			apply(conv)
		}
		readVersion := conv.Version
		conv.Status = next
		conv.Version++
		conv.UpdatedAt = fromNanos(toNanos(time.Now()))

		var serviceUserID sql.NullInt64
		if conv.ServiceUserID != nil {
			serviceUserID = sql.NullInt64{Int64: *conv.ServiceUserID, Valid: true}
		}

		res, err := r.db.SQL.ExecContext(ctx, update,
			string(conv.Status),
			serviceUserID,
			conv.LastMessage,
			conv.Version,
			toNanos(conv.UpdatedAt),
			id,
			readVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update conversation index: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to update conversation index: %w", err)
		}
		if n == 1 {
			return conv, nil
		}
	}

	return nil, domain.Conflict(string(action), id, fmt.Errorf("version changed %d times while updating", r.maxRetries+1))
}

func (r *ConversationIndexRepository) list(ctx context.Context, query string, args ...any) ([]domain.ConversationIndex, error) {
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndex(row rowScanner) (*domain.ConversationIndex, error) {
	var conv domain.ConversationIndex
	var serviceUserID sql.NullInt64
	var status string
	var createdAt, updatedAt int64

	if err := row.Scan(
		&conv.ID,
		&conv.UUID,
		&conv.UserID,
		&serviceUserID,
		&status,
		&conv.LastMessage,
		&conv.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	conv.Status = parsed
	if serviceUserID.Valid {
		v := serviceUserID.Int64
		conv.ServiceUserID = &v
	}
	conv.CreatedAt = fromNanos(createdAt)
	conv.UpdatedAt = fromNanos(updatedAt)

	return &conv, nil
}
