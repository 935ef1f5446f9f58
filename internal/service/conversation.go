package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultRecentMessages = 10

// RecentCache caches transcript tails keyed by conversation uuid.
// Get returns nil on a miss.
type RecentCache interface {
	Get(ctx context.Context, conversationUUID string, n int) ([]domain.Message, error)
	Set(ctx context.Context, conversationUUID string, n int, messages []domain.Message) error
	Invalidate(ctx context.Context, conversationUUID string) error
}

// ConversationService coordinates the conversation index and the transcript
// store. Multi-store operations run in a fixed order under a per-uuid lock and
// report PartialFailure when only some of their steps committed; nothing is
// compensated automatically.
type ConversationService struct {
	index    domain.IndexStore
	content  domain.ContentStore
	identity domain.IdentityResolver

	locker              Locker
	cache               RecentCache
	recentDefault       int
	enforceSingleActive bool
	now                 func() time.Time
	logger              zerolog.Logger
}

// Option configures a ConversationService
type Option func(*ConversationService)

// WithLocker replaces the default in-process keyed mutex
func WithLocker(l Locker) Option {
	return func(s *ConversationService) { s.locker = l }
}

// WithRecentCache enables read-through caching of recent messages
func WithRecentCache(c RecentCache) Option {
	return func(s *ConversationService) { s.cache = c }
}

// WithRecentDefault sets n for GetRecentMessages calls that pass n <= 0
func WithRecentDefault(n int) Option {
	return func(s *ConversationService) {
		if n > 0 {
			s.recentDefault = n
		}
	}
}

// WithSingleActive rejects Create while the user has a non-closed conversation
func WithSingleActive(enabled bool) Option {
	return func(s *ConversationService) { s.enforceSingleActive = enabled }
}

// WithClock overrides the clock used for new transcripts
func WithClock(now func() time.Time) Option {
	return func(s *ConversationService) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *ConversationService) { s.logger = l }
}

// NewConversationService creates a new conversation service
func NewConversationService(
	index domain.IndexStore,
	content domain.ContentStore,
	identity domain.IdentityResolver,
	opts ...Option,
) *ConversationService {
	s := &ConversationService{
		index:         index,
		content:       content,
		identity:      identity,
		locker:        NewKeyedMutex(0),
		recentDefault: defaultRecentMessages,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        log.With().Str("component", "conversation").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a conversation: the index record first, since it mints the
// uuid, then the transcript under that same uuid. A transcript failure leaves
// the index record in place and is reported as a PartialFailure.
func (s *ConversationService) Create(ctx context.Context, req domain.CreateConversationRequest) (*domain.Conversation, error) {
	if err := domain.Validate(req); err != nil {
		return nil, domain.Annotate(err, "create", "")
	}

	if _, err := s.resolve(ctx, "create", req.UserID); err != nil {
		return nil, err
	}

	if s.enforceSingleActive {
		unlock, err := s.lock(ctx, "create", "user:"+strconv.FormatInt(req.UserID, 10))
		if err != nil {
			return nil, err
		}
		defer unlock()

		active, err := s.index.GetActiveByUser(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check active conversation: %w", err)
		}
		if active != nil {
			return nil, domain.InvalidState("create", active.UUID, active.Status)
		}
	}

	idx, err := s.index.Create(ctx, req.UserID, req.InitialMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation index: %w", err)
	}

	transcript := domain.NewTranscript(req.UserID, req.InitialMessage, s.now())
	transcript.UUID = idx.UUID

	if err := s.content.Create(ctx, transcript); err != nil {
		perr := domain.PartialFailure("create", idx.UUID, domain.StageTranscript, err)
		s.logPartial(perr)
		return nil, perr
	}

	s.logger.Debug().
		Str("uuid", idx.UUID).
		Int64("user_id", req.UserID).
		Msg("conversation created")

	return &domain.Conversation{Index: idx, Transcript: transcript}, nil
}

// AppendMessage records a message in the transcript and then refreshes the
// index's last message. If the second step fails the transcript keeps the
// message and SyncLastMessage repairs the index.
func (s *ConversationService) AppendMessage(ctx context.Context, id string, req domain.AppendMessageRequest) (*domain.Message, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}
	if err := domain.Validate(req); err != nil {
		return nil, domain.Annotate(err, "append", id)
	}

	unlock, err := s.lock(ctx, "append", id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	idx, err := s.index.GetByUUID(ctx, id)
	if err != nil {
		return nil, domain.Annotate(err, "append", id)
	}
	if !idx.Status.Accepts() {
		return nil, domain.InvalidState("append", id, idx.Status)
	}

	msg, err := s.content.Append(ctx, id, req.Speaker, req.Text)
	if err != nil {
		return nil, domain.Annotate(err, "append", id)
	}
	s.invalidate(ctx, id)

	if err := s.index.UpdateLastMessage(ctx, id, req.Text); err != nil {
		perr := domain.PartialFailure("append", id, domain.StageIndex, err)
		s.logPartial(perr)
		return nil, perr
	}

	return msg, nil
}

// SyncLastMessage overwrites the index's last message with the newest
// transcript entry. It is the retry path after an append PartialFailure and
// also repairs conversations that were closed before the retry ran.
func (s *ConversationService) SyncLastMessage(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, "sync", id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	msgs, err := s.content.GetRecentMessages(ctx, id, 1)
	if err != nil {
		return nil, domain.Restamp(err, "sync", id)
	}
	if len(msgs) > 0 {
		if err := s.index.UpdateLastMessage(ctx, id, msgs[len(msgs)-1].Text); err != nil {
			return nil, domain.Restamp(err, "sync", id)
		}
	}

	idx, err := s.index.GetByUUID(ctx, id)
	if err != nil {
		return nil, domain.Restamp(err, "sync", id)
	}
	return idx, nil
}

// TransferToService hands the conversation to a human agent. The agent must
// resolve to an identity holding the service role.
func (s *ConversationService) TransferToService(ctx context.Context, id string, req domain.TransferRequest) (*domain.ConversationIndex, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}
	if err := domain.Validate(req); err != nil {
		return nil, domain.Annotate(err, "transfer", id)
	}

	agent, err := s.resolve(ctx, "transfer", req.ServiceUserID)
	if err != nil {
		return nil, domain.Annotate(err, "transfer", id)
	}
	if !agent.Roles.Has(domain.RoleService) {
		return nil, &domain.Error{
			Kind: domain.KindReferential,
			Op:   "transfer",
			UUID: id,
			Err:  fmt.Errorf("user %d does not have the service role", req.ServiceUserID),
		}
	}

	unlock, err := s.lock(ctx, "transfer", id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	idx, err := s.index.Transfer(ctx, id, req.ServiceUserID)
	if err != nil {
		return nil, domain.Annotate(err, "transfer", id)
	}

	s.logger.Debug().
		Str("uuid", id).
		Int64("service_user_id", req.ServiceUserID).
		Msg("conversation transferred")

	return idx, nil
}

// CloseConversation closes the conversation. Closing twice succeeds.
func (s *ConversationService) CloseConversation(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, "close", id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	idx, err := s.index.Close(ctx, id)
	if err != nil {
		return nil, domain.Annotate(err, "close", id)
	}

	s.logger.Debug().Str("uuid", id).Msg("conversation closed")

	return idx, nil
}

// DeleteConversation removes the transcript and then the index record. A
// crash in between leaves only the index record, which still shows up in
// listings and drives cleanup. A missing transcript is tolerated as long as
// the index record exists.
func (s *ConversationService) DeleteConversation(ctx context.Context, id string) error {
	if err := domain.ValidateUUID(id); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, "delete", id)
	if err != nil {
		return err
	}
	defer unlock()

	transcriptDeleted := true
	if err := s.content.Delete(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to delete transcript: %w", err)
		}
		transcriptDeleted = false
	}
	s.invalidate(ctx, id)

	if err := s.index.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound) && !transcriptDeleted:
			return domain.NotFound("delete", id)
		case errors.Is(err, domain.ErrNotFound):
			// transcript was an orphan; removing it completes the delete
			s.logger.Warn().Str("uuid", id).Msg("deleted transcript had no index record")
			return nil
		case transcriptDeleted:
			perr := domain.PartialFailure("delete", id, domain.StageIndex, err)
			s.logPartial(perr)
			return perr
		default:
			return fmt.Errorf("failed to delete conversation index: %w", err)
		}
	}

	s.logger.Debug().Str("uuid", id).Bool("had_transcript", transcriptDeleted).Msg("conversation deleted")

	return nil
}

// GetIndex returns the index record
func (s *ConversationService) GetIndex(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}
	idx, err := s.index.GetByUUID(ctx, id)
	if err != nil {
		return nil, domain.Annotate(err, "get", id)
	}
	return idx, nil
}

// GetContent returns the full transcript
func (s *ConversationService) GetContent(ctx context.Context, id string) (*domain.Transcript, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}
	t, err := s.content.GetByUUID(ctx, id)
	if err != nil {
		return nil, domain.Annotate(err, "content", id)
	}
	return t, nil
}

// GetConversation returns the index record and transcript together
func (s *ConversationService) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	idx, err := s.GetIndex(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Conversation{Index: idx, Transcript: t}, nil
}

// GetRecentMessages returns the last n messages oldest first, reading through
// the recent cache when one is configured. n <= 0 uses the configured default.
// A miss is filled under the conversation lock, so an entry can never be
// written after the invalidate of a later append or delete.
func (s *ConversationService) GetRecentMessages(ctx context.Context, id string, n int) ([]domain.Message, error) {
	if err := domain.ValidateUUID(id); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.recentDefault
	}

	if s.cache == nil {
		return s.recentMessages(ctx, id, n)
	}

	cached, err := s.cache.Get(ctx, id, n)
	if err != nil {
		s.logger.Warn().Err(err).Str("uuid", id).Msg("recent cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// busy writer: serve the read, skip the fill
		return s.recentMessages(ctx, id, n)
	}
	defer unlock()

	msgs, err := s.recentMessages(ctx, id, n)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, id, n, msgs); err != nil {
		s.logger.Warn().Err(err).Str("uuid", id).Msg("recent cache write failed")
	}

	return msgs, nil
}

func (s *ConversationService) recentMessages(ctx context.Context, id string, n int) ([]domain.Message, error) {
	msgs, err := s.content.GetRecentMessages(ctx, id, n)
	if err != nil {
		return nil, domain.Annotate(err, "recent", id)
	}
	return msgs, nil
}

// ListByUser returns a user's index records, most recently updated first
func (s *ConversationService) ListByUser(ctx context.Context, userID int64) ([]domain.ConversationIndex, error) {
	return s.index.ListByUser(ctx, userID)
}

// ListContentsByUser returns a user's transcripts
func (s *ConversationService) ListContentsByUser(ctx context.Context, userID int64) ([]domain.Transcript, error) {
	return s.content.ListByUser(ctx, userID)
}

// GetActiveByUser returns the user's most recently updated non-closed
// conversation, or nil when there is none.
func (s *ConversationService) GetActiveByUser(ctx context.Context, userID int64) (*domain.ConversationIndex, error) {
	return s.index.GetActiveByUser(ctx, userID)
}

// ListByService returns the conversations currently assigned to an agent
func (s *ConversationService) ListByService(ctx context.Context, serviceUserID int64) ([]domain.ConversationIndex, error) {
	return s.index.ListTransferredByService(ctx, serviceUserID)
}

// ListTransferred returns every conversation waiting on an agent
func (s *ConversationService) ListTransferred(ctx context.Context) ([]domain.ConversationIndex, error) {
	return s.index.ListTransferred(ctx)
}

// ListAll returns every index record
func (s *ConversationService) ListAll(ctx context.Context) ([]domain.ConversationIndex, error) {
	return s.index.ListAll(ctx)
}

// Ping checks both stores and reports each result by store name
func (s *ConversationService) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		"index":   s.index.Ping(ctx),
		"content": s.content.Ping(ctx),
	}
}

func (s *ConversationService) resolve(ctx context.Context, op string, userID int64) (*domain.Identity, error) {
	ident, err := s.identity.Resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.Error{
				Kind: domain.KindReferential,
				Op:   op,
				Err:  fmt.Errorf("user %d does not exist", userID),
			}
		}
		return nil, fmt.Errorf("failed to resolve user %d: %w", userID, err)
	}
	return ident, nil
}

func (s *ConversationService) lock(ctx context.Context, op, key string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("key", key).Str("op", op).Msg("lock contention")
		return nil, domain.Conflict(op, key, err)
	}
	return unlock, nil
}

func (s *ConversationService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("uuid", id).Msg("recent cache invalidate failed")
	}
}

func (s *ConversationService) logPartial(err *domain.Error) {
	s.logger.Error().
		Err(err.Err).
		Str("uuid", err.UUID).
		Str("op", err.Op).
		Str("stage", err.Stage).
		Msg("partial failure")
}
