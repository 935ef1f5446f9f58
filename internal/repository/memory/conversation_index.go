package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/google/uuid"
)

// ConversationIndexStore is an in-process domain.IndexStore.
// A single mutex makes every operation atomic.
type ConversationIndexStore struct {
	mu     sync.Mutex
	nextID int64
	byUUID map[string]*domain.ConversationIndex
	now    func() time.Time
}

// NewConversationIndexStore creates an empty index store
func NewConversationIndexStore() *ConversationIndexStore {
	return &ConversationIndexStore{
		byUUID: make(map[string]*domain.ConversationIndex),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConversationIndexStore) Create(ctx context.Context, userID int64, lastMessage string) (*domain.ConversationIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	conv := &domain.ConversationIndex{
		ID:          s.nextID,
		UUID:        uuid.New().String(),
		UserID:      userID,
		Status:      domain.StatusActive,
		LastMessage: lastMessage,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byUUID[conv.UUID] = conv

	return clone(conv), nil
}

func (s *ConversationIndexStore) GetByUUID(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byUUID[id]
	if !ok {
		return nil, domain.NotFound("get", id)
	}
	return clone(conv), nil
}

func (s *ConversationIndexStore) ListByUser(ctx context.Context, userID int64) ([]domain.ConversationIndex, error) {
	return s.filter(func(c *domain.ConversationIndex) bool { return c.UserID == userID }), nil
}

// GetActiveByUser returns the most recently updated non-closed record, or nil
func (s *ConversationIndexStore) GetActiveByUser(ctx context.Context, userID int64) (*domain.ConversationIndex, error) {
	open := s.filter(func(c *domain.ConversationIndex) bool {
		return c.UserID == userID && c.Status != domain.StatusClosed
	})
	if len(open) == 0 {
		return nil, nil
	}
	return &open[0], nil
}

func (s *ConversationIndexStore) ListTransferredByService(ctx context.Context, serviceUserID int64) ([]domain.ConversationIndex, error) {
	return s.filter(func(c *domain.ConversationIndex) bool {
		return c.Status == domain.StatusTransferred && c.ServiceUserID != nil && *c.ServiceUserID == serviceUserID
	}), nil
}

func (s *ConversationIndexStore) ListTransferred(ctx context.Context) ([]domain.ConversationIndex, error) {
	return s.filter(func(c *domain.ConversationIndex) bool { return c.Status == domain.StatusTransferred }), nil
}

func (s *ConversationIndexStore) ListAll(ctx context.Context) ([]domain.ConversationIndex, error) {
	return s.filter(func(*domain.ConversationIndex) bool { return true }), nil
}

func (s *ConversationIndexStore) UpdateLastMessage(ctx context.Context, id, text string) error {
	_, err := s.mutate(id, domain.ActionTouch, func(c *domain.ConversationIndex) {
		c.LastMessage = text
	})
	return err
}

func (s *ConversationIndexStore) Transfer(ctx context.Context, id string, serviceUserID int64) (*domain.ConversationIndex, error) {
	return s.mutate(id, domain.ActionTransfer, func(c *domain.ConversationIndex) {
		c.ServiceUserID = &serviceUserID
	})
}

func (s *ConversationIndexStore) Close(ctx context.Context, id string) (*domain.ConversationIndex, error) {
	return s.mutate(id, domain.ActionClose, nil)
}

func (s *ConversationIndexStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUUID[id]; !ok {
		return domain.NotFound("delete", id)
	}
	delete(s.byUUID, id)
	return nil
}

func (s *ConversationIndexStore) Ping(ctx context.Context) error {
	return nil
}

func (s *ConversationIndexStore) mutate(id string, action domain.Action, apply func(*domain.ConversationIndex)) (*domain.ConversationIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byUUID[id]
	if !ok {
		return nil, domain.NotFound(string(action), id)
	}

	next, err := domain.Transition(conv.Status, action)
	if err != nil {
		return nil, domain.Annotate(err, string(action), id)
	}
	if action == domain.ActionClose && conv.Status == domain.StatusClosed {
		return clone(conv), nil
	}

	if apply != nil {
		apply(conv)
	}
	conv.Status = next
	conv.Version++
	conv.UpdatedAt = s.now()

	return clone(conv), nil
}

func (s *ConversationIndexStore) filter(keep func(*domain.ConversationIndex) bool) []domain.ConversationIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.ConversationIndex{}
	for _, c := range s.byUUID {
		if keep(c) {
			out = append(out, *clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func clone(c *domain.ConversationIndex) *domain.ConversationIndex {
	cp := *c
	if c.ServiceUserID != nil {
		v := *c.ServiceUserID
		cp.ServiceUserID = &v
	}
	return &cp
}
