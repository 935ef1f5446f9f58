package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
)

// TranscriptStore is an in-process domain.ContentStore
type TranscriptStore struct {
	mu          sync.Mutex
	transcripts map[string]*domain.Transcript
	now         func() time.Time
}

// NewTranscriptStore creates an empty transcript store
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		transcripts: make(map[string]*domain.Transcript),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *TranscriptStore) Create(ctx context.Context, transcript *domain.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[transcript.UUID]; ok {
		return &domain.Error{
			Kind: domain.KindInvalidState,
			Op:   "create",
			UUID: transcript.UUID,
			Err:  errors.New("transcript already exists"),
		}
	}
	s.transcripts[transcript.UUID] = cloneTranscript(transcript)
	return nil
}

// Append stamps the message with the store clock, never earlier than the
// previous session end.
func (s *TranscriptStore) Append(ctx context.Context, id string, speaker domain.Speaker, text string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, domain.NotFound("append", id)
	}

	ts := s.now()
	if ts.Before(t.Metadata.SessionEnd) {
		ts = t.Metadata.SessionEnd
	}
	msg := domain.Message{Speaker: speaker, Text: text, Timestamp: ts}
	t.Messages = append(t.Messages, msg)
	t.Metadata.SessionEnd = ts

	return &msg, nil
}

func (s *TranscriptStore) GetByUUID(ctx context.Context, id string) (*domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, domain.NotFound("get", id)
	}
	return cloneTranscript(t), nil
}

func (s *TranscriptStore) GetRecentMessages(ctx context.Context, id string, n int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, domain.NotFound("recent", id)
	}
	return t.Tail(n), nil
}

func (s *TranscriptStore) ListByUser(ctx context.Context, userID int64) ([]domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Transcript{}
	for _, t := range s.transcripts {
		if t.UserID == userID {
			out = append(out, *cloneTranscript(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.SessionEnd.After(out[j].Metadata.SessionEnd)
	})
	return out, nil
}

func (s *TranscriptStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[id]; !ok {
		return domain.NotFound("delete", id)
	}
	delete(s.transcripts, id)
	return nil
}

func (s *TranscriptStore) Ping(ctx context.Context) error {
	return nil
}

func cloneTranscript(t *domain.Transcript) *domain.Transcript {
	cp := *t
	cp.Messages = make([]domain.Message, len(t.Messages))
	copy(cp.Messages, t.Messages)
	return &cp
}
