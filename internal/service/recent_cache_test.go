package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/Rrens/flight-support/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process RecentCache
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]domain.Message
	sizes   map[string]int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]domain.Message{}, sizes: map[string]int{}}
}

func (c *mapCache) Get(ctx context.Context, id string, n int) ([]domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sizes[id] != n {
		return nil, nil
	}
	return c.entries[id], nil
}

func (c *mapCache) Set(ctx context.Context, id string, n int, messages []domain.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id], c.sizes[id] = messages, n
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	delete(c.sizes, id)
	return nil
}

// pausingContent holds the first armed GetRecentMessages call after it has
// read the transcript, until release is closed.
type pausingContent struct {
	*memory.TranscriptStore
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (p *pausingContent) GetRecentMessages(ctx context.Context, id string, n int) ([]domain.Message, error) {
	msgs, err := p.TranscriptStore.GetRecentMessages(ctx, id, n)
	if p.armed.Swap(false) {
		close(p.read)
		<-p.release
	}
	return msgs, err
}

func newCachedService(t *testing.T) (*ConversationService, *pausingContent, string) {
	t.Helper()

	dir := memory.NewDirectory()
	dir.Put(customerID, "customer", domain.UserTypeCustomer)

	content := &pausingContent{
		TranscriptStore: memory.NewTranscriptStore(),
		read:            make(chan struct{}),
		release:         make(chan struct{}),
	}
	svc := NewConversationService(memory.NewConversationIndexStore(), content, dir,
		WithLogger(zerolog.Nop()),
		WithRecentCache(newMapCache()),
	)

	conv, err := svc.Create(context.Background(), domain.CreateConversationRequest{UserID: customerID, InitialMessage: "hello"})
	require.NoError(t, err)

	return svc, content, conv.Index.UUID
}

// interleave starts a cache-filling read, runs write while that read is
// parked after loading the transcript, then lets the read finish.
func interleave(t *testing.T, svc *ConversationService, content *pausingContent, id string, write func() error) {
	t.Helper()

	content.armed.Store(true)
	readDone := make(chan error, 1)
	go func() {
		_, err := svc.GetRecentMessages(context.Background(), id, 5)
		readDone <- err
	}()
	<-content.read

	writeDone := make(chan error, 1)
	go func() { writeDone <- write() }()

	// give the writer time to run or block before the read resumes
	select {
	case err := <-writeDone:
		writeDone <- err
	case <-time.After(50 * time.Millisecond):
	}
	close(content.release)

	require.NoError(t, <-readDone)
	require.NoError(t, <-writeDone)
}

func TestGetRecentMessages_ReadRacingDelete(t *testing.T) {
	svc, content, id := newCachedService(t)
	ctx := context.Background()

	interleave(t, svc, content, id, func() error {
		return svc.DeleteConversation(ctx, id)
	})

	msgs, err := svc.GetRecentMessages(ctx, id, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, msgs)
}

func TestGetRecentMessages_ReadRacingAppend(t *testing.T) {
	svc, content, id := newCachedService(t)
	ctx := context.Background()

	interleave(t, svc, content, id, func() error {
		_, err := svc.AppendMessage(ctx, id, domain.AppendMessageRequest{Speaker: domain.SpeakerUser, Text: "bye"})
		return err
	})

	msgs, err := svc.GetRecentMessages(ctx, id, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "bye", msgs[1].Text)
}

func TestGetRecentMessages_ServesHits(t *testing.T) {
	svc, _, id := newCachedService(t)
	ctx := context.Background()

	first, err := svc.GetRecentMessages(ctx, id, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.GetRecentMessages(ctx, id, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
