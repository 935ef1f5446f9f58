package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptStore_AppendClampsClock(t *testing.T) {
	store := NewTranscriptStore()
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := domain.NewTranscript(42, "hi", start)
	require.NoError(t, store.Create(ctx, tr))

	// a clock behind the session end must not move time backwards
	store.now = func() time.Time { return start.Add(-time.Minute) }
	msg, err := store.Append(ctx, tr.UUID, domain.SpeakerUser, "hello")
	require.NoError(t, err)
	assert.True(t, msg.Timestamp.Equal(start))

	store.now = func() time.Time { return start.Add(time.Minute) }
	msg, err = store.Append(ctx, tr.UUID, domain.SpeakerUser, "again")
	require.NoError(t, err)
	assert.True(t, msg.Timestamp.Equal(start.Add(time.Minute)))

	got, err := store.GetByUUID(ctx, tr.UUID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3)
	assert.True(t, got.Metadata.SessionEnd.Equal(start.Add(time.Minute)))

	assert.ErrorIs(t, store.Create(ctx, tr), domain.ErrInvalidState)
}

func TestTranscriptStore_ReturnsCopies(t *testing.T) {
	store := NewTranscriptStore()
	ctx := context.Background()

	tr := domain.NewTranscript(42, "hi", time.Now())
	require.NoError(t, store.Create(ctx, tr))

	got, err := store.GetByUUID(ctx, tr.UUID)
	require.NoError(t, err)
	got.Messages[0].Text = "mutated"

	again, err := store.GetByUUID(ctx, tr.UUID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Text)
}

func TestTranscriptStore_NotFound(t *testing.T) {
	store := NewTranscriptStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "missing", domain.SpeakerUser, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetRecentMessages(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), domain.ErrNotFound)
}

func TestConversationIndexStore_OrderingAndActive(t *testing.T) {
	store := NewConversationIndexStore()
	ctx := context.Background()

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	first, err := store.Create(ctx, 42, "first")
	require.NoError(t, err)
	// same timestamp: the higher id sorts first
	second, err := store.Create(ctx, 42, "second")
	require.NoError(t, err)

	list, err := store.ListByUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.UUID, list[0].UUID)

	clock = clock.Add(time.Second)
	_, err = store.Close(ctx, second.UUID)
	require.NoError(t, err)

	active, err := store.GetActiveByUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.UUID, active.UUID)

	list, err = store.ListByUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, second.UUID, list[0].UUID)

	none, err := store.GetActiveByUser(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestConversationIndexStore_StateMachine(t *testing.T) {
	store := NewConversationIndexStore()
	ctx := context.Background()

	conv, err := store.Create(ctx, 42, "hi")
	require.NoError(t, err)

	moved, err := store.Transfer(ctx, conv.UUID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTransferred, moved.Status)
	assert.Equal(t, int64(2), moved.Version)

	queue, err := store.ListTransferredByService(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	closed, err := store.Close(ctx, conv.UUID)
	require.NoError(t, err)
	again, err := store.Close(ctx, conv.UUID)
	require.NoError(t, err)
	assert.Equal(t, closed.Version, again.Version)

	_, err = store.Transfer(ctx, conv.UUID, 8)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, store.UpdateLastMessage(ctx, conv.UUID, "late"))
	repaired, err := store.GetByUUID(ctx, conv.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, repaired.Status)
	assert.Equal(t, "late", repaired.LastMessage)

	queue, err = store.ListTransferred(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestDirectory_Resolve(t *testing.T) {
	dir := NewDirectory()
	id := dir.Add("agent", domain.UserTypeService)
	dir.Put(10, "admin", domain.UserTypeAdmin)

	ident, err := dir.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ident.Roles.Has(domain.RoleService))

	next := dir.Add("customer", domain.UserTypeCustomer)
	assert.Equal(t, int64(11), next)

	_, err = dir.Resolve(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
