package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a transcript message
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerService   Speaker = "service"
	SpeakerSystem    Speaker = "system"
)

// ConversationIndex is the relational index record of a conversation.
// UUID is minted by the IndexStore and is the cross-store correlation key.
type ConversationIndex struct {
	ID            int64              `json:"id"`
	UUID          string             `json:"uuid"`
	UserID        int64              `json:"user_id"`
	ServiceUserID *int64             `json:"service_user_id,omitempty"`
	Status        ConversationStatus `json:"status"`
	LastMessage   string             `json:"last_message"`
	Version       int64              `json:"-"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Message is a single transcript entry
type Message struct {
	Speaker   Speaker   `json:"speaker" bson:"speaker"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// TranscriptMetadata tracks the session window of a transcript
type TranscriptMetadata struct {
	SessionStart time.Time `json:"session_start" bson:"session_start"`
	SessionEnd   time.Time `json:"session_end" bson:"session_end"`
}

// Transcript is the append-only message log of a conversation
type Transcript struct {
	UUID     string             `json:"uuid"`
	UserID   int64              `json:"user_id"`
	Messages []Message          `json:"messages"`
	Metadata TranscriptMetadata `json:"metadata"`
}

// NewTranscript builds a transcript whose first message is spoken by the
// assistant. It carries a provisional UUID of its own; callers persisting it
// alongside an index record must replace it with the index UUID first.
func NewTranscript(userID int64, firstMessage string, now time.Time) *Transcript {
	now = now.UTC()
	return &Transcript{
		UUID:   uuid.New().String(),
		UserID: userID,
		Messages: []Message{
			{Speaker: SpeakerAssistant, Text: firstMessage, Timestamp: now},
		},
		Metadata: TranscriptMetadata{SessionStart: now, SessionEnd: now},
	}
}

// LastMessage returns the newest message, if any
func (t *Transcript) LastMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// Tail returns the last n messages, oldest first
func (t *Transcript) Tail(n int) []Message {
	if n <= 0 || n >= len(t.Messages) {
		out := make([]Message, len(t.Messages))
		copy(out, t.Messages)
		return out
	}
	out := make([]Message, n)
	copy(out, t.Messages[len(t.Messages)-n:])
	return out
}

// Conversation pairs the index record with its transcript
type Conversation struct {
	Index      *ConversationIndex `json:"index"`
	Transcript *Transcript        `json:"content"`
}

// IndexStore is the authoritative status/routing store.
// Single-record mutations are atomic; transfer and close are guarded against
// lost updates by the implementation (row lock or compare-and-swap).
type IndexStore interface {
	Create(ctx context.Context, userID int64, lastMessage string) (*ConversationIndex, error)
	GetByUUID(ctx context.Context, uuid string) (*ConversationIndex, error)
	ListByUser(ctx context.Context, userID int64) ([]ConversationIndex, error)
	GetActiveByUser(ctx context.Context, userID int64) (*ConversationIndex, error)
	ListTransferredByService(ctx context.Context, serviceUserID int64) ([]ConversationIndex, error)
	ListTransferred(ctx context.Context) ([]ConversationIndex, error)
	ListAll(ctx context.Context) ([]ConversationIndex, error)
	UpdateLastMessage(ctx context.Context, uuid, text string) error
	Transfer(ctx context.Context, uuid string, serviceUserID int64) (*ConversationIndex, error)
	Close(ctx context.Context, uuid string) (*ConversationIndex, error)
	Delete(ctx context.Context, uuid string) error
	Ping(ctx context.Context) error
}

// ContentStore is the authoritative transcript store
type ContentStore interface {
	Create(ctx context.Context, transcript *Transcript) error
	Append(ctx context.Context, uuid string, speaker Speaker, text string) (*Message, error)
	GetByUUID(ctx context.Context, uuid string) (*Transcript, error)
	GetRecentMessages(ctx context.Context, uuid string, n int) ([]Message, error)
	ListByUser(ctx context.Context, userID int64) ([]Transcript, error)
	Delete(ctx context.Context, uuid string) error
	Ping(ctx context.Context) error
}
