package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/flight-support/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// transcriptDocument is the stored shape of a transcript in the conversations collection
type transcriptDocument struct {
	ID       primitive.ObjectID        `bson:"_id,omitempty"`
	UUID     string                    `bson:"conversation_uuid"`
	UserID   int64                     `bson:"user_id"`
	Messages []domain.Message          `bson:"messages"`
	Metadata domain.TranscriptMetadata `bson:"metadata"`
}

func (d *transcriptDocument) toDomain() *domain.Transcript {
	msgs := d.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return &domain.Transcript{
		UUID:     d.UUID,
		UserID:   d.UserID,
		Messages: msgs,
		Metadata: d.Metadata,
	}
}

// TranscriptRepository implements domain.ContentStore on MongoDB.
// Appends are a single atomic pipeline update, so concurrent writers to the
// same transcript never overwrite each other.
type TranscriptRepository struct {
	client *Client
	coll   *mongo.Collection
}

// NewTranscriptRepository creates the repository and ensures its indexes
func NewTranscriptRepository(ctx context.Context, client *Client, collection string) (*TranscriptRepository, error) {
	coll := client.Database().Collection(collection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_uuid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_conversation_uuid"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "metadata.session_end", Value: -1}},
			Options: options.Index().SetName("idx_user_session_end"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript indexes: %w", err)
	}

	return &TranscriptRepository{client: client, coll: coll}, nil
}

// Create persists a new transcript under transcript.UUID
func (r *TranscriptRepository) Create(ctx context.Context, transcript *domain.Transcript) error {
	doc := transcriptDocument{
		UUID:     transcript.UUID,
		UserID:   transcript.UserID,
		Messages: transcript.Messages,
		Metadata: transcript.Metadata,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.Error{
				Kind: domain.KindInvalidState,
				Op:   "create",
				UUID: transcript.UUID,
				Err:  errors.New("transcript already exists"),
			}
		}
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	return nil
}

// Append adds a message stamped with the server clock. The timestamp is
// clamped to the previous session_end so it never goes backwards, and
// session_end advances to it in the same update.
func (r *TranscriptRepository) Append(ctx context.Context, id string, speaker domain.Speaker, text string) (*domain.Message, error) {
	stamp := bson.D{{Key: "$max", Value: bson.A{"$$NOW", "$metadata.session_end"}}}
	entry := bson.D{
		{Key: "speaker", Value: bson.D{{Key: "$literal", Value: string(speaker)}}},
		{Key: "text", Value: bson.D{{Key: "$literal", Value: text}}},
		{Key: "timestamp", Value: stamp},
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "messages", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$messages", bson.A{}}}},
				bson.A{entry},
			}}}},
			{Key: "metadata.session_end", Value: stamp},
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "messages", Value: bson.D{{Key: "$slice", Value: -1}}}})

	var doc transcriptDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "conversation_uuid", Value: id}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("append", id)
		}
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	if len(doc.Messages) == 0 {
		return nil, fmt.Errorf("failed to append message: empty transcript after update")
	}
	msg := doc.Messages[len(doc.Messages)-1]

	return &msg, nil
}

// GetByUUID retrieves a full transcript
func (r *TranscriptRepository) GetByUUID(ctx context.Context, id string) (*domain.Transcript, error) {
	var doc transcriptDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "conversation_uuid", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("get", id)
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	return doc.toDomain(), nil
}

// GetRecentMessages returns the last n messages oldest first; n <= 0 returns all
func (r *TranscriptRepository) GetRecentMessages(ctx context.Context, id string, n int) ([]domain.Message, error) {
	opts := options.FindOne()
	if n > 0 {
		opts.SetProjection(bson.D{{Key: "messages", Value: bson.D{{Key: "$slice", Value: -n}}}})
	}

	var doc transcriptDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "conversation_uuid", Value: id}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("recent", id)
		}
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}

	return doc.toDomain().Messages, nil
}

// ListByUser retrieves a user's transcripts, most recently active first
func (r *TranscriptRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Transcript, error) {
	opts := options.Find().SetSort(bson.D{{Key: "metadata.session_end", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer cursor.Close(ctx)

	transcripts := []domain.Transcript{}
	for cursor.Next(ctx) {
		var doc transcriptDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transcript: %w", err)
		}
		transcripts = append(transcripts, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}

	return transcripts, nil
}

// Delete removes a transcript
func (r *TranscriptRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "conversation_uuid", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.NotFound("delete", id)
	}

	return nil
}

// Ping verifies connectivity
func (r *TranscriptRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
