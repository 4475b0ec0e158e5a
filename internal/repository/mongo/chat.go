package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type chatDoc struct {
	ID          string     `bson:"_id"`
	BookingID   string     `bson:"booking_id"`
	SenderID    string     `bson:"sender_id"`
	RecipientID string     `bson:"recipient_id"`
	Content     string     `bson:"content"`
	SentAt      time.Time  `bson:"sent_at"`
	ReadAt      *time.Time `bson:"read_at"`
}

// ChatRepository stores chat messages in MongoDB.
type ChatRepository struct {
	col *mongo.Collection
}

// NewChatRepository creates a chat repository over db.chat_messages.
func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection("chat_messages")}
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

// EnsureIndexes creates the history and unread-count indexes.
func (r *ChatRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "sent_at", Value: 1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	return classify(err)
}

func (r *ChatRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.col.InsertOne(ctx, chatDoc{
		ID:          m.ID,
		BookingID:   m.BookingID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		SentAt:      m.Timestamp,
		ReadAt:      m.ReadAt,
	})
	return classify(err)
}

func (r *ChatRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)

	messages := make([]*domain.ChatMessage, 0)
	for cur.Next(ctx) {
		var doc chatDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, &domain.ChatMessage{
			ID:          doc.ID,
			BookingID:   doc.BookingID,
			SenderID:    doc.SenderID,
			RecipientID: doc.RecipientID,
			Content:     doc.Content,
			Timestamp:   doc.SentAt,
			ReadAt:      doc.ReadAt,
		})
	}
	return messages, classify(cur.Err())
}

// unread matches messages addressed to recipientID that have no read_at.
func unread(recipientID string) bson.M {
	return bson.M{"recipient_id": recipientID, "read_at": nil}
}

func (r *ChatRepository) MarkRead(ctx context.Context, bookingID, recipientID string, at time.Time) (int, error) {
	filter := unread(recipientID)
	filter["booking_id"] = bookingID
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read_at": at}})
	if err != nil {
		return 0, classify(err)
	}
	return int(res.ModifiedCount), nil
}

func (r *ChatRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	n, err := r.col.CountDocuments(ctx, unread(recipientID))
	if err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}
