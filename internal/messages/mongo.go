package messages

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tutorlive/backend/internal/models"
)

// Collection is the message collection name.
const Collection = "messages"

// MongoRepository handles message persistence in MongoDB. Expiry is delegated
// to a TTL index on createdAt.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository creates a message repository over db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection), now: time.Now}
}

// EnsureIndexes creates the count indexes and the retention TTL index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "seen", Value: 1}, {Key: "senderId", Value: 1}}},
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
		},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}
	return nil
}

// Create inserts m with seen=false and fills its id and creation time.
func (r *MongoRepository) Create(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = primitive.NewObjectID().Hex()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	}
	m.Seen = false
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func unseenFilter(receiverID, senderID string) bson.M {
	f := bson.M{"receiverId": receiverID, "seen": false}
	if senderID != "" {
		f["senderId"] = senderID
	}
	return f
}

// CountUnseen counts unseen messages to receiverID, from senderID only when set.
func (r *MongoRepository) CountUnseen(ctx context.Context, receiverID, senderID string) (int64, error) {
	return r.coll.CountDocuments(ctx, unseenFilter(receiverID, senderID))
}

// MarkSeen flips every unseen message from senderID to receiverID.
func (r *MongoRepository) MarkSeen(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx, unseenFilter(receiverID, senderID), bson.M{"$set": bson.M{"seen": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListByParticipant returns every message sent or received by userID, newest first.
func (r *MongoRepository) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{bson.M{"senderId": userID}, bson.M{"receiverId": userID}}}
	return r.find(ctx, filter, -1)
}

// Conversation returns the messages exchanged between a and b, oldest first.
func (r *MongoRepository) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": a, "receiverId": b},
		bson.M{"senderId": b, "receiverId": a},
	}}
	return r.find(ctx, filter, 1)
}

// PurgeBefore deletes messages created before cutoff. The TTL index normally
// does this; the sweeper calls it when the index is disabled.
func (r *MongoRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, order int) ([]models.Message, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: order}}))
	if err != nil {
		return nil, err
	}
	var list []models.Message
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}
