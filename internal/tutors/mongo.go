package tutors

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tutorlive/backend/internal/models"
)

// Collection is the tutor collection shared with the profile service.
const Collection = "newtutors"

// MongoRepository handles tutor persistence in MongoDB. Records created by
// the profile service carry ObjectID keys; both forms are matched.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a tutor repository over db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

// Upsert inserts or replaces a tutor record.
func (r *MongoRepository) Upsert(ctx context.Context, t *models.Tutor) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, options.Replace().SetUpsert(true))
	return err
}

// GetByID returns a tutor by ID, or nil when there is none.
func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.Tutor, error) {
	var t models.Tutor
	err := r.coll.FindOne(ctx, idFilter(id)).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetLive sets the isLive flag. An unknown id updates nothing.
func (r *MongoRepository) SetLive(ctx context.Context, id string, live bool) error {
	_, err := r.coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{"isLive": live}})
	return err
}

// ListLive returns approved tutors flagged live.
func (r *MongoRepository) ListLive(ctx context.Context) ([]models.LiveTutor, error) {
	opts := options.Find().
		SetProjection(bson.M{"name": 1, "image": 1, "skills": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"isLive": true, "approved": true}, opts)
	if err != nil {
		return nil, err
	}
	list := []models.LiveTutor{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// LiveIDs returns the ids of every tutor flagged live, approved or not.
func (r *MongoRepository) LiveIDs(ctx context.Context) ([]string, error) {
	cur, err := r.coll.Find(ctx, bson.M{"isLive": true}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
