package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// MongoStore persists shared quizzes in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("quizzes")}
}

func (s *MongoStore) Insert(ctx context.Context, q *models.Quiz) (string, error) {
	q.CreatedAt = time.Now()
	res, err := s.col.InsertOne(ctx, q)
	if err != nil {
		return "", fmt.Errorf("mongo insert: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	q.ID = oid
	q.ShareID = oid.Hex()
	return oid.Hex(), nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var q models.Quiz
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.ShareID = q.ID.Hex()
	return &q, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]models.Quiz, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Quiz
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ShareID = out[i].ID.Hex()
	}
	return out, nil
}
