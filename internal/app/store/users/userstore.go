package userstore

import (
	"context"

	"github.com/dalemusser/studygroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a read-only view over the identity service's users collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByHexID loads a user by the hex form of its ObjectID. Identifiers that
// are not valid hex are reported as mongo.ErrNoDocuments.
func (s *Store) GetByHexID(ctx context.Context, hexID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}
	return s.GetByID(ctx, oid)
}

// GetByHexIDs loads users for the given hex identifiers in a single query.
// The result is keyed by hex id; identifiers with no matching user (or that
// are not valid hex) are absent from the map.
func (s *Store) GetByHexIDs(ctx context.Context, hexIDs []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(hexIDs))
	oids := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, h := range hexIDs {
		if oid, err := primitive.ObjectIDFromHex(h); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{
		"full_name": 1,
		"email":     1,
		"major":     1,
		"interests": 1,
	})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID.Hex()] = u
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
