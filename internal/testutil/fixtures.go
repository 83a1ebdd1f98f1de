package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given interests.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string, interests ...string) models.User {
	f.t.Helper()

	user := models.User{
		ID:        primitive.NewObjectID(),
		FullName:  fullName,
		Email:     email,
		Major:     "Computer Science",
		Interests: interests,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateGroup creates a test group for subject with the given capacity and
// initial members (opaque user ids).
func (f *Fixtures) CreateGroup(ctx context.Context, subject, name string, capacity int, members ...string) models.Group {
	f.t.Helper()

	if members == nil {
		members = []string{}
	}
	now := time.Now().UTC()
	group := models.Group{
		ID:          primitive.NewObjectID(),
		Subject:     subject,
		SubjectCI:   text.Fold(subject),
		Name:        name,
		NameCI:      text.Fold(name),
		Description: "Test group description",
		Tags:        []string{},
		Capacity:    capacity,
		Members:     members,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, group); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}

	return group
}

// CreateGroupWithTags is CreateGroup with tags set on the group.
func (f *Fixtures) CreateGroupWithTags(ctx context.Context, subject, name string, tags []string, members ...string) models.Group {
	f.t.Helper()

	g := f.CreateGroup(ctx, subject, name, models.DefaultGroupCapacity, members...)
	if _, err := f.db.Collection("groups").UpdateByID(ctx, g.ID, bson.M{"$set": bson.M{"tags": tags}}); err != nil {
		f.t.Fatalf("failed to set group tags: %v", err)
	}
	g.Tags = tags
	return g
}
