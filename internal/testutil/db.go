package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dalemusser/studygroups/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// defaultTestMongoURI is used when STUDYGROUPS_TEST_MONGO_URI is not set.
const defaultTestMongoURI = "mongodb://localhost:27017"

// TestContext returns a context suitable for a single test's database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB connects to the test MongoDB, creates a throwaway database with
// the application's indexes, and drops it when the test finishes.
//
// Tests are skipped (not failed) when no MongoDB is reachable so that the
// pure unit tests can run anywhere.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("STUDYGROUPS_TEST_MONGO_URI")
	if uri == "" {
		uri = defaultTestMongoURI
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		t.Skipf("mongo not available (%s): %v", uri, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("mongo not reachable (%s): %v", uri, err)
	}

	db := client.Database("studygroups_test_" + primitive.NewObjectID().Hex())

	ictx, icancel := TestContext()
	defer icancel()
	if err := indexes.EnsureAll(ictx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		cctx, ccancel := TestContext()
		defer ccancel()
		_ = db.Drop(cctx)
		_ = client.Disconnect(cctx)
	})

	return db
}
