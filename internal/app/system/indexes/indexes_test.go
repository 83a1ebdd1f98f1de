package indexes_test

import (
	"testing"

	"github.com/dalemusser/studygroups/internal/app/system/indexes"
	"github.com/dalemusser/studygroups/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// SetupTestDB already ran EnsureAll once; a second run must be a no-op.
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesGroupIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection("groups").Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	indexNames := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if name, ok := idx["name"].(string); ok {
			indexNames[name] = true
		}
	}

	for _, want := range []string{
		"uniq_groups_subjectci_nameci",
		"idx_groups_nameci__id",
		"idx_groups_members_subjectci",
	} {
		if !indexNames[want] {
			t.Errorf("expected index %q to exist", want)
		}
	}
}
