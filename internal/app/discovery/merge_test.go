package discovery_test

import (
	"testing"

	"github.com/dalemusser/studygroups/internal/app/discovery"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ids returns n distinct, increasing ObjectIDs so tests can refer to groups by index.
func ids(n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, n)
	for i := range out {
		out[i] = primitive.NewObjectID()
	}
	return out
}

func group(id primitive.ObjectID, name string) models.Group {
	return models.Group{ID: id, Name: name, Capacity: models.DefaultGroupCapacity}
}

func names(groups []models.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name
	}
	return out
}

func TestMerge_Empty(t *testing.T) {
	got := discovery.Merge(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMerge_RecommendedAlreadyInCandidates(t *testing.T) {
	id := ids(2)
	rec := group(id[1], "two")

	got := discovery.Merge(&rec, []models.Group{group(id[0], "one"), group(id[1], "two")})
	assert.Equal(t, []string{"one", "two"}, names(got))
}

func TestMerge_NovelRecommendationGoesLast(t *testing.T) {
	id := ids(3)
	rec := group(id[2], "nine")

	got := discovery.Merge(&rec, []models.Group{group(id[0], "five"), group(id[1], "three")})
	assert.Equal(t, []string{"five", "three", "nine"}, names(got))
}

func TestMerge_DeduplicatesCandidatesKeepingFirst(t *testing.T) {
	id := ids(3)
	first := group(id[0], "a")
	later := group(id[0], "a-stale")

	got := discovery.Merge(nil, []models.Group{first, group(id[1], "b"), later, group(id[2], "c"), group(id[1], "b2")})
	assert.Equal(t, []string{"a", "b", "c"}, names(got))
}

func TestMerge_OnlyRecommendation(t *testing.T) {
	id := ids(1)
	rec := group(id[0], "solo")

	got := discovery.Merge(&rec, nil)
	assert.Equal(t, []string{"solo"}, names(got))
}

func TestMerge_Properties(t *testing.T) {
	pool := ids(5)
	inputs := [][]int{
		{},
		{0},
		{0, 0, 0},
		{1, 2, 1, 3},
		{4, 3, 2, 1, 0},
		{0, 1, 2, 3, 4, 0, 1},
	}
	recs := []*int{nil, intp(0), intp(4)}

	for _, in := range inputs {
		for _, r := range recs {
			cands := make([]models.Group, len(in))
			for i, k := range in {
				cands[i] = group(pool[k], "")
			}
			var rec *models.Group
			if r != nil {
				g := group(pool[*r], "")
				rec = &g
			}

			got := discovery.Merge(rec, cands)

			assert.LessOrEqual(t, len(got), len(cands)+1)
			seen := map[primitive.ObjectID]bool{}
			for _, g := range got {
				assert.False(t, seen[g.ID], "duplicate id in %v / rec %v", in, r)
				seen[g.ID] = true
			}

			// Candidate first-seen order is preserved as a prefix.
			var order []primitive.ObjectID
			firstSeen := map[primitive.ObjectID]bool{}
			for _, c := range cands {
				if !firstSeen[c.ID] {
					firstSeen[c.ID] = true
					order = append(order, c.ID)
				}
			}
			for i, want := range order {
				assert.Equal(t, want, got[i].ID)
			}
			if rec != nil && !firstSeen[rec.ID] {
				assert.Equal(t, rec.ID, got[len(got)-1].ID)
			}

			// Deterministic.
			assert.Equal(t, got, discovery.Merge(rec, cands))
		}
	}
}

func intp(i int) *int { return &i }
