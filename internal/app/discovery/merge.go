package discovery

import (
	"github.com/dalemusser/studygroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Merge combines a matcher's candidates and recommendation into one view.
//
// Candidates keep their order and only the first occurrence of each id is
// kept. The recommendation is appended last, and only if its id did not
// already appear among the candidates. The result is never nil.
func Merge(recommended *models.Group, candidates []models.Group) []models.Group {
	out := make([]models.Group, 0, len(candidates)+1)
	seen := make(map[primitive.ObjectID]struct{}, len(candidates)+1)

	for _, g := range candidates {
		if _, dup := seen[g.ID]; dup {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}

	if recommended != nil {
		if _, dup := seen[recommended.ID]; !dup {
			out = append(out, *recommended)
		}
	}
	return out
}
