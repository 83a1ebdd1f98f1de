// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/studygroups/internal/app/membership"
	"github.com/dalemusser/studygroups/internal/app/system/ratelimit"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Searcher is the query façade (discovery.Service).
type Searcher interface {
	Search(ctx context.Context, subject string) ([]models.Group, error)
}

// Membership decides joins and leaves (membership.Coordinator).
type Membership interface {
	Join(ctx context.Context, groupID, userID string) (membership.Result, error)
	Leave(ctx context.Context, groupID, userID string) (membership.Result, error)
}

// GroupReader is the read side of the group store.
type GroupReader interface {
	ListMembers(ctx context.Context, id primitive.ObjectID) ([]models.MemberSummary, error)
	ListByMember(ctx context.Context, userID string) ([]models.Group, error)
}

// Handler is the shared dependency container for the groups feature.
type Handler struct {
	Searcher   Searcher
	Membership Membership
	Groups     GroupReader
	// JoinLimit throttles joins per user. Nil disables throttling.
	JoinLimit *ratelimit.Limiter
	// BusyRetryAfter is advertised to callers whose join timed out waiting
	// for the group.
	BusyRetryAfter time.Duration
	Log            *zap.Logger
}

// NewHandler constructs a new groups Handler. It is typically called
// from the bootstrap BuildHandler function.
func NewHandler(s Searcher, m Membership, g GroupReader, joinLimit *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{
		Searcher:       s,
		Membership:     m,
		Groups:         g,
		JoinLimit:      joinLimit,
		BusyRetryAfter: time.Second,
		Log:            logger,
	}
}

// groupView is the JSON shape of a group. Member ids are not exposed; use
// the members endpoint for that.
type groupView struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Capacity    int      `json:"capacity"`
	MemberCount int      `json:"member_count"`
	IsMember    bool     `json:"is_member"`
}

func viewsFor(groups []models.Group, userID string) []groupView {
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		tags := g.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, groupView{
			ID:          g.ID.Hex(),
			Subject:     g.Subject,
			Name:        g.Name,
			Description: g.Description,
			Tags:        tags,
			Capacity:    g.Capacity,
			MemberCount: g.MemberCount(),
			IsMember:    g.HasMember(userID),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
