// internal/app/features/groups/search.go
package groups

import (
	"errors"
	"net/http"

	"github.com/dalemusser/studygroups/internal/app/discovery"
	"github.com/dalemusser/studygroups/internal/app/matcher"
	"github.com/dalemusser/studygroups/internal/app/system/auth"
	"go.uber.org/zap"
)

// ServeSearch handles GET /groups/search?q=<subject>.
//
//	200 {"groups":[...]}   candidates in matcher order, recommendation last if new
//	400                    blank query
//	503                    matcher unavailable
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	userID := ""
	if u != nil {
		userID = u.ID
	}

	ctx := matcher.WithUserID(r.Context(), userID)
	groups, err := h.Searcher.Search(ctx, r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, discovery.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	case errors.Is(err, discovery.ErrMatcherUnavailable):
		h.Log.Warn("group search unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "search is temporarily unavailable")
		return
	case err != nil:
		h.Log.Error("group search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": viewsFor(groups, userID)})
}
