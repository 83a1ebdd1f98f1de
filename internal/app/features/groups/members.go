// internal/app/features/groups/members.go
package groups

import (
	"errors"
	"net/http"

	groupstore "github.com/dalemusser/studygroups/internal/app/store/groups"
	"github.com/dalemusser/studygroups/internal/app/system/auth"
	"github.com/dalemusser/studygroups/internal/app/system/timeouts"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ServeMembers handles GET /groups/{id}/members.
//
//	200 {"group_id":"...","members":[{"user_id","display_name","email","major"}]}
//	404 unknown group
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	idHex := chi.URLParam(r, "id")
	oid, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list members")
	defer cancel()

	members, err := h.Groups.ListMembers(ctx, oid)
	if errors.Is(err, groupstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		h.Log.Error("list members failed", zap.Error(err), zap.String("group_id", idHex))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if members == nil {
		members = []models.MemberSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group_id": oid.Hex(),
		"members":  members,
	})
}

// ServeMine handles GET /groups/mine: the caller's groups.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list my groups")
	defer cancel()

	groups, err := h.Groups.ListByMember(ctx, u.ID)
	if err != nil {
		h.Log.Error("list my groups failed", zap.Error(err), zap.String("user_id", u.ID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": viewsFor(groups, u.ID)})
}
