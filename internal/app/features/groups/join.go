// internal/app/features/groups/join.go
package groups

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/studygroups/internal/app/membership"
	"github.com/dalemusser/studygroups/internal/app/system/auth"
	"github.com/dalemusser/studygroups/internal/app/system/ratelimit"
	"github.com/dalemusser/studygroups/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxJoinBody = 4 << 10

type joinRequest struct {
	GroupID string `json:"group_id"`
}

// HandleJoin handles POST /groups/join with body {"group_id":"..."}.
//
//	200 {"success":true,"member_count":n,"capacity":c,"joined":bool}
//	400 bad body, 404 unknown group, 409 full or subject taken,
//	503 busy (Retry-After set)
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJoinBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.GroupID) == "" {
		writeError(w, http.StatusBadRequest, "group_id is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "join group")
	defer cancel()

	res, err := h.Membership.Join(ctx, req.GroupID, u.ID)
	if err != nil {
		h.writeMembershipError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleLeave handles DELETE /groups/{id}/leave.
//
//	200 {"success":true,"member_count":n,...}
//	403 not a member, 404 unknown group, 503 busy
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "leave group")
	defer cancel()

	res, err := h.Membership.Leave(ctx, chi.URLParam(r, "id"), u.ID)
	if err != nil {
		h.writeMembershipError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeMembershipError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, membership.ErrNotFound):
		writeError(w, http.StatusNotFound, "group not found")
	case errors.Is(err, membership.ErrFull):
		writeError(w, http.StatusConflict, "group is full")
	case errors.Is(err, membership.ErrSubjectTaken):
		writeError(w, http.StatusConflict, "already a member of a group for this subject")
	case errors.Is(err, membership.ErrNotMember):
		writeError(w, http.StatusForbidden, "not a member of this group")
	case errors.Is(err, membership.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, "user id is required")
	case errors.Is(err, membership.ErrBusy), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(h.BusyRetryAfter))
		writeError(w, http.StatusServiceUnavailable, "group is busy, try again")
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		h.Log.Error("membership change failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// limitJoins applies JoinLimit per signed-in user.
func (h *Handler) limitJoins(next http.Handler) http.Handler {
	if h.JoinLimit == nil {
		return next
	}
	return h.JoinLimit.Middleware(func(r *http.Request) string {
		if u, ok := auth.CurrentUser(r); ok {
			return "user:" + u.ID
		}
		return ""
	})(next)
}
