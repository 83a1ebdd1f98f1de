// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/studygroups/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /groups requires a signed-in student
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/search", h.ServeSearch)
		pr.Get("/mine", h.ServeMine)
		pr.With(h.limitJoins).Post("/join", h.HandleJoin)

		pr.Get("/{id}/members", h.ServeMembers)
		pr.Delete("/{id}/leave", h.HandleLeave)
	})

	return r
}
