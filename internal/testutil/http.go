package testutil

import (
	"net/http"

	"github.com/dalemusser/studygroups/internal/app/system/auth"
)

// WithUser returns r with a signed-in session user in its context, as
// LoadSessionUser would leave it.
func WithUser(r *http.Request, userID, name, email string) *http.Request {
	u := &auth.SessionUser{ID: userID, Name: name, Email: email}
	return r.WithContext(auth.WithUser(r.Context(), u))
}
