package groups_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studygroups/internal/app/discovery"
	"github.com/dalemusser/studygroups/internal/app/features/groups"
	"github.com/dalemusser/studygroups/internal/app/matcher"
	"github.com/dalemusser/studygroups/internal/app/membership"
	groupstore "github.com/dalemusser/studygroups/internal/app/store/groups"
	"github.com/dalemusser/studygroups/internal/app/system/auth"
	"github.com/dalemusser/studygroups/internal/app/system/ratelimit"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/dalemusser/studygroups/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testUserID = "650000000000000000000001"

type fakeSearcher struct {
	groups  []models.Group
	err     error
	gotUser string
	gotQ    string
}

func (f *fakeSearcher) Search(ctx context.Context, subject string) ([]models.Group, error) {
	f.gotUser, _ = matcher.UserIDFrom(ctx)
	f.gotQ = subject
	return f.groups, f.err
}

type fakeMembership struct {
	res      membership.Result
	err      error
	gotGroup string
	gotUser  string
	calls    int
}

func (f *fakeMembership) Join(_ context.Context, groupID, userID string) (membership.Result, error) {
	f.calls++
	f.gotGroup, f.gotUser = groupID, userID
	return f.res, f.err
}

func (f *fakeMembership) Leave(_ context.Context, groupID, userID string) (membership.Result, error) {
	f.calls++
	f.gotGroup, f.gotUser = groupID, userID
	return f.res, f.err
}

type fakeReader struct {
	members []models.MemberSummary
	mine    []models.Group
	err     error
}

func (f *fakeReader) ListMembers(context.Context, primitive.ObjectID) ([]models.MemberSummary, error) {
	return f.members, f.err
}

func (f *fakeReader) ListByMember(context.Context, string) ([]models.Group, error) {
	return f.mine, f.err
}

func newHandler(s groups.Searcher, m groups.Membership, g groups.GroupReader) *groups.Handler {
	return groups.NewHandler(s, m, g, nil, zap.NewNop())
}

func signedIn(r *http.Request) *http.Request {
	return testutil.WithUser(r, testUserID, "Test Student", "student@test.com")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
}

func TestServeSearch_Success(t *testing.T) {
	a := models.Group{ID: primitive.NewObjectID(), Subject: "Biology", Name: "A", Capacity: 6, Members: []string{testUserID}}
	b := models.Group{ID: primitive.NewObjectID(), Subject: "Biology", Name: "B", Capacity: 6, Members: []string{}}
	s := &fakeSearcher{groups: []models.Group{a, b}}
	h := newHandler(s, &fakeMembership{}, &fakeReader{})

	req := signedIn(httptest.NewRequest(http.MethodGet, "/groups/search?q=bio", nil))
	rec := httptest.NewRecorder()
	h.ServeSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if s.gotQ != "bio" {
		t.Errorf("query: got %q, want %q", s.gotQ, "bio")
	}
	if s.gotUser != testUserID {
		t.Errorf("matcher user: got %q, want %q", s.gotUser, testUserID)
	}

	var body struct {
		Groups []struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			Tags        []string `json:"tags"`
			MemberCount int      `json:"member_count"`
			IsMember    bool     `json:"is_member"`
		} `json:"groups"`
	}
	decode(t, rec, &body)
	if len(body.Groups) != 2 {
		t.Fatalf("groups: got %d, want 2", len(body.Groups))
	}
	if body.Groups[0].ID != a.ID.Hex() || body.Groups[1].ID != b.ID.Hex() {
		t.Errorf("order not preserved: %+v", body.Groups)
	}
	if !body.Groups[0].IsMember || body.Groups[1].IsMember {
		t.Errorf("is_member: got %v/%v, want true/false", body.Groups[0].IsMember, body.Groups[1].IsMember)
	}
	if body.Groups[0].MemberCount != 1 {
		t.Errorf("member_count: got %d, want 1", body.Groups[0].MemberCount)
	}
	if body.Groups[1].Tags == nil {
		t.Error("tags should encode as an empty array")
	}
	if strings.Contains(rec.Body.String(), testUserID) {
		t.Error("member ids must not be exposed in search results")
	}
}

func TestServeSearch_EmptyResultIsArray(t *testing.T) {
	h := newHandler(&fakeSearcher{}, &fakeMembership{}, &fakeReader{})

	rec := httptest.NewRecorder()
	h.ServeSearch(rec, signedIn(httptest.NewRequest(http.MethodGet, "/groups/search?q=x", nil)))

	if got := strings.TrimSpace(rec.Body.String()); got != `{"groups":[]}` {
		t.Errorf("body: got %s, want {\"groups\":[]}", got)
	}
}

func TestServeSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid query", discovery.ErrInvalidQuery, http.StatusBadRequest},
		{"matcher unavailable", fmt.Errorf("%w: %w", discovery.ErrMatcherUnavailable, errors.New("down")), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeSearcher{err: tt.err}, &fakeMembership{}, &fakeReader{})
			rec := httptest.NewRecorder()
			h.ServeSearch(rec, signedIn(httptest.NewRequest(http.MethodGet, "/groups/search", nil)))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func joinRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/groups/join", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return signedIn(r)
}

func TestHandleJoin_Success(t *testing.T) {
	groupID := primitive.NewObjectID().Hex()
	m := &fakeMembership{res: membership.Result{Success: true, MemberCount: 3, Capacity: 6, Joined: true}}
	h := newHandler(&fakeSearcher{}, m, &fakeReader{})

	rec := httptest.NewRecorder()
	h.HandleJoin(rec, joinRequest(`{"group_id":"`+groupID+`"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if m.gotGroup != groupID || m.gotUser != testUserID {
		t.Errorf("join args: got (%q, %q)", m.gotGroup, m.gotUser)
	}

	var body struct {
		Success     bool `json:"success"`
		MemberCount int  `json:"member_count"`
		Joined      bool `json:"joined"`
	}
	decode(t, rec, &body)
	if !body.Success || body.MemberCount != 3 || !body.Joined {
		t.Errorf("body: got %+v", body)
	}
}

func TestHandleJoin_BadBody(t *testing.T) {
	for _, body := range []string{``, `not json`, `{}`, `{"group_id":"  "}`} {
		m := &fakeMembership{}
		h := newHandler(&fakeSearcher{}, m, &fakeReader{})
		rec := httptest.NewRecorder()
		h.HandleJoin(rec, joinRequest(body))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
		if m.calls != 0 {
			t.Errorf("body %q: coordinator should not be called", body)
		}
	}
}

func TestHandleJoin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", membership.ErrNotFound, http.StatusNotFound},
		{"full", membership.ErrFull, http.StatusConflict},
		{"subject taken", membership.ErrSubjectTaken, http.StatusConflict},
		{"busy", fmt.Errorf("%w: %v", membership.ErrBusy, context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"store failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeSearcher{}, &fakeMembership{err: tt.err}, &fakeReader{})
			rec := httptest.NewRecorder()
			h.HandleJoin(rec, joinRequest(`{"group_id":"x"}`))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleJoin_BusySetsRetryAfter(t *testing.T) {
	h := newHandler(&fakeSearcher{}, &fakeMembership{err: membership.ErrBusy}, &fakeReader{})
	h.BusyRetryAfter = 2 * time.Second

	rec := httptest.NewRecorder()
	h.HandleJoin(rec, joinRequest(`{"group_id":"x"}`))

	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After: got %q, want %q", got, "2")
	}
}

func TestHandleJoin_DeadlineIsRetryable(t *testing.T) {
	err := fmt.Errorf("load group: %w", context.DeadlineExceeded)
	h := newHandler(&fakeSearcher{}, &fakeMembership{err: err}, &fakeReader{})
	h.BusyRetryAfter = time.Second

	rec := httptest.NewRecorder()
	h.HandleJoin(rec, joinRequest(`{"group_id":"x"}`))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After: got %q, want %q", got, "1")
	}
}

func TestHandleLeave(t *testing.T) {
	groupID := primitive.NewObjectID().Hex()
	m := &fakeMembership{res: membership.Result{Success: true, MemberCount: 1, Capacity: 6}}
	h := newHandler(&fakeSearcher{}, m, &fakeReader{})

	req := signedIn(testutil.WithChiURLParam(httptest.NewRequest(http.MethodDelete, "/groups/"+groupID+"/leave", nil), "id", groupID))
	rec := httptest.NewRecorder()
	h.HandleLeave(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if m.gotGroup != groupID || m.gotUser != testUserID {
		t.Errorf("leave args: got (%q, %q)", m.gotGroup, m.gotUser)
	}

	m.err = membership.ErrNotMember
	rec = httptest.NewRecorder()
	h.HandleLeave(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("not member: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestServeMembers(t *testing.T) {
	groupID := primitive.NewObjectID().Hex()
	r := &fakeReader{members: []models.MemberSummary{
		{UserID: "u1", DisplayName: "Ada", Email: "ada@test.com", Major: "Math"},
		{UserID: "u2"},
	}}
	h := newHandler(&fakeSearcher{}, &fakeMembership{}, r)

	req := signedIn(testutil.WithChiURLParam(httptest.NewRequest(http.MethodGet, "/groups/"+groupID+"/members", nil), "id", groupID))
	rec := httptest.NewRecorder()
	h.ServeMembers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		GroupID string                 `json:"group_id"`
		Members []models.MemberSummary `json:"members"`
	}
	decode(t, rec, &body)
	if body.GroupID != groupID {
		t.Errorf("group_id: got %q, want %q", body.GroupID, groupID)
	}
	if len(body.Members) != 2 || body.Members[0].UserID != "u1" || body.Members[1].UserID != "u2" {
		t.Errorf("members: got %+v", body.Members)
	}
}

func TestServeMembers_NotFound(t *testing.T) {
	tests := []struct {
		name string
		id   string
		err  error
	}{
		{"bad id", "nope", nil},
		{"missing group", primitive.NewObjectID().Hex(), groupstore.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeSearcher{}, &fakeMembership{}, &fakeReader{err: tt.err})
			req := signedIn(testutil.WithChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.id))
			rec := httptest.NewRecorder()
			h.ServeMembers(rec, req)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status: got %d, want %d", rec.Code, http.StatusNotFound)
			}
		})
	}
}

func TestServeMine(t *testing.T) {
	g := models.Group{ID: primitive.NewObjectID(), Subject: "Art", Name: "Sketching", Capacity: 6, Members: []string{testUserID}}
	h := newHandler(&fakeSearcher{}, &fakeMembership{}, &fakeReader{mine: []models.Group{g}})

	rec := httptest.NewRecorder()
	h.ServeMine(rec, signedIn(httptest.NewRequest(http.MethodGet, "/groups/mine", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Groups []struct {
			ID       string `json:"id"`
			IsMember bool   `json:"is_member"`
		} `json:"groups"`
	}
	decode(t, rec, &body)
	if len(body.Groups) != 1 || body.Groups[0].ID != g.ID.Hex() || !body.Groups[0].IsMember {
		t.Errorf("groups: got %+v", body.Groups)
	}
}

func newSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sm
}

func TestRoutes_RequireSignedIn(t *testing.T) {
	m := &fakeMembership{}
	router := groups.Routes(newHandler(&fakeSearcher{}, m, &fakeReader{}), newSessionManager(t))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/search?q=x"},
		{http.MethodGet, "/mine"},
		{http.MethodPost, "/join"},
		{http.MethodGet, "/" + primitive.NewObjectID().Hex() + "/members"},
		{http.MethodDelete, "/" + primitive.NewObjectID().Hex() + "/leave"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"group_id":"x"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, rec.Code, http.StatusUnauthorized)
		}
	}
	if m.calls != 0 {
		t.Errorf("coordinator called %d times without a session", m.calls)
	}
}

func TestRoutes_JoinRateLimited(t *testing.T) {
	m := &fakeMembership{res: membership.Result{Success: true, MemberCount: 1, Capacity: 6, Joined: true}}
	h := groups.NewHandler(&fakeSearcher{}, m, &fakeReader{}, ratelimit.PerMinute(2), zap.NewNop())
	router := groups.Routes(h, newSessionManager(t))

	join := func() int {
		req := httptest.NewRequest(http.MethodPost, "/join", strings.NewReader(`{"group_id":"x"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedIn(req))
		return rec.Code
	}

	if got := join(); got != http.StatusOK {
		t.Fatalf("first join: got %d", got)
	}
	if got := join(); got != http.StatusOK {
		t.Fatalf("second join: got %d", got)
	}
	if got := join(); got != http.StatusTooManyRequests {
		t.Errorf("third join: got %d, want %d", got, http.StatusTooManyRequests)
	}
	if m.calls != 2 {
		t.Errorf("coordinator calls: got %d, want 2", m.calls)
	}
}
