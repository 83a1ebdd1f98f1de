package discovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/studygroups/internal/app/discovery"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMatcher struct {
	calls    int
	subjects []string
	result   discovery.Candidates
	err      error
}

func (m *fakeMatcher) FindCandidates(ctx context.Context, subject string) (discovery.Candidates, error) {
	m.calls++
	m.subjects = append(m.subjects, subject)
	if m.err != nil {
		return discovery.Candidates{}, m.err
	}
	return m.result, nil
}

func newService(m discovery.Matcher) *discovery.Service {
	return discovery.NewService(m, discovery.BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())
}

func TestSearch_BlankSubjectIsInvalid(t *testing.T) {
	m := &fakeMatcher{}
	svc := newService(m)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.Search(context.Background(), q)
		assert.ErrorIs(t, err, discovery.ErrInvalidQuery, "query %q", q)
	}
	assert.Equal(t, 0, m.calls, "matcher must not be called for invalid input")
}

func TestSearch_MergesMatcherResult(t *testing.T) {
	id := ids(3)
	rec := group(id[2], "rec")
	m := &fakeMatcher{result: discovery.Candidates{
		Recommended: &rec,
		Groups:      []models.Group{group(id[0], "a"), group(id[1], "b"), group(id[0], "a")},
	}}
	svc := newService(m)

	got, err := svc.Search(context.Background(), "  Calculus ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "rec"}, names(got))
	assert.Equal(t, []string{"Calculus"}, m.subjects, "subject is trimmed before matching")
}

func TestSearch_DoesNotCache(t *testing.T) {
	m := &fakeMatcher{}
	svc := newService(m)

	_, err := svc.Search(context.Background(), "Physics")
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "Physics")
	require.NoError(t, err)
	assert.Equal(t, 2, m.calls)
}

func TestSearch_MatcherFailureIsDistinct(t *testing.T) {
	boom := errors.New("upstream down")
	m := &fakeMatcher{err: boom}
	svc := newService(m)

	_, err := svc.Search(context.Background(), "Physics")
	assert.ErrorIs(t, err, discovery.ErrMatcherUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, discovery.ErrInvalidQuery)
}

func TestSearch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	m := &fakeMatcher{err: errors.New("upstream down")}
	svc := newService(m)

	for i := 0; i < 2; i++ {
		_, err := svc.Search(context.Background(), "Physics")
		assert.ErrorIs(t, err, discovery.ErrMatcherUnavailable)
	}
	assert.Equal(t, 2, m.calls)

	// Open circuit: fail fast without calling the matcher.
	m.err = nil
	_, err := svc.Search(context.Background(), "Physics")
	assert.ErrorIs(t, err, discovery.ErrMatcherUnavailable)
	assert.Equal(t, 2, m.calls)
}
