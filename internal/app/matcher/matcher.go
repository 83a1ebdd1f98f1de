// Package matcher is the upstream recommender used by discovery.
//
// InterestMatcher lists the groups whose subject matches the query and picks
// one to recommend to the caller:
//   - the non-full group whose members (and tags) share the most interests
//     with the caller;
//   - otherwise the first group that has no members yet;
//   - otherwise, when auto-creation is on, a brand new empty group.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/studygroups/internal/app/discovery"
	groupstore "github.com/dalemusser/studygroups/internal/app/store/groups"
	"github.com/dalemusser/studygroups/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studygroups/internal/app/system/metrics"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultMaxCandidates caps how many groups one search returns.
const DefaultMaxCandidates = 50

// createAttempts bounds retries when a concurrently created group took the
// name we picked.
const createAttempts = 3

// GroupSource is the part of the group store the matcher reads and writes.
type GroupSource interface {
	ListBySubject(ctx context.Context, query string, limit int64) ([]models.Group, error)
	CountBySubject(ctx context.Context, subject string) (int64, error)
	Create(ctx context.Context, g models.Group) (models.Group, error)
}

// UserSource resolves users from opaque ids.
type UserSource interface {
	GetByHexID(ctx context.Context, hexID string) (*models.User, error)
	GetByHexIDs(ctx context.Context, hexIDs []string) (map[string]models.User, error)
}

// Options tunes an InterestMatcher.
type Options struct {
	MaxCandidates int64
	AutoCreate    bool
	// Capacity is used for auto-created groups. Zero selects the model default.
	Capacity int
}

type InterestMatcher struct {
	groups GroupSource
	users  UserSource
	opts   Options
	log    *zap.Logger
}

var _ discovery.Matcher = (*InterestMatcher)(nil)

func New(groups GroupSource, users UserSource, opts Options, logger *zap.Logger) *InterestMatcher {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.Capacity <= 0 {
		opts.Capacity = models.DefaultGroupCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterestMatcher{
		groups: groups,
		users:  users,
		opts:   opts,
		log:    logger,
	}
}

// FindCandidates implements discovery.Matcher. The caller is taken from ctx
// (see WithUserID); without one no interest matching happens.
func (m *InterestMatcher) FindCandidates(ctx context.Context, subject string) (discovery.Candidates, error) {
	groups, err := m.groups.ListBySubject(ctx, subject, m.opts.MaxCandidates)
	if err != nil {
		return discovery.Candidates{}, fmt.Errorf("list groups: %w", err)
	}

	interests, err := m.callerInterests(ctx)
	if err != nil {
		return discovery.Candidates{}, err
	}

	var memberIDs []string
	for _, g := range groups {
		memberIDs = append(memberIDs, g.Members...)
	}
	members := map[string]models.User{}
	if len(interests) > 0 && len(memberIDs) > 0 {
		if members, err = m.users.GetByHexIDs(ctx, memberIDs); err != nil {
			return discovery.Candidates{}, fmt.Errorf("load members: %w", err)
		}
	}

	if i := Recommend(interests, groups, members); i >= 0 {
		rec := groups[i]
		return discovery.Candidates{Recommended: &rec, Groups: groups}, nil
	}

	if !m.opts.AutoCreate {
		return discovery.Candidates{Groups: groups}, nil
	}

	created, err := m.createEmpty(ctx, subject)
	if err != nil {
		return discovery.Candidates{}, err
	}
	return discovery.Candidates{Recommended: &created, Groups: groups}, nil
}

func (m *InterestMatcher) callerInterests(ctx context.Context) (map[string]struct{}, error) {
	uid, ok := UserIDFrom(ctx)
	if !ok {
		return nil, nil
	}
	u, err := m.users.GetByHexID(ctx, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	return foldSet(u.Interests), nil
}

func (m *InterestMatcher) createEmpty(ctx context.Context, subject string) (models.Group, error) {
	subject = htmlsanitize.PlainText(subject)
	if subject == "" {
		return models.Group{}, errors.New("subject is empty after sanitizing")
	}

	n, err := m.groups.CountBySubject(ctx, subject)
	if err != nil {
		return models.Group{}, fmt.Errorf("count groups: %w", err)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		g, err := m.groups.Create(ctx, models.Group{
			Subject:     subject,
			Name:        fmt.Sprintf("%s Study Group #%d", subject, n+1+int64(attempt)),
			Description: fmt.Sprintf("%s study group, created automatically.", subject),
			Capacity:    m.opts.Capacity,
		})
		if errors.Is(err, groupstore.ErrDuplicateGroupName) {
			continue
		}
		if err != nil {
			return models.Group{}, fmt.Errorf("create group: %w", err)
		}
		metrics.GroupsAutoCreatedTotal.Inc()
		m.log.Info("created empty study group",
			zap.String("group_id", g.ID.Hex()),
			zap.String("subject", g.Subject),
			zap.String("name", g.Name))
		return g, nil
	}
	return models.Group{}, fmt.Errorf("create group: %w", groupstore.ErrDuplicateGroupName)
}

// Recommend returns the index of the group to recommend, or -1.
//
// Full groups are never recommended. The best non-full group by shared
// interest wins (earliest on ties); with no overlap anywhere, the first empty
// group is chosen.
func Recommend(interests map[string]struct{}, groups []models.Group, members map[string]models.User) int {
	best, bestScore := -1, 0
	firstEmpty := -1
	for i, g := range groups {
		if g.IsFull() {
			continue
		}
		if len(g.Members) == 0 && firstEmpty < 0 {
			firstEmpty = i
		}
		if score := overlapScore(interests, g, members); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return best
	}
	return firstEmpty
}

// overlapScore counts members sharing at least one interest with the caller,
// plus group tags that are among the caller's interests.
func overlapScore(interests map[string]struct{}, g models.Group, members map[string]models.User) int {
	if len(interests) == 0 {
		return 0
	}
	score := 0
	for _, id := range g.Members {
		u, ok := members[id]
		if !ok {
			continue
		}
		for _, in := range u.Interests {
			if _, hit := interests[text.Fold(strings.TrimSpace(in))]; hit {
				score++
				break
			}
		}
	}
	for _, tag := range g.Tags {
		if _, hit := interests[text.Fold(strings.TrimSpace(tag))]; hit {
			score++
		}
	}
	return score
}

func foldSet(vals []string) map[string]struct{} {
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if f := text.Fold(strings.TrimSpace(v)); f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}
