// Package membership decides group joins.
//
// A Coordinator serializes the read-check-append sequence for each group so
// that two concurrent joins can never both see the last free seat. Joins to
// different groups run in parallel. Repeating a join for the same (group,
// user) pair is a no-op success.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	groupstore "github.com/dalemusser/studygroups/internal/app/store/groups"
	"github.com/dalemusser/studygroups/internal/app/system/keylock"
	"github.com/dalemusser/studygroups/internal/app/system/metrics"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultLockWait bounds how long a join waits for the group's exclusion.
const DefaultLockWait = 2 * time.Second

var (
	ErrNotFound = errors.New("group not found")
	ErrFull     = errors.New("group is full")
	// ErrBusy means the group's exclusion could not be acquired in time.
	// Joins are idempotent, so callers may retry with backoff.
	ErrBusy = errors.New("group is busy, try again")
	// ErrSubjectTaken is returned when the one-group-per-subject policy is on
	// and the user already belongs to another group for the same subject.
	ErrSubjectTaken = errors.New("already a member of a group for this subject")
	ErrInvalidUser  = errors.New("user id is required")
	ErrNotMember    = errors.New("not a member of this group")
)

// Store is the slice of the group store the coordinator needs.
// AppendMember must only be called while holding the group's exclusion.
type Store interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	AppendMember(ctx context.Context, id primitive.ObjectID, userID string) (models.Group, error)
	HasSubjectMembership(ctx context.Context, userID, subject string, except primitive.ObjectID) (bool, error)
	RemoveMember(ctx context.Context, id primitive.ObjectID, userID string) (models.Group, error)
}

// Result is the outcome of a successful join or leave.
type Result struct {
	Success     bool `json:"success"`
	MemberCount int  `json:"member_count"`
	Capacity    int  `json:"capacity"`
	// Joined is false when the user was already a member, and after a leave.
	Joined bool `json:"joined"`
}

// Options tunes a Coordinator. Zero values select defaults.
type Options struct {
	LockWait           time.Duration
	OneGroupPerSubject bool
}

type Coordinator struct {
	store              Store
	locks              *keylock.Table
	lockWait           time.Duration
	oneGroupPerSubject bool
	log                *zap.Logger
}

func NewCoordinator(store Store, opts Options, logger *zap.Logger) *Coordinator {
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:              store,
		locks:              keylock.New(),
		lockWait:           opts.LockWait,
		oneGroupPerSubject: opts.OneGroupPerSubject,
		log:                logger,
	}
}

// Join adds userID to the group identified by groupID (hex ObjectID).
//
// Outcomes:
//   - success with Joined=true and the new count when a seat was taken;
//   - success with Joined=false and the unchanged count when already a member;
//   - ErrNotFound, ErrFull, ErrSubjectTaken, ErrBusy otherwise.
//
// Only the Joined=true path mutates the store.
func (c *Coordinator) Join(ctx context.Context, groupID, userID string) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrInvalidUser
	}
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(groupID))
	if err != nil {
		metrics.JoinsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return Result{}, ErrNotFound
	}

	attempt := uuid.NewString()
	log := c.log.With(
		zap.String("attempt_id", attempt),
		zap.String("group_id", oid.Hex()),
		zap.String("user_id", userID),
	)

	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()
	start := time.Now()

	// The per-user exclusion is always taken before the group one.
	if c.oneGroupPerSubject {
		releaseUser, err := c.locks.Acquire(lockCtx, "user:"+userID)
		if err != nil {
			return Result{}, c.lockFailed(ctx, metrics.JoinsTotal, "join", log, err)
		}
		defer releaseUser()
	}
	releaseGroup, err := c.locks.Acquire(lockCtx, "group:"+oid.Hex())
	if err != nil {
		return Result{}, c.lockFailed(ctx, metrics.JoinsTotal, "join", log, err)
	}
	defer releaseGroup()
	metrics.JoinLockWaitSeconds.Observe(time.Since(start).Seconds())

	res, outcome, err := c.joinLocked(ctx, oid, userID)
	metrics.JoinsTotal.WithLabelValues(outcome).Inc()
	switch outcome {
	case metrics.OutcomeJoined:
		log.Info("group joined",
			zap.Int("member_count", res.MemberCount),
			zap.Int("capacity", res.Capacity))
	case metrics.OutcomeError:
		log.Error("group join failed", zap.Error(err))
	default:
		log.Debug("group join declined", zap.String("outcome", outcome))
	}
	return res, err
}

// joinLocked runs with the group's exclusion held.
func (c *Coordinator) joinLocked(ctx context.Context, id primitive.ObjectID, userID string) (Result, string, error) {
	g, err := c.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			return Result{}, metrics.OutcomeNotFound, ErrNotFound
		}
		return Result{}, metrics.OutcomeError, fmt.Errorf("load group: %w", err)
	}

	if g.HasMember(userID) {
		return resultFor(g, false), metrics.OutcomeAlreadyMember, nil
	}

	if c.oneGroupPerSubject {
		taken, err := c.store.HasSubjectMembership(ctx, userID, g.Subject, g.ID)
		if err != nil {
			return Result{}, metrics.OutcomeError, fmt.Errorf("check subject membership: %w", err)
		}
		if taken {
			return Result{}, metrics.OutcomeSubjectTaken, ErrSubjectTaken
		}
	}

	if g.IsFull() {
		return Result{}, metrics.OutcomeFull, ErrFull
	}

	updated, err := c.store.AppendMember(ctx, id, userID)
	if err == nil {
		return resultFor(updated, true), metrics.OutcomeJoined, nil
	}
	if !errors.Is(err, groupstore.ErrNotAppended) {
		return Result{}, metrics.OutcomeError, fmt.Errorf("append member: %w", err)
	}

	// The document guard refused the write, so something changed the group
	// outside this coordinator. Re-read and report what is there now.
	g, err = c.store.GetByID(ctx, id)
	switch {
	case errors.Is(err, groupstore.ErrNotFound):
		return Result{}, metrics.OutcomeNotFound, ErrNotFound
	case err != nil:
		return Result{}, metrics.OutcomeError, fmt.Errorf("reload group: %w", err)
	case g.HasMember(userID):
		return resultFor(g, false), metrics.OutcomeAlreadyMember, nil
	case g.IsFull():
		return Result{}, metrics.OutcomeFull, ErrFull
	default:
		return Result{}, metrics.OutcomeError, fmt.Errorf("append member: %w", groupstore.ErrNotAppended)
	}
}

// Leave removes userID from the group identified by groupID. It takes the
// same exclusion as Join so a freed seat is seen by the next join.
// Returns ErrNotFound, ErrNotMember or ErrBusy when nothing was removed.
func (c *Coordinator) Leave(ctx context.Context, groupID, userID string) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrInvalidUser
	}
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(groupID))
	if err != nil {
		metrics.LeavesTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return Result{}, ErrNotFound
	}

	log := c.log.With(
		zap.String("attempt_id", uuid.NewString()),
		zap.String("group_id", oid.Hex()),
		zap.String("user_id", userID),
	)

	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()
	release, err := c.locks.Acquire(lockCtx, "group:"+oid.Hex())
	if err != nil {
		return Result{}, c.lockFailed(ctx, metrics.LeavesTotal, "leave", log, err)
	}
	defer release()

	res, outcome, err := c.leaveLocked(ctx, oid, userID)
	metrics.LeavesTotal.WithLabelValues(outcome).Inc()
	switch outcome {
	case metrics.OutcomeLeft:
		log.Info("group left", zap.Int("member_count", res.MemberCount))
	case metrics.OutcomeError:
		log.Error("group leave failed", zap.Error(err))
	}
	return res, err
}

func (c *Coordinator) leaveLocked(ctx context.Context, id primitive.ObjectID, userID string) (Result, string, error) {
	g, err := c.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			return Result{}, metrics.OutcomeNotFound, ErrNotFound
		}
		return Result{}, metrics.OutcomeError, fmt.Errorf("load group: %w", err)
	}
	if !g.HasMember(userID) {
		return Result{}, metrics.OutcomeNotMember, ErrNotMember
	}

	updated, err := c.store.RemoveMember(ctx, id, userID)
	if errors.Is(err, groupstore.ErrNotRemoved) {
		return Result{}, metrics.OutcomeNotMember, ErrNotMember
	}
	if err != nil {
		return Result{}, metrics.OutcomeError, fmt.Errorf("remove member: %w", err)
	}
	return resultFor(updated, false), metrics.OutcomeLeft, nil
}

// lockFailed classifies a failed Acquire. Only an explicit cancel by the
// caller passes through; running out of time, whether on the lock wait or
// on the caller's own deadline, is contention and reported as ErrBusy.
func (c *Coordinator) lockFailed(ctx context.Context, outcomes *prometheus.CounterVec, op string, log *zap.Logger, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		outcomes.WithLabelValues(metrics.OutcomeError).Inc()
		return ctx.Err()
	}
	outcomes.WithLabelValues(metrics.OutcomeBusy).Inc()
	log.Warn("group lock wait exceeded",
		zap.String("op", op),
		zap.Duration("wait", c.lockWait))
	return fmt.Errorf("%w: %v", ErrBusy, err)
}

func resultFor(g models.Group, joined bool) Result {
	return Result{
		Success:     true,
		MemberCount: g.MemberCount(),
		Capacity:    g.Capacity,
		Joined:      joined,
	}
}
