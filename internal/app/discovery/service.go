// Package discovery answers "which study groups can I join for this subject?".
//
// Service.Search asks the upstream matcher for a recommendation and a
// candidate list and returns their merged, de-duplicated view. Nothing is
// cached between calls: member counts change as people join, so every search
// is a fresh snapshot.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/studygroups/internal/app/system/metrics"
	"github.com/dalemusser/studygroups/internal/app/system/timeouts"
	"github.com/dalemusser/studygroups/internal/domain/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrInvalidQuery is a user-correctable error: the subject was blank.
	ErrInvalidQuery = errors.New("search subject is required")
	// ErrMatcherUnavailable means the upstream matcher failed or its circuit
	// is open. The query itself was fine; the caller may try again later.
	ErrMatcherUnavailable = errors.New("group matcher unavailable")
)

// Candidates is what the upstream matcher returns for a subject.
type Candidates struct {
	Recommended *models.Group
	Groups      []models.Group
}

// Matcher owns relevance and recommendation for a subject.
type Matcher interface {
	FindCandidates(ctx context.Context, subject string) (Candidates, error)
}

// BreakerSettings tunes the circuit breaker around the matcher.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker. Zero selects 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing. Zero selects 30s.
	OpenTimeout time.Duration
}

type Service struct {
	matcher Matcher
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewService(m Matcher, bs BreakerSettings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = 5
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = 30 * time.Second
	}

	st := gobreaker.Settings{
		Name:    "matcher",
		Timeout: bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		// A caller that gave up is not a matcher failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.MatcherBreakerTransitions.WithLabelValues(to.String()).Inc()
			logger.Warn("matcher circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Service{
		matcher: m,
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     logger,
	}
}

// Search returns the merged view for subject.
func (s *Service) Search(ctx context.Context, subject string) ([]models.Group, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		metrics.SearchesTotal.WithLabelValues(metrics.OutcomeInvalidQuery).Inc()
		return nil, ErrInvalidQuery
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "matcher find candidates")
	defer cancel()

	out, err := s.breaker.Execute(func() (any, error) {
		return s.matcher.FindCandidates(ctx, subject)
	})
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.OutcomeMatcherUnavailable).Inc()
		s.log.Warn("matcher failed", zap.String("subject", subject), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrMatcherUnavailable, err)
	}

	res := out.(Candidates)
	metrics.SearchesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return Merge(res.Recommended, res.Groups), nil
}
