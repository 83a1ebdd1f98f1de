// Package metrics holds the Prometheus collectors for group discovery and
// membership. Collectors are registered on the default registry and exposed
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Join outcomes used as the "outcome" label of JoinsTotal.
const (
	OutcomeJoined        = "joined"
	OutcomeAlreadyMember = "already_member"
	OutcomeFull          = "full"
	OutcomeNotFound      = "not_found"
	OutcomeBusy          = "busy"
	OutcomeSubjectTaken  = "subject_taken"
	OutcomeError         = "error"
)

// Leave outcomes used as the "outcome" label of LeavesTotal, alongside
// OutcomeNotFound, OutcomeBusy and OutcomeError.
const (
	OutcomeLeft      = "left"
	OutcomeNotMember = "not_member"
)

// Search outcomes used as the "outcome" label of SearchesTotal.
const (
	OutcomeOK                 = "ok"
	OutcomeInvalidQuery       = "invalid_query"
	OutcomeMatcherUnavailable = "matcher_unavailable"
)

var (
	// JoinsTotal counts join attempts by outcome.
	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygroups_joins_total",
		Help: "Total number of group join attempts by outcome",
	}, []string{"outcome"})

	// LeavesTotal counts leave attempts by outcome.
	LeavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygroups_leaves_total",
		Help: "Total number of group leave attempts by outcome",
	}, []string{"outcome"})

	// JoinLockWaitSeconds observes how long joins waited for the group exclusion.
	JoinLockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "studygroups_join_lock_wait_seconds",
		Help:    "Time spent waiting for the per-group join lock",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
	})

	// SearchesTotal counts group searches by outcome.
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygroups_searches_total",
		Help: "Total number of group searches by outcome",
	}, []string{"outcome"})

	// MatcherBreakerTransitions counts circuit breaker state changes.
	MatcherBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygroups_matcher_breaker_transitions_total",
		Help: "Matcher circuit breaker state transitions",
	}, []string{"to"})

	// GroupsAutoCreatedTotal counts groups the matcher created because no
	// empty group existed for a subject.
	GroupsAutoCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studygroups_groups_autocreated_total",
		Help: "Groups created automatically by the matcher",
	})
)
