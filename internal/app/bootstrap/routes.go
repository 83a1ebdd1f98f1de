// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	"github.com/dalemusser/studygroups/internal/app/discovery"
	groupsfeature "github.com/dalemusser/studygroups/internal/app/features/groups"
	healthfeature "github.com/dalemusser/studygroups/internal/app/features/health"
	"github.com/dalemusser/studygroups/internal/app/matcher"
	"github.com/dalemusser/studygroups/internal/app/membership"
	groupstore "github.com/dalemusser/studygroups/internal/app/store/groups"
	metricsstore "github.com/dalemusser/studygroups/internal/app/store/metrics"
	userstore "github.com/dalemusser/studygroups/internal/app/store/users"
	"github.com/dalemusser/studygroups/internal/app/system/auth"
	"github.com/dalemusser/studygroups/internal/app/system/ratelimit"
	"github.com/dalemusser/studygroups/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It wires the stores into the matcher,
// the search façade and the membership coordinator, then mounts:
//
//	/health   Mongo ping
//	/metrics  Prometheus
//	/groups   search, join, leave, members, mine (signed-in only)
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	sessionKey := appCfg.SessionKey
	if sessionKey == "" {
		k, err := auth.RandomSessionKey()
		if err != nil {
			return nil, err
		}
		logger.Warn("session_key not set; using a random key, sessions will not survive a restart")
		sessionKey = k
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(sessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	users := userstore.New(deps.MongoDatabase)
	groups := groupstore.New(deps.MongoDatabase)

	interestMatcher := matcher.New(groups, users, matcher.Options{
		MaxCandidates: appCfg.MatcherMaxCandidates,
		AutoCreate:    appCfg.MatcherAutoCreate,
		Capacity:      appCfg.GroupCapacity,
	}, logger.Named("matcher"))

	search := discovery.NewService(interestMatcher, discovery.BreakerSettings{
		ConsecutiveFailures: appCfg.MatcherBreakerFailures,
	}, logger.Named("discovery"))

	coordinator := membership.NewCoordinator(groups, membership.Options{
		LockWait:           appCfg.JoinLockWait,
		OneGroupPerSubject: appCfg.OneGroupPerSubject,
	}, logger.Named("membership"))

	var joinLimit *ratelimit.Limiter
	if appCfg.JoinRatePerMinute > 0 {
		joinLimit = ratelimit.PerMinute(appCfg.JoinRatePerMinute)
	}

	occupancy := metricsstore.NewCollector(deps.MongoDatabase, timeouts.Short(), logger)
	if err := prometheus.Register(occupancy); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.Handler())

	groupsHandler := groupsfeature.NewHandler(search, coordinator, groups, joinLimit, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	return r, nil
}
