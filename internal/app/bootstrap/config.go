// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/studygroups/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const defaultSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for the study groups service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, group_capacity, etc.
//   - Environment variables: STUDYGROUPS_MONGO_URI, STUDYGROUPS_GROUP_CAPACITY, etc.
//   - Command-line flags: --mongo_uri, --group_capacity, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "studygroups", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "session_key", Default: defaultSessionKey, Desc: "Session signing key (must match the identity service)"},
	{Name: "session_name", Default: "studygroups-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Membership
	{Name: "group_capacity", Default: 6, Desc: "Member cap for groups created without one"},
	{Name: "join_lock_wait", Default: "2s", Desc: "How long a join waits for a busy group before failing"},
	{Name: "one_group_per_subject", Default: false, Desc: "Allow each student only one group per subject"},
	{Name: "join_rate_per_minute", Default: 30, Desc: "Join attempts allowed per student per minute (0 disables)"},

	// Matcher
	{Name: "matcher_autocreate", Default: true, Desc: "Create an empty group when a subject has none"},
	{Name: "matcher_max_candidates", Default: 50, Desc: "Maximum groups returned by one search"},
	{Name: "matcher_breaker_failures", Default: 5, Desc: "Consecutive matcher failures before searches fail fast"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for joins and single-document reads"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for searches and listings"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges, with precedence
// flags > env > files > defaults:
//   - .env and config.yaml/json/toml files
//   - environment variables (WAFFLE_* for core, STUDYGROUPS_* for app)
//   - command-line flags
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYGROUPS", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		GroupCapacity:      appValues.Int("group_capacity"),
		JoinLockWait:       appValues.Duration("join_lock_wait", 2*time.Second),
		OneGroupPerSubject: appValues.Bool("one_group_per_subject"),
		JoinRatePerMinute:  appValues.Int("join_rate_per_minute"),

		MatcherAutoCreate:      appValues.Bool("matcher_autocreate"),
		MatcherMaxCandidates:   int64(appValues.Int("matcher_max_candidates")),
		MatcherBreakerFailures: uint32(appValues.Int("matcher_breaker_failures")),

		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
	}

	timeouts.Configure(timeouts.Config{Short: appCfg.TimeoutShort, Medium: appCfg.TimeoutMedium})

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// It rejects a malformed MongoDB URI before any connection attempt and
// checks the membership settings that have no sensible fallback.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	var errs []error
	if appCfg.MongoDatabase == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	// outside prod an empty key gets a random one at startup
	if appCfg.SessionKey == "" && env == "prod" {
		errs = append(errs, errors.New("session_key is required in prod"))
	}
	if appCfg.GroupCapacity < 1 {
		errs = append(errs, fmt.Errorf("group_capacity must be at least 1, got %d", appCfg.GroupCapacity))
	}
	if appCfg.JoinLockWait <= 0 {
		errs = append(errs, fmt.Errorf("join_lock_wait must be positive, got %s", appCfg.JoinLockWait))
	}
	// a join must be able to report busy before its request deadline fires
	short := appCfg.TimeoutShort
	if short <= 0 {
		short = timeouts.DefaultShort
	}
	if appCfg.JoinLockWait >= short {
		errs = append(errs, fmt.Errorf("join_lock_wait (%s) must be shorter than timeout_short (%s)", appCfg.JoinLockWait, short))
	}
	if appCfg.JoinRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("join_rate_per_minute must not be negative, got %d", appCfg.JoinRatePerMinute))
	}
	if appCfg.MatcherMaxCandidates < 1 {
		errs = append(errs, fmt.Errorf("matcher_max_candidates must be at least 1, got %d", appCfg.MatcherMaxCandidates))
	}
	return errors.Join(errs...)
}
