// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/studygroups/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs after DB connections and schema setup are complete, but
// before the HTTP handler is built. It records the effective settings so
// operators can see which policy is live.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	t := timeouts.Current()
	logger.Info("study groups configured",
		zap.String("env", coreCfg.Env),
		zap.Int("group_capacity", appCfg.GroupCapacity),
		zap.Duration("join_lock_wait", appCfg.JoinLockWait),
		zap.Bool("one_group_per_subject", appCfg.OneGroupPerSubject),
		zap.Int("join_rate_per_minute", appCfg.JoinRatePerMinute),
		zap.Bool("matcher_autocreate", appCfg.MatcherAutoCreate),
		zap.Int64("matcher_max_candidates", appCfg.MatcherMaxCandidates),
		zap.Duration("timeout_short", t.Short),
		zap.Duration("timeout_medium", t.Medium),
	)
	if coreCfg.Env == "prod" && appCfg.SessionKey == defaultSessionKey {
		logger.Warn("running in prod with the default session key")
	}
	return nil
}
