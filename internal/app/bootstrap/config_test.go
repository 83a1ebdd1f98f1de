package bootstrap

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:             "mongodb://localhost:27017",
		MongoDatabase:        "studygroups",
		SessionKey:           defaultSessionKey,
		GroupCapacity:        6,
		JoinLockWait:         2 * time.Second,
		TimeoutShort:         5 * time.Second,
		JoinRatePerMinute:    30,
		MatcherMaxCandidates: 50,
	}
}

func TestValidateApp_Valid(t *testing.T) {
	if err := validateApp("prod", validConfig()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateApp_SessionKeyOnlyRequiredInProd(t *testing.T) {
	cfg := validConfig()
	cfg.SessionKey = ""

	if err := validateApp("dev", cfg); err != nil {
		t.Errorf("dev: unexpected error: %v", err)
	}
	if err := validateApp("prod", cfg); err == nil {
		t.Error("prod: expected error for empty session_key")
	}
}

func TestValidateApp_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.MongoDatabase = ""
	cfg.GroupCapacity = 0
	cfg.JoinLockWait = 0
	cfg.JoinRatePerMinute = -1
	cfg.MatcherMaxCandidates = 0

	err := validateApp("dev", cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"mongo_database", "group_capacity", "join_lock_wait", "join_rate_per_minute", "matcher_max_candidates"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidateApp_LockWaitMustBeShorterThanRequestTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.JoinLockWait = 5 * time.Second
	cfg.TimeoutShort = 5 * time.Second

	err := validateApp("dev", cfg)
	if err == nil || !strings.Contains(err.Error(), "timeout_short") {
		t.Errorf("got %v, want an error mentioning timeout_short", err)
	}

	// an unset timeout_short falls back to the default
	cfg.TimeoutShort = 0
	cfg.JoinLockWait = 6 * time.Second
	if err := validateApp("dev", cfg); err == nil {
		t.Error("expected error against the default timeout_short")
	}
}
