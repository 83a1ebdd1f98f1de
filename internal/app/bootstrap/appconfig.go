// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything specific
// to study groups lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (shared with the identity service)
	SessionName   string        // Cookie name for sessions
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Membership
	GroupCapacity      int           // capacity for groups created without one
	JoinLockWait       time.Duration // how long a join waits for the group before answering busy
	OneGroupPerSubject bool          // reject joins to a second group of the same subject
	JoinRatePerMinute  int           // per-user join attempts per minute (0 disables)

	// Matcher
	MatcherAutoCreate      bool   // create an empty group when none exists for a subject
	MatcherMaxCandidates   int64  // cap on groups returned by one search
	MatcherBreakerFailures uint32 // consecutive failures that open the matcher breaker

	// Timeouts (zero keeps the built-in default)
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
}
