package constants

import "time"

// Distributed lock constants
const (
	// RetryLockPrefix is the redsync key prefix for per-schedule sweep locks
	RetryLockPrefix = "lock:retry-schedule:"
	// RetryLockExpiration is how long a sweep claim lock is held at most
	RetryLockExpiration = 5 * time.Minute
	// RetryLockTries limits lock acquisition to a single attempt; a busy
	// lock means another sweeper instance owns the schedule this window
	RetryLockTries = 1
)

// Sweep constants
const (
	// DefaultSweepBatchSize caps how many due schedules one sweep claims
	DefaultSweepBatchSize = 100
	// DefaultRetrySweepSpec runs the retry sweep every five minutes
	DefaultRetrySweepSpec = "0 */5 * * * *"
	// DefaultExpirySweepSpec expires stale checkout sessions every fifteen minutes
	DefaultExpirySweepSpec = "0 */15 * * * *"
)

// Retry policy bounds (per merchant, validated at schedule creation)
const (
	MaxRetryIntervalDays = 9
	MaxRetryAttempts     = 5
)

// Notification constants
const (
	// DefaultNotificationTopic is the Kafka topic notification events go to
	DefaultNotificationTopic = "payment-notifications"
)

// Identity headers resolved by the upstream API gateway
const (
	HeaderMerchantID     = "X-Merchant-Id"
	HeaderOrganizationID = "X-Organization-Id"
	HeaderEnvironment    = "X-Environment"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

// Environments
const (
	EnvTest = "test"
	EnvLive = "live"
)
