package telemetry

import "time"

// RetryPolicy is a bounded retry described as a plain value, so the
// connect and publish disciplines are independently testable instead of
// being buried in nested loops.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration // per-attempt wait on the broker token
	Backoff     time.Duration // fixed delay between attempts
}

// ConnectPolicy bounds connection establishment: 5 attempts, 2s apart.
// Exhaustion is not terminal for the process; the loop retries the
// whole Connect on a later iteration.
var ConnectPolicy = RetryPolicy{MaxAttempts: 5, Timeout: 5 * time.Second, Backoff: 2 * time.Second}

// PublishPolicy bounds one message delivery: 3 attempts, 5s per
// attempt, 1s between attempts. On exhaustion the message is dropped.
var PublishPolicy = RetryPolicy{MaxAttempts: 3, Timeout: 5 * time.Second, Backoff: 1 * time.Second}
