package scheduler

import "fmt"

// RetryStrategy decides how often a validation that failed with a retryable
// error is attempted again
type RetryStrategy struct {
	retries      uint32
	untilSuccess bool
}

// Limited returns a strategy that retries at most retries times
func Limited(retries uint32) RetryStrategy {
	return RetryStrategy{retries: retries}
}

// UntilSuccess returns a strategy that retries until the validation
// succeeds, fails with a non-retryable error, or is cancelled
func UntilSuccess() RetryStrategy {
	return RetryStrategy{untilSuccess: true}
}

// allowsRetry returns whether another attempt may follow the given number
// of failed attempts
func (rs RetryStrategy) allowsRetry(failedAttempts uint32) bool {
	return rs.untilSuccess || failedAttempts <= rs.retries
}

func (rs RetryStrategy) String() string {
	if rs.untilSuccess {
		return "UntilSuccess"
	}
	return fmt.Sprintf("Limited(%d)", rs.retries)
}
