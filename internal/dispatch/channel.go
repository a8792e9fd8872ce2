package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DeliveryChannel sends a rendered alert to one subscriber. A nil
// return means delivered; failures are classified by the error types
// below so the dispatcher can retry, pause or give up on the recipient.
type DeliveryChannel interface {
	Send(ctx context.Context, userID int64, message string) error
}

// TransientError is a recoverable delivery failure (network hiccup,
// provider-side 5xx). The job moves to Retrying and is retried with
// backoff up to the attempt limit.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient delivery error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitError is a provider-imposed cooldown. Sends on the whole
// channel pause for RetryAfter; the attempt is not consumed.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// PermanentError means the recipient is unreachable for good (blocked
// the bot, deleted the chat). The job fails and the subscriber is
// auto-unsubscribed.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery error: %s", e.Reason)
}

// Classification helpers.

func asRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

func isPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
