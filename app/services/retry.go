package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// transportError is a failed call to an external provider
type transportError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *transportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *transportError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transport failure worth retrying
func IsRetryable(err error) bool {
	var te *transportError
	return errors.As(err, &te) && te.Retryable
}

func statusError(op string, status int, body string) error {
	return &transportError{
		Op:         op,
		StatusCode: status,
		Retryable:  status >= http.StatusInternalServerError || status == http.StatusTooManyRequests,
		Err:        fmt.Errorf("unexpected response: %s", body),
	}
}

func networkError(op string, err error) error {
	return &transportError{Op: op, Retryable: true, Err: err}
}

// withRetry runs fn up to attempts times, backing off linearly between
// retryable failures. Non-retryable errors return at once.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) || i == attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff * time.Duration(i)):
		}
	}
	return err
}
