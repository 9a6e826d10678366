// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for invocation outcomes.
var (
	// ErrInvocationTimeout is returned when a single attempt exceeds its
	// per-call budget. The in-flight call is abandoned, not joined.
	ErrInvocationTimeout = errors.New("invocation timed out")

	// ErrNonRetryable wraps errors classified as permanent failures.
	ErrNonRetryable = errors.New("non-retryable invocation error")

	// ErrNilCallable is returned when no callable is supplied.
	ErrNilCallable = errors.New("invocation callable is nil")
)

// RetryExhaustedError is returned after all attempts fail.
//
// It wraps the last underlying error so callers can unwrap through it with
// errors.Is / errors.As.
type RetryExhaustedError struct {
	// Attempts is the total number of invocation attempts made.
	Attempts int

	// Elapsed is the total wall-clock time spent, including backoff sleeps.
	Elapsed time.Duration

	// LastErr is the error from the final attempt.
	LastErr error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts (%s): %v",
		e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastErr)
}

// Unwrap returns the last underlying error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
