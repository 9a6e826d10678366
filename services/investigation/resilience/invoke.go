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
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/observability"
)

var tracer = otel.Tracer("cormorant.resilience")

// InvocationFunc is one attempt at an external call: send the request, get
// one response. Implementations should honor ctx cancellation, but the
// wrapper does not depend on it — a non-cooperative call is abandoned once
// its deadline passes.
type InvocationFunc func(ctx context.Context) (*Response, error)

// Response is the provider-agnostic result of a successful invocation.
type Response struct {
	// Content is the response payload.
	Content string

	// Raw is the provider response for callers that need more than text.
	Raw any

	// Metadata is the provider response metadata, used for usage extraction.
	Metadata map[string]any

	// Usage is filled in by the wrapper after a successful call. Extraction
	// failures degrade to a zeroed record, never abort the invocation.
	Usage UsageMetadata
}

// attemptResult carries one attempt's outcome across the abandon boundary.
type attemptResult struct {
	resp *Response
	err  error
}

// InvokeWithResilience executes call with a hard per-attempt timeout,
// exponential-backoff retry, and error classification.
//
// Description:
//
//	Each attempt runs under its own deadline. If the deadline passes, the
//	attempt is abandoned (its goroutine delivers into a buffered channel
//	nobody reads) and the failure counts as a timeout. Retryable failures
//	back off min(initial*multiplier^(n-1), max) and retry, up to
//	cfg.MaxRetries+1 total attempts. Non-retryable failures return
//	immediately. Exhaustion returns *RetryExhaustedError wrapping the last
//	underlying error.
//
// Guarantee:
//
//	Total wall-clock time is bounded by cfg.MaxWallClock():
//	(MaxRetries+1)*Timeout + the sum of backoff delays.
//
// Inputs:
//
//	ctx - Caller context. Cancellation stops retries and backoff sleeps.
//	call - The invocation to protect. Must not be nil.
//	cfg - Immutable invocation budget.
//
// Outputs:
//
//	*Response - Populated with extracted usage metadata on success.
//	error - ErrNonRetryable-wrapped, *RetryExhaustedError, or ctx error.
//
// Thread Safety:
//
//	Safe for concurrent use. No state is shared across invocations.
func InvokeWithResilience(ctx context.Context, call InvocationFunc, cfg InvocationConfig) (*Response, error) {
	if call == nil {
		return nil, ErrNilCallable
	}

	ctx, span := tracer.Start(ctx, "resilience.Invoke",
		trace.WithAttributes(
			attribute.Int("max_retries", cfg.MaxRetries),
			attribute.Float64("timeout_seconds", cfg.Timeout.Seconds()),
		),
	)
	defer span.End()

	start := time.Now()
	attempts := cfg.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptStart := time.Now()
		resp, err := runAttempt(ctx, call, cfg.Timeout)
		elapsed := time.Since(attemptStart)

		if err == nil {
			resp.Usage = ExtractUsage(resp.Metadata)
			slog.Debug("invocation succeeded",
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", elapsed),
				slog.Int("total_tokens", resp.Usage.TotalTokens),
			)
			span.SetAttributes(attribute.Int("attempts", attempt))
			return resp, nil
		}

		class := Classify(err)
		lastErr = err

		slog.Warn("invocation attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("elapsed", elapsed),
			slog.String("classification", string(class)),
			slog.String("error", err.Error()),
		)

		if class == ClassNonRetryable {
			span.SetAttributes(attribute.String("outcome", "non_retryable"))
			return nil, fmt.Errorf("%w: %w", ErrNonRetryable, err)
		}

		if attempt == attempts {
			break
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordRetry(string(class))
		}

		delay := cfg.RetryDelay(attempt)
		slog.Debug("backing off before retry",
			slog.Int("next_attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	span.SetAttributes(attribute.String("outcome", "retries_exhausted"))
	return nil, &RetryExhaustedError{
		Attempts: attempts,
		Elapsed:  time.Since(start),
		LastErr:  lastErr,
	}
}

// runAttempt executes one attempt under a hard deadline.
//
// The call runs in its own goroutine delivering into a buffered channel, so
// a call that never returns is abandoned at the deadline without leaking a
// blocked goroutine on send.
func runAttempt(ctx context.Context, call InvocationFunc, timeout time.Duration) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		resp, err := call(attemptCtx)
		done <- attemptResult{resp: resp, err: err}
	}()

	select {
	case result := <-done:
		return result.resp, result.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			// Caller cancellation, not a per-attempt timeout.
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: after %s", ErrInvocationTimeout, timeout)
	}
}
