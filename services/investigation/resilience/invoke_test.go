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
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// fastConfig keeps retry tests quick while exercising the full budget math.
func fastConfig() InvocationConfig {
	return InvocationConfig{
		Timeout:           200 * time.Millisecond,
		MaxRetries:        3,
		InitialRetryDelay: 10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     100 * time.Millisecond,
	}
}

func TestInvokeSuccessFirstAttempt(t *testing.T) {
	var calls atomic.Int64
	resp, err := InvokeWithResilience(context.Background(), func(ctx context.Context) (*Response, error) {
		calls.Add(1)
		return &Response{Content: "ok"}, nil
	}, fastConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestInvokeRetriesExactlyMaxRetriesPlusOne(t *testing.T) {
	var calls atomic.Int64
	transient := errors.New("connection reset by peer")

	start := time.Now()
	_, err := InvokeWithResilience(context.Background(), func(ctx context.Context) (*Response, error) {
		calls.Add(1)
		return nil, transient
	}, fastConfig())
	elapsed := time.Since(start)

	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 4 (MaxRetries+1)", calls.Load())
	}

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *RetryExhaustedError", err)
	}
	if exhausted.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", exhausted.Attempts)
	}
	if !errors.Is(exhausted.LastErr, transient) {
		t.Errorf("LastErr = %v, want %v", exhausted.LastErr, transient)
	}

	// Backoff lower bound: 10ms + 20ms + 40ms between the four attempts.
	if elapsed < 70*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 70ms of backoff", elapsed)
	}
	if elapsed > fastConfig().MaxWallClock() {
		t.Errorf("elapsed = %v exceeds documented bound %v", elapsed, fastConfig().MaxWallClock())
	}
}

func TestInvokeNonRetryableFailsImmediately(t *testing.T) {
	var calls atomic.Int64
	_, err := InvokeWithResilience(context.Background(), func(ctx context.Context) (*Response, error) {
		calls.Add(1)
		return nil, errors.New("invalid api key provided")
	}, fastConfig())

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", calls.Load())
	}
	if !errors.Is(err, ErrNonRetryable) {
		t.Errorf("err = %v, want ErrNonRetryable", err)
	}
}

func TestInvokeAbandonsHungCall(t *testing.T) {
	cfg := fastConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxRetries = 0

	start := time.Now()
	_, err := InvokeWithResilience(context.Background(), func(ctx context.Context) (*Response, error) {
		// Ignores ctx entirely; the wrapper must still return on time.
		time.Sleep(2 * time.Second)
		return &Response{Content: "late"}, nil
	}, cfg)
	elapsed := time.Since(start)

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *RetryExhaustedError", err)
	}
	if !errors.Is(exhausted.LastErr, ErrInvocationTimeout) {
		t.Errorf("LastErr = %v, want ErrInvocationTimeout", exhausted.LastErr)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("elapsed = %v, wrapper did not abandon the hung call", elapsed)
	}
}

func TestInvokeCallerCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64

	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	_, err := InvokeWithResilience(ctx, func(ctx context.Context) (*Response, error) {
		calls.Add(1)
		return nil, errors.New("service unavailable")
	}, fastConfig())

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls.Load() >= 4 {
		t.Errorf("calls = %d, cancellation should have stopped retries early", calls.Load())
	}
}

func TestInvokeNilCallable(t *testing.T) {
	_, err := InvokeWithResilience(context.Background(), nil, fastConfig())
	if !errors.Is(err, ErrNilCallable) {
		t.Errorf("err = %v, want ErrNilCallable", err)
	}
}

func TestInvokeExtractsUsageOnSuccess(t *testing.T) {
	resp, err := InvokeWithResilience(context.Background(), func(ctx context.Context) (*Response, error) {
		return &Response{
			Content: "verdict",
			Metadata: map[string]any{
				"model": "gpt-4o-mini",
				"token_usage": map[string]any{
					"prompt_tokens":     float64(120),
					"completion_tokens": float64(30),
					"total_tokens":      float64(150),
				},
			},
		}, nil
	}, fastConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.Model != "gpt-4o-mini" || resp.Usage.InputTokens != 120 ||
		resp.Usage.OutputTokens != 30 || resp.Usage.TotalTokens != 150 {
		t.Errorf("Usage = %+v, want extracted token_usage shape", resp.Usage)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"rate limit is retryable", errors.New("429 too many requests"), ClassRetryable},
		{"server error is retryable", errors.New("502 bad gateway"), ClassRetryable},
		{"connection reset is retryable", errors.New("read tcp: connection reset"), ClassRetryable},
		{"unknown defaults to retryable", errors.New("flux capacitor drained"), ClassRetryable},
		{"auth failure is permanent", errors.New("401 unauthorized"), ClassNonRetryable},
		{"context window is permanent", errors.New("context_length_exceeded"), ClassNonRetryable},
		{"bad model is permanent", errors.New("model not found: gpt-9"), ClassNonRetryable},
		{"permanent wins over transient text", errors.New("invalid api key after timeout"), ClassNonRetryable},
		{"deadline exceeded is timeout", context.DeadlineExceeded, ClassTimeout},
		{"invocation timeout is timeout", fmt.Errorf("%w: after 1s", ErrInvocationTimeout), ClassTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryDelayCapped(t *testing.T) {
	cfg := InvocationConfig{
		InitialRetryDelay: 2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     30 * time.Second,
	}

	wants := []time.Duration{
		2 * time.Second,  // attempt 1
		4 * time.Second,  // attempt 2
		8 * time.Second,  // attempt 3
		16 * time.Second, // attempt 4
		30 * time.Second, // attempt 5, capped from 32s
		30 * time.Second, // attempt 6, stays capped
	}
	for i, want := range wants {
		if got := cfg.RetryDelay(i + 1); got != want {
			t.Errorf("RetryDelay(%d) = %v, want %v", i+1, got, want)
		}
	}
}

func TestMaxWallClock(t *testing.T) {
	cfg := DefaultInvocationConfig()
	// (3+1)*60s + (2s+4s+8s) backoff = 254s, documented on the type.
	if got, want := cfg.MaxWallClock(), 254*time.Second; got != want {
		t.Errorf("MaxWallClock() = %v, want %v", got, want)
	}
}
