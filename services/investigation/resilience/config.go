// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resilience wraps LLM and tool invocations with a hard timeout,
// exponential-backoff retry, and transient-vs-permanent error classification.
//
// Every call through InvokeWithResilience either returns a response or fails
// with a classified, bounded-latency error. Nothing hangs indefinitely and
// non-retryable errors are never retried.
package resilience

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// InvocationConfig bounds a resilient invocation.
//
// The config is an immutable value object: load it once and share it
// read-only across all invocations.
type InvocationConfig struct {
	// Timeout is the hard per-attempt budget.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Total attempts = MaxRetries + 1.
	MaxRetries int

	// InitialRetryDelay is the backoff before the first retry.
	InitialRetryDelay time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64

	// MaxRetryDelay caps the backoff regardless of multiplier growth.
	MaxRetryDelay time.Duration
}

// DefaultInvocationConfig returns production defaults.
//
// Worst-case wall clock for the defaults:
// (3+1)*60s timeouts + (2s + 4s + 8s) backoff = 254s.
func DefaultInvocationConfig() InvocationConfig {
	return InvocationConfig{
		Timeout:           60 * time.Second,
		MaxRetries:        3,
		InitialRetryDelay: 2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     30 * time.Second,
	}
}

// ConfigFromEnv loads InvocationConfig overrides from the environment.
//
// Recognized variables (all optional, defaults from
// DefaultInvocationConfig): LLM_INVOKE_TIMEOUT_SECONDS, LLM_MAX_RETRIES,
// LLM_INITIAL_RETRY_DELAY_SECONDS, LLM_BACKOFF_MULTIPLIER,
// LLM_MAX_RETRY_DELAY_SECONDS. Invalid values are logged and ignored.
func ConfigFromEnv() InvocationConfig {
	cfg := DefaultInvocationConfig()

	if v := os.Getenv("LLM_INVOKE_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		} else {
			slog.Warn("invalid LLM_INVOKE_TIMEOUT_SECONDS, using default", "value", v)
		}
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		} else {
			slog.Warn("invalid LLM_MAX_RETRIES, using default", "value", v)
		}
	}
	if v := os.Getenv("LLM_INITIAL_RETRY_DELAY_SECONDS"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			cfg.InitialRetryDelay = time.Duration(secs * float64(time.Second))
		} else {
			slog.Warn("invalid LLM_INITIAL_RETRY_DELAY_SECONDS, using default", "value", v)
		}
	}
	if v := os.Getenv("LLM_BACKOFF_MULTIPLIER"); v != "" {
		if m, err := strconv.ParseFloat(v, 64); err == nil && m >= 1 {
			cfg.BackoffMultiplier = m
		} else {
			slog.Warn("invalid LLM_BACKOFF_MULTIPLIER, using default", "value", v)
		}
	}
	if v := os.Getenv("LLM_MAX_RETRY_DELAY_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.MaxRetryDelay = time.Duration(secs) * time.Second
		} else {
			slog.Warn("invalid LLM_MAX_RETRY_DELAY_SECONDS, using default", "value", v)
		}
	}

	return cfg
}

// RetryDelay returns the backoff before retry number attempt (1-based),
// capped at MaxRetryDelay.
func (c InvocationConfig) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.InitialRetryDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.BackoffMultiplier
		if time.Duration(delay) >= c.MaxRetryDelay {
			return c.MaxRetryDelay
		}
	}
	d := time.Duration(delay)
	if d > c.MaxRetryDelay {
		return c.MaxRetryDelay
	}
	return d
}

// MaxWallClock returns the documented upper bound on total invocation time:
// (MaxRetries+1) attempts at Timeout each, plus the sum of backoff delays.
func (c InvocationConfig) MaxWallClock() time.Duration {
	total := time.Duration(c.MaxRetries+1) * c.Timeout
	for i := 1; i <= c.MaxRetries; i++ {
		total += c.RetryDelay(i)
	}
	return total
}
