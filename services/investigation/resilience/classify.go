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
	"strings"
)

// Classification is the retry verdict for a failed invocation.
type Classification string

const (
	// ClassRetryable marks transient failures worth another attempt.
	ClassRetryable Classification = "retryable"

	// ClassNonRetryable marks permanent failures that retrying cannot fix.
	ClassNonRetryable Classification = "non_retryable"

	// ClassTimeout marks per-attempt deadline hits. Always retried.
	ClassTimeout Classification = "timeout"
)

// retryablePatterns are substrings of transient provider errors.
// Matching is case-insensitive against the full error chain text.
var retryablePatterns = []string{
	"connection reset",
	"connection refused",
	"connection error",
	"broken pipe",
	"timeout",
	"timed out",
	"deadline exceeded",
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"temporarily unavailable",
	"overloaded",
	"eof",
}

// nonRetryablePatterns are substrings of permanent provider errors.
// Checked before retryablePatterns: a permanent match wins.
var nonRetryablePatterns = []string{
	"context length",
	"context_length_exceeded",
	"maximum context",
	"token limit exceeded",
	"invalid api key",
	"incorrect api key",
	"authentication",
	"unauthorized",
	"permission denied",
	"forbidden",
	"401",
	"403",
	"model not found",
	"model_not_found",
	"does not exist",
	"malformed",
	"invalid request",
	"invalid_request_error",
	"unsupported parameter",
}

// Classify buckets an invocation error as timeout, non-retryable, or
// retryable.
//
// Description:
//
//	Pattern-matches the error chain text (type names included via %v
//	formatting) against the permanent list first, then the transient list.
//	Unknown errors default to retryable: the wrapper favors availability
//	over fast-fail when a provider invents a new error string.
//
// Inputs:
//
//	err - The error to classify. Must not be nil.
//
// Outputs:
//
//	Classification - The retry verdict.
func Classify(err error) Classification {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrInvocationTimeout) {
		return ClassTimeout
	}

	text := strings.ToLower(fmt.Sprintf("%T: %v", err, err))

	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(text, pattern) {
			return ClassNonRetryable
		}
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(text, pattern) {
			return ClassRetryable
		}
	}

	// Unknown errors are treated as transient.
	return ClassRetryable
}
