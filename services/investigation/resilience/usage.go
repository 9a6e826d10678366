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

import "log/slog"

// UsageMetadata is provider-agnostic token accounting for one invocation.
type UsageMetadata struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

// ExtractUsage pulls token usage out of a provider response metadata map.
//
// Description:
//
//	Providers disagree on metadata shape. Two shapes are supported:
//
//	  "token_usage": {"prompt_tokens": N, "completion_tokens": N, "total_tokens": N}
//	  "usage":       {"input_tokens": N, "output_tokens": N}
//
//	The model name is read from "model" or "model_name" at the top level.
//	Any missing or malformed field degrades to zero; extraction never fails
//	the invocation it decorates.
//
// Inputs:
//
//	metadata - The provider response metadata. May be nil.
//
// Outputs:
//
//	UsageMetadata - Zeroed fields for anything unrecognized.
func ExtractUsage(metadata map[string]any) UsageMetadata {
	var usage UsageMetadata
	if metadata == nil {
		return usage
	}

	if m, ok := metadata["model"].(string); ok {
		usage.Model = m
	} else if m, ok := metadata["model_name"].(string); ok {
		usage.Model = m
	}

	// Shape 1: OpenAI-style "token_usage".
	if raw, ok := metadata["token_usage"].(map[string]any); ok {
		usage.InputTokens = intField(raw, "prompt_tokens")
		usage.OutputTokens = intField(raw, "completion_tokens")
		usage.TotalTokens = intField(raw, "total_tokens")
		if usage.TotalTokens == 0 {
			usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		}
		return usage
	}

	// Shape 2: Anthropic-style "usage".
	if raw, ok := metadata["usage"].(map[string]any); ok {
		usage.InputTokens = intField(raw, "input_tokens")
		usage.OutputTokens = intField(raw, "output_tokens")
		usage.TotalTokens = intField(raw, "total_tokens")
		if usage.TotalTokens == 0 {
			usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		}
		return usage
	}

	slog.Debug("no recognized usage shape in response metadata")
	return usage
}

// intField reads an integer out of a decoded-JSON map, tolerating the
// float64 values encoding/json produces.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
