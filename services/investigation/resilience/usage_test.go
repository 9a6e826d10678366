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

import "testing"

func TestExtractUsage(t *testing.T) {
	t.Run("openai token_usage shape", func(t *testing.T) {
		usage := ExtractUsage(map[string]any{
			"model": "gpt-4o",
			"token_usage": map[string]any{
				"prompt_tokens":     100,
				"completion_tokens": 40,
				"total_tokens":      140,
			},
		})
		if usage.Model != "gpt-4o" || usage.InputTokens != 100 ||
			usage.OutputTokens != 40 || usage.TotalTokens != 140 {
			t.Errorf("usage = %+v", usage)
		}
	})

	t.Run("anthropic usage shape with model_name", func(t *testing.T) {
		usage := ExtractUsage(map[string]any{
			"model_name": "claude-sonnet",
			"usage": map[string]any{
				"input_tokens":  float64(80),
				"output_tokens": float64(20),
			},
		})
		if usage.Model != "claude-sonnet" || usage.InputTokens != 80 || usage.OutputTokens != 20 {
			t.Errorf("usage = %+v", usage)
		}
		if usage.TotalTokens != 100 {
			t.Errorf("TotalTokens = %d, want summed 100", usage.TotalTokens)
		}
	})

	t.Run("nil metadata degrades to zero", func(t *testing.T) {
		if usage := ExtractUsage(nil); usage != (UsageMetadata{}) {
			t.Errorf("usage = %+v, want zero value", usage)
		}
	})

	t.Run("unrecognized shape degrades to zero tokens", func(t *testing.T) {
		usage := ExtractUsage(map[string]any{
			"model":   "local-llama",
			"billing": map[string]any{"tokens": 500},
		})
		if usage.Model != "local-llama" {
			t.Errorf("Model = %q", usage.Model)
		}
		if usage.InputTokens != 0 || usage.OutputTokens != 0 || usage.TotalTokens != 0 {
			t.Errorf("tokens = %+v, want zeros", usage)
		}
	})

	t.Run("malformed field types degrade to zero", func(t *testing.T) {
		usage := ExtractUsage(map[string]any{
			"token_usage": map[string]any{
				"prompt_tokens":     "a lot",
				"completion_tokens": nil,
			},
		})
		if usage.InputTokens != 0 || usage.OutputTokens != 0 {
			t.Errorf("usage = %+v, want zeros", usage)
		}
	})
}
