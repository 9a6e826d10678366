// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// keyPayload is the canonical fingerprint input for a query.
//
// Field order matters: encoding/json emits struct fields in declaration
// order, which fixes the canonical byte layout.
type keyPayload struct {
	QueryType   string         `json:"query_type"`
	Entities    []string       `json:"entities"`
	Expression  string         `json:"expression"`
	ExtraParams map[string]any `json:"extra_params,omitempty"`
}

// CacheKey derives the deterministic key for a query.
//
// Description:
//
//	Canonicalizes {query_type, sorted entities, lowercased+trimmed Boolean
//	expression, extra params} to JSON (encoding/json sorts map keys), hashes
//	with SHA-256, and truncates to 16 hex characters. The format is an exact
//	contract: test fixtures depend on its reproducibility.
//
// Inputs:
//
//	queryType - The query family (e.g. "splunk_search").
//	entities - Entity identifiers in any order.
//	expression - The Boolean query expression.
//	extraParams - Optional discriminating parameters. May be nil.
//
// Outputs:
//
//	string - 16 lowercase hex characters.
func CacheKey(queryType string, entities []string, expression string, extraParams map[string]any) string {
	sorted := make([]string, len(entities))
	copy(sorted, entities)
	sort.Strings(sorted)

	payload := keyPayload{
		QueryType:   queryType,
		Entities:    sorted,
		Expression:  strings.ToLower(strings.TrimSpace(expression)),
		ExtraParams: extraParams,
	}

	// Marshal cannot fail for string/slice/JSON-safe map inputs; fall back
	// to a raw concatenation if a caller smuggles in something exotic.
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(queryType + "|" + strings.Join(sorted, ",") + "|" + payload.Expression)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
