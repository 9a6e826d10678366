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

import "strings"

// Operator weights for complexity scoring. NOT costs more than AND/OR
// because negation forces full-set evaluation; nesting adds per-level cost.
const (
	entityWeight  = 0.15
	andOrWeight   = 0.5
	notWeight     = 0.7
	nestingWeight = 0.3

	// minEntitiesForAdmission admits a query on entity count alone:
	// multi-entity evaluation is expensive regardless of operator density.
	minEntitiesForAdmission = 5

	// complexityThreshold is the minimum score worth caching. Simple
	// queries are deliberately never cached; the caching overhead would
	// exceed the recomputation cost.
	complexityThreshold = 1.0
)

// QueryComplexity scores a Boolean query from its entity count and operator
// density.
//
// Description:
//
//	Each entity, AND/OR, NOT, and parenthesis-nesting level adds weighted
//	complexity. Operator matching is case-insensitive on word boundaries
//	(space-delimited tokens), so entity names containing "and" do not
//	inflate the score.
//
// Inputs:
//
//	entityCount - Number of entities the query touches.
//	expression - The Boolean expression text.
//
// Outputs:
//
//	float64 - The complexity score. Zero operators and one entity score
//	well under the admission threshold.
func QueryComplexity(entityCount int, expression string) float64 {
	score := float64(entityCount) * entityWeight

	maxDepth, depth := 0, 0
	for _, r := range expression {
		switch r {
		case '(':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	score += float64(maxDepth) * nestingWeight

	for _, token := range strings.Fields(strings.ToLower(expression)) {
		switch strings.Trim(token, "()") {
		case "and", "or":
			score += andOrWeight
		case "not":
			score += notWeight
		}
	}

	return score
}

// ShouldAdmit is the cache admission policy.
//
// A query is cached when its recomputation is expensive: complexity above
// the threshold, or enough entities that set evaluation dominates anyway.
func ShouldAdmit(entityCount int, complexity float64) bool {
	if entityCount >= minEntitiesForAdmission {
		return true
	}
	return complexity > complexityThreshold
}
