// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"fmt"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

// Factor weights for the weighted confidence score. They sum to 1.0 so the
// score stays in [0,1] without renormalization.
const (
	weightToolSuccess     = 0.30
	weightDomainCoverage  = 0.35
	weightEvidenceQuality = 0.20
	weightErrorPenalty    = 0.15
)

// WeightedConfidenceEngine is the default ConfidenceEngine: a deterministic
// weighted multi-factor score over the current investigation state.
//
// Deployments that want an LLM-scored engine inject their own; this one is
// the conservative baseline that works with no external calls.
type WeightedConfidenceEngine struct {
	// RequiredDomains is the coverage denominator, matching the
	// orchestrator's routing threshold.
	RequiredDomains int
}

// NewWeightedConfidenceEngine creates the default engine.
func NewWeightedConfidenceEngine(requiredDomains int) *WeightedConfidenceEngine {
	if requiredDomains < 1 {
		requiredDomains = 1
	}
	return &WeightedConfidenceEngine{RequiredDomains: requiredDomains}
}

// CalculateInvestigationConfidence implements ConfidenceEngine.
//
// Description:
//
//	Scores four factors: tool success rate, domain coverage against the
//	required-domain threshold, evidence quality (fraction of findings that
//	carry structured evidence), and an error penalty. The score buckets
//	into a level, and the level drives the control strategy: low/moderate
//	confidence keeps control deterministic, high grants hybrid, critical
//	grants autonomous iterations.
func (e *WeightedConfidenceEngine) CalculateInvestigationConfidence(ctx context.Context, state *datatypes.InvestigationState) (datatypes.ConfidenceDecision, error) {
	if state == nil {
		return datatypes.ConfidenceDecision{}, fmt.Errorf("state is required")
	}
	if err := ctx.Err(); err != nil {
		return datatypes.ConfidenceDecision{}, err
	}

	toolScore := ratio(state.SuccessfulTools(), len(state.ToolResults))
	coverageScore := clamp01(float64(state.SuccessfulFindings()) / float64(e.RequiredDomains))

	withEvidence := 0
	for _, f := range state.DomainFindings {
		if !f.Failed && len(f.Evidence) > 0 {
			withEvidence++
		}
	}
	evidenceScore := ratio(withEvidence, state.SuccessfulFindings())

	// Each recorded error erodes 10% of the penalty factor, floor at zero.
	errorScore := clamp01(1.0 - 0.1*float64(len(state.Errors)))

	confidence := weightToolSuccess*toolScore +
		weightDomainCoverage*coverageScore +
		weightEvidenceQuality*evidenceScore +
		weightErrorPenalty*errorScore

	level, strategy := bucketConfidence(confidence)

	reasoning := []string{
		fmt.Sprintf("domain coverage %.2f (%d/%d required)", coverageScore, state.SuccessfulFindings(), e.RequiredDomains),
		fmt.Sprintf("tool success rate %.2f (%d/%d)", toolScore, state.SuccessfulTools(), len(state.ToolResults)),
		fmt.Sprintf("evidence quality %.2f", evidenceScore),
		fmt.Sprintf("error penalty factor %.2f (%d recorded errors)", errorScore, len(state.Errors)),
	}

	return datatypes.ConfidenceDecision{
		Confidence:        confidence,
		Level:             level,
		Strategy:          strategy,
		RecommendedAction: recommendAction(level),
		Reasoning:         reasoning,
	}, nil
}

func bucketConfidence(confidence float64) (datatypes.ConfidenceLevel, datatypes.ControlStrategy) {
	switch {
	case confidence >= 0.85:
		return datatypes.ConfidenceCritical, datatypes.StrategyAutonomous
	case confidence >= 0.65:
		return datatypes.ConfidenceHigh, datatypes.StrategyHybrid
	case confidence >= 0.40:
		return datatypes.ConfidenceModerate, datatypes.StrategyDeterministic
	default:
		return datatypes.ConfidenceLow, datatypes.StrategyDeterministic
	}
}

func recommendAction(level datatypes.ConfidenceLevel) string {
	switch level {
	case datatypes.ConfidenceCritical:
		return "grant autonomous iterations"
	case datatypes.ConfidenceHigh:
		return "continue with hybrid control"
	case datatypes.ConfidenceModerate:
		return "continue deterministically"
	default:
		return "gather more evidence before any autonomy"
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return clamp01(float64(num) / float64(den))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
