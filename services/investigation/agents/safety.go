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
	"fmt"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

// Pressure thresholds grading the safety level.
const (
	pressureElevated = 0.60
	pressureStrict   = 0.80
	pressureCritical = 0.95
)

// ResourceSafetyManager is the default SafetyManager: it grades resource
// pressure against a fixed base budget and recomputes the dynamic limits
// every validation pass.
//
// Pressure is the worst (highest) consumption fraction across loops,
// elapsed time, tool executions, and domain attempts. A single exhausted
// dimension is enough to escalate; averaging would hide it.
type ResourceSafetyManager struct {
	// Base is the budget that pressure is measured against. Zero value
	// falls back to DefaultLimits.
	Base datatypes.DynamicLimits
}

// NewResourceSafetyManager creates the default safety manager.
func NewResourceSafetyManager(base datatypes.DynamicLimits) *ResourceSafetyManager {
	if base.IsZero() {
		base = datatypes.DefaultLimits()
	}
	return &ResourceSafetyManager{Base: base}
}

// ValidateCurrentState implements SafetyManager.
//
// Description:
//
//	Computes resource pressure, grades it into a safety level, and returns
//	recomputed limits: full budget while nominal, progressively tighter as
//	pressure rises. AI control is revoked at strict, and critical pressure
//	mandates immediate termination.
func (m *ResourceSafetyManager) ValidateCurrentState(state *datatypes.InvestigationState) (datatypes.SafetyStatus, error) {
	if state == nil {
		return datatypes.SafetyStatus{}, fmt.Errorf("state is required")
	}

	pressure := m.pressure(state)
	level := gradePressure(pressure)

	limits := m.Base
	if level == datatypes.SafetyStrict || level == datatypes.SafetyCritical {
		limits = datatypes.StrictLimits()
	}

	status := datatypes.SafetyStatus{
		Level:                        level,
		AllowsAIControl:              level == datatypes.SafetyNominal || level == datatypes.SafetyElevated,
		RequiresImmediateTermination: level == datatypes.SafetyCritical,
		ResourcePressure:             pressure,
		CurrentLimits:                &limits,
	}

	switch level {
	case datatypes.SafetyElevated:
		status.Concerns = []string{
			fmt.Sprintf("resource pressure elevated at %.2f", pressure),
		}
	case datatypes.SafetyStrict:
		status.Concerns = []string{
			fmt.Sprintf("resource pressure %.2f, strict limits applied, AI control revoked", pressure),
		}
	case datatypes.SafetyCritical:
		status.Concerns = []string{
			fmt.Sprintf("resource pressure critical at %.2f, terminating", pressure),
		}
	}

	return status, nil
}

// pressure returns the worst consumption fraction across all budget axes.
func (m *ResourceSafetyManager) pressure(state *datatypes.InvestigationState) float64 {
	worst := fraction(state.LoopCount, m.Base.MaxOrchestratorLoops)

	if f := fraction(len(state.ToolsUsed), m.Base.MaxToolExecutions); f > worst {
		worst = f
	}
	if f := fraction(len(state.DomainsCompleted), m.Base.MaxDomainAttempts); f > worst {
		worst = f
	}
	if m.Base.MaxInvestigationTime > 0 {
		if f := clamp01(float64(state.Elapsed()) / float64(m.Base.MaxInvestigationTime)); f > worst {
			worst = f
		}
	}
	return worst
}

func gradePressure(pressure float64) datatypes.SafetyLevel {
	switch {
	case pressure >= pressureCritical:
		return datatypes.SafetyCritical
	case pressure >= pressureStrict:
		return datatypes.SafetyStrict
	case pressure >= pressureElevated:
		return datatypes.SafetyElevated
	default:
		return datatypes.SafetyNominal
	}
}

func fraction(used, budget int) float64 {
	if budget <= 0 {
		return 0
	}
	return clamp01(float64(used) / float64(budget))
}
