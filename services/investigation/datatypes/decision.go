// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// ConfidenceLevel buckets the confidence score for routing decisions.
type ConfidenceLevel string

const (
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceCritical ConfidenceLevel = "critical"
)

// ControlStrategy is how much autonomy the LLM is granted for the next step.
type ControlStrategy string

const (
	// StrategyDeterministic routes every decision through fixed rules.
	StrategyDeterministic ControlStrategy = "deterministic"

	// StrategyHybrid lets the LLM propose, with rule-based veto.
	StrategyHybrid ControlStrategy = "hybrid"

	// StrategyAutonomous grants the LLM additional iterations on its own.
	StrategyAutonomous ControlStrategy = "autonomous"
)

// ConfidenceDecision is the confidence engine's verdict on the current state.
//
// All fields are required; consumers must not probe for optional attributes.
// A zero-value decision means "no confidence, deterministic control".
type ConfidenceDecision struct {
	// Confidence is the weighted multi-factor score in [0,1].
	Confidence float64 `json:"confidence"`

	// Level buckets Confidence for coarse routing.
	Level ConfidenceLevel `json:"confidence_level"`

	// Strategy is the recommended control mode for the next step.
	Strategy ControlStrategy `json:"strategy"`

	// RecommendedAction is a human-readable next-step suggestion.
	RecommendedAction string `json:"recommended_action"`

	// Reasoning lists the factors behind the decision, in weight order.
	Reasoning []string `json:"reasoning"`
}

// SafetyLevel grades how close the investigation is to its resource limits.
type SafetyLevel string

const (
	SafetyNominal  SafetyLevel = "nominal"
	SafetyElevated SafetyLevel = "elevated"
	SafetyStrict   SafetyLevel = "strict"
	SafetyCritical SafetyLevel = "critical"
)

// DynamicLimits are the resource ceilings the safety manager recomputes each
// cycle. The orchestrator reads them on every routing decision.
type DynamicLimits struct {
	MaxOrchestratorLoops int           `json:"max_orchestrator_loops"`
	MaxToolExecutions    int           `json:"max_tool_executions"`
	MaxDomainAttempts    int           `json:"max_domain_attempts"`
	MaxInvestigationTime time.Duration `json:"max_investigation_time"`
}

// DefaultLimits returns the limits applied before the first safety pass.
func DefaultLimits() DynamicLimits {
	return DynamicLimits{
		MaxOrchestratorLoops: 25,
		MaxToolExecutions:    10,
		MaxDomainAttempts:    12,
		MaxInvestigationTime: 30 * time.Minute,
	}
}

// StrictLimits returns the worst-case limits forced when the safety manager
// itself fails. Assume the least budget that still lets a summary be built.
func StrictLimits() DynamicLimits {
	return DynamicLimits{
		MaxOrchestratorLoops: 5,
		MaxToolExecutions:    3,
		MaxDomainAttempts:    3,
		MaxInvestigationTime: 5 * time.Minute,
	}
}

// IsZero reports whether the limits were never populated.
func (l DynamicLimits) IsZero() bool {
	return l.MaxOrchestratorLoops == 0 &&
		l.MaxToolExecutions == 0 &&
		l.MaxDomainAttempts == 0 &&
		l.MaxInvestigationTime == 0
}

// SafetyStatus is the safety manager's verdict on the current state.
type SafetyStatus struct {
	// Level grades resource pressure.
	Level SafetyLevel `json:"safety_level"`

	// AllowsAIControl is false when the LLM must not be granted autonomy.
	AllowsAIControl bool `json:"allows_ai_control"`

	// RequiresImmediateTermination forces a transition toward summary.
	RequiresImmediateTermination bool `json:"requires_immediate_termination"`

	// ResourcePressure is the fraction of budget consumed, in [0,1].
	ResourcePressure float64 `json:"resource_pressure"`

	// Concerns lists new safety concerns raised this cycle.
	Concerns []string `json:"safety_concerns"`

	// CurrentLimits are the recomputed ceilings. Nil means "keep previous"
	// and is logged as a warning rather than failing the node.
	CurrentLimits *DynamicLimits `json:"current_limits,omitempty"`
}

// InvestigationStatus is the terminal status reported to callers.
type InvestigationStatus string

const (
	StatusComplete InvestigationStatus = "complete"
	StatusPartial  InvestigationStatus = "partial"
	StatusFailed   InvestigationStatus = "failed"
)

// FinalReport is the single product of RunInvestigation.
//
// Callers never receive an unhandled error from the orchestrator: partial
// failure surfaces here as Status plus a populated Errors list, with a risk
// score derived from whatever evidence was gathered.
type FinalReport struct {
	InvestigationID    string                   `json:"investigation_id"`
	EntityID           string                   `json:"entity_id"`
	EntityType         string                   `json:"entity_type"`
	Status             InvestigationStatus      `json:"status"`
	RiskScore          float64                  `json:"risk_score"`
	AIConfidence       float64                  `json:"ai_confidence"`
	DomainFindings     map[string]DomainFinding `json:"domain_findings"`
	ToolResults        map[string]ToolResult    `json:"tool_results"`
	DecisionAuditTrail []AuditEntry             `json:"decision_audit_trail"`
	SafetyConcerns     []SafetyConcern          `json:"safety_concerns"`
	Errors             []ErrorRecord            `json:"errors"`
	LoopCount          int                      `json:"loop_count"`
	StartedAt          time.Time                `json:"started_at"`
	CompletedAt        time.Time                `json:"completed_at"`
}
