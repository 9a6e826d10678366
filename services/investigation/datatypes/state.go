// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the investigation state schema shared by the
// orchestrator engine, the intelligence nodes, and the persistence layer.
//
// An InvestigationState is owned by exactly one orchestrator goroutine for
// its whole lifetime. Concurrency exists only across investigations, never
// within one, so the state carries no internal locking.
package datatypes

import (
	"time"
)

// Phase represents a step in the investigation state machine.
//
// Phases progress monotonically from initialization to a terminal phase,
// with bounded loop-backs to tool_execution and domain_analysis while
// evidence thresholds are unmet.
type Phase string

const (
	// PhaseInitialization is the entry phase: record creation and wiring.
	PhaseInitialization Phase = "initialization"

	// PhaseSnowflakeAnalysis gathers baseline warehouse data for the entity.
	PhaseSnowflakeAnalysis Phase = "snowflake_analysis"

	// PhaseToolExecution runs data-source tools to accumulate evidence.
	PhaseToolExecution Phase = "tool_execution"

	// PhaseDomainAnalysis runs LLM-driven domain agents over the evidence.
	PhaseDomainAnalysis Phase = "domain_analysis"

	// PhaseSafetyValidation checks resource and iteration limits.
	PhaseSafetyValidation Phase = "safety_validation"

	// PhaseConfidenceAssessment computes the AI confidence decision.
	PhaseConfidenceAssessment Phase = "confidence_assessment"

	// PhaseSummary assembles the final risk assessment.
	PhaseSummary Phase = "summary"

	// PhaseComplete indicates successful completion.
	PhaseComplete Phase = "complete"

	// PhaseFailed indicates an unrecoverable error occurred.
	PhaseFailed Phase = "failed"
)

// String returns the phase as a string.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if the phase is complete or failed.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// ToolResult is the outcome of a single tool invocation.
//
// Failed tools are recorded with Failed=true rather than raised: the
// orchestrator treats a failed tool and a low-confidence result identically,
// both are findings with metadata.
type ToolResult struct {
	// Tool is the tool identifier (e.g. "splunk_search").
	Tool string `json:"tool"`

	// Data is the structured payload returned by the tool. Nil on failure.
	Data map[string]any `json:"data,omitempty"`

	// Failed is true when the tool raised instead of returning data.
	Failed bool `json:"failed"`

	// Error holds the failure message when Failed is true.
	Error string `json:"error,omitempty"`

	// Cached is true when the result was served from the query cache.
	Cached bool `json:"cached"`

	// CompletedAt is when the invocation finished.
	CompletedAt time.Time `json:"completed_at"`
}

// DomainFinding is the outcome of a single domain-agent analysis pass.
type DomainFinding struct {
	// Domain is the domain identifier (e.g. "account_takeover").
	Domain string `json:"domain"`

	// Summary is the agent's narrative conclusion.
	Summary string `json:"summary,omitempty"`

	// RiskContribution is the agent's risk signal in [0,1].
	RiskContribution float64 `json:"risk_contribution"`

	// Evidence is the structured evidence backing the finding.
	Evidence map[string]any `json:"evidence,omitempty"`

	// Failed is true when the agent raised instead of producing a finding.
	Failed bool `json:"failed"`

	// Error holds the failure message when Failed is true.
	Error string `json:"error,omitempty"`

	// CompletedAt is when the analysis finished.
	CompletedAt time.Time `json:"completed_at"`
}

// SafetyConcern is one timestamped entry in the safety audit log.
type SafetyConcern struct {
	Timestamp        time.Time `json:"timestamp"`
	Concern          string    `json:"concern"`
	SafetyLevel      string    `json:"safety_level"`
	ResourcePressure float64   `json:"resource_pressure"`
}

// AuditEntry is one record in the decision audit trail.
//
// The trail is append-only and preserves real-time order. It is never
// reordered, merged, or pruned within a session.
type AuditEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	DecisionType string         `json:"decision_type"`
	Details      map[string]any `json:"details,omitempty"`
}

// ErrorRecord is one caught failure, recorded instead of propagated.
//
// Every failure caught at a node or tool boundary lands here so the state
// machine never crashes mid-investigation.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	Phase     Phase     `json:"phase"`
	LoopCount int       `json:"loop_count"`
}

// InvestigationState is the mutable state threaded through the orchestrator.
//
// Ownership:
//
//	Exactly one goroutine drives one InvestigationState. The engine, the
//	intelligence nodes, and the summary builder mutate it sequentially.
//	It must never be shared across investigations.
//
// Mutation rules:
//
//	ToolResults and DomainFindings are fill-in maps: each key is written
//	once and never deleted. ToolsUsed, DomainsCompleted, SafetyConcerns,
//	DecisionAuditTrail, and Errors are append-only. AIConfidence,
//	RiskScore, and DynamicLimits are last-write-wins overwrites.
type InvestigationState struct {
	// InvestigationID uniquely identifies the investigation. Immutable.
	InvestigationID string `json:"investigation_id"`

	// EntityID and EntityType identify the subject. Immutable.
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`

	// CurrentPhase is the state machine position.
	CurrentPhase Phase `json:"current_phase"`

	// Context carries caller-supplied investigation context.
	Context map[string]any `json:"context,omitempty"`

	// SnowflakeData is the baseline warehouse snapshot. Written once.
	SnowflakeData map[string]any `json:"snowflake_data,omitempty"`

	// SnowflakeCompleted is set after the snowflake phase finishes,
	// successfully or not.
	SnowflakeCompleted bool `json:"snowflake_completed"`

	// ToolResults maps tool name to its result. Fill-in, never deleted.
	ToolResults map[string]ToolResult `json:"tool_results"`

	// DomainFindings maps domain name to its finding. Fill-in, never deleted.
	DomainFindings map[string]DomainFinding `json:"domain_findings"`

	// ToolsUsed and DomainsCompleted are ordered progress counters.
	ToolsUsed        []string `json:"tools_used"`
	DomainsCompleted []string `json:"domains_completed"`

	// AIConfidence and RiskScore are in [0,1], overwritten per assessment.
	AIConfidence float64 `json:"ai_confidence"`
	RiskScore    float64 `json:"risk_score"`

	// DynamicLimits is overwritten by the safety manager each cycle.
	DynamicLimits DynamicLimits `json:"dynamic_limits"`

	// SafetyConcerns is the append-only safety audit log.
	SafetyConcerns []SafetyConcern `json:"safety_concerns"`

	// DecisionAuditTrail logs every confidence/safety decision in order.
	DecisionAuditTrail []AuditEntry `json:"decision_audit_trail"`

	// Errors collects every caught failure. Append-only.
	Errors []ErrorRecord `json:"errors"`

	// LoopCount is the number of orchestrator routing cycles so far.
	LoopCount int `json:"loop_count"`

	// StartedAt is when the investigation began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is set when a terminal phase is reached.
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewInvestigationState creates a state in the initialization phase.
//
// Inputs:
//
//	investigationID - Opaque unique identifier. Must not be empty.
//	entityID - The subject identifier (e.g. "ip:203.0.113.5").
//	entityType - The subject type (e.g. "ip", "account").
//	context - Optional caller-supplied context. May be nil.
//
// Outputs:
//
//	*InvestigationState - Ready for the orchestrator, maps initialized.
func NewInvestigationState(investigationID, entityID, entityType string, context map[string]any) *InvestigationState {
	return &InvestigationState{
		InvestigationID:    investigationID,
		EntityID:           entityID,
		EntityType:         entityType,
		CurrentPhase:       PhaseInitialization,
		Context:            context,
		ToolResults:        make(map[string]ToolResult),
		DomainFindings:     make(map[string]DomainFinding),
		ToolsUsed:          []string{},
		DomainsCompleted:   []string{},
		SafetyConcerns:     []SafetyConcern{},
		DecisionAuditTrail: []AuditEntry{},
		Errors:             []ErrorRecord{},
		DynamicLimits:      DefaultLimits(),
		StartedAt:          time.Now().UTC(),
	}
}

// RecordToolResult stores a tool outcome exactly once per tool name.
//
// A second write for the same tool is ignored: tool results are fill-in,
// never overwritten.
func (s *InvestigationState) RecordToolResult(result ToolResult) {
	if _, exists := s.ToolResults[result.Tool]; exists {
		return
	}
	s.ToolResults[result.Tool] = result
	s.ToolsUsed = append(s.ToolsUsed, result.Tool)
}

// RecordDomainFinding stores a domain finding exactly once per domain.
func (s *InvestigationState) RecordDomainFinding(finding DomainFinding) {
	if _, exists := s.DomainFindings[finding.Domain]; exists {
		return
	}
	s.DomainFindings[finding.Domain] = finding
	s.DomainsCompleted = append(s.DomainsCompleted, finding.Domain)
}

// AppendAudit appends one decision audit entry, stamped now.
func (s *InvestigationState) AppendAudit(decisionType string, details map[string]any) {
	s.DecisionAuditTrail = append(s.DecisionAuditTrail, AuditEntry{
		Timestamp:    time.Now().UTC(),
		DecisionType: decisionType,
		Details:      details,
	})
}

// AppendError records a caught failure with the current phase and loop count.
func (s *InvestigationState) AppendError(source, errorType, message string) {
	s.Errors = append(s.Errors, ErrorRecord{
		Timestamp: time.Now().UTC(),
		Source:    source,
		ErrorType: errorType,
		Message:   message,
		Phase:     s.CurrentPhase,
		LoopCount: s.LoopCount,
	})
}

// AppendSafetyConcern records one timestamped safety concern.
func (s *InvestigationState) AppendSafetyConcern(concern, level string, pressure float64) {
	s.SafetyConcerns = append(s.SafetyConcerns, SafetyConcern{
		Timestamp:        time.Now().UTC(),
		Concern:          concern,
		SafetyLevel:      level,
		ResourcePressure: pressure,
	})
}

// SuccessfulFindings returns the count of non-failed domain findings.
func (s *InvestigationState) SuccessfulFindings() int {
	n := 0
	for _, f := range s.DomainFindings {
		if !f.Failed {
			n++
		}
	}
	return n
}

// SuccessfulTools returns the count of non-failed tool results.
func (s *InvestigationState) SuccessfulTools() int {
	n := 0
	for _, r := range s.ToolResults {
		if !r.Failed {
			n++
		}
	}
	return n
}

// Elapsed returns how long the investigation has been running.
func (s *InvestigationState) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
