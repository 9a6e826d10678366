// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/agents"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

var tracer = otel.Tracer("cormorant.investigation.nodes")

// ConfidenceNode wraps the injected confidence engine as a state-machine step.
//
// Thread Safety:
//
//	Safe for concurrent use across investigations. Each Execute call
//	mutates only the state it is handed.
type ConfidenceNode struct {
	engine agents.ConfidenceEngine
}

// NewConfidenceNode creates a confidence assessment node.
//
// Inputs:
//
//	engine - The injected confidence engine. Must not be nil.
func NewConfidenceNode(engine agents.ConfidenceEngine) (*ConfidenceNode, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	return &ConfidenceNode{engine: engine}, nil
}

// Execute runs one confidence assessment pass over the state.
//
// Description:
//
//	Calls the confidence engine with the full current state. On success,
//	overwrites state.AIConfidence (last-write-wins, never accumulated) and
//	appends one audit-trail entry. On engine failure, records the error
//	into state.Errors and returns a not-OK Result with the audit trail
//	untouched, so the orchestrator falls back to its conservative default
//	strategy. The exception never crosses the node boundary.
//
// Outputs:
//
//	Result[datatypes.ConfidenceDecision] - The decision, or the recorded
//	failure.
func (n *ConfidenceNode) Execute(ctx context.Context, state *datatypes.InvestigationState) Result[datatypes.ConfidenceDecision] {
	if state == nil {
		return Result[datatypes.ConfidenceDecision]{OK: false, Err: ErrNilState}
	}

	ctx, span := tracer.Start(ctx, "nodes.ConfidenceAssessment",
		trace.WithAttributes(
			attribute.String("investigation_id", state.InvestigationID),
			attribute.Int("loop_count", state.LoopCount),
		),
	)
	defer span.End()

	result := run(state, "ai_confidence_assessment", func() (datatypes.ConfidenceDecision, error) {
		return n.engine.CalculateInvestigationConfidence(ctx, state)
	})
	if !result.OK {
		slog.Warn("confidence engine failed, falling back to deterministic control",
			slog.String("investigation_id", state.InvestigationID),
			slog.String("error", result.Err.Error()),
		)
		span.RecordError(result.Err)
		return result
	}

	decision := result.Value
	state.AIConfidence = decision.Confidence
	state.AppendAudit("ai_confidence_assessment", map[string]any{
		"confidence":         decision.Confidence,
		"confidence_level":   string(decision.Level),
		"strategy":           string(decision.Strategy),
		"recommended_action": decision.RecommendedAction,
		"reasoning":          decision.Reasoning,
	})

	slog.Debug("confidence assessed",
		slog.String("investigation_id", state.InvestigationID),
		slog.Float64("confidence", decision.Confidence),
		slog.String("strategy", string(decision.Strategy)),
	)
	span.SetAttributes(attribute.Float64("confidence", decision.Confidence))

	return result
}
