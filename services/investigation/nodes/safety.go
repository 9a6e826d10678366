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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/agents"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

// SafetyNode wraps the injected safety manager as a state-machine step.
//
// Thread Safety:
//
//	Safe for concurrent use across investigations. Each Execute call
//	mutates only the state it is handed.
type SafetyNode struct {
	manager agents.SafetyManager
}

// NewSafetyNode creates a safety validation node.
//
// Inputs:
//
//	manager - The injected safety manager. Must not be nil.
func NewSafetyNode(manager agents.SafetyManager) (*SafetyNode, error) {
	if manager == nil {
		return nil, ErrNilEngine
	}
	return &SafetyNode{manager: manager}, nil
}

// Execute runs one safety validation pass over the state.
//
// Description:
//
//	Calls the safety manager. On success, overwrites state.DynamicLimits
//	from the returned status (skipping with a warning when the status
//	carries no limits), appends each new concern as a timestamped record,
//	and appends one audit entry summarizing the outcome. On manager
//	failure the node does NOT merely continue: it records the error and
//	forces strict safety mode — worst-case limits, AI control revoked —
//	because an unverifiable state must be assumed unsafe.
//
// Outputs:
//
//	Result[datatypes.SafetyStatus] - The status (a forced strict status on
//	failure paths, with OK=false so the caller can tell).
func (n *SafetyNode) Execute(ctx context.Context, state *datatypes.InvestigationState) Result[datatypes.SafetyStatus] {
	if state == nil {
		return Result[datatypes.SafetyStatus]{OK: false, Err: ErrNilState}
	}

	_, span := tracer.Start(ctx, "nodes.SafetyValidation",
		trace.WithAttributes(
			attribute.String("investigation_id", state.InvestigationID),
			attribute.Int("loop_count", state.LoopCount),
		),
	)
	defer span.End()

	result := run(state, "safety_validation", func() (datatypes.SafetyStatus, error) {
		return n.manager.ValidateCurrentState(state)
	})
	if !result.OK {
		slog.Error("safety manager failed, forcing strict safety mode",
			slog.String("investigation_id", state.InvestigationID),
			slog.String("error", result.Err.Error()),
		)
		span.RecordError(result.Err)

		strict := datatypes.StrictLimits()
		state.DynamicLimits = strict
		state.AppendSafetyConcern("safety manager unavailable, strict mode forced",
			string(datatypes.SafetyStrict), 1.0)
		state.AppendAudit("safety_validation", map[string]any{
			"safety_level":      string(datatypes.SafetyStrict),
			"allows_ai_control": false,
			"forced_strict":     true,
		})

		result.Value = datatypes.SafetyStatus{
			Level:            datatypes.SafetyStrict,
			AllowsAIControl:  false,
			ResourcePressure: 1.0,
			CurrentLimits:    &strict,
		}
		return result
	}

	status := result.Value

	if status.CurrentLimits != nil && !status.CurrentLimits.IsZero() {
		state.DynamicLimits = *status.CurrentLimits
	} else {
		slog.Warn("safety status carried no limits, keeping previous",
			slog.String("investigation_id", state.InvestigationID),
		)
	}

	for _, concern := range status.Concerns {
		state.AppendSafetyConcern(concern, string(status.Level), status.ResourcePressure)
	}

	state.AppendAudit("safety_validation", map[string]any{
		"safety_level":                   string(status.Level),
		"allows_ai_control":              status.AllowsAIControl,
		"requires_immediate_termination": status.RequiresImmediateTermination,
		"resource_pressure":              status.ResourcePressure,
		"new_concerns":                   len(status.Concerns),
	})

	slog.Debug("safety validated",
		slog.String("investigation_id", state.InvestigationID),
		slog.String("safety_level", string(status.Level)),
		slog.Bool("allows_ai_control", status.AllowsAIControl),
		slog.Float64("resource_pressure", status.ResourcePressure),
	)
	span.SetAttributes(
		attribute.String("safety_level", string(status.Level)),
		attribute.Bool("requires_termination", status.RequiresImmediateTermination),
	)

	return result
}
