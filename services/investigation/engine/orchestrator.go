// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine drives the investigation state machine.
//
// One goroutine runs one investigation from initialization to a terminal
// phase. All shared resources (query cache, record store, metrics) are
// internally synchronized; the InvestigationState itself is exclusively
// owned and never locked.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/agents"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/events"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/nodes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/observability"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/querycache"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/resilience"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/store"
)

var (
	tracer = otel.Tracer("cormorant.investigation.engine")
	meter  = otel.Meter("cormorant.investigation.engine")
)

// Deps are the orchestrator's collaborators, injected once at startup.
//
// The orchestrator implements none of them: tools and domain agents are
// opaque calls, the confidence engine and safety manager are decision
// components, and the store is plain key-value persistence.
type Deps struct {
	// Registry supplies tools and domain agents in registration order.
	Registry *agents.Registry

	// Snowflake is the baseline warehouse tool. Optional: when nil, the
	// snowflake phase records a skip and moves on.
	Snowflake agents.Tool

	// Confidence and Safety are the injected decision components.
	Confidence agents.ConfidenceEngine
	Safety     agents.SafetyManager

	// Store persists investigation records. Optional but recommended.
	Store *store.Store

	// Cache deduplicates expensive Boolean query evaluations. Optional.
	Cache *querycache.QueryCache

	// Events receives phase-transition and decision events. Optional.
	Events *events.Queue
}

// Orchestrator is the top-level investigation state machine.
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple investigations run as independent
//	goroutines on one Orchestrator, sharing the cache and store.
type Orchestrator struct {
	deps       Deps
	cfg        Config
	invokeCfg  resilience.InvocationConfig
	confidence *nodes.ConfidenceNode
	safety     *nodes.SafetyNode

	// Metrics, initialized lazily so the orchestrator degrades gracefully
	// when no meter is configured.
	metricsOnce       sync.Once
	loopCounter       metric.Int64Counter
	toolRuns          metric.Int64Counter
	domainRuns        metric.Int64Counter
	terminations      metric.Int64Counter
	phaseLatency      metric.Float64Histogram
	activeInvestCount metric.Int64UpDownCounter
}

// NewOrchestrator wires the state machine.
//
// Inputs:
//
//	deps - Collaborators. Registry, Confidence, and Safety are required.
//	cfg - Routing thresholds.
//	invokeCfg - Resilience budget for every tool/agent/LLM call.
//
// Outputs:
//
//	*Orchestrator - Ready to run investigations.
//	error - Non-nil when a required dependency is missing.
func NewOrchestrator(deps Deps, cfg Config, invokeCfg resilience.InvocationConfig) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Confidence == nil || deps.Safety == nil {
		return nil, ErrNilDependency
	}

	confidenceNode, err := nodes.NewConfidenceNode(deps.Confidence)
	if err != nil {
		return nil, err
	}
	safetyNode, err := nodes.NewSafetyNode(deps.Safety)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		deps:       deps,
		cfg:        cfg,
		invokeCfg:  invokeCfg,
		confidence: confidenceNode,
		safety:     safetyNode,
	}, nil
}

func (o *Orchestrator) initMetrics() {
	o.metricsOnce.Do(func() {
		var errs []string
		var err error

		o.loopCounter, err = meter.Int64Counter("investigation_loops_total",
			metric.WithDescription("Orchestrator routing cycles executed"))
		if err != nil {
			errs = append(errs, "loops: "+err.Error())
		}
		o.toolRuns, err = meter.Int64Counter("investigation_tool_runs_total",
			metric.WithDescription("Tool invocations by outcome"))
		if err != nil {
			errs = append(errs, "tool_runs: "+err.Error())
		}
		o.domainRuns, err = meter.Int64Counter("investigation_domain_runs_total",
			metric.WithDescription("Domain agent invocations by outcome"))
		if err != nil {
			errs = append(errs, "domain_runs: "+err.Error())
		}
		o.terminations, err = meter.Int64Counter("investigation_safety_terminations_total",
			metric.WithDescription("Investigations stopped by the safety manager"))
		if err != nil {
			errs = append(errs, "terminations: "+err.Error())
		}
		o.phaseLatency, err = meter.Float64Histogram("investigation_phase_duration_seconds",
			metric.WithDescription("Time spent per investigation phase"),
			metric.WithUnit("s"))
		if err != nil {
			errs = append(errs, "phase_latency: "+err.Error())
		}
		o.activeInvestCount, err = meter.Int64UpDownCounter("investigation_active",
			metric.WithDescription("Investigations currently running"))
		if err != nil {
			errs = append(errs, "active: "+err.Error())
		}

		if len(errs) > 0 {
			slog.Error("failed to initialize some engine metrics (observability degraded)",
				slog.Int("failed_count", len(errs)),
				slog.Any("errors", errs),
			)
		}
	})
}

// RunInvestigation drives one investigation from start to a terminal phase.
//
// Description:
//
//	Runs initialization, the snowflake baseline, then the evidence loop
//	(tool execution and domain analysis interleaved with safety and
//	confidence gating) until routing reaches summary, and assembles the
//	final report. The caller never receives an unhandled failure: tool and
//	domain errors are recorded in the report's Errors list, and only a nil
//	receiver or nil context returns a Go error.
//
// Inputs:
//
//	ctx - Cancellation for the whole investigation.
//	investigationID - Unique identifier. Must not be empty.
//	entityID, entityType - The subject under investigation.
//	invCtx - Optional caller context map.
//
// Outputs:
//
//	*datatypes.FinalReport - Always non-nil on nil error.
//	error - Non-nil only for invalid arguments.
func (o *Orchestrator) RunInvestigation(ctx context.Context, investigationID, entityID, entityType string, invCtx map[string]any) (*datatypes.FinalReport, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: context", ErrNilDependency)
	}
	if investigationID == "" || entityID == "" {
		return nil, fmt.Errorf("%w: investigation_id and entity_id are required", ErrStateCorrupted)
	}

	o.initMetrics()

	ctx, span := tracer.Start(ctx, "engine.RunInvestigation",
		trace.WithAttributes(
			attribute.String("investigation_id", investigationID),
			attribute.String("entity_id", entityID),
			attribute.String("entity_type", entityType),
		),
	)
	defer span.End()

	if o.activeInvestCount != nil {
		o.activeInvestCount.Add(ctx, 1)
		defer o.activeInvestCount.Add(ctx, -1)
	}
	if m := observability.DefaultMetrics; m != nil {
		m.InvestigationStarted()
		defer m.InvestigationEnded()
	}

	state := datatypes.NewInvestigationState(investigationID, entityID, entityType, invCtx)

	slog.Info("investigation started",
		slog.String("investigation_id", investigationID),
		slog.String("entity_id", entityID),
		slog.String("entity_type", entityType),
	)

	o.transition(ctx, state, datatypes.PhaseSnowflakeAnalysis)
	o.runSnowflakePhase(ctx, state)

	terminated := o.runEvidenceLoop(ctx, state)

	o.transition(ctx, state, datatypes.PhaseSummary)
	report := o.summarize(ctx, state, terminated)

	if report.Status == datatypes.StatusFailed {
		o.transition(ctx, state, datatypes.PhaseFailed)
		span.SetStatus(codes.Error, "investigation failed")
	} else {
		o.transition(ctx, state, datatypes.PhaseComplete)
		span.SetStatus(codes.Ok, "")
	}
	state.CompletedAt = time.Now().UTC()
	report.CompletedAt = state.CompletedAt

	if m := observability.DefaultMetrics; m != nil {
		m.RecordInvestigation(string(report.Status), state.Elapsed().Seconds())
	}

	o.persist(ctx, state)

	slog.Info("investigation finished",
		slog.String("investigation_id", investigationID),
		slog.String("status", string(report.Status)),
		slog.Float64("risk_score", report.RiskScore),
		slog.Int("domain_findings", len(report.DomainFindings)),
		slog.Int("errors", len(report.Errors)),
		slog.Duration("duration", state.Elapsed()),
	)

	return report, nil
}

// transition moves the state machine to the next phase and publishes it.
func (o *Orchestrator) transition(ctx context.Context, state *datatypes.InvestigationState, next datatypes.Phase) {
	prev := state.CurrentPhase
	state.CurrentPhase = next

	slog.Debug("phase transition",
		slog.String("investigation_id", state.InvestigationID),
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
	)

	if o.deps.Events != nil {
		o.deps.Events.Publish(events.Event{
			Type:            events.TypePhaseTransition,
			InvestigationID: state.InvestigationID,
			Phase:           next.String(),
			Detail:          prev.String(),
			Timestamp:       time.Now().UTC(),
		})
	}
}

// runSnowflakePhase gathers the baseline warehouse snapshot.
//
// Failure is recorded, never fatal: the loop continues with partial
// evidence and routing knows snowflake completed (with or without data).
func (o *Orchestrator) runSnowflakePhase(ctx context.Context, state *datatypes.InvestigationState) {
	start := time.Now()
	defer o.recordPhaseLatency(ctx, datatypes.PhaseSnowflakeAnalysis, start)

	if o.deps.Snowflake == nil {
		state.AppendError("snowflake_analysis", "skipped", "no snowflake tool configured")
		state.SnowflakeCompleted = true
		return
	}

	result := o.executeTool(ctx, state, o.deps.Snowflake)
	if !result.Failed {
		state.SnowflakeData = result.Data
	}
	state.SnowflakeCompleted = true
}

// runEvidenceLoop interleaves tool execution, domain analysis, and the
// intelligence nodes until routing reaches summary.
//
// Returns the safety termination signal if one fired, nil otherwise.
func (o *Orchestrator) runEvidenceLoop(ctx context.Context, state *datatypes.InvestigationState) *SafetyTerminationError {
	tools := o.deps.Registry.Tools()
	domains := o.deps.Registry.Domains()

	for {
		if err := ctx.Err(); err != nil {
			state.AppendError("orchestrator", "context", err.Error())
			return nil
		}

		state.LoopCount++
		if o.loopCounter != nil {
			o.loopCounter.Add(ctx, 1)
		}

		// Safety first: limits are refreshed before any routing decision.
		o.transition(ctx, state, datatypes.PhaseSafetyValidation)
		safetyResult := o.safety.Execute(ctx, state)
		status := safetyResult.Value

		o.transition(ctx, state, datatypes.PhaseConfidenceAssessment)
		confResult := o.confidence.Execute(ctx, state)
		decision := confResult.Value
		if !confResult.OK {
			// Conservative default: deterministic control, no autonomy.
			decision = datatypes.ConfidenceDecision{
				Level:    datatypes.ConfidenceLow,
				Strategy: datatypes.StrategyDeterministic,
			}
		}

		if status.RequiresImmediateTermination {
			if o.terminations != nil {
				o.terminations.Add(ctx, 1)
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordSafetyTermination(string(status.Level))
			}
			term := &SafetyTerminationError{
				Reason:           fmt.Sprintf("safety level %s", status.Level),
				ResourcePressure: status.ResourcePressure,
			}
			slog.Warn("safety manager mandated immediate termination",
				slog.String("investigation_id", state.InvestigationID),
				slog.Float64("resource_pressure", status.ResourcePressure),
			)
			return term
		}

		route := NextRoute(routingInput{
			state:            state,
			cfg:              o.cfg,
			status:           status,
			toolsAvailable:   len(tools),
			domainsAvailable: len(domains),
		})

		switch route {
		case RouteToolExecution:
			o.transition(ctx, state, datatypes.PhaseToolExecution)
			tool := nextTool(tools, state)
			if tool == nil {
				// Nothing left to run; let routing move on next cycle.
				state.AppendError("tool_execution", "exhausted", "no unused tools remain")
				continue
			}
			start := time.Now()
			result := o.executeTool(ctx, state, tool)
			o.recordPhaseLatency(ctx, datatypes.PhaseToolExecution, start)
			if o.toolRuns != nil {
				o.toolRuns.Add(ctx, 1, metric.WithAttributes(
					attribute.String("tool", result.Tool),
					attribute.Bool("failed", result.Failed),
				))
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordTool(result.Tool, result.Failed, result.Cached)
			}

		case RouteDomainAnalysis:
			o.transition(ctx, state, datatypes.PhaseDomainAnalysis)
			agent := nextDomain(domains, state)
			if agent == nil {
				state.AppendError("domain_analysis", "exhausted", "no unattempted domains remain")
				return nil
			}
			start := time.Now()
			finding := o.executeDomain(ctx, state, agent, decision, status)
			o.recordPhaseLatency(ctx, datatypes.PhaseDomainAnalysis, start)
			if o.domainRuns != nil {
				o.domainRuns.Add(ctx, 1, metric.WithAttributes(
					attribute.String("domain", finding.Domain),
					attribute.Bool("failed", finding.Failed),
				))
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordDomain(finding.Domain, finding.Failed)
			}

		case RouteSummary:
			return nil
		}
	}
}

// nextTool returns the first registered tool that has not run yet.
func nextTool(tools []agents.Tool, state *datatypes.InvestigationState) agents.Tool {
	for _, t := range tools {
		if _, done := state.ToolResults[t.Name()]; !done {
			return t
		}
	}
	return nil
}

// nextDomain returns the first registered domain agent not yet attempted.
func nextDomain(domains []agents.DomainAgent, state *datatypes.InvestigationState) agents.DomainAgent {
	for _, d := range domains {
		if _, done := state.DomainFindings[d.Domain()]; !done {
			return d
		}
	}
	return nil
}

// executeTool runs one tool through the cache and the resilience wrapper.
//
// The result, success or failure, is recorded into the state. A failed
// tool is a finding with metadata, not a control-flow event.
func (o *Orchestrator) executeTool(ctx context.Context, state *datatypes.InvestigationState, tool agents.Tool) datatypes.ToolResult {
	expression := tool.Query(state.EntityID, state.EntityType)
	entities := []string{state.EntityID}
	params := map[string]any{
		"entity_id":   state.EntityID,
		"entity_type": state.EntityType,
	}

	runOnce := func(ctx context.Context) (any, error) {
		resp, err := resilience.InvokeWithResilience(ctx, func(ctx context.Context) (*resilience.Response, error) {
			data, err := tool.Run(ctx, params)
			if err != nil {
				return nil, err
			}
			return &resilience.Response{Raw: data}, nil
		}, o.invokeCfg)
		if err != nil {
			return nil, err
		}
		return resp.Raw, nil
	}

	var (
		data   any
		cached bool
		err    error
	)
	if o.deps.Cache != nil {
		data, cached, err = o.deps.Cache.GetOrCompute(ctx, tool.Name(), entities, expression, runOnce)
		if m := observability.DefaultMetrics; m != nil {
			if cached {
				m.RecordCacheResult("hit")
			} else {
				m.RecordCacheResult("miss")
			}
		}
	} else {
		data, err = runOnce(ctx)
	}

	result := datatypes.ToolResult{
		Tool:        tool.Name(),
		Cached:      cached,
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		result.Failed = true
		result.Error = err.Error()
		state.AppendError("tool:"+tool.Name(), fmt.Sprintf("%T", err), err.Error())
		slog.Warn("tool execution failed",
			slog.String("investigation_id", state.InvestigationID),
			slog.String("tool", tool.Name()),
			slog.String("error", err.Error()),
		)
	} else if typed, ok := data.(map[string]any); ok {
		result.Data = typed
	} else if data != nil {
		result.Data = map[string]any{"result": data}
	}

	state.RecordToolResult(result)
	return result
}

// executeDomain runs one domain agent through the resilience wrapper.
//
// The hybrid control decision happens here: the agent is granted autonomous
// iterations only when the confidence engine recommends it AND the safety
// manager currently allows AI control. Otherwise the agent gets exactly one
// deterministic pass.
func (o *Orchestrator) executeDomain(
	ctx context.Context,
	state *datatypes.InvestigationState,
	agent agents.DomainAgent,
	decision datatypes.ConfidenceDecision,
	status datatypes.SafetyStatus,
) datatypes.DomainFinding {
	autonomous := decision.Strategy == datatypes.StrategyAutonomous && status.AllowsAIControl

	state.AppendAudit("domain_control_grant", map[string]any{
		"domain":            agent.Domain(),
		"autonomous":        autonomous,
		"strategy":          string(decision.Strategy),
		"allows_ai_control": status.AllowsAIControl,
	})

	resp, err := resilience.InvokeWithResilience(ctx, func(ctx context.Context) (*resilience.Response, error) {
		finding, meta, err := agent.Analyze(ctx, state)
		if err != nil {
			return nil, err
		}
		return &resilience.Response{Raw: finding, Metadata: meta}, nil
	}, o.invokeCfg)

	var finding datatypes.DomainFinding
	if err != nil {
		finding = datatypes.DomainFinding{
			Domain:      agent.Domain(),
			Failed:      true,
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		}
		state.AppendError("domain:"+agent.Domain(), fmt.Sprintf("%T", err), err.Error())
		slog.Warn("domain analysis failed",
			slog.String("investigation_id", state.InvestigationID),
			slog.String("domain", agent.Domain()),
			slog.String("error", err.Error()),
		)
	} else {
		finding = resp.Raw.(datatypes.DomainFinding)
		finding.Domain = agent.Domain()
		if finding.CompletedAt.IsZero() {
			finding.CompletedAt = time.Now().UTC()
		}
		if usage := resp.Usage; usage.TotalTokens > 0 {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordTokens(usage.InputTokens, usage.OutputTokens, usage.Model)
			}
			slog.Debug("domain analysis token usage",
				slog.String("investigation_id", state.InvestigationID),
				slog.String("domain", agent.Domain()),
				slog.String("model", usage.Model),
				slog.Int("input_tokens", usage.InputTokens),
				slog.Int("output_tokens", usage.OutputTokens),
			)
		}
	}

	state.RecordDomainFinding(finding)
	return finding
}

// summarize assembles the final report from whatever evidence was gathered.
//
// The premature-completion invariant is enforced here as a last line of
// defense: zero successful findings can only produce a failed report,
// never a completed one.
func (o *Orchestrator) summarize(ctx context.Context, state *datatypes.InvestigationState, terminated *SafetyTerminationError) *datatypes.FinalReport {
	start := time.Now()
	defer o.recordPhaseLatency(ctx, datatypes.PhaseSummary, start)

	successful := state.SuccessfulFindings()

	var status datatypes.InvestigationStatus
	switch {
	case successful == 0:
		status = datatypes.StatusFailed
		state.AppendError("summary", "invariant", ErrPrematureCompletion.Error())
	case successful >= o.cfg.RequiredDomains && terminated == nil:
		status = datatypes.StatusComplete
	default:
		status = datatypes.StatusPartial
	}

	state.RiskScore = computeRiskScore(state)

	if terminated != nil {
		state.AppendAudit("safety_termination", map[string]any{
			"reason":            terminated.Reason,
			"resource_pressure": terminated.ResourcePressure,
		})
	}
	state.AppendAudit("summary", map[string]any{
		"status":              string(status),
		"risk_score":          state.RiskScore,
		"successful_findings": successful,
		"tools_used":          len(state.ToolsUsed),
		"loop_count":          state.LoopCount,
	})

	return &datatypes.FinalReport{
		InvestigationID:    state.InvestigationID,
		EntityID:           state.EntityID,
		EntityType:         state.EntityType,
		Status:             status,
		RiskScore:          state.RiskScore,
		AIConfidence:       state.AIConfidence,
		DomainFindings:     state.DomainFindings,
		ToolResults:        state.ToolResults,
		DecisionAuditTrail: state.DecisionAuditTrail,
		SafetyConcerns:     state.SafetyConcerns,
		Errors:             state.Errors,
		LoopCount:          state.LoopCount,
		StartedAt:          state.StartedAt,
	}
}

// computeRiskScore derives the risk score from domain findings, discounted
// by the failure ratio so partial evidence reads as reduced confidence.
func computeRiskScore(state *datatypes.InvestigationState) float64 {
	total := len(state.DomainFindings)
	if total == 0 {
		return 0
	}

	var sum float64
	successful := 0
	for _, f := range state.DomainFindings {
		if f.Failed {
			continue
		}
		sum += clamp01(f.RiskContribution)
		successful++
	}
	if successful == 0 {
		return 0
	}

	mean := sum / float64(successful)
	coverage := float64(successful) / float64(total)
	return clamp01(mean * coverage)
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

// persist saves the final record. Store failure is recorded, never raised:
// the caller still gets the in-memory report.
func (o *Orchestrator) persist(ctx context.Context, state *datatypes.InvestigationState) {
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.SaveInvestigation(ctx, state); err != nil {
		state.AppendError("store", fmt.Sprintf("%T", err), err.Error())
		slog.Error("failed to persist investigation record",
			slog.String("investigation_id", state.InvestigationID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) recordPhaseLatency(ctx context.Context, phase datatypes.Phase, start time.Time) {
	elapsed := time.Since(start).Seconds()
	if o.phaseLatency != nil {
		o.phaseLatency.Record(ctx, elapsed,
			metric.WithAttributes(attribute.String("phase", phase.String())),
		)
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordPhase(phase.String(), elapsed)
	}
}
