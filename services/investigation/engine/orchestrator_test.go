// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/agents"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/events"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/resilience"
)

// --- fakes ---

type fakeTool struct {
	name string
	err  error
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Query(entityID, entityType string) string {
	return fmt.Sprintf("%s = %s", entityType, entityID)
}

func (f *fakeTool) Run(ctx context.Context, params map[string]any) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"source": f.name, "rows": 3}, nil
}

type fakeDomain struct {
	name     string
	risk     float64
	err      error
	meta     map[string]any
	attempts int
}

func (f *fakeDomain) Domain() string { return f.name }

func (f *fakeDomain) Analyze(ctx context.Context, state *datatypes.InvestigationState) (datatypes.DomainFinding, map[string]any, error) {
	f.attempts++
	if f.err != nil {
		return datatypes.DomainFinding{}, nil, f.err
	}
	return datatypes.DomainFinding{
		Domain:           f.name,
		Summary:          "evidence reviewed",
		RiskContribution: f.risk,
		Evidence:         map[string]any{"signals": 2},
	}, f.meta, nil
}

type fakeConfidence struct {
	decision datatypes.ConfidenceDecision
	err      error
}

func (f *fakeConfidence) CalculateInvestigationConfidence(ctx context.Context, state *datatypes.InvestigationState) (datatypes.ConfidenceDecision, error) {
	if f.err != nil {
		return datatypes.ConfidenceDecision{}, f.err
	}
	return f.decision, nil
}

// fakeSafety returns nominal status until terminateAfterDomains findings
// have been attempted, then mandates immediate termination.
type fakeSafety struct {
	terminateAfterDomains int
	limits                datatypes.DynamicLimits
}

func (f *fakeSafety) ValidateCurrentState(state *datatypes.InvestigationState) (datatypes.SafetyStatus, error) {
	limits := f.limits
	if limits.IsZero() {
		limits = datatypes.DefaultLimits()
	}
	if f.terminateAfterDomains > 0 && len(state.DomainsCompleted) >= f.terminateAfterDomains {
		return datatypes.SafetyStatus{
			Level:                        datatypes.SafetyCritical,
			AllowsAIControl:              false,
			RequiresImmediateTermination: true,
			ResourcePressure:             0.97,
			Concerns:                     []string{"resource pressure critical"},
			CurrentLimits:                &limits,
		}, nil
	}
	return datatypes.SafetyStatus{
		Level:            datatypes.SafetyNominal,
		AllowsAIControl:  true,
		ResourcePressure: 0.2,
		CurrentLimits:    &limits,
	}, nil
}

func testInvokeConfig() resilience.InvocationConfig {
	return resilience.InvocationConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        0,
		InitialRetryDelay: time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     time.Millisecond,
	}
}

func steadyConfidence() *fakeConfidence {
	return &fakeConfidence{decision: datatypes.ConfidenceDecision{
		Confidence: 0.7,
		Level:      datatypes.ConfidenceHigh,
		Strategy:   datatypes.StrategyHybrid,
	}}
}

// --- tests ---

func TestNewOrchestratorRejectsNilDeps(t *testing.T) {
	_, err := NewOrchestrator(Deps{}, DefaultConfig(), testInvokeConfig())
	if !errors.Is(err, ErrNilDependency) {
		t.Errorf("err = %v, want ErrNilDependency", err)
	}
}

func TestRunInvestigationValidatesArguments(t *testing.T) {
	orch, err := NewOrchestrator(Deps{
		Registry:   agents.NewRegistry(nil, []agents.DomainAgent{&fakeDomain{name: "d", risk: 0.5}}),
		Confidence: steadyConfidence(),
		Safety:     &fakeSafety{},
	}, DefaultConfig(), testInvokeConfig())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	if _, err := orch.RunInvestigation(context.Background(), "", "acct:1", "account", nil); err == nil {
		t.Error("expected error for empty investigation id")
	}
	if _, err := orch.RunInvestigation(context.Background(), "inv-1", "", "account", nil); err == nil {
		t.Error("expected error for empty entity id")
	}
}

func TestRunInvestigationMidRunTermination(t *testing.T) {
	snowflake := &fakeTool{name: "snowflake_baseline"}
	tools := []agents.Tool{
		&fakeTool{name: "splunk_search"},
		&fakeTool{name: "graph_neighbors"},
		&fakeTool{name: "chargeback_history"},
	}
	domains := []*fakeDomain{
		{name: "account_takeover", risk: 0.8},
		{name: "payment_fraud", risk: 0.6},
		{name: "identity_theft", risk: 0.9},
	}
	domainAgents := make([]agents.DomainAgent, len(domains))
	for i, d := range domains {
		domainAgents[i] = d
	}

	queue := events.NewQueue()
	defer queue.Close()

	orch, err := NewOrchestrator(Deps{
		Registry:   agents.NewRegistry(tools, domainAgents),
		Snowflake:  snowflake,
		Confidence: steadyConfidence(),
		Safety:     &fakeSafety{terminateAfterDomains: 2},
		Events:     queue,
	}, Config{MinToolExecutions: 4, RequiredDomains: 3}, testInvokeConfig())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	report, err := orch.RunInvestigation(context.Background(), "inv-e2e", "ip:203.0.113.5", "ip", nil)
	if err != nil {
		t.Fatalf("RunInvestigation: %v", err)
	}

	// All four tools (snowflake + three registry tools) succeeded.
	if len(report.ToolResults) != 4 {
		t.Errorf("tool results = %d, want 4", len(report.ToolResults))
	}
	for name, r := range report.ToolResults {
		if r.Failed {
			t.Errorf("tool %s failed: %s", name, r.Error)
		}
	}

	// Termination after two domains: exactly two findings, third untouched.
	if len(report.DomainFindings) != 2 {
		t.Errorf("domain findings = %d, want 2", len(report.DomainFindings))
	}
	if domains[2].attempts != 0 {
		t.Errorf("third domain attempted %d times, want 0", domains[2].attempts)
	}

	if report.Status != datatypes.StatusPartial {
		t.Errorf("Status = %v, want partial after safety termination", report.Status)
	}
	if len(report.SafetyConcerns) == 0 {
		t.Error("expected recorded safety concerns")
	}

	// Risk: mean of 0.8 and 0.6, full coverage of attempted domains.
	if report.RiskScore < 0.69 || report.RiskScore > 0.71 {
		t.Errorf("RiskScore = %v, want ~0.70", report.RiskScore)
	}
	if report.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}

	// Phase transitions were published.
	if queue.Len() == 0 {
		t.Error("expected published events")
	}
	sawSummary := false
	for {
		ev, ok := queue.TryNext()
		if !ok {
			break
		}
		if ev.Type == events.TypePhaseTransition && ev.Phase == datatypes.PhaseSummary.String() {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Error("no summary phase transition event observed")
	}
}

func TestRunInvestigationNeverCompletesWithoutFindings(t *testing.T) {
	domains := []agents.DomainAgent{
		&fakeDomain{name: "account_takeover", err: errors.New("model not found: fraud-v2")},
		&fakeDomain{name: "payment_fraud", err: errors.New("model not found: fraud-v2")},
	}

	orch, err := NewOrchestrator(Deps{
		Registry:   agents.NewRegistry(nil, domains),
		Confidence: steadyConfidence(),
		Safety:     &fakeSafety{},
	}, Config{MinToolExecutions: 0, RequiredDomains: 2}, testInvokeConfig())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	report, err := orch.RunInvestigation(context.Background(), "inv-nofindings", "acct:7", "account", nil)
	if err != nil {
		t.Fatalf("RunInvestigation: %v", err)
	}

	if report.Status != datatypes.StatusFailed {
		t.Errorf("Status = %v, want failed with zero findings", report.Status)
	}

	foundInvariant := false
	for _, rec := range report.Errors {
		if rec.Source == "summary" && rec.Message == ErrPrematureCompletion.Error() {
			foundInvariant = true
		}
	}
	if !foundInvariant {
		t.Error("expected a recorded premature-completion invariant error")
	}

	// Both domain failures are findings with metadata, not aborts.
	if len(report.DomainFindings) != 2 {
		t.Errorf("domain findings = %d, want 2 error-tagged entries", len(report.DomainFindings))
	}
	for name, f := range report.DomainFindings {
		if !f.Failed || f.Error == "" {
			t.Errorf("finding %s = %+v, want failed with error text", name, f)
		}
	}
}

func TestRunInvestigationDegradesOnToolFailure(t *testing.T) {
	tools := []agents.Tool{
		&fakeTool{name: "splunk_search", err: errors.New("invalid request: bad SPL")},
		&fakeTool{name: "graph_neighbors"},
	}
	domains := []agents.DomainAgent{&fakeDomain{name: "account_takeover", risk: 0.4}}

	orch, err := NewOrchestrator(Deps{
		Registry:   agents.NewRegistry(tools, domains),
		Confidence: steadyConfidence(),
		Safety:     &fakeSafety{},
	}, Config{MinToolExecutions: 2, RequiredDomains: 1}, testInvokeConfig())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	report, err := orch.RunInvestigation(context.Background(), "inv-degrade", "dev:42", "device", nil)
	if err != nil {
		t.Fatalf("RunInvestigation: %v", err)
	}

	if report.Status != datatypes.StatusComplete {
		t.Errorf("Status = %v, want complete despite tool failure", report.Status)
	}

	failed, ok := report.ToolResults["splunk_search"]
	if !ok || !failed.Failed {
		t.Errorf("splunk_search result = %+v, want error-tagged", failed)
	}
	if len(report.Errors) == 0 {
		t.Error("expected the tool failure in the error log")
	}
}

func TestRunInvestigationEnforcesLoopCeiling(t *testing.T) {
	var domains []agents.DomainAgent
	fakes := make([]*fakeDomain, 0, 10)
	for i := 0; i < 10; i++ {
		d := &fakeDomain{name: fmt.Sprintf("domain-%d", i), risk: 0.5}
		fakes = append(fakes, d)
		domains = append(domains, d)
	}

	limits := datatypes.DefaultLimits()
	limits.MaxOrchestratorLoops = 3

	orch, err := NewOrchestrator(Deps{
		Registry:   agents.NewRegistry(nil, domains),
		Confidence: steadyConfidence(),
		Safety:     &fakeSafety{limits: limits},
	}, Config{MinToolExecutions: 0, RequiredDomains: 10}, testInvokeConfig())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	report, err := orch.RunInvestigation(context.Background(), "inv-ceiling", "acct:3", "account", nil)
	if err != nil {
		t.Fatalf("RunInvestigation: %v", err)
	}

	if report.LoopCount > 4 {
		t.Errorf("LoopCount = %d, ceiling of 3 not enforced", report.LoopCount)
	}
	if len(report.DomainFindings) >= 10 {
		t.Errorf("domain findings = %d, expected the ceiling to cut analysis short", len(report.DomainFindings))
	}
	if report.Status != datatypes.StatusPartial {
		t.Errorf("Status = %v, want partial", report.Status)
	}

	attempted := 0
	for _, d := range fakes {
		attempted += d.attempts
	}
	if attempted != len(report.DomainFindings) {
		t.Errorf("attempts = %d, findings = %d; every attempt must be recorded once", attempted, len(report.DomainFindings))
	}
}
