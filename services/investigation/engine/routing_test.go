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
	"fmt"
	"testing"
	"time"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

func routingState() *datatypes.InvestigationState {
	state := datatypes.NewInvestigationState("inv-route", "acct:9", "account", nil)
	state.SnowflakeCompleted = true
	return state
}

func TestNextRoute(t *testing.T) {
	cfg := Config{MinToolExecutions: 3, RequiredDomains: 6}
	okStatus := datatypes.SafetyStatus{Level: datatypes.SafetyNominal, AllowsAIControl: true}

	t.Run("immediate termination routes to summary", func(t *testing.T) {
		state := routingState()
		got := NextRoute(routingInput{
			state:            state,
			cfg:              cfg,
			status:           datatypes.SafetyStatus{RequiresImmediateTermination: true},
			toolsAvailable:   5,
			domainsAvailable: 6,
		})
		if got != RouteSummary {
			t.Errorf("route = %v, want summary", got)
		}
	})

	t.Run("tools run until threshold", func(t *testing.T) {
		state := routingState()
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteToolExecution {
			t.Errorf("route = %v, want tool_execution", got)
		}
	})

	t.Run("snowflake pending forces tool execution", func(t *testing.T) {
		state := routingState()
		state.SnowflakeCompleted = false
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteToolExecution {
			t.Errorf("route = %v, want tool_execution", got)
		}
	})

	t.Run("domains after tool threshold met", func(t *testing.T) {
		state := routingState()
		for i := 0; i < 3; i++ {
			state.RecordToolResult(datatypes.ToolResult{Tool: fmt.Sprintf("tool-%d", i)})
		}
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteDomainAnalysis {
			t.Errorf("route = %v, want domain_analysis", got)
		}
	})

	t.Run("summary once domain threshold met", func(t *testing.T) {
		state := routingState()
		for i := 0; i < 3; i++ {
			state.RecordToolResult(datatypes.ToolResult{Tool: fmt.Sprintf("tool-%d", i)})
		}
		for i := 0; i < 6; i++ {
			state.RecordDomainFinding(datatypes.DomainFinding{Domain: fmt.Sprintf("domain-%d", i)})
		}
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteSummary {
			t.Errorf("route = %v, want summary", got)
		}
	})

	t.Run("loop ceiling routes to summary", func(t *testing.T) {
		state := routingState()
		state.LoopCount = state.DynamicLimits.MaxOrchestratorLoops
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteSummary {
			t.Errorf("route = %v, want summary", got)
		}
	})

	t.Run("time ceiling routes to summary", func(t *testing.T) {
		state := routingState()
		state.StartedAt = time.Now().Add(-time.Hour)
		state.DynamicLimits.MaxInvestigationTime = time.Minute
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteSummary {
			t.Errorf("route = %v, want summary", got)
		}
	})

	t.Run("dynamic limit caps tool budget below registry size", func(t *testing.T) {
		state := routingState()
		state.DynamicLimits.MaxToolExecutions = 1
		state.RecordToolResult(datatypes.ToolResult{Tool: "tool-0"})
		// Tool threshold (3) is unmet, but the dynamic budget (1) is spent.
		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteDomainAnalysis {
			t.Errorf("route = %v, want domain_analysis", got)
		}
	})

	t.Run("zero findings re-enter domain analysis past thresholds", func(t *testing.T) {
		state := routingState()
		for i := 0; i < 3; i++ {
			state.RecordToolResult(datatypes.ToolResult{Tool: fmt.Sprintf("tool-%d", i)})
		}
		// Domain budget spent entirely on failures.
		state.DynamicLimits.MaxDomainAttempts = 2
		state.RecordDomainFinding(datatypes.DomainFinding{Domain: "d0", Failed: true, Error: "boom"})
		state.RecordDomainFinding(datatypes.DomainFinding{Domain: "d1", Failed: true, Error: "boom"})

		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 6})
		if got != RouteDomainAnalysis {
			t.Errorf("route = %v, want forced domain_analysis while findings are empty", got)
		}
	})

	t.Run("zero findings and no domains left ends in summary", func(t *testing.T) {
		state := routingState()
		for i := 0; i < 3; i++ {
			state.RecordToolResult(datatypes.ToolResult{Tool: fmt.Sprintf("tool-%d", i)})
		}
		state.RecordDomainFinding(datatypes.DomainFinding{Domain: "d0", Failed: true, Error: "boom"})
		state.RecordDomainFinding(datatypes.DomainFinding{Domain: "d1", Failed: true, Error: "boom"})

		got := NextRoute(routingInput{state: state, cfg: cfg, status: okStatus, toolsAvailable: 5, domainsAvailable: 2})
		if got != RouteSummary {
			t.Errorf("route = %v, want summary once every domain was attempted", got)
		}
	})
}
