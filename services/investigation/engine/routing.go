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
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

// Route is the orchestrator's next step, decided once per loop.
type Route string

const (
	// RouteToolExecution runs another data-source tool.
	RouteToolExecution Route = "tool_execution"

	// RouteDomainAnalysis runs another domain agent.
	RouteDomainAnalysis Route = "domain_analysis"

	// RouteSummary ends the evidence-gathering loop.
	RouteSummary Route = "summary"
)

// routingInput is everything NextRoute needs, gathered by the orchestrator.
type routingInput struct {
	state  *datatypes.InvestigationState
	cfg    Config
	status datatypes.SafetyStatus

	// toolsAvailable and domainsAvailable are the registry sizes; routing
	// must not ask for work that no agent can do.
	toolsAvailable   int
	domainsAvailable int
}

// NextRoute is the transition policy, a pure function of the gathered input.
//
// Description:
//
//	Routes to tool_execution while snowflake data is missing or too few
//	tools have run; to domain_analysis once the tool threshold is met and
//	fewer than the required domains have findings; to summary once the
//	domain threshold is met, the safety manager mandates termination, or
//	a resource ceiling is hit.
//
//	The premature-completion guard lives here too: while no domain has
//	produced a finding and a domain agent can still be attempted, routing
//	re-enters domain_analysis even past the usual thresholds, because an
//	investigation must never complete with an empty findings map.
func NextRoute(in routingInput) Route {
	state, cfg, status := in.state, in.cfg, in.status

	if status.RequiresImmediateTermination {
		return RouteSummary
	}

	limits := state.DynamicLimits
	if limits.MaxOrchestratorLoops > 0 && state.LoopCount >= limits.MaxOrchestratorLoops {
		return RouteSummary
	}
	if limits.MaxInvestigationTime > 0 && state.Elapsed() >= limits.MaxInvestigationTime {
		return RouteSummary
	}

	toolBudget := in.toolsAvailable
	if limits.MaxToolExecutions > 0 && limits.MaxToolExecutions < toolBudget {
		toolBudget = limits.MaxToolExecutions
	}
	domainBudget := in.domainsAvailable
	if limits.MaxDomainAttempts > 0 && limits.MaxDomainAttempts < domainBudget {
		domainBudget = limits.MaxDomainAttempts
	}

	toolsRun := len(state.ToolsUsed)
	needTools := !state.SnowflakeCompleted || toolsRun < cfg.MinToolExecutions
	if needTools && toolsRun < toolBudget {
		return RouteToolExecution
	}

	domainsDone := len(state.DomainsCompleted)
	if state.SuccessfulFindings() < cfg.RequiredDomains && domainsDone < domainBudget {
		return RouteDomainAnalysis
	}

	// Premature-completion guard: summary with zero findings is a bug
	// class, not an outcome. Re-enter domain analysis while any attempt
	// remains.
	if state.SuccessfulFindings() == 0 && domainsDone < in.domainsAvailable {
		return RouteDomainAnalysis
	}

	return RouteSummary
}
