// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents declares the collaborator contracts the orchestrator
// depends on but does not implement: data-source tools, LLM-driven domain
// agents, the confidence engine, and the safety manager.
//
// Concrete implementations (Splunk, Snowflake, graph, blockchain) live in
// their own services and are registered at startup.
package agents

import (
	"context"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

// Tool is one external data-source call.
//
// Run either returns structured data or an error. The orchestrator wraps
// every Run through the resilience layer and records failures as
// error-tagged results; a Tool never aborts an investigation.
type Tool interface {
	// Name returns the unique tool identifier (e.g. "splunk_search").
	Name() string

	// Query returns the Boolean query this tool evaluates for an entity.
	// Used as the cache fingerprint input.
	Query(entityID, entityType string) string

	// Run executes the tool against the entity.
	Run(ctx context.Context, params map[string]any) (map[string]any, error)
}

// DomainAgent is one LLM-driven analysis domain.
type DomainAgent interface {
	// Domain returns the unique domain identifier (e.g. "account_takeover").
	Domain() string

	// Analyze produces a finding from the evidence gathered so far.
	// The state is read-only input; agents must not mutate it.
	//
	// The second return value is the provider response metadata (token
	// usage, model name) for accounting. May be nil when the backend
	// reports none.
	Analyze(ctx context.Context, state *datatypes.InvestigationState) (datatypes.DomainFinding, map[string]any, error)
}

// ConfidenceEngine computes a weighted multi-factor confidence decision
// from the full current investigation state.
type ConfidenceEngine interface {
	CalculateInvestigationConfidence(ctx context.Context, state *datatypes.InvestigationState) (datatypes.ConfidenceDecision, error)
}

// SafetyManager validates the current state against dynamic resource and
// iteration limits.
type SafetyManager interface {
	ValidateCurrentState(state *datatypes.InvestigationState) (datatypes.SafetyStatus, error)
}

// Registry holds the tools and domain agents available to an orchestrator.
//
// Registration happens once at startup; the registry is read-only afterwards
// and therefore safe for concurrent use by investigation goroutines.
type Registry struct {
	tools   []Tool
	domains []DomainAgent
}

// NewRegistry creates a registry from the given tools and agents.
//
// Order is preserved: the orchestrator consumes tools and domains in
// registration order.
func NewRegistry(tools []Tool, domains []DomainAgent) *Registry {
	return &Registry{tools: tools, domains: domains}
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	return r.tools
}

// Domains returns the registered domain agents in registration order.
func (r *Registry) Domains() []DomainAgent {
	return r.domains
}
