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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
	"github.com/CormorantAI/CormorantFOSS/services/llm"
)

// LLMDomainAgent analyzes one fraud domain by prompting an LLM backend with
// the evidence gathered so far.
//
// The agent returns whatever the model concludes, risk included; gating how
// much that conclusion is trusted is the orchestrator's job, not the
// agent's.
type LLMDomainAgent struct {
	domain      string
	description string
	client      llm.LLMClient
	maxTokens   int
}

// NewLLMDomainAgent creates an agent for one domain.
//
// Inputs:
//
//	domain - Unique domain identifier (e.g. "account_takeover").
//	description - One-line analyst framing of what this domain covers.
//	client - The LLM backend. Must not be nil.
func NewLLMDomainAgent(domain, description string, client llm.LLMClient) (*LLMDomainAgent, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &LLMDomainAgent{
		domain:      domain,
		description: description,
		client:      client,
		maxTokens:   1024,
	}, nil
}

// Domain implements DomainAgent.
func (a *LLMDomainAgent) Domain() string {
	return a.domain
}

// domainVerdict is the JSON shape the model is instructed to produce.
type domainVerdict struct {
	Summary          string         `json:"summary"`
	RiskContribution float64        `json:"risk_contribution"`
	Evidence         map[string]any `json:"evidence"`
}

// Analyze implements DomainAgent.
//
// The state is read-only input: the agent serializes the evidence into the
// prompt and never mutates the state. The completion metadata is passed
// through untouched so the caller can account for token usage.
func (a *LLMDomainAgent) Analyze(ctx context.Context, state *datatypes.InvestigationState) (datatypes.DomainFinding, map[string]any, error) {
	if state == nil {
		return datatypes.DomainFinding{}, nil, fmt.Errorf("state is required")
	}

	prompt, err := a.buildPrompt(state)
	if err != nil {
		return datatypes.DomainFinding{}, nil, fmt.Errorf("build %s prompt: %w", a.domain, err)
	}

	temp := float32(0.1)
	completion, err := a.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &a.maxTokens,
	})
	if err != nil {
		return datatypes.DomainFinding{}, nil, err
	}

	verdict, err := parseVerdict(completion.Content)
	if err != nil {
		return datatypes.DomainFinding{}, completion.Metadata, fmt.Errorf("parse %s verdict: %w", a.domain, err)
	}

	return datatypes.DomainFinding{
		Domain:           a.domain,
		Summary:          verdict.Summary,
		RiskContribution: clamp01(verdict.RiskContribution),
		Evidence:         verdict.Evidence,
		CompletedAt:      time.Now().UTC(),
	}, completion.Metadata, nil
}

func (a *LLMDomainAgent) buildPrompt(state *datatypes.InvestigationState) (string, error) {
	evidence := map[string]any{
		"entity_id":      state.EntityID,
		"entity_type":    state.EntityType,
		"snowflake_data": state.SnowflakeData,
		"tool_results":   state.ToolResults,
	}
	payload, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following entity for %s fraud indicators.\n", a.domain)
	if a.description != "" {
		fmt.Fprintf(&b, "Domain scope: %s\n", a.description)
	}
	b.WriteString("\nEvidence:\n")
	b.Write(payload)
	b.WriteString("\n\nRespond with a single JSON object: ")
	b.WriteString(`{"summary": string, "risk_contribution": number in [0,1], "evidence": object}`)
	b.WriteString("\nDo not include any text outside the JSON object.")
	return b.String(), nil
}

// parseVerdict extracts the verdict object from the model output, tolerating
// surrounding prose or code fences.
func parseVerdict(content string) (domainVerdict, error) {
	var v domainVerdict

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return v, fmt.Errorf("no JSON object in model output")
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return v, err
	}
	if v.Summary == "" {
		return v, fmt.Errorf("verdict missing summary")
	}
	return v, nil
}
