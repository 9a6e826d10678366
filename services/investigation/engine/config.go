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
	"log/slog"
	"os"
	"strconv"
)

// Routing thresholds. These are configuration inputs to the state machine,
// not constants buried in routing code: deployments tune them per entity
// type and evidence availability.
const (
	// DefaultMinToolExecutions is how many tools must run before domain
	// analysis is allowed to start.
	DefaultMinToolExecutions = 3

	// DefaultRequiredDomains is how many domains must produce findings
	// before the investigation may summarize on its own.
	DefaultRequiredDomains = 6
)

// Config carries the orchestrator routing thresholds.
type Config struct {
	// MinToolExecutions gates the transition to domain analysis.
	MinToolExecutions int

	// RequiredDomains gates the transition to summary.
	RequiredDomains int
}

// DefaultConfig returns the production routing thresholds.
func DefaultConfig() Config {
	return Config{
		MinToolExecutions: DefaultMinToolExecutions,
		RequiredDomains:   DefaultRequiredDomains,
	}
}

// ConfigFromEnv loads threshold overrides from the environment.
//
// Recognized variables: INVESTIGATION_MIN_TOOL_EXECUTIONS,
// INVESTIGATION_REQUIRED_DOMAINS. Invalid values are logged and ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("INVESTIGATION_MIN_TOOL_EXECUTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MinToolExecutions = n
		} else {
			slog.Warn("invalid INVESTIGATION_MIN_TOOL_EXECUTIONS, using default", "value", v)
		}
	}
	if v := os.Getenv("INVESTIGATION_REQUIRED_DOMAINS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequiredDomains = n
		} else {
			slog.Warn("invalid INVESTIGATION_REQUIRED_DOMAINS, using default", "value", v)
		}
	}

	return cfg
}
