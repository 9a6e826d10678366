// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// investigation service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring investigation
// runs. Metrics include:
//   - Investigation counters (by status)
//   - Phase duration histograms
//   - Tool and domain invocation counters (by outcome)
//   - LLM retry and token counters
//   - Query cache hit/miss counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "cormorant"

// Subsystem for investigation metrics
const investigationSubsystem = "investigation"

// InvestigationMetrics holds all Prometheus metrics for investigation runs.
//
// # Description
//
// Provides counters and histograms for monitoring the orchestrator and its
// collaborators. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type InvestigationMetrics struct {
	// InvestigationsTotal counts finished investigations.
	// Labels: status (complete, partial, failed)
	InvestigationsTotal *prometheus.CounterVec

	// InvestigationDurationSeconds measures wall-clock time per investigation.
	// Labels: status
	InvestigationDurationSeconds *prometheus.HistogramVec

	// PhaseDurationSeconds measures time spent per phase.
	// Labels: phase (snowflake_analysis, tool_execution, ...)
	PhaseDurationSeconds *prometheus.HistogramVec

	// ToolInvocationsTotal counts tool runs by outcome.
	// Labels: tool, outcome (success, failed, cached)
	ToolInvocationsTotal *prometheus.CounterVec

	// DomainInvocationsTotal counts domain-agent runs by outcome.
	// Labels: domain, outcome (success, failed)
	DomainInvocationsTotal *prometheus.CounterVec

	// LLMRetriesTotal counts LLM invocation retries by classification.
	// Labels: classification (retryable, timeout)
	LLMRetriesTotal *prometheus.CounterVec

	// LLMTokensTotal counts tokens processed by direction and model.
	// Labels: direction (input, output), model
	LLMTokensTotal *prometheus.CounterVec

	// SafetyTerminationsTotal counts safety-mandated early terminations.
	// Labels: safety_level
	SafetyTerminationsTotal *prometheus.CounterVec

	// CacheRequestsTotal counts query cache lookups.
	// Labels: result (hit, miss, rejected)
	CacheRequestsTotal *prometheus.CounterVec

	// ActiveInvestigations tracks investigations currently running.
	ActiveInvestigations prometheus.Gauge
}

// DefaultMetrics is the singleton instance of InvestigationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *InvestigationMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *InvestigationMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *InvestigationMetrics {
	DefaultMetrics = &InvestigationMetrics{
		InvestigationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "runs_total",
				Help:      "Total finished investigations by terminal status",
			},
			[]string{"status"},
		),

		InvestigationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "duration_seconds",
				Help:      "Wall-clock investigation duration in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 180, 600, 1800},
			},
			[]string{"status"},
		),

		PhaseDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "phase_duration_seconds",
				Help:      "Time spent per investigation phase in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 180},
			},
			[]string{"phase"},
		),

		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "tool_invocations_total",
				Help:      "Total tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),

		DomainInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "domain_invocations_total",
				Help:      "Total domain-agent invocations by domain and outcome",
			},
			[]string{"domain", "outcome"},
		),

		LLMRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "llm_retries_total",
				Help:      "Total LLM invocation retries by error classification",
			},
			[]string{"classification"},
		),

		LLMTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "llm_tokens_total",
				Help:      "Total LLM tokens processed by direction and model",
			},
			[]string{"direction", "model"},
		),

		SafetyTerminationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "safety_terminations_total",
				Help:      "Total investigations terminated early by the safety manager",
			},
			[]string{"safety_level"},
		),

		CacheRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "cache_requests_total",
				Help:      "Total query cache lookups by result",
			},
			[]string{"result"},
		),

		ActiveInvestigations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: investigationSubsystem,
				Name:      "active",
				Help:      "Investigations currently running",
			},
		),
	}

	return DefaultMetrics
}

// RecordInvestigation records one finished investigation.
//
// # Inputs
//
//   - status: The terminal status (complete, partial, failed).
//   - seconds: Wall-clock duration in seconds.
func (m *InvestigationMetrics) RecordInvestigation(status string, seconds float64) {
	m.InvestigationsTotal.WithLabelValues(status).Inc()
	m.InvestigationDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordPhase records time spent in one phase.
func (m *InvestigationMetrics) RecordPhase(phase string, seconds float64) {
	m.PhaseDurationSeconds.WithLabelValues(phase).Observe(seconds)
}

// RecordTool records one tool invocation outcome.
//
// # Inputs
//
//   - tool: The tool name.
//   - failed: Whether the invocation failed after retries.
//   - cached: Whether the result came from the query cache.
func (m *InvestigationMetrics) RecordTool(tool string, failed, cached bool) {
	outcome := "success"
	switch {
	case failed:
		outcome = "failed"
	case cached:
		outcome = "cached"
	}
	m.ToolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordDomain records one domain-agent invocation outcome.
func (m *InvestigationMetrics) RecordDomain(domain string, failed bool) {
	outcome := "success"
	if failed {
		outcome = "failed"
	}
	m.DomainInvocationsTotal.WithLabelValues(domain, outcome).Inc()
}

// RecordRetry records one LLM invocation retry.
func (m *InvestigationMetrics) RecordRetry(classification string) {
	m.LLMRetriesTotal.WithLabelValues(classification).Inc()
}

// RecordTokens records LLM token usage.
func (m *InvestigationMetrics) RecordTokens(inputTokens, outputTokens int, model string) {
	m.LLMTokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.LLMTokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordSafetyTermination records one safety-mandated termination.
func (m *InvestigationMetrics) RecordSafetyTermination(level string) {
	m.SafetyTerminationsTotal.WithLabelValues(level).Inc()
}

// RecordCacheResult records one query cache lookup result.
//
// # Inputs
//
//   - result: One of "hit", "miss", "rejected".
func (m *InvestigationMetrics) RecordCacheResult(result string) {
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// InvestigationStarted increments the active investigations gauge.
func (m *InvestigationMetrics) InvestigationStarted() {
	m.ActiveInvestigations.Inc()
}

// InvestigationEnded decrements the active investigations gauge.
func (m *InvestigationMetrics) InvestigationEnded() {
	m.ActiveInvestigations.Dec()
}
