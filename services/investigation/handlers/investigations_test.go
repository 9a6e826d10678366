// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/agents"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/engine"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/querycache"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/resilience"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Setup
// =============================================================================

type stubTool struct{ name string }

func (t *stubTool) Name() string { return t.name }

func (t *stubTool) Query(entityID, entityType string) string {
	return fmt.Sprintf("%s = %s", entityType, entityID)
}

func (t *stubTool) Run(ctx context.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{"rows": 2}, nil
}

type stubDomain struct{ name string }

func (d *stubDomain) Domain() string { return d.name }

func (d *stubDomain) Analyze(ctx context.Context, state *datatypes.InvestigationState) (datatypes.DomainFinding, map[string]any, error) {
	return datatypes.DomainFinding{
		Domain:           d.name,
		Summary:          "no anomalies",
		RiskContribution: 0.2,
		Evidence:         map[string]any{"signals": 0},
	}, nil, nil
}

type stubConfidence struct{}

func (stubConfidence) CalculateInvestigationConfidence(ctx context.Context, state *datatypes.InvestigationState) (datatypes.ConfidenceDecision, error) {
	return datatypes.ConfidenceDecision{
		Confidence: 0.7,
		Level:      datatypes.ConfidenceHigh,
		Strategy:   datatypes.StrategyHybrid,
	}, nil
}

type stubSafety struct{}

func (stubSafety) ValidateCurrentState(state *datatypes.InvestigationState) (datatypes.SafetyStatus, error) {
	return datatypes.SafetyStatus{
		Level:           datatypes.SafetyNominal,
		AllowsAIControl: true,
	}, nil
}

// newTestRouter wires a real orchestrator over stub agents and an in-memory
// store, mirroring the production route table.
func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()

	recordStore, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = recordStore.Close() })

	cache := querycache.NewQueryCache()
	registry := agents.NewRegistry(
		[]agents.Tool{&stubTool{name: "splunk_search"}},
		[]agents.DomainAgent{&stubDomain{name: "account_takeover"}},
	)

	orch, err := engine.NewOrchestrator(engine.Deps{
		Registry:   registry,
		Confidence: stubConfidence{},
		Safety:     stubSafety{},
		Store:      recordStore,
		Cache:      cache,
	}, engine.Config{
		MinToolExecutions: 1,
		RequiredDomains:   1,
	}, resilience.InvocationConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        0,
		InitialRetryDelay: time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     time.Millisecond,
	})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/health", HealthCheck)
	v1 := router.Group("/v1")
	v1.POST("/investigations", RunInvestigation(orch))
	v1.GET("/investigations", ListInvestigations(recordStore))
	v1.GET("/investigations/:id", GetInvestigation(recordStore))
	v1.GET("/cache/stats", CacheStats(cache))
	return router, recordStore
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestRunInvestigation_RoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)
	id := uuid.NewString()

	body := fmt.Sprintf(`{"investigation_id": %q, "entity_id": "203.0.113.5", "entity_type": "ip"}`, id)
	rec := doJSON(router, http.MethodPost, "/v1/investigations", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report datatypes.FinalReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, id, report.InvestigationID)
	assert.Equal(t, "203.0.113.5", report.EntityID)
	assert.Equal(t, datatypes.StatusComplete, report.Status)
	assert.NotEmpty(t, report.DomainFindings)
	assert.NotEmpty(t, report.ToolResults)

	// The finished record is readable through the GET endpoint.
	rec = doJSON(router, http.MethodGet, "/v1/investigations/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state datatypes.InvestigationState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, id, state.InvestigationID)
	assert.Equal(t, datatypes.PhaseComplete, state.CurrentPhase)

	// And it shows up in the listing.
	rec = doJSON(router, http.MethodGet, "/v1/investigations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestRunInvestigation_GeneratesID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/v1/investigations",
		`{"entity_id": "acct-991", "entity_type": "account"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report datatypes.FinalReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	_, err := uuid.Parse(report.InvestigationID)
	assert.NoError(t, err, "generated investigation_id should be a UUID")
}

func TestRunInvestigation_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"entity_id": `},
		{"missing entity_id", `{"entity_type": "ip"}`},
		{"unknown entity_type", `{"entity_id": "x", "entity_type": "starship"}`},
		{"bad uuid", `{"investigation_id": "not-a-uuid", "entity_id": "x", "entity_type": "ip"}`},
		{"entity_id smuggles operators", `{"entity_id": "x OR 1=1", "entity_type": "ip"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(router, http.MethodPost, "/v1/investigations", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestGetInvestigation_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/v1/investigations/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), engine.ErrInvestigationNotFound.Error())
}

func TestListInvestigations_EmptyIsArray(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/v1/investigations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"investigations":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestListInvestigations_ReturnsRecords(t *testing.T) {
	router, _ := newTestRouter(t)
	id := uuid.NewString()

	body := fmt.Sprintf(`{"investigation_id": %q, "entity_id": "dev-42", "entity_type": "device"}`, id)
	rec := doJSON(router, http.MethodPost, "/v1/investigations", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(router, http.MethodGet, "/v1/investigations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Investigations []datatypes.InvestigationState `json:"investigations"`
		Count          int                            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Equal(t, 1, listing.Count)
	record := listing.Investigations[0]
	assert.Equal(t, id, record.InvestigationID)
	assert.Equal(t, "dev-42", record.EntityID)
	assert.Equal(t, datatypes.PhaseComplete, record.CurrentPhase)
	assert.NotEmpty(t, record.DomainFindings)
}

func TestCacheStatsAndHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats querycache.Statistics
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	rec = doJSON(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
