// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the investigation service HTTP API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/CormorantAI/CormorantFOSS/pkg/validation"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/engine"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/querycache"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/store"
)

var requestValidate = validator.New()

// RunInvestigationRequest is the POST /v1/investigations payload.
//
// # Validation
//
// Uses go-playground/validator:
//   - InvestigationID: optional, must be valid UUID v4 when provided
//   - EntityID: required, 1-512 bytes
//   - EntityType: required, one of the known entity kinds
type RunInvestigationRequest struct {
	InvestigationID string         `json:"investigation_id" validate:"omitempty,uuid4"`
	EntityID        string         `json:"entity_id" validate:"required,min=1,max=512"`
	EntityType      string         `json:"entity_type" validate:"required,oneof=ip account device card merchant email"`
	Context         map[string]any `json:"context,omitempty"`
}

// Validate validates the request fields after JSON binding.
func (r *RunInvestigationRequest) Validate() error {
	return requestValidate.Struct(r)
}

// EnsureDefaults generates an InvestigationID when the client omitted one.
func (r *RunInvestigationRequest) EnsureDefaults() {
	if r.InvestigationID == "" {
		r.InvestigationID = uuid.NewString()
	}
}

// RunInvestigation handles POST /v1/investigations.
//
// The investigation runs synchronously in the request goroutine; the final
// report is the response body. Partial and failed investigations are still
// 200s with the status in the report, because they are investigation
// outcomes, not transport errors.
func RunInvestigation(orch *engine.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunInvestigationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Entity IDs end up embedded in tool query expressions; reject
		// anything that could smuggle operators in.
		entityID, err := validation.SanitizeEntityID(req.EntityID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EntityID = entityID
		req.EnsureDefaults()

		slog.Info("Received investigation request",
			"investigation_id", req.InvestigationID,
			"entity_id", req.EntityID,
			"entity_type", req.EntityType,
		)

		report, err := orch.RunInvestigation(c.Request.Context(),
			req.InvestigationID, req.EntityID, req.EntityType, req.Context)
		if err != nil {
			slog.Error("investigation could not be started", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "investigation could not be started"})
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

// GetInvestigation handles GET /v1/investigations/:id.
func GetInvestigation(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		state, err := s.GetInvestigation(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": engine.ErrInvestigationNotFound.Error()})
				return
			}
			slog.Error("failed to load investigation record", "investigation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load investigation record"})
			return
		}

		c.JSON(http.StatusOK, state)
	}
}

// ListInvestigations handles GET /v1/investigations.
//
// Returns full stored records, matching the persistence contract of the
// record store. Case-review consumers need status and risk at a glance, not
// another round trip per ID.
func ListInvestigations(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.ListInvestigations(c.Request.Context())
		if err != nil {
			slog.Error("failed to list investigations", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list investigations"})
			return
		}
		if records == nil {
			records = []*datatypes.InvestigationState{}
		}
		c.JSON(http.StatusOK, gin.H{
			"investigations": records,
			"count":          len(records),
		})
	}
}

// CacheStats handles GET /v1/cache/stats.
func CacheStats(cache *querycache.QueryCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cache.Statistics())
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
