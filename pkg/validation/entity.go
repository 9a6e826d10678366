// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are embedded
// in Boolean query expressions and data-source calls. Using these validators
// prevents injection attacks (query injection, command injection).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// entityIDPattern matches valid investigation entity identifiers.
// Allows: letters, digits, then dots (203.0.113.5), hyphens and underscores
// (device ids), colons (ip:port, prefixed ids), and @ (email addresses).
// Max length: 512 characters.
var entityIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.@:_\-]{0,511}$`)

// ValidateEntityID validates an entity identifier to prevent query injection.
//
// Entity IDs are interpolated into tool query expressions, so anything that
// could carry operators, quotes, or whitespace is rejected.
//
// Valid entity IDs:
//   - 1-512 characters
//   - Letters and digits
//   - Dots, hyphens, underscores, colons, @ after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateEntityID(entityID); err != nil {
//	    return nil, fmt.Errorf("invalid entity: %w", err)
//	}
//	// Safe to embed in a query expression
func ValidateEntityID(entityID string) error {
	if entityID == "" {
		return fmt.Errorf("entity id cannot be empty")
	}

	if !entityIDPattern.MatchString(entityID) {
		return fmt.Errorf("invalid entity id format: %q (must be 1-512 alphanumeric chars, dots, hyphens, underscores, colons, or @)", entityID)
	}

	return nil
}

// ValidateEntityIDs validates multiple entity identifiers.
// Returns an error listing all invalid identifiers if any fail validation.
func ValidateEntityIDs(entityIDs []string) error {
	var invalid []string
	for _, id := range entityIDs {
		if err := ValidateEntityID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid entity ids: %v", invalid)
	}
	return nil
}

// SanitizeEntityID normalizes and validates an entity identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeID, err := validation.SanitizeEntityID(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeID is trimmed and validated
func SanitizeEntityID(entityID string) (string, error) {
	normalized := strings.TrimSpace(entityID)
	if err := ValidateEntityID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
