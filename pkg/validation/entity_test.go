// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateEntityID(t *testing.T) {
	tests := []struct {
		name     string
		entityID string
		wantErr  bool
	}{
		// Valid entity IDs
		{"ip address", "203.0.113.5", false},
		{"prefixed id", "acct:991-442", false},
		{"device id", "dev_7f3a-99b2", false},
		{"email", "user@example.com", false},
		{"single char", "a", false},
		{"card hash", "4a7d1ed414474e4033ac29ccb8653d9b", false},
		{"max length", "a" + strings.Repeat("b", 511), false},

		// Invalid entity IDs - injection attempts
		{"empty", "", true},
		{"query injection", `x" OR 1=1 --`, true},
		{"boolean operator", "x AND y", true},
		{"newline injection", "x\nAND y", true},
		{"parens", "acct(9)", true},
		{"quotes", `"acct"`, true},
		{"spaces", "acct 9", true},
		{"too long", "a" + strings.Repeat("b", 512), true},
		{"starts with dot", ".hidden", true},
		{"starts with colon", ":acct", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntityID(tt.entityID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEntityID(%q) error = %v, wantErr %v", tt.entityID, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEntityIDs(t *testing.T) {
	tests := []struct {
		name      string
		entityIDs []string
		wantErr   bool
	}{
		{"all valid", []string{"203.0.113.5", "acct:9", "user@example.com"}, false},
		{"one invalid", []string{"acct:9", "x OR y", "dev_1"}, true},
		{"all invalid", []string{"", "a b"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntityIDs(tt.entityIDs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEntityIDs(%v) error = %v, wantErr %v", tt.entityIDs, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeEntityID(t *testing.T) {
	tests := []struct {
		name     string
		entityID string
		want     string
		wantErr  bool
	}{
		{"clean passthrough", "acct:9", "acct:9", false},
		{"whitespace trimmed", "  203.0.113.5  ", "203.0.113.5", false},
		{"inner space rejected", "acct 9", "", true},
		{"injection rejected", `x" OR 1=1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeEntityID(tt.entityID)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeEntityID(%q) error = %v, wantErr %v", tt.entityID, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeEntityID(%q) = %q, want %q", tt.entityID, got, tt.want)
			}
		})
	}
}
