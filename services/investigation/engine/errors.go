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
	"errors"
	"fmt"
)

// Sentinel errors for the orchestrator. Only genuinely unrecoverable
// conditions surface as errors; tool and domain failures are recorded into
// the state and never abort an investigation.
var (
	// ErrInvestigationNotFound is the caller-facing error for a lookup of
	// an investigation record that does not exist.
	ErrInvestigationNotFound = errors.New("investigation record not found")

	// ErrStateCorrupted is returned on a state-schema violation. Fatal.
	ErrStateCorrupted = errors.New("investigation state corrupted")

	// ErrPrematureCompletion marks the documented invariant violation:
	// an investigation must never complete with zero domain findings.
	ErrPrematureCompletion = errors.New("premature completion: no domain findings")

	// ErrNilDependency is returned when the orchestrator is built without
	// a required collaborator.
	ErrNilDependency = errors.New("required dependency is nil")
)

// SafetyTerminationError is the control signal raised when the safety
// manager mandates an immediate stop. It is not a failure: the orchestrator
// catches it and routes directly to summary.
type SafetyTerminationError struct {
	// Reason is the safety manager's stated cause.
	Reason string

	// ResourcePressure is the pressure reading at termination time.
	ResourcePressure float64
}

// Error implements the error interface.
func (e *SafetyTerminationError) Error() string {
	return fmt.Sprintf("safety termination: %s (pressure %.2f)", e.Reason, e.ResourcePressure)
}
