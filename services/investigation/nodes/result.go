// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nodes implements the intelligence steps of the investigation
// state machine: the AI confidence assessment and the safety validation.
//
// Both nodes share one failure-handling contract: a failing decision engine
// is caught, recorded into the state's error log, and execution continues.
// The Result wrapper in this file enforces that contract by construction
// instead of by convention at every call site.
package nodes

import (
	"fmt"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

// Result carries a decision value or the recorded failure, never both.
//
// A node that produces a Result has already appended the failure to the
// state's error log; callers only need to branch on OK.
type Result[T any] struct {
	// Value is the decision, valid only when OK is true.
	Value T

	// OK is false when the decision engine failed.
	OK bool

	// Err is the caught error, kept for logging. Never propagated.
	Err error
}

// run executes fn under the catch-record-continue contract.
//
// Description:
//
//	Invokes the decision callback, converting both returned errors and
//	panics into an ErrorRecord appended to the state. The investigation
//	never crashes because a decision engine misbehaved.
//
// Inputs:
//
//	state - The investigation state receiving any error record.
//	source - The node name, recorded as the error source.
//	fn - The decision callback.
//
// Outputs:
//
//	Result[T] - Value on success, recorded failure otherwise.
func run[T any](state *datatypes.InvestigationState, source string, fn func() (T, error)) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			state.AppendError(source, "panic", err.Error())
			result = Result[T]{OK: false, Err: err}
		}
	}()

	value, err := fn()
	if err != nil {
		state.AppendError(source, fmt.Sprintf("%T", err), err.Error())
		return Result[T]{OK: false, Err: err}
	}
	return Result[T]{Value: value, OK: true}
}
