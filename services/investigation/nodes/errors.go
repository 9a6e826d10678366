// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import "errors"

// Sentinel errors for node construction. Execution-time failures are never
// returned: they are recorded into the investigation state instead.
var (
	// ErrNilEngine is returned when a node is built without its decision
	// component.
	ErrNilEngine = errors.New("decision engine is nil")

	// ErrNilState is returned when a node is executed against a nil state.
	ErrNilState = errors.New("investigation state is nil")
)
