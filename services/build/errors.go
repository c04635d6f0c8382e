// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package build executes a validated extension manifest into build
// artifacts: shared libraries, control files, and the two derived lists
// (initialization statements and preload library names) that the image
// assembly step consumes.
//
// Entries are mutually independent - nothing depends on another entry's
// build output, only on its enabled flag, which is known before any
// building starts - so the orchestrator runs them in parallel, each in
// its own isolated working directory. Any single failure aborts the
// whole build; a partially-populated image is not a supported state.
// All failures observed before the abort are reported together.
//
// # Thread Safety
//
// Orchestrator is safe for concurrent use; each Run call keeps its own
// state.
package build

import "errors"

// Sentinel errors for build orchestration.
var (
	// ErrPatchNoMatch is returned when a declared patch matches fewer
	// times than required. A zero-match patch usually means upstream
	// renamed the code it targets; proceeding would silently build an
	// unpatched extension.
	ErrPatchNoMatch = errors.New("patch did not match")

	// ErrManifestInvalid is returned when Run is handed a manifest that
	// fails validation. The orchestrator refuses to start building.
	ErrManifestInvalid = errors.New("manifest failed validation")

	// ErrNilManifest is returned when Run is handed a nil manifest.
	ErrNilManifest = errors.New("nil manifest")
)
