// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tuning derives a complete PostgreSQL parameter set from the
// resources of the container the server lands in.
//
// The package is split into three stages that run once per container
// start, in order:
//
//  1. Detector resolves the usable (RAM, CPU) pair from a fixed
//     precedence of sources (operator override, cgroup v2 limits,
//     /proc/meminfo).
//  2. Tune maps the resolved ResourceProfile plus a workload and storage
//     profile to a TunedConfig. Tune is a pure function: identical inputs
//     always produce identical output.
//  3. Render emits the TunedConfig as a postgresql.conf fragment,
//     applying operator overrides key by key.
//
// Nothing in this package persists state. If an input changes, the whole
// pipeline reruns on the next container start.
//
// # Thread Safety
//
// Detector is safe for concurrent use. ResourceProfile and TunedConfig
// are immutable values once returned.
package tuning

import "errors"

// Sentinel errors for resource detection and config emission. All of
// these are fatal: the entrypoint must not start PostgreSQL when one is
// returned.
var (
	// ErrMemoryBelowFloor is returned when the detected or requested
	// memory is below the supported minimum. Starting PostgreSQL
	// under-provisioned produces confusing OOM kills later, so the
	// refusal happens here instead.
	ErrMemoryBelowFloor = errors.New("memory below supported floor")

	// ErrNoMemorySource is returned when no memory source yields a value.
	// This should not happen on a real Linux host and usually indicates a
	// broken /proc mount inside the container.
	ErrNoMemorySource = errors.New("no usable memory source")

	// ErrUnknownWorkload is returned for a workload name outside the
	// closed set web/oltp/dw/mixed.
	ErrUnknownWorkload = errors.New("unknown workload profile")

	// ErrUnknownStorage is returned for a storage name outside the closed
	// set ssd/hdd/san.
	ErrUnknownStorage = errors.New("unknown storage profile")

	// ErrIllegalOverride is returned when an operator override sets a
	// parameter outside the engine's legal range.
	ErrIllegalOverride = errors.New("override outside legal range")

	// ErrBadOverrideValue is returned when an override value for a known
	// parameter cannot be parsed at all.
	ErrBadOverrideValue = errors.New("malformed override value")
)
