// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry models the extension manifest: the declarative list
// of build/install recipes that becomes the image's extension set.
//
// The manifest is plain YAML so it can be authored by hand and validated
// in isolation, with no build tool present. Validation collects every
// violation in one pass rather than failing fast: manifest edits are
// typically bulk changes, and the author wants the full damage report,
// not the first line of it. Any violation aborts before a single build
// step runs - the whole point is converting runtime failures (broken
// CREATE EXTENSION, a preload library that was never compiled) into
// build-definition-time errors.
//
// # Thread Safety
//
// A Manifest is read-only after Load; it is safe to share across
// goroutines as long as nothing mutates it.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for manifest loading.
var (
	// ErrManifestEmpty is returned when the manifest file parses but
	// contains no extension entries.
	ErrManifestEmpty = errors.New("manifest contains no extensions")
)

// Rule identifies which manifest invariant a Violation breaks.
type Rule string

const (
	// RuleUnknownDependency: an entry lists a dependency that no entry
	// in the manifest defines.
	RuleUnknownDependency Rule = "unknown-dependency"

	// RuleDisabledDependency: an enabled entry depends on a disabled one.
	// Building it would ship an extension whose CREATE EXTENSION fails.
	RuleDisabledDependency Rule = "disabled-dependency"

	// RuleBuiltinDisabled: a builtin entry declares enabled=false. A
	// builtin ships inside the engine binary and cannot be excluded.
	RuleBuiltinDisabled Rule = "builtin-disabled"

	// RulePreloadDisabled: an entry that requires preloading declares
	// enabled=false. The preload list would name a library that is not
	// in the image, which crash-loops the server.
	RulePreloadDisabled Rule = "preload-disabled"

	// RuleDuplicateName: two entries share a name.
	RuleDuplicateName Rule = "duplicate-name"

	// RuleBadField: a field-level constraint failed (missing name,
	// unknown kind, unpinned source revision, and so on).
	RuleBadField Rule = "bad-field"
)

// Violation is one manifest contradiction, with the exact entry (and
// dependency, where applicable) implicated.
type Violation struct {
	// Entry is the name of the offending manifest entry.
	Entry string

	// Dependency is the other end of a broken edge, empty for
	// single-entry rules.
	Dependency string

	// Rule is the invariant that was broken.
	Rule Rule

	// Message is the human-readable explanation.
	Message string
}

// String renders the violation as one report line.
func (v Violation) String() string {
	if v.Dependency != "" {
		return fmt.Sprintf("%s: %s -> %s: %s", v.Rule, v.Entry, v.Dependency, v.Message)
	}
	return fmt.Sprintf("%s: %s: %s", v.Rule, v.Entry, v.Message)
}

// ValidationError carries the complete batch of violations found in one
// validation pass. It is fatal: no build work may start while the
// manifest holds any violation.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface with one line per violation.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d violation(s):", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.String())
	}
	return b.String()
}
