// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the whole manifest for contradictions before any
// build work starts. It returns nil or a *ValidationError carrying
// every violation found - a single pass that collects the complete
// batch, never a traversal that stops at the first problem.
//
// Enforced invariants:
//
//   - field-level constraints on every entry (name syntax, known kind,
//     pinned 40-hex source revision, complete source/build specs)
//   - entry names are unique
//   - a builtin entry may not be disabled
//   - an entry that requires preloading may not be disabled
//   - every dependency of an enabled entry resolves to an enabled entry
func Validate(m *Manifest) error {
	var violations []Violation

	byName := make(map[string]Entry, len(m.Extensions))
	for _, e := range m.Extensions {
		if _, dup := byName[e.Name]; dup && e.Name != "" {
			violations = append(violations, Violation{
				Entry:   e.Name,
				Rule:    RuleDuplicateName,
				Message: "name is declared more than once",
			})
			continue
		}
		byName[e.Name] = e
	}

	for _, e := range m.Extensions {
		violations = append(violations, fieldViolations(e)...)

		if e.Kind == KindBuiltin && !e.IsEnabled() {
			violations = append(violations, Violation{
				Entry:   e.Name,
				Rule:    RuleBuiltinDisabled,
				Message: "builtin extensions ship with the engine binary and cannot be disabled",
			})
		}

		if e.Runtime.Preload && !e.IsEnabled() {
			violations = append(violations, Violation{
				Entry:   e.Name,
				Rule:    RulePreloadDisabled,
				Message: "entry requires preloading but is disabled",
			})
		}

		if !e.IsEnabled() {
			continue
		}
		for _, dep := range e.Dependencies {
			target, ok := byName[dep]
			if !ok {
				violations = append(violations, Violation{
					Entry:      e.Name,
					Dependency: dep,
					Rule:       RuleUnknownDependency,
					Message:    "dependency is not declared in the manifest",
				})
				continue
			}
			if !target.IsEnabled() {
				violations = append(violations, Violation{
					Entry:      e.Name,
					Dependency: dep,
					Rule:       RuleDisabledDependency,
					Message:    "enabled entry depends on a disabled entry",
				})
			}
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// fieldViolations runs the struct-tag checks for one entry and folds
// the results into the violation batch.
func fieldViolations(e Entry) []Violation {
	var violations []Violation

	report := func(msg string) {
		violations = append(violations, Violation{
			Entry:   e.Name,
			Rule:    RuleBadField,
			Message: msg,
		})
	}

	if err := entryValidate.Struct(e); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				report(fmt.Sprintf("field %s fails constraint %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			report(err.Error())
		}
	}

	// Kind-conditional shape: compiled entries need a pinned source and
	// a build system; the other kinds must not carry them.
	switch e.Kind {
	case KindSource, KindTool:
		if e.Source == nil {
			report("source-compiled entries require a source spec with a pinned commit")
		}
		if e.Build == nil {
			report("source-compiled entries require a build spec")
		}
	case KindBuiltin, KindPackage:
		if e.Source != nil || e.Build != nil {
			report(fmt.Sprintf("%s entries must not carry source or build specs", e.Kind))
		}
		if len(e.Patches) > 0 {
			report(fmt.Sprintf("%s entries must not carry patches", e.Kind))
		}
	}
	if e.Package != "" && e.Kind != KindPackage {
		report("package name override is only valid for package entries")
	}
	if e.Kind == KindTool && (e.Runtime.Preload || e.Runtime.CreateByDefault) {
		report("tool entries are never registered as extensions and cannot set runtime flags")
	}

	return violations
}
