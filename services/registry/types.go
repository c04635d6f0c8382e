// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies how an extension gets into the image.
type Kind string

const (
	// KindBuiltin ships with the engine binary; nothing to build.
	KindBuiltin Kind = "builtin"

	// KindPackage installs a pre-built distribution package.
	KindPackage Kind = "package"

	// KindSource is compiled from a pinned source revision.
	KindSource Kind = "source"

	// KindTool builds a CLI utility that is not registered as a
	// creatable SQL extension.
	KindTool Kind = "tool"
)

// commitPattern pins source revisions to a full 40-hex SHA. Mutable
// refs (tags, branches) are rejected so two builds of the same manifest
// fetch the same bytes.
var commitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// namePattern constrains extension names to what CREATE EXTENSION and
// shared_preload_libraries accept without quoting games.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// entryValidate checks field-level constraints on manifest entries.
// Cross-entry invariants live in Validate.
var entryValidate *validator.Validate

func init() {
	entryValidate = validator.New()
	_ = entryValidate.RegisterValidation("extname", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	_ = entryValidate.RegisterValidation("commitsha", func(fl validator.FieldLevel) bool {
		return commitPattern.MatchString(fl.Field().String())
	})
}

// SourceSpec pins where and at which exact revision to fetch sources.
type SourceSpec struct {
	// Repo is the clone URL.
	Repo string `yaml:"repo" validate:"required,url"`

	// Commit is the full 40-hex revision. Tags and branches are not
	// accepted.
	Commit string `yaml:"commit" validate:"required,commitsha"`
}

// BuildSpec selects the build system used after fetch and patch.
type BuildSpec struct {
	// System is "make" (PGXS-style) or "cargo" (pgrx-style).
	System string `yaml:"system" validate:"required,oneof=make cargo"`

	// Options are extra arguments passed to the build system verbatim.
	Options []string `yaml:"options,omitempty"`
}

// Patch is a declarative textual find/replace applied to one file of a
// fetched source tree before building. A patch that matches fewer than
// MinMatches times fails the build: a silent zero-match patch usually
// means upstream renamed something and the patch no longer does what
// its author believed.
type Patch struct {
	// File is the path inside the source tree.
	File string `yaml:"file" validate:"required"`

	// Find is the exact text to locate.
	Find string `yaml:"find" validate:"required"`

	// Replace is the substitution text. May be empty (deletion).
	Replace string `yaml:"replace"`

	// MinMatches is the minimum number of occurrences Find must have.
	// Zero means the default of 1.
	MinMatches int `yaml:"min_matches,omitempty" validate:"gte=0"`
}

// RuntimeSpec describes what the extension needs from the running
// server, as opposed to the build.
type RuntimeSpec struct {
	// Preload marks the extension as requiring
	// shared_preload_libraries membership at server start.
	Preload bool `yaml:"preload,omitempty"`

	// PreloadLibrary is the shared library name to preload when it
	// differs from the logical extension name.
	PreloadLibrary string `yaml:"preload_library,omitempty"`

	// CreateByDefault emits a CREATE EXTENSION statement into the
	// image's initialization script.
	CreateByDefault bool `yaml:"create_by_default,omitempty"`
}

// Entry is one declarative manifest record: how to obtain, build and
// register a single extension or tool.
type Entry struct {
	Name     string `yaml:"name" validate:"required,extname"`
	Kind     Kind   `yaml:"kind" validate:"required,oneof=builtin package source tool"`
	Category string `yaml:"category,omitempty"`

	// Enabled defaults to true when omitted. The default is uniform
	// across the whole manifest; there is no per-entry implicit
	// interpretation.
	Enabled *bool `yaml:"enabled,omitempty"`

	// DisabledReason documents why a disabled entry is disabled. Logged
	// when the build skips the entry.
	DisabledReason string `yaml:"disabled_reason,omitempty"`

	// Package overrides the distribution package name for package
	// entries. Empty means the conventional postgresql-<major>-<name>
	// name with underscores replaced by hyphens.
	Package string `yaml:"package,omitempty"`

	Source  *SourceSpec `yaml:"source,omitempty"`
	Build   *BuildSpec  `yaml:"build,omitempty"`
	Patches []Patch     `yaml:"patches,omitempty" validate:"omitempty,dive"`

	// Dependencies names other manifest entries that must be enabled
	// for this entry to function.
	Dependencies []string `yaml:"dependencies,omitempty"`

	Runtime RuntimeSpec `yaml:"runtime,omitempty"`
}

// IsEnabled resolves the enabled flag with its uniform default of true.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// PackageName resolves the distribution package installed for a
// package entry. The convention mirrors the PGDG archive layout:
// pg_cron for PostgreSQL 17 becomes postgresql-17-pg-cron.
func (e Entry) PackageName(pgMajor string) string {
	if e.Package != "" {
		return e.Package
	}
	return "postgresql-" + pgMajor + "-" + strings.ReplaceAll(e.Name, "_", "-")
}

// PreloadLibraryName resolves the actual shared library name for the
// preload list, which may differ from the logical extension name.
func (e Entry) PreloadLibraryName() string {
	if e.Runtime.PreloadLibrary != "" {
		return e.Runtime.PreloadLibrary
	}
	return e.Name
}

// Manifest is the whole extension registry for one image build.
type Manifest struct {
	Extensions []Entry `yaml:"extensions"`
}

// Get returns the entry with the given name.
func (m *Manifest) Get(name string) (Entry, bool) {
	for _, e := range m.Extensions {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
