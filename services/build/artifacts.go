// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pgfoundry/pgfoundry/services/registry"
)

// Artifact records one successfully built or installed extension. The
// records are written alongside the image so later stages (and humans)
// can see exactly what a build produced without re-reading the
// manifest.
type Artifact struct {
	// Name is the logical extension name from the manifest.
	Name string `json:"name"`

	// Kind is how the extension got into the image.
	Kind registry.Kind `json:"kind"`

	// Library is the shared library base name, when the extension ships
	// one. Builtins resolved from the engine binary leave it empty.
	Library string `json:"library,omitempty"`

	// Commit is the source revision for source-compiled entries.
	Commit string `json:"commit,omitempty"`

	// Package is the distribution package for package entries.
	Package string `json:"package,omitempty"`

	// ControlFiles are the control and SQL script file names installed
	// for this extension under the server's extension share directory.
	ControlFiles []string `json:"control_files,omitempty"`
}

// controlFiles lists the installed control and upgrade-script files for
// an extension: <name>.control plus <name>--*.sql under the share
// directory's extension/ subdirectory. Base names, sorted. An empty
// share directory yields nil; recording control files is best effort
// and never fails a build.
func controlFiles(shareDir, name string) []string {
	if shareDir == "" {
		return nil
	}
	var files []string
	for _, pattern := range []string{name + ".control", name + "--*.sql"} {
		matches, err := filepath.Glob(filepath.Join(shareDir, "extension", pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			files = append(files, filepath.Base(m))
		}
	}
	sort.Strings(files)
	return files
}

// WriteArtifacts persists the artifact records as indented JSON.
func WriteArtifacts(path string, artifacts []Artifact) error {
	data, err := json.MarshalIndent(artifacts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}
	return nil
}

// LoadArtifacts reads records previously written by WriteArtifacts.
func LoadArtifacts(path string) ([]Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	var artifacts []Artifact
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return nil, fmt.Errorf("decode artifacts %s: %w", path, err)
	}
	return artifacts, nil
}

// InitStatements derives the SQL run once at first server start:
// one CREATE EXTENSION per enabled, creatable entry, in manifest order.
// Tools never register as SQL extensions and are excluded regardless of
// their runtime flags.
func InitStatements(m *registry.Manifest) []string {
	var stmts []string
	for _, e := range m.Extensions {
		if !e.IsEnabled() || e.Kind == registry.KindTool || !e.Runtime.CreateByDefault {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %q;", e.Name))
	}
	return stmts
}

// PreloadLibraries derives the shared_preload_libraries membership from
// enabled entries that require preloading, in manifest order, with
// duplicates removed (two entries may share one loader library).
func PreloadLibraries(m *registry.Manifest) []string {
	seen := make(map[string]bool)
	var libs []string
	for _, e := range m.Extensions {
		if !e.IsEnabled() || !e.Runtime.Preload {
			continue
		}
		lib := e.PreloadLibraryName()
		if seen[lib] {
			continue
		}
		seen[lib] = true
		libs = append(libs, lib)
	}
	return libs
}
