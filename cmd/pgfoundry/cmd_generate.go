// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgfoundry/pgfoundry/services/build"
	"github.com/pgfoundry/pgfoundry/services/registry"
)

var generateOutDir string

// runGenerate derives the image inputs that follow from the manifest
// alone, without compiling anything: the first-start SQL, the preload
// library list, and the names of the artifacts a build would produce.
// Useful for inspecting a manifest change in review.
func runGenerate(cmd *cobra.Command, args []string) error {
	path := resolveManifestPath(args)

	m, err := registry.Load(path)
	if err != nil {
		return err
	}
	if err := registry.Validate(m); err != nil {
		return err
	}

	if err := os.MkdirAll(generateOutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := map[string][]string{
		"init.sql":           build.InitStatements(m),
		"preload_libraries":  build.PreloadLibraries(m),
		"artifacts-expected": expectedArtifacts(m),
	}
	for name, lines := range files {
		out := filepath.Join(generateOutDir, name)
		content := strings.Join(lines, "\n") + "\n"
		if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote init.sql, preload_libraries, artifacts-expected to %s\n",
		generateOutDir)
	return nil
}

// expectedArtifacts lists the extensions a build of this manifest would
// record, in manifest order.
func expectedArtifacts(m *registry.Manifest) []string {
	var names []string
	for _, e := range m.Extensions {
		if e.IsEnabled() && e.Kind != registry.KindTool {
			names = append(names, e.Name)
		}
	}
	return names
}
