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
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgfoundry/pgfoundry/services/build"
	"github.com/pgfoundry/pgfoundry/services/registry"
)

var (
	buildWorkRoot     string
	buildPGMajor      string
	buildParallelism  int
	buildArtifactsOut string
	buildInitSQLOut   string
)

// runBuild turns the manifest into built extensions and the derived
// image inputs (artifact records, first-start SQL).
func runBuild(cmd *cobra.Command, args []string) error {
	path := resolveManifestPath(args)

	m, err := registry.Load(path)
	if err != nil {
		return err
	}

	o := build.NewOrchestrator(build.ExecRunner{},
		build.WithWorkRoot(buildWorkRoot),
		build.WithPGMajor(buildPGMajor),
		build.WithParallelism(buildParallelism),
		build.WithLogger(logger),
	)

	res, err := o.Run(cmd.Context(), m)
	if err != nil {
		return err
	}

	if buildArtifactsOut != "" {
		if err := build.WriteArtifacts(buildArtifactsOut, res.Artifacts); err != nil {
			return err
		}
	}
	if buildInitSQLOut != "" {
		sql := strings.Join(res.InitStatements, "\n") + "\n"
		if err := os.WriteFile(buildInitSQLOut, []byte(sql), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", buildInitSQLOut, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d artifacts, %d tools, %d skipped\n",
		res.RunID, len(res.Artifacts), len(res.ToolsBuilt), len(res.Skipped))
	if len(res.PreloadLibraries) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "shared_preload_libraries = '%s'\n",
			strings.Join(res.PreloadLibraries, ","))
	}
	return nil
}
