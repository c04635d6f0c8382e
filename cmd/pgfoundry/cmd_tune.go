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

	"github.com/spf13/cobra"

	"github.com/pgfoundry/pgfoundry/services/tuning"
)

var (
	tuneOutput string
	tunePrint  bool
)

// runTune resolves the container's resources, applies the tuning
// policy for the configured workload and storage profiles, and writes
// the resulting configuration fragment. Runs at container start,
// before the database server.
func runTune(cmd *cobra.Command, args []string) error {
	env, err := parseEnv(os.Environ())
	if err != nil {
		return err
	}

	detector := tuning.NewDetector(tuning.WithDetectorLogger(logger))
	profile, err := detector.Detect(env.Overrides)
	if err != nil {
		return err
	}

	cfg := tuning.Tune(profile, env.Workload, env.Storage)
	rendered, err := tuning.Render(cfg, env.Settings)
	if err != nil {
		return err
	}

	if tunePrint || tuneOutput == "-" {
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	}
	if err := os.WriteFile(tuneOutput, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tuneOutput, err)
	}
	logger.Info("configuration fragment written",
		"path", tuneOutput,
		"workload", string(env.Workload),
		"storage", string(env.Storage),
		"ram_mb", profile.RAMMebibytes)
	return nil
}
