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
	"github.com/pgfoundry/pgfoundry/services/preload"
)

var preloadArtifactsPath string

// runReconcilePreload filters the requested preload list (positional
// arguments, or PGFOUNDRY_PRELOAD_LIBRARIES when none are given) down
// to libraries the image actually contains, and prints the resulting
// shared_preload_libraries value.
func runReconcilePreload(cmd *cobra.Command, args []string) error {
	artifacts, err := build.LoadArtifacts(preloadArtifactsPath)
	if err != nil {
		return err
	}

	requested := args
	if len(requested) == 0 {
		env, err := parseEnv(os.Environ())
		if err != nil {
			return err
		}
		requested = env.Preload
	}

	res := preload.NewReconciler(preload.WithLogger(logger)).
		Reconcile(requested, artifacts)

	for _, lib := range res.Dropped {
		fmt.Fprintf(cmd.ErrOrStderr(), "dropped: %s (not present in image)\n", lib)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "shared_preload_libraries = '%s'\n",
		strings.Join(res.Kept, ","))
	return nil
}
