// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgfoundry/pgfoundry/services/registry"
)

// resolveManifestPath prefers a positional argument over the --manifest
// flag.
func resolveManifestPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return manifestPath
}

// runValidate loads the manifest and reports every violation at once.
func runValidate(cmd *cobra.Command, args []string) error {
	path := resolveManifestPath(args)

	m, err := registry.Load(path)
	if err != nil {
		return err
	}

	if err := registry.Validate(m); err != nil {
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintln(cmd.OutOrStdout(), v.String())
			}
			return fmt.Errorf("%s: %d violation(s)", path, len(verr.Violations))
		}
		return err
	}

	enabled := 0
	for _, e := range m.Extensions {
		if e.IsEnabled() {
			enabled++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d entries, %d enabled)\n",
		path, len(m.Extensions), enabled)
	return nil
}
