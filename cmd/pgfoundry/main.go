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

	"github.com/pgfoundry/pgfoundry/pkg/logging"
)

// logger is configured by the root command's PersistentPreRun before
// any subcommand runs.
var logger = logging.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pgfoundry:", err)
		os.Exit(1)
	}
}
