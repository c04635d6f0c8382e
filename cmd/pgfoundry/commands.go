// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pgfoundry/pgfoundry/pkg/logging"
)

// --- Global Command Variables ---
var (
	logLevel string
	logJSON  bool

	manifestPath string

	rootCmd = &cobra.Command{
		Use:   "pgfoundry",
		Short: "Build tooling for self-configuring PostgreSQL container images",
		Long: `pgfoundry assembles PostgreSQL container images: it resolves the
container's resource limits into a tuned server configuration, and
turns a declarative extension manifest into built, registered
extensions.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				Service: "pgfoundry",
				JSON:    logJSON,
			})
		},
	}

	// --- Configuration Synthesis ---
	tuneCmd = &cobra.Command{
		Use:   "tune",
		Short: "Write the tuned configuration fragment for this container",
		RunE:  runTune, // Defined in cmd_tune.go
	}
	generateCmd = &cobra.Command{
		Use:   "generate [manifest]",
		Short: "Derive init SQL, preload list and expected artifacts without building",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGenerate, // Defined in cmd_generate.go
	}

	// --- Extension Manifest ---
	validateCmd = &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate an extension manifest without building anything",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate, // Defined in cmd_manifest.go
	}
	buildCmd = &cobra.Command{
		Use:   "build [manifest]",
		Short: "Build every enabled extension in the manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBuild, // Defined in cmd_build.go
	}
	reconcilePreloadCmd = &cobra.Command{
		Use:   "reconcile-preload",
		Short: "Reconcile requested preload libraries against built artifacts",
		RunE:  runReconcilePreload, // Defined in cmd_preload.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Emit logs as JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "extensions.yaml",
		"Path to the extension manifest")

	rootCmd.AddCommand(tuneCmd)
	tuneCmd.Flags().StringVarP(&tuneOutput, "output", "o", "/etc/postgresql/postgresql.auto.conf",
		"Write the fragment to this file ('-' for stdout)")
	tuneCmd.Flags().BoolVar(&tunePrint, "print", false,
		"Print the fragment to stdout instead of writing the output file")

	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateOutDir, "output", "o", ".",
		"Directory for the derived files")

	rootCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildWorkRoot, "work-root", "/tmp/pgfoundry-build",
		"Directory for per-entry build workspaces")
	buildCmd.Flags().StringVar(&buildPGMajor, "pg-major", "17",
		"PostgreSQL major version for distribution package names")
	buildCmd.Flags().IntVarP(&buildParallelism, "parallel", "j", 0,
		"Concurrent entry builds (0 uses the default)")
	buildCmd.Flags().StringVar(&buildArtifactsOut, "artifacts", "",
		"Write the artifact records to this JSON file")
	buildCmd.Flags().StringVar(&buildInitSQLOut, "init-sql", "",
		"Write the first-start SQL to this file")

	rootCmd.AddCommand(reconcilePreloadCmd)
	reconcilePreloadCmd.Flags().StringVar(&preloadArtifactsPath, "artifacts", "",
		"Artifact records JSON produced by build (required)")
	_ = reconcilePreloadCmd.MarkFlagRequired("artifacts")
}
