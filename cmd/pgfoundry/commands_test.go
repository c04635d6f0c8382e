// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with the given arguments and
// returns its combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validManifest = `
extensions:
  - name: pg_stat_statements
    kind: builtin
    runtime:
      preload: true
      create_by_default: true
  - name: plpgsql
    kind: builtin
`

const invalidManifest = `
extensions:
  - name: index_advisor
    kind: source
    source:
      repo: https://github.com/example/index_advisor
      commit: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
    build:
      system: make
    dependencies: [hypopg]
`

func TestValidateCommandAcceptsCleanManifest(t *testing.T) {
	path := writeFile(t, "extensions.yaml", validManifest)

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK (2 entries, 2 enabled)")
}

func TestValidateCommandReportsViolations(t *testing.T) {
	path := writeFile(t, "extensions.yaml", invalidManifest)

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "index_advisor")
	assert.Contains(t, out, "hypopg")
}

func TestTuneCommandPrintsExplicitResources(t *testing.T) {
	t.Setenv("PGFOUNDRY_MEMORY_MB", "2048")
	t.Setenv("PGFOUNDRY_CPU_CORES", "2")
	t.Setenv("PGFOUNDRY_WORKLOAD", "web")
	t.Setenv("PGFOUNDRY_STORAGE", "ssd")

	out, err := executeCommand(t, "tune", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "shared_buffers = 512MB")
	assert.Contains(t, out, "max_connections = 200")
	assert.Contains(t, out, "random_page_cost = 1.1")
}

func TestTuneCommandWritesFile(t *testing.T) {
	t.Setenv("PGFOUNDRY_MEMORY_MB", "2048")
	t.Setenv("PGFOUNDRY_CPU_CORES", "2")
	t.Setenv("PGFOUNDRY_SET_WAL_COMPRESSION", "zstd")

	out := filepath.Join(t.TempDir(), "tuned.conf")
	_, err := executeCommand(t, "tune", "--print=false", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# Generated by pgfoundry."))
	assert.Contains(t, content, "wal_compression = zstd")
}

func TestTuneCommandRejectsIllegalOverride(t *testing.T) {
	t.Setenv("PGFOUNDRY_MEMORY_MB", "2048")
	t.Setenv("PGFOUNDRY_SET_MAX_CONNECTIONS", "999999999")

	_, err := executeCommand(t, "tune", "--print")
	require.Error(t, err)
}

func TestGenerateCommandDerivesManifestOutputs(t *testing.T) {
	path := writeFile(t, "extensions.yaml", validManifest)
	dir := t.TempDir()

	_, err := executeCommand(t, "generate", path, "-o", dir)
	require.NoError(t, err)

	sql, err := os.ReadFile(filepath.Join(dir, "init.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(sql), `CREATE EXTENSION IF NOT EXISTS "pg_stat_statements";`)

	libs, err := os.ReadFile(filepath.Join(dir, "preload_libraries"))
	require.NoError(t, err)
	assert.Equal(t, "pg_stat_statements\n", string(libs))

	expected, err := os.ReadFile(filepath.Join(dir, "artifacts-expected"))
	require.NoError(t, err)
	assert.Equal(t, "pg_stat_statements\nplpgsql\n", string(expected))
}

func TestBuildCommandWithBuiltinOnlyManifest(t *testing.T) {
	path := writeFile(t, "extensions.yaml", validManifest)
	dir := t.TempDir()
	artifactsOut := filepath.Join(dir, "artifacts.json")
	initOut := filepath.Join(dir, "init.sql")

	out, err := executeCommand(t, "build", path,
		"--work-root", dir,
		"--artifacts", artifactsOut,
		"--init-sql", initOut)
	require.NoError(t, err)
	assert.Contains(t, out, "2 artifacts")
	assert.Contains(t, out, "shared_preload_libraries = 'pg_stat_statements'")

	sql, err := os.ReadFile(initOut)
	require.NoError(t, err)
	assert.Contains(t, string(sql), `CREATE EXTENSION IF NOT EXISTS "pg_stat_statements";`)

	_, err = os.Stat(artifactsOut)
	require.NoError(t, err)
}

func TestReconcilePreloadCommand(t *testing.T) {
	artifacts := writeFile(t, "artifacts.json", `[
  {"name": "timescaledb", "kind": "source", "library": "timescaledb"}
]`)

	out, err := executeCommand(t, "reconcile-preload",
		"--artifacts", artifacts, "timescaledb", "citus", "auto_explain")
	require.NoError(t, err)
	assert.Contains(t, out, "dropped: citus")
	assert.Contains(t, out, "shared_preload_libraries = 'timescaledb,auto_explain'")
}
