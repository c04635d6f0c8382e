// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package build

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgfoundry/pgfoundry/services/registry"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return root
}

func TestApplyPatchReplacesAllOccurrences(t *testing.T) {
	root := writeTree(t, map[string]string{
		"Makefile": "PG_CONFIG = pg_config\nall:\n\t$(PG_CONFIG)\nPG_CONFIG = pg_config\n",
	})

	count, err := ApplyPatch(root, registry.Patch{
		File:    "Makefile",
		Find:    "PG_CONFIG = pg_config",
		Replace: "PG_CONFIG ?= pg_config",
	})
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	got, _ := os.ReadFile(filepath.Join(root, "Makefile"))
	want := "PG_CONFIG ?= pg_config\nall:\n\t$(PG_CONFIG)\nPG_CONFIG ?= pg_config\n"
	if string(got) != want {
		t.Errorf("patched file = %q, want %q", got, want)
	}
}

func TestApplyPatchZeroMatchesFails(t *testing.T) {
	root := writeTree(t, map[string]string{"src.c": "int main(void) { return 0; }\n"})

	_, err := ApplyPatch(root, registry.Patch{
		File: "src.c", Find: "renamed_symbol", Replace: "x",
	})
	if !errors.Is(err, ErrPatchNoMatch) {
		t.Fatalf("err = %v, want ErrPatchNoMatch", err)
	}
}

func TestApplyPatchMinMatchesEnforced(t *testing.T) {
	root := writeTree(t, map[string]string{"src.c": "alpha\nalpha\n"})

	_, err := ApplyPatch(root, registry.Patch{
		File: "src.c", Find: "alpha", Replace: "beta", MinMatches: 3,
	})
	if !errors.Is(err, ErrPatchNoMatch) {
		t.Fatalf("err = %v, want ErrPatchNoMatch", err)
	}

	// The file must be untouched after a failed patch.
	got, _ := os.ReadFile(filepath.Join(root, "src.c"))
	if string(got) != "alpha\nalpha\n" {
		t.Errorf("file modified after failed patch: %q", got)
	}
}

func TestApplyPatchMissingFile(t *testing.T) {
	root := t.TempDir()
	_, err := ApplyPatch(root, registry.Patch{File: "absent.c", Find: "x", Replace: "y"})
	if err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestApplyPatchesStopsAtFirstFailure(t *testing.T) {
	root := writeTree(t, map[string]string{"a.c": "one\n", "b.c": "two\n"})

	patches := []registry.Patch{
		{File: "a.c", Find: "missing", Replace: "x"},
		{File: "b.c", Find: "two", Replace: "three"},
	}
	if err := applyPatches(root, patches); !errors.Is(err, ErrPatchNoMatch) {
		t.Fatalf("err = %v, want ErrPatchNoMatch", err)
	}

	// The second patch must not have run.
	got, _ := os.ReadFile(filepath.Join(root, "b.c"))
	if string(got) != "two\n" {
		t.Errorf("later patch ran after earlier failure: %q", got)
	}
}
