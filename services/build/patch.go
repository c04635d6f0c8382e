// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pgfoundry/pgfoundry/services/registry"
)

// ApplyPatch applies one declarative find/replace to a file inside the
// source tree rooted at root, returning the number of replacements.
//
// Patches are textual on purpose: they are reviewable as data and
// independently testable, instead of being buried in shell fragments.
// The price of textual patching is fragility against upstream drift, so
// a match count below the patch's minimum is a hard failure - a patch
// that stops matching after an upstream rename must stop the build, not
// silently no-op.
func ApplyPatch(root string, p registry.Patch) (int, error) {
	path := filepath.Join(root, p.File)

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("patch %s: %w", p.File, err)
	}

	content := string(raw)
	count := strings.Count(content, p.Find)

	min := p.MinMatches
	if min <= 0 {
		min = 1
	}
	if count < min {
		return count, fmt.Errorf("%w: %s matched %d time(s), need %d (find %q)",
			ErrPatchNoMatch, p.File, count, min, truncate(p.Find, 60))
	}

	patched := strings.ReplaceAll(content, p.Find, p.Replace)
	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return count, fmt.Errorf("patch %s: %w", p.File, err)
	}
	return count, nil
}

// applyPatches applies an entry's patches in declaration order. The
// first failing patch aborts; later patches may depend on earlier ones.
func applyPatches(root string, patches []registry.Patch) error {
	for _, p := range patches {
		if _, err := ApplyPatch(root, p); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
