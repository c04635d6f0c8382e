// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package build

import (
	"context"
	"fmt"
	"os"

	"github.com/pgfoundry/pgfoundry/services/registry"
)

// Fetcher materializes pinned source revisions into working
// directories.
type Fetcher struct {
	runner Runner
}

// NewFetcher returns a Fetcher executing git through the given runner.
func NewFetcher(runner Runner) *Fetcher {
	return &Fetcher{runner: runner}
}

// Fetch checks out exactly the pinned commit into dir. The directory is
// created if needed and must be empty or absent.
//
// The fetch is shallow and by revision, never by ref: a manifest pins a
// 40-hex SHA, so there is no branch to track and no reason to pull
// history. git fetch by SHA requires the server to allow it
// (uploadpack.allowReachableSHA1InWant), which the major forges do.
func (f *Fetcher) Fetch(ctx context.Context, dir string, src registry.SourceSpec) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fetch %s: %w", src.Repo, err)
	}

	steps := [][]string{
		{"init", "--quiet"},
		{"remote", "add", "origin", src.Repo},
		{"fetch", "--quiet", "--depth", "1", "origin", src.Commit},
		{"checkout", "--quiet", "FETCH_HEAD"},
	}
	for _, args := range steps {
		if _, err := f.runner.Run(ctx, dir, "git", args...); err != nil {
			return fmt.Errorf("fetch %s@%s: %w", src.Repo, src.Commit, err)
		}
	}
	return nil
}
