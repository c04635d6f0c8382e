// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package preload reconciles a requested shared_preload_libraries list
// against what is actually present in the image. A preload entry naming
// a library the server cannot load prevents the server from starting at
// all, so unknown names are dropped with a warning rather than passed
// through: a running server missing one extension beats a crash-looping
// container.
package preload

import (
	"github.com/pgfoundry/pgfoundry/pkg/logging"
	"github.com/pgfoundry/pgfoundry/services/build"
)

// stockPreloadable lists libraries shipped inside the standard server
// distribution that are preloadable without any manifest entry. The
// default for reconcilers that do not inject their own list.
var stockPreloadable = []string{
	"auto_explain",
	"passwordcheck",
	"pg_prewarm",
	"pg_stat_statements",
}

// Reconciler checks requested preload libraries against availability.
type Reconciler struct {
	logger   *logging.Logger
	builtins map[string]bool
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger used for drop warnings.
func WithLogger(logger *logging.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

// WithBuiltins replaces the stock preloadable library list, for images
// built against a server distribution with a different contrib set.
func WithBuiltins(libs []string) ReconcilerOption {
	return func(r *Reconciler) {
		r.builtins = make(map[string]bool, len(libs))
		for _, lib := range libs {
			r.builtins[lib] = true
		}
	}
}

// NewReconciler returns a Reconciler.
func NewReconciler(opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{logger: logging.Default()}
	WithBuiltins(stockPreloadable)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of one reconciliation.
type Result struct {
	// Kept is the final shared_preload_libraries value, in request
	// order with duplicates removed.
	Kept []string

	// Dropped lists requested libraries not present in the image.
	Dropped []string
}

// Reconcile filters the requested preload list down to libraries the
// server can actually load: those recorded as build artifacts plus the
// stock preloadable libraries. Unknown names are dropped with a
// warning; reconciliation never fails.
func (r *Reconciler) Reconcile(requested []string, artifacts []build.Artifact) Result {
	available := make(map[string]bool, len(artifacts)+len(r.builtins))
	for lib := range r.builtins {
		available[lib] = true
	}
	for _, a := range artifacts {
		if a.Library != "" {
			available[a.Library] = true
		}
	}

	var res Result
	seen := make(map[string]bool, len(requested))
	for _, lib := range requested {
		if seen[lib] {
			continue
		}
		seen[lib] = true

		if !available[lib] {
			r.logger.Warn("dropping preload library not present in image",
				"library", lib)
			res.Dropped = append(res.Dropped, lib)
			continue
		}
		res.Kept = append(res.Kept, lib)
	}
	return res
}
