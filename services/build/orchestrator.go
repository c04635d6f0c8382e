// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pgfoundry/pgfoundry/pkg/logging"
	"github.com/pgfoundry/pgfoundry/services/registry"
)

var (
	tracer = otel.Tracer("pgfoundry.build")
	meter  = otel.Meter("pgfoundry.build")
)

// DefaultParallelism bounds concurrent entry builds when no explicit
// limit is configured. Extension builds are mostly compiler-bound, so a
// small fixed limit keeps memory use predictable inside CI containers.
const DefaultParallelism = 4

// Orchestrator turns a validated manifest into build artifacts.
//
// # Thread Safety
//
// Orchestrator is safe for concurrent use; each Run keeps its own
// per-run state.
type Orchestrator struct {
	runner   Runner
	fetcher  *Fetcher
	logger   *logging.Logger
	workRoot string
	pgMajor  string
	shareDir string
	parallel int

	// Metrics (initialized lazily)
	metricsOnce    sync.Once
	entrySuccesses metric.Int64Counter
	entryFailures  metric.Int64Counter
	entryLatency   metric.Float64Histogram
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkRoot sets the directory under which per-run, per-entry build
// directories are created. Defaults to the system temp directory.
func WithWorkRoot(dir string) Option {
	return func(o *Orchestrator) { o.workRoot = dir }
}

// WithPGMajor sets the PostgreSQL major version used to derive
// distribution package names.
func WithPGMajor(major string) Option {
	return func(o *Orchestrator) { o.pgMajor = major }
}

// WithShareDir sets the server share directory used to record installed
// control files. Empty means resolve it via pg_config at run start.
func WithShareDir(dir string) Option {
	return func(o *Orchestrator) { o.shareDir = dir }
}

// WithParallelism bounds the number of entries built concurrently.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallel = n
		}
	}
}

// WithLogger sets the logger for build progress and skip diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator returns an Orchestrator executing external commands
// through the given runner.
func NewOrchestrator(runner Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:   runner,
		fetcher:  NewFetcher(runner),
		logger:   logging.Default(),
		workRoot: "/tmp/pgfoundry-build",
		pgMajor:  "17",
		parallel: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is the outcome of one successful build run.
type Result struct {
	// RunID identifies this run in logs and working-directory paths.
	RunID string

	// Artifacts lists every extension present in the image after the
	// run, sorted by name. Tools are not extensions and do not appear.
	Artifacts []Artifact

	// InitStatements is the SQL executed at first server start.
	InitStatements []string

	// PreloadLibraries is the derived shared_preload_libraries
	// membership, in manifest order.
	PreloadLibraries []string

	// Skipped names disabled entries that were not built.
	Skipped []string

	// ToolsBuilt names tool entries that were compiled.
	ToolsBuilt []string
}

func (o *Orchestrator) initMetrics() {
	o.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		o.entrySuccesses, err = meter.Int64Counter("build_entry_success_total",
			metric.WithDescription("Number of manifest entries built or installed successfully"),
		)
		if err != nil {
			initErrors = append(initErrors, "entry_successes: "+err.Error())
		}

		o.entryFailures, err = meter.Int64Counter("build_entry_failure_total",
			metric.WithDescription("Number of manifest entries that failed to build"),
		)
		if err != nil {
			initErrors = append(initErrors, "entry_failures: "+err.Error())
		}

		o.entryLatency, err = meter.Float64Histogram("build_entry_duration_seconds",
			metric.WithDescription("Time spent building each manifest entry"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "entry_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			o.logger.Error("failed to initialize some build metrics (observability degraded)",
				"failed_count", len(initErrors),
				"errors", initErrors,
			)
		}
	})
}

// Run validates the manifest and builds every enabled entry, running
// independent entries in parallel. Any entry failure aborts the run; a
// partially-populated image is not a supported state. Failures from all
// entries that had already started are reported together.
func (o *Orchestrator) Run(ctx context.Context, m *registry.Manifest) (*Result, error) {
	if m == nil {
		return nil, ErrNilManifest
	}
	if err := registry.Validate(m); err != nil {
		return nil, errors.Join(ErrManifestInvalid, err)
	}

	o.initMetrics()

	ctx, span := tracer.Start(ctx, "build.Run",
		trace.WithAttributes(
			attribute.Int("build.entry_count", len(m.Extensions)),
		),
	)
	defer span.End()

	runID := uuid.NewString()[:12]
	res := &Result{RunID: runID}

	shareDir := o.shareDir
	if shareDir == "" {
		out, err := o.runner.Run(ctx, "", "pg_config", "--sharedir")
		if err != nil {
			o.logger.Warn("pg_config --sharedir failed, control files will not be recorded",
				"run_id", runID, "error", err)
		} else {
			shareDir = strings.TrimSpace(string(out))
		}
	}

	o.logger.Info("build started",
		"run_id", runID,
		"entries", len(m.Extensions),
		"parallelism", o.parallel,
	)

	var pending []registry.Entry
	for _, e := range m.Extensions {
		switch {
		case !e.IsEnabled():
			reason := e.DisabledReason
			if reason == "" {
				reason = "no reason recorded"
			}
			o.logger.Info("skipping disabled entry",
				"run_id", runID, "entry", e.Name, "reason", reason)
			res.Skipped = append(res.Skipped, e.Name)
		case e.Kind == registry.KindBuiltin:
			// Ships with the engine binary; present without any work.
			res.Artifacts = append(res.Artifacts, Artifact{Name: e.Name, Kind: e.Kind})
		default:
			pending = append(pending, e)
		}
	}

	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallel)
	for _, e := range pending {
		e := e
		g.Go(func() error {
			artifact, err := o.buildEntry(gctx, runID, shareDir, e)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Record and return nil so sibling builds run to
				// completion and every failure surfaces at once.
				failures = append(failures, fmt.Errorf("entry %s: %w", e.Name, err))
				return nil
			}
			if e.Kind == registry.KindTool {
				res.ToolsBuilt = append(res.ToolsBuilt, e.Name)
			} else {
				res.Artifacts = append(res.Artifacts, *artifact)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		err := errors.Join(failures...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		o.logger.Error("build failed",
			"run_id", runID, "failed_entries", len(failures))
		return nil, err
	}

	sort.Slice(res.Artifacts, func(i, j int) bool {
		return res.Artifacts[i].Name < res.Artifacts[j].Name
	})
	sort.Strings(res.ToolsBuilt)
	res.InitStatements = InitStatements(m)
	res.PreloadLibraries = PreloadLibraries(m)

	o.logger.Info("build finished",
		"run_id", runID,
		"artifacts", len(res.Artifacts),
		"tools", len(res.ToolsBuilt),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// buildEntry builds or installs a single entry in its own isolated
// working directory.
func (o *Orchestrator) buildEntry(ctx context.Context, runID, shareDir string, e registry.Entry) (*Artifact, error) {
	ctx, span := tracer.Start(ctx, "build.Entry",
		trace.WithAttributes(
			attribute.String("build.entry", e.Name),
			attribute.String("build.kind", string(e.Kind)),
		),
	)
	defer span.End()

	start := time.Now()
	dir := filepath.Join(o.workRoot, runID, e.Name)

	o.logger.Info("building entry",
		"run_id", runID, "entry", e.Name, "kind", string(e.Kind))

	artifact, err := o.dispatch(ctx, dir, shareDir, e)

	elapsed := time.Since(start).Seconds()
	kindAttr := metric.WithAttributes(attribute.String("kind", string(e.Kind)))
	if o.entryLatency != nil {
		o.entryLatency.Record(ctx, elapsed, kindAttr)
	}
	if err != nil {
		if o.entryFailures != nil {
			o.entryFailures.Add(ctx, 1, kindAttr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "entry failed")
		o.logger.Error("entry failed",
			"run_id", runID, "entry", e.Name, "error", err)
		return nil, err
	}
	if o.entrySuccesses != nil {
		o.entrySuccesses.Add(ctx, 1, kindAttr)
	}
	o.logger.Info("entry built",
		"run_id", runID, "entry", e.Name, "seconds", elapsed)
	return artifact, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, dir, shareDir string, e registry.Entry) (*Artifact, error) {
	switch e.Kind {
	case registry.KindPackage:
		return o.installPackage(ctx, shareDir, e)
	case registry.KindSource, registry.KindTool:
		return o.compileSource(ctx, dir, shareDir, e)
	default:
		return nil, fmt.Errorf("entry %s: unbuildable kind %q", e.Name, e.Kind)
	}
}

// installPackage installs a pre-built distribution package.
func (o *Orchestrator) installPackage(ctx context.Context, shareDir string, e registry.Entry) (*Artifact, error) {
	pkg := e.PackageName(o.pgMajor)
	_, err := o.runner.Run(ctx, "", "apt-get",
		"install", "--yes", "--no-install-recommends", pkg)
	if err != nil {
		return nil, fmt.Errorf("install package %s: %w", pkg, err)
	}
	return &Artifact{
		Name:         e.Name,
		Kind:         e.Kind,
		Library:      e.PreloadLibraryName(),
		Package:      pkg,
		ControlFiles: controlFiles(shareDir, e.Name),
	}, nil
}

// compileSource fetches the pinned revision, applies patches and runs
// the entry's build system.
func (o *Orchestrator) compileSource(ctx context.Context, dir, shareDir string, e registry.Entry) (*Artifact, error) {
	if err := o.fetcher.Fetch(ctx, dir, *e.Source); err != nil {
		return nil, err
	}
	if err := applyPatches(dir, e.Patches); err != nil {
		return nil, err
	}

	switch e.Build.System {
	case "make":
		if _, err := o.runner.Run(ctx, dir, "make", e.Build.Options...); err != nil {
			return nil, fmt.Errorf("make: %w", err)
		}
		if _, err := o.runner.Run(ctx, dir, "make", "install"); err != nil {
			return nil, fmt.Errorf("make install: %w", err)
		}
	case "cargo":
		args := append([]string{"pgrx", "install", "--release"}, e.Build.Options...)
		if _, err := o.runner.Run(ctx, dir, "cargo", args...); err != nil {
			return nil, fmt.Errorf("cargo pgrx install: %w", err)
		}
	default:
		// Unreachable after validation; kept for direct callers.
		return nil, fmt.Errorf("entry %s: unknown build system %q", e.Name, e.Build.System)
	}

	if e.Kind == registry.KindTool {
		return nil, nil
	}
	return &Artifact{
		Name:         e.Name,
		Kind:         e.Kind,
		Library:      e.PreloadLibraryName(),
		Commit:       e.Source.Commit,
		ControlFiles: controlFiles(shareDir, e.Name),
	}, nil
}
