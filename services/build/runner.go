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
	"os/exec"
	"sync"
)

// Runner abstracts external command execution (git, make, cargo,
// apt-get) so orchestration logic can be tested without real builds.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the orchestrator
// calls Run from multiple goroutines.
type Runner interface {
	// Run executes a command in the given working directory and returns
	// its combined output. A non-zero exit status is an error carrying
	// the output for diagnostics.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// Run executes the command with the process environment, capturing
// stdout and stderr together so build failures keep their compiler
// output.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %v: %w\n%s", name, args, err, out)
	}
	return out, nil
}

// Call records one command invocation observed by MockRunner.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// MockRunner is a test double for Runner. By default every command
// succeeds with empty output; set RunFunc to control behavior.
type MockRunner struct {
	mu    sync.Mutex
	calls []Call

	// RunFunc, when set, is invoked for every Run call after the call
	// is recorded.
	RunFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// Run records the call and delegates to RunFunc when set.
func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Dir: dir, Name: name, Args: args})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, dir, name, args...)
	}
	return nil, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Compile-time interface checks.
var (
	_ Runner = ExecRunner{}
	_ Runner = (*MockRunner)(nil)
)
