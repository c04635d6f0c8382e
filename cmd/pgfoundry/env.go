// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgfoundry/pgfoundry/services/tuning"
)

// Environment surface. Everything an operator can set without touching
// files, so the same image works under docker run -e, compose and
// Kubernetes env blocks.
const (
	envMemoryMB      = "PGFOUNDRY_MEMORY_MB"
	envCPUCores      = "PGFOUNDRY_CPU_CORES"
	envWorkload      = "PGFOUNDRY_WORKLOAD"
	envStorage       = "PGFOUNDRY_STORAGE"
	envPreload       = "PGFOUNDRY_PRELOAD_LIBRARIES"
	envSettingPrefix = "PGFOUNDRY_SET_"
)

// envConfig is the parsed operator environment.
type envConfig struct {
	Overrides tuning.Overrides
	Workload  tuning.Workload
	Storage   tuning.Storage

	// Settings holds per-parameter overrides from PGFOUNDRY_SET_<KEY>
	// variables, keyed by the lowercased parameter name.
	Settings map[string]string

	// Preload is the requested shared_preload_libraries list.
	Preload []string
}

// parseEnv interprets the PGFOUNDRY_* variables from an environ-shaped
// slice ("KEY=VALUE" strings). Unset variables fall back to defaults;
// set-but-malformed variables are errors rather than silent fallbacks.
func parseEnv(environ []string) (envConfig, error) {
	cfg := envConfig{Settings: map[string]string{}}

	var workload, storage string
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		switch key {
		case envMemoryMB:
			ram, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || ram <= 0 {
				return envConfig{}, fmt.Errorf("%s: %q is not a positive integer", envMemoryMB, value)
			}
			cfg.Overrides.RAMMebibytes = ram
		case envCPUCores:
			cores, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || cores <= 0 {
				return envConfig{}, fmt.Errorf("%s: %q is not a positive number", envCPUCores, value)
			}
			cfg.Overrides.CPUCores = cores
		case envWorkload:
			workload = value
		case envStorage:
			storage = value
		case envPreload:
			cfg.Preload = splitList(value)
		default:
			if rest, found := strings.CutPrefix(key, envSettingPrefix); found && rest != "" {
				cfg.Settings[strings.ToLower(rest)] = value
			}
		}
	}

	var err error
	if cfg.Workload, err = tuning.ParseWorkload(workload); err != nil {
		return envConfig{}, fmt.Errorf("%s: %w", envWorkload, err)
	}
	if cfg.Storage, err = tuning.ParseStorage(storage); err != nil {
		return envConfig{}, fmt.Errorf("%s: %w", envStorage, err)
	}
	return cfg, nil
}

// splitList parses a comma-separated list, trimming whitespace and
// dropping empty elements.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
