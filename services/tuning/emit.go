// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tuning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// settingKind classifies a parameter for override range checking.
type settingKind int

const (
	kindInt settingKind = iota
	kindReal
	kindMemory
	kindEnum
)

// settingRange describes the engine's legal range for one parameter.
// Memory bounds are in KiB. Enum settings list their accepted values.
type settingRange struct {
	kind   settingKind
	min    float64
	max    float64
	values []string
}

// settingRanges covers the parameters this package emits. Overrides for
// keys outside this table pass through unchecked: we cannot know the
// legal range of an arbitrary GUC, and the engine will reject truly
// broken values itself. The table exists to fail fast on the settings
// where a bad override would otherwise surface as a crash loop.
var settingRanges = map[string]settingRange{
	"max_connections":                  {kind: kindInt, min: 1, max: 262143},
	"shared_buffers":                   {kind: kindMemory, min: 128, max: 1 << 40},
	"effective_cache_size":             {kind: kindMemory, min: 8, max: 1 << 40},
	"work_mem":                         {kind: kindMemory, min: 64, max: 2147483647},
	"maintenance_work_mem":             {kind: kindMemory, min: 1024, max: 2147483647},
	"wal_buffers":                      {kind: kindMemory, min: 32, max: 2097152},
	"min_wal_size":                     {kind: kindMemory, min: 32768, max: 1 << 40},
	"max_wal_size":                     {kind: kindMemory, min: 32768, max: 1 << 40},
	"max_worker_processes":             {kind: kindInt, min: 0, max: 262143},
	"max_parallel_workers":             {kind: kindInt, min: 0, max: 1024},
	"max_parallel_workers_per_gather":  {kind: kindInt, min: 0, max: 1024},
	"max_parallel_maintenance_workers": {kind: kindInt, min: 0, max: 1024},
	"default_statistics_target":        {kind: kindInt, min: 1, max: 10000},
	"random_page_cost":                 {kind: kindReal, min: 0, max: 1e10},
	"effective_io_concurrency":         {kind: kindInt, min: 0, max: 1000},
	"checkpoint_completion_target":     {kind: kindReal, min: 0, max: 1},
	"wal_compression":                  {kind: kindEnum, values: []string{"on", "off", "true", "false", "pglz", "lz4", "zstd"}},
}

// Render emits the configuration fragment consumed by the database at
// startup: one "key = value" per line, keys sorted, so identical inputs
// produce byte-identical output and restarts can be diffed.
//
// Overrides win over computed values key by key, never wholesale. An
// override outside the engine's legal range fails with
// ErrIllegalOverride naming the key and value; an unparseable value for
// a known key fails with ErrBadOverrideValue.
func Render(cfg TunedConfig, overrides map[string]string) (string, error) {
	settings := cfg.settings()

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := strings.TrimSpace(overrides[key])
		if err := checkOverride(key, value); err != nil {
			return "", err
		}
		settings[key] = value
	}

	lines := make([]string, 0, len(settings))
	for key := range settings {
		lines = append(lines, key)
	}
	sort.Strings(lines)

	var b strings.Builder
	b.WriteString("# Generated by pgfoundry. Do not edit; set overrides via environment.\n")
	for _, key := range lines {
		fmt.Fprintf(&b, "%s = %s\n", key, settings[key])
	}
	return b.String(), nil
}

// settings converts the TunedConfig to the flat key/value surface.
func (c TunedConfig) settings() map[string]string {
	return map[string]string{
		"max_connections":                  strconv.Itoa(c.MaxConnections),
		"shared_buffers":                   formatMiB(c.SharedBuffersMiB),
		"effective_cache_size":             formatMiB(c.EffectiveCacheSizeMiB),
		"maintenance_work_mem":             formatMiB(c.MaintenanceWorkMemMiB),
		"work_mem":                         formatKiB(c.WorkMemKiB),
		"wal_buffers":                      formatKiB(c.WALBuffersKiB),
		"min_wal_size":                     formatMiB(c.MinWALSizeMiB),
		"max_wal_size":                     formatMiB(c.MaxWALSizeMiB),
		"checkpoint_completion_target":     formatReal(c.CheckpointCompletionTarget),
		"wal_compression":                  formatBool(c.WALCompression),
		"default_statistics_target":        strconv.Itoa(c.DefaultStatisticsTarget),
		"random_page_cost":                 formatReal(c.RandomPageCost),
		"effective_io_concurrency":         strconv.Itoa(c.EffectiveIOConcurrency),
		"max_worker_processes":             strconv.Itoa(c.MaxWorkerProcesses),
		"max_parallel_workers":             strconv.Itoa(c.MaxParallelWorkers),
		"max_parallel_workers_per_gather":  strconv.Itoa(c.MaxParallelWorkersPerGather),
		"max_parallel_maintenance_workers": strconv.Itoa(c.MaxParallelMaintenanceWorkers),
	}
}

// checkOverride validates an override against the engine range table.
func checkOverride(key, value string) error {
	r, known := settingRanges[key]
	if !known {
		return nil
	}

	switch r.kind {
	case kindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrBadOverrideValue, key, value)
		}
		if float64(n) < r.min || float64(n) > r.max {
			return fmt.Errorf("%w: %s = %q (legal range %d..%d)",
				ErrIllegalOverride, key, value, int64(r.min), int64(r.max))
		}
	case kindReal:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrBadOverrideValue, key, value)
		}
		if f < r.min || f > r.max {
			return fmt.Errorf("%w: %s = %q (legal range %g..%g)",
				ErrIllegalOverride, key, value, r.min, r.max)
		}
	case kindMemory:
		kib, hasUnit, err := parseMemoryKiB(value)
		if err != nil {
			return fmt.Errorf("%w: %s = %q", ErrBadOverrideValue, key, value)
		}
		// Unit-less values are interpreted by the engine in the
		// setting's own base unit, which differs per setting; only
		// suffixed values are range-checked here.
		if !hasUnit {
			return nil
		}
		if float64(kib) < r.min || float64(kib) > r.max {
			return fmt.Errorf("%w: %s = %q (legal range %dkB..%dkB)",
				ErrIllegalOverride, key, value, int64(r.min), int64(r.max))
		}
	case kindEnum:
		for _, v := range r.values {
			if value == v {
				return nil
			}
		}
		return fmt.Errorf("%w: %s = %q (expected one of %s)",
			ErrIllegalOverride, key, value, strings.Join(r.values, ", "))
	}
	return nil
}

// parseMemoryKiB parses a memory quantity in the engine's syntax:
// an integer with an optional kB/MB/GB/TB suffix. Returns the value in
// KiB and whether a unit suffix was present.
func parseMemoryKiB(value string) (int64, bool, error) {
	units := []struct {
		suffix string
		kib    int64
	}{
		{"kB", 1},
		{"MB", 1024},
		{"GB", 1024 * 1024},
		{"TB", 1024 * 1024 * 1024},
	}

	for _, u := range units {
		if strings.HasSuffix(value, u.suffix) {
			n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimSuffix(value, u.suffix)), 10, 64)
			if err != nil {
				return 0, true, err
			}
			return n * u.kib, true, nil
		}
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, false, nil
}

func formatMiB(v int64) string {
	if v >= 1024 && v%1024 == 0 {
		return fmt.Sprintf("%dGB", v/1024)
	}
	return fmt.Sprintf("%dMB", v)
}

func formatKiB(v int64) string {
	if v >= 1024 && v%1024 == 0 {
		return fmt.Sprintf("%dMB", v/1024)
	}
	return fmt.Sprintf("%dkB", v)
}

func formatReal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
