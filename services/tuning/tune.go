// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tuning

import "math"

// Engine ceilings. PostgreSQL refuses more worker processes than this on
// common builds, and emitting a value above it would fail startup.
const (
	maxWorkerProcessesCeiling = 64

	sharedBuffersFloorMiB   int64 = 128
	sharedBuffersCeilingMiB int64 = 16_384

	maintenanceWorkMemCapMiB int64 = 2_048
	walBuffersCapKiB         int64 = 16_384
	workMemFloorKiB          int64 = 64
)

// connectionSteps lowers the workload connection ceiling on small
// containers. Discrete tiers, monotonic in RAM; a 512 MiB container gets
// at most 100 connections regardless of workload.
var connectionSteps = []struct {
	ramMiB int64
	cap    int
}{
	{4096, 800},
	{2048, 400},
	{1024, 200},
	{MinRAMMiB, 100},
}

// TunedConfig is the complete derived parameter set for one container.
// Computed fresh on every start by Tune, never persisted, never mutated.
// Memory fields carry their unit in the name.
type TunedConfig struct {
	MaxConnections int

	SharedBuffersMiB      int64
	EffectiveCacheSizeMiB int64
	MaintenanceWorkMemMiB int64
	WorkMemKiB            int64

	WALBuffersKiB              int64
	MinWALSizeMiB              int64
	MaxWALSizeMiB              int64
	CheckpointCompletionTarget float64
	WALCompression             bool

	DefaultStatisticsTarget int
	RandomPageCost          float64
	EffectiveIOConcurrency  int

	MaxWorkerProcesses            int
	MaxParallelWorkers            int
	MaxParallelWorkersPerGather   int
	MaxParallelMaintenanceWorkers int
}

// Tune derives the parameter set for the given resources and profiles.
//
// Tune is pure and total over the supported RAM range: it never fails
// for a ResourceProfile the Detector accepted, and identical inputs
// always yield an identical TunedConfig. The formulas follow the
// long-standing heuristics for the engine: shared_buffers at 25% of RAM,
// effective_cache_size at 75%, connection ceiling from the workload
// table narrowed by the RAM step table, parallelism from the core count
// under the engine's hard worker limit, and I/O costs verbatim from the
// storage class.
func Tune(res ResourceProfile, workload Workload, storage Storage) TunedConfig {
	ram := clampInt64(res.RAMMebibytes, MinRAMMiB, MaxRAMMiB)
	cores := int(math.Ceil(res.CPUCores))
	if cores < 1 {
		cores = 1
	}

	sharedBuffers := clampInt64(ram/4, sharedBuffersFloorMiB, sharedBuffersCeilingMiB)

	maxConnections := workload.MaxConnections()
	for _, step := range connectionSteps {
		if ram >= step.ramMiB {
			if maxConnections > step.cap {
				maxConnections = step.cap
			}
			break
		}
	}

	// Budget the memory outside shared_buffers across sorts, assuming
	// roughly three concurrent operations per connection.
	workMem := (ram - sharedBuffers) * 1024 / int64(3*maxConnections)
	if workMem < workMemFloorKiB {
		workMem = workMemFloorKiB
	}

	maintenanceWorkMem := ram / 16
	if maintenanceWorkMem > maintenanceWorkMemCapMiB {
		maintenanceWorkMem = maintenanceWorkMemCapMiB
	}

	walBuffers := sharedBuffers * 1024 / 32
	if walBuffers > walBuffersCapKiB {
		walBuffers = walBuffersCapKiB
	}

	return TunedConfig{
		MaxConnections: maxConnections,

		SharedBuffersMiB:      sharedBuffers,
		EffectiveCacheSizeMiB: ram * 3 / 4,
		MaintenanceWorkMemMiB: maintenanceWorkMem,
		WorkMemKiB:            workMem,

		WALBuffersKiB:              walBuffers,
		MinWALSizeMiB:              1024,
		MaxWALSizeMiB:              4096,
		CheckpointCompletionTarget: 0.9,
		WALCompression:             true,

		DefaultStatisticsTarget: workload.StatisticsTarget(),
		RandomPageCost:          storage.RandomPageCost(),
		EffectiveIOConcurrency:  storage.EffectiveIOConcurrency(),

		MaxWorkerProcesses:            clampInt(cores, 8, maxWorkerProcessesCeiling),
		MaxParallelWorkers:            clampInt(cores, 2, maxWorkerProcessesCeiling),
		MaxParallelWorkersPerGather:   clampInt(cores/2, 1, 4),
		MaxParallelMaintenanceWorkers: clampInt(cores/2, 1, 4),
	}
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
