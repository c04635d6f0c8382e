// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tuning

import (
	"reflect"
	"testing"
)

func TestTuneWebOn2GiBSSD(t *testing.T) {
	// The reference scenario: a 2 GiB web container on local flash.
	res := ResourceProfile{RAMMebibytes: 2048, CPUCores: 2, Source: SourceCgroupV2}
	cfg := Tune(res, WorkloadWeb, StorageSSD)

	if cfg.SharedBuffersMiB != 512 {
		t.Errorf("SharedBuffersMiB = %d, want 512", cfg.SharedBuffersMiB)
	}
	if cfg.MaxConnections != 200 {
		t.Errorf("MaxConnections = %d, want 200", cfg.MaxConnections)
	}
	if cfg.RandomPageCost != 1.1 {
		t.Errorf("RandomPageCost = %v, want 1.1", cfg.RandomPageCost)
	}
	if cfg.EffectiveCacheSizeMiB != 1536 {
		t.Errorf("EffectiveCacheSizeMiB = %d, want 1536", cfg.EffectiveCacheSizeMiB)
	}
	if cfg.EffectiveIOConcurrency != 200 {
		t.Errorf("EffectiveIOConcurrency = %d, want 200", cfg.EffectiveIOConcurrency)
	}
}

func TestTuneBufferBands(t *testing.T) {
	// shared_buffers stays at 25% of RAM between its floor and ceiling,
	// and never exceeds effective_cache_size, across the whole range.
	rams := []int64{512, 768, 1024, 2048, 4096, 8192, 16384, 65536, 262144, 1048576}
	for _, ram := range rams {
		res := ResourceProfile{RAMMebibytes: ram, CPUCores: 4}
		cfg := Tune(res, WorkloadMixed, StorageSSD)

		want := ram / 4
		if want < 128 {
			want = 128
		}
		if want > 16384 {
			want = 16384
		}
		if cfg.SharedBuffersMiB != want {
			t.Errorf("ram=%d: SharedBuffersMiB = %d, want %d", ram, cfg.SharedBuffersMiB, want)
		}
		if cfg.SharedBuffersMiB > cfg.EffectiveCacheSizeMiB {
			t.Errorf("ram=%d: shared_buffers %d exceeds effective_cache_size %d",
				ram, cfg.SharedBuffersMiB, cfg.EffectiveCacheSizeMiB)
		}
		if cfg.WorkMemKiB < 64 {
			t.Errorf("ram=%d: WorkMemKiB = %d below floor", ram, cfg.WorkMemKiB)
		}
	}
}

func TestTuneIsPure(t *testing.T) {
	res := ResourceProfile{RAMMebibytes: 7936, CPUCores: 3.5, Source: SourceExplicit}

	first := Tune(res, WorkloadOLTP, StorageSAN)
	second := Tune(res, WorkloadOLTP, StorageSAN)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Tune is not deterministic: %+v != %+v", first, second)
	}
}

func TestTuneConnectionSteps(t *testing.T) {
	cases := []struct {
		ram      int64
		workload Workload
		want     int
	}{
		{512, WorkloadWeb, 100},    // small container narrows the ceiling
		{1024, WorkloadWeb, 200},   // step covers the web ceiling exactly
		{1024, WorkloadOLTP, 200},  // oltp narrowed by the 1 GiB step
		{2048, WorkloadOLTP, 300},  // workload ceiling wins again
		{2048, WorkloadDW, 40},     // dw ceiling is never raised by RAM
		{1048576, WorkloadDW, 40},  //
		{4096, WorkloadMixed, 100}, // mixed default
	}
	for _, c := range cases {
		res := ResourceProfile{RAMMebibytes: c.ram, CPUCores: 2}
		cfg := Tune(res, c.workload, StorageSSD)
		if cfg.MaxConnections != c.want {
			t.Errorf("ram=%d workload=%s: MaxConnections = %d, want %d",
				c.ram, c.workload, cfg.MaxConnections, c.want)
		}
	}
}

func TestTuneParallelism(t *testing.T) {
	t.Run("single core clamps to engine minimums", func(t *testing.T) {
		res := ResourceProfile{RAMMebibytes: 2048, CPUCores: 1}
		cfg := Tune(res, WorkloadMixed, StorageSSD)

		if cfg.MaxWorkerProcesses != 8 {
			t.Errorf("MaxWorkerProcesses = %d, want 8", cfg.MaxWorkerProcesses)
		}
		if cfg.MaxParallelWorkersPerGather != 1 {
			t.Errorf("MaxParallelWorkersPerGather = %d, want 1", cfg.MaxParallelWorkersPerGather)
		}
	})

	t.Run("large host is capped by the engine worker limit", func(t *testing.T) {
		res := ResourceProfile{RAMMebibytes: 262144, CPUCores: 128}
		cfg := Tune(res, WorkloadDW, StorageSAN)

		if cfg.MaxWorkerProcesses != 64 {
			t.Errorf("MaxWorkerProcesses = %d, want 64", cfg.MaxWorkerProcesses)
		}
		if cfg.MaxParallelWorkers != 64 {
			t.Errorf("MaxParallelWorkers = %d, want 64", cfg.MaxParallelWorkers)
		}
		if cfg.MaxParallelWorkersPerGather != 4 {
			t.Errorf("MaxParallelWorkersPerGather = %d, want 4", cfg.MaxParallelWorkersPerGather)
		}
	})

	t.Run("zero cores never divides downstream", func(t *testing.T) {
		res := ResourceProfile{RAMMebibytes: 1024, CPUCores: 0}
		cfg := Tune(res, WorkloadMixed, StorageSSD)
		if cfg.MaxParallelWorkersPerGather < 1 {
			t.Errorf("MaxParallelWorkersPerGather = %d, want >= 1", cfg.MaxParallelWorkersPerGather)
		}
	})
}

func TestTuneWorkloadSpecifics(t *testing.T) {
	res := ResourceProfile{RAMMebibytes: 8192, CPUCores: 8}

	dw := Tune(res, WorkloadDW, StorageHDD)
	if dw.DefaultStatisticsTarget != 500 {
		t.Errorf("dw DefaultStatisticsTarget = %d, want 500", dw.DefaultStatisticsTarget)
	}
	if dw.RandomPageCost != 4.0 {
		t.Errorf("hdd RandomPageCost = %v, want 4.0", dw.RandomPageCost)
	}
	if dw.EffectiveIOConcurrency != 2 {
		t.Errorf("hdd EffectiveIOConcurrency = %d, want 2", dw.EffectiveIOConcurrency)
	}

	web := Tune(res, WorkloadWeb, StorageSSD)
	if web.DefaultStatisticsTarget != 100 {
		t.Errorf("web DefaultStatisticsTarget = %d, want 100", web.DefaultStatisticsTarget)
	}
	if !web.WALCompression {
		t.Error("WALCompression should default on")
	}
}
