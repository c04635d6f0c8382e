// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgfoundry/pgfoundry/pkg/logging"
)

// fixtureDetector builds a Detector pointed at temp cgroup/proc trees.
// Pass empty strings to leave a file absent.
func fixtureDetector(t *testing.T, memoryMax, cpuMax, meminfo string) *Detector {
	t.Helper()

	cgroupRoot := t.TempDir()
	procRoot := t.TempDir()

	write := func(dir, name, content string) {
		if content == "" {
			return
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	write(cgroupRoot, "memory.max", memoryMax)
	write(cgroupRoot, "cpu.max", cpuMax)
	write(procRoot, "meminfo", meminfo)

	return NewDetector(
		WithCgroupRoot(cgroupRoot),
		WithProcRoot(procRoot),
		WithDetectorLogger(logging.New(logging.Config{Level: logging.LevelError})),
	)
}

func TestDetectExplicitOverrideWins(t *testing.T) {
	// cgroup says 8 GiB but the operator says 2 GiB; the operator wins.
	d := fixtureDetector(t, "8589934592\n", "200000 100000\n", "")

	profile, err := d.Detect(Overrides{RAMMebibytes: 2048, CPUCores: 4})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if profile.RAMMebibytes != 2048 {
		t.Errorf("RAMMebibytes = %d, want 2048", profile.RAMMebibytes)
	}
	if profile.CPUCores != 4 {
		t.Errorf("CPUCores = %v, want 4", profile.CPUCores)
	}
	if profile.Source != SourceExplicit {
		t.Errorf("Source = %s, want %s", profile.Source, SourceExplicit)
	}
}

func TestDetectCgroupV2(t *testing.T) {
	t.Run("memory.max and cpu.max are honored", func(t *testing.T) {
		d := fixtureDetector(t, "4294967296\n", "150000 100000\n", "MemTotal: 131072000 kB\n")

		profile, err := d.Detect(Overrides{})
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if profile.RAMMebibytes != 4096 {
			t.Errorf("RAMMebibytes = %d, want 4096", profile.RAMMebibytes)
		}
		if profile.CPUCores != 1.5 {
			t.Errorf("CPUCores = %v, want 1.5", profile.CPUCores)
		}
		if profile.Source != SourceCgroupV2 {
			t.Errorf("Source = %s, want %s", profile.Source, SourceCgroupV2)
		}
	})

	t.Run("memory.max of max falls through to meminfo", func(t *testing.T) {
		d := fixtureDetector(t, "max\n", "", "MemTotal: 2097152 kB\n")

		profile, err := d.Detect(Overrides{})
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if profile.RAMMebibytes != 2048 {
			t.Errorf("RAMMebibytes = %d, want 2048", profile.RAMMebibytes)
		}
		if profile.Source != SourceProcMeminfo {
			t.Errorf("Source = %s, want %s", profile.Source, SourceProcMeminfo)
		}
	})

	t.Run("fractional cpu quota clamps up to one core", func(t *testing.T) {
		d := fixtureDetector(t, "2147483648\n", "50000 100000\n", "")

		profile, err := d.Detect(Overrides{})
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if profile.CPUCores != 1 {
			t.Errorf("CPUCores = %v, want 1 (clamped)", profile.CPUCores)
		}
	})
}

func TestDetectBelowFloorIsFatal(t *testing.T) {
	t.Run("explicit override below floor", func(t *testing.T) {
		d := fixtureDetector(t, "", "", "")

		_, err := d.Detect(Overrides{RAMMebibytes: 256})
		if !errors.Is(err, ErrMemoryBelowFloor) {
			t.Fatalf("err = %v, want ErrMemoryBelowFloor", err)
		}
	})

	t.Run("cgroup limit below floor", func(t *testing.T) {
		// 268435456 bytes = 256 MiB
		d := fixtureDetector(t, "268435456\n", "", "")

		_, err := d.Detect(Overrides{})
		if !errors.Is(err, ErrMemoryBelowFloor) {
			t.Fatalf("err = %v, want ErrMemoryBelowFloor", err)
		}
	})
}

func TestDetectNoSource(t *testing.T) {
	d := fixtureDetector(t, "", "", "")

	_, err := d.Detect(Overrides{})
	if !errors.Is(err, ErrNoMemorySource) {
		t.Fatalf("err = %v, want ErrNoMemorySource", err)
	}
}

func TestDetectClampsCeilings(t *testing.T) {
	// 2 PiB of RAM and 512 cores, both above the supported ceilings.
	d := fixtureDetector(t, "2251799813685248\n", "51200000 100000\n", "")

	profile, err := d.Detect(Overrides{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if profile.RAMMebibytes != MaxRAMMiB {
		t.Errorf("RAMMebibytes = %d, want clamp to %d", profile.RAMMebibytes, MaxRAMMiB)
	}
	if profile.CPUCores != MaxCPUCores {
		t.Errorf("CPUCores = %v, want clamp to %v", profile.CPUCores, MaxCPUCores)
	}
}

func TestDetectGarbageCgroupFallsThrough(t *testing.T) {
	d := fixtureDetector(t, "not-a-number\n", "garbage\n", "MemTotal: 4194304 kB\n")

	profile, err := d.Detect(Overrides{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if profile.Source != SourceProcMeminfo {
		t.Errorf("Source = %s, want %s", profile.Source, SourceProcMeminfo)
	}
	if profile.RAMMebibytes != 4096 {
		t.Errorf("RAMMebibytes = %d, want 4096", profile.RAMMebibytes)
	}
}
