// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tuning

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pgfoundry/pgfoundry/pkg/logging"
)

// Source identifies which detection source produced a ResourceProfile.
type Source string

const (
	// SourceExplicit means the operator supplied the value directly.
	SourceExplicit Source = "explicit"

	// SourceCgroupV2 means the value came from the container runtime's
	// cgroup v2 limit files.
	SourceCgroupV2 Source = "cgroupV2"

	// SourceProcMeminfo means the whole-machine total from /proc/meminfo
	// was used. This may overstate what the container can actually use.
	SourceProcMeminfo Source = "procMeminfo"
)

// Resource bounds. Below the memory floor the system refuses to start;
// everything else clamps with a warning.
const (
	MinRAMMiB int64 = 512
	MaxRAMMiB int64 = 1_048_576

	MinCPUCores float64 = 1
	MaxCPUCores float64 = 128
)

// ResourceProfile is the resolved (RAM, CPU) pair for this container.
// Constructed once per process start and immutable thereafter; everything
// downstream of the detector is a pure function of this value.
type ResourceProfile struct {
	// RAMMebibytes is the usable memory, clamped to [MinRAMMiB, MaxRAMMiB].
	RAMMebibytes int64

	// CPUCores is the usable core count, clamped to
	// [MinCPUCores, MaxCPUCores]. Fractional values come from cgroup CPU
	// quotas (e.g. cpu.max "50000 100000" is 0.5 cores, clamped up to 1).
	CPUCores float64

	// Source records which detection source supplied the memory value.
	Source Source
}

// Overrides carries explicit operator-supplied resource values. Zero
// means "not set".
type Overrides struct {
	RAMMebibytes int64
	CPUCores     float64
}

// Detector resolves container resources from a fixed precedence of
// sources: explicit override, cgroup v2 limits, whole-machine totals.
// It performs only local file reads, no network or blocking I/O.
//
// The cgroup and proc roots are injectable so tests can point the
// detector at fixture directories.
type Detector struct {
	cgroupRoot string
	procRoot   string
	logger     *logging.Logger
}

// DetectorOption is a functional option for configuring Detector.
type DetectorOption func(*Detector)

// WithCgroupRoot overrides the cgroup v2 mount point (default
// /sys/fs/cgroup).
func WithCgroupRoot(root string) DetectorOption {
	return func(d *Detector) { d.cgroupRoot = root }
}

// WithProcRoot overrides the proc mount point (default /proc).
func WithProcRoot(root string) DetectorOption {
	return func(d *Detector) { d.procRoot = root }
}

// WithDetectorLogger sets the logger for per-source diagnostics.
func WithDetectorLogger(logger *logging.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector creates a Detector with the given options.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		cgroupRoot: "/sys/fs/cgroup",
		procRoot:   "/proc",
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect resolves the ResourceProfile for this container.
//
// Memory precedence: explicit override, cgroup v2 memory.max, then
// /proc/meminfo MemTotal as a last resort (with a warning, because the
// machine total may overstate what the container runtime actually
// grants). One diagnostic line is logged per source attempted.
//
// Detect fails with ErrMemoryBelowFloor when the resolved memory is
// under MinRAMMiB, and with ErrNoMemorySource when no source yields a
// value at all.
func (d *Detector) Detect(o Overrides) (ResourceProfile, error) {
	ram, source, err := d.detectMemory(o)
	if err != nil {
		return ResourceProfile{}, err
	}

	if ram < MinRAMMiB {
		return ResourceProfile{}, fmt.Errorf("%w: %d MiB detected via %s, need at least %d MiB",
			ErrMemoryBelowFloor, ram, source, MinRAMMiB)
	}
	if ram > MaxRAMMiB {
		d.logger.Warn("detected memory above supported ceiling, clamping",
			"ram_mb", ram, "ceiling_mb", MaxRAMMiB)
		ram = MaxRAMMiB
	}

	cpu := d.detectCPU(o)
	if cpu < MinCPUCores {
		d.logger.Warn("detected CPU share below one core, clamping up",
			"cpu_cores", cpu)
		cpu = MinCPUCores
	}
	if cpu > MaxCPUCores {
		d.logger.Warn("detected CPU count above supported ceiling, clamping",
			"cpu_cores", cpu, "ceiling", MaxCPUCores)
		cpu = MaxCPUCores
	}

	profile := ResourceProfile{RAMMebibytes: ram, CPUCores: cpu, Source: source}
	d.logger.Info("resolved resource profile",
		"ram_mb", profile.RAMMebibytes,
		"cpu_cores", profile.CPUCores,
		"source", string(profile.Source))
	return profile, nil
}

// detectMemory walks the source precedence list and returns the first
// usable value in MiB.
func (d *Detector) detectMemory(o Overrides) (int64, Source, error) {
	if o.RAMMebibytes > 0 {
		d.logger.Info("memory source: explicit override", "ram_mb", o.RAMMebibytes)
		return o.RAMMebibytes, SourceExplicit, nil
	}
	d.logger.Debug("memory source: no explicit override set")

	if ram, ok := d.cgroupMemoryMiB(); ok {
		d.logger.Info("memory source: cgroup v2 limit", "ram_mb", ram)
		return ram, SourceCgroupV2, nil
	}
	d.logger.Debug("memory source: cgroup v2 limit not usable")

	if ram, ok := d.meminfoTotalMiB(); ok {
		d.logger.Warn("memory source: falling back to whole-machine total, "+
			"may overstate what this container can use", "ram_mb", ram)
		return ram, SourceProcMeminfo, nil
	}
	d.logger.Debug("memory source: /proc/meminfo not usable")

	return 0, "", ErrNoMemorySource
}

// cgroupMemoryMiB reads the cgroup v2 memory.max limit. Returns false
// when the file is absent (cgroup v1 host, no limit delegation) or holds
// "max" (no limit configured, fall through to the machine total).
func (d *Detector) cgroupMemoryMiB() (int64, bool) {
	raw, err := os.ReadFile(filepath.Join(d.cgroupRoot, "memory.max"))
	if err != nil {
		return 0, false
	}

	value := strings.TrimSpace(string(raw))
	if value == "max" {
		return 0, false
	}

	bytes, err := strconv.ParseInt(value, 10, 64)
	if err != nil || bytes <= 0 {
		return 0, false
	}
	return bytes / (1 << 20), true
}

// meminfoTotalMiB parses MemTotal from /proc/meminfo.
func (d *Detector) meminfoTotalMiB() (int64, bool) {
	file, err := os.Open(filepath.Join(d.procRoot, "meminfo"))
	if err != nil {
		return 0, false
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb / 1024, true
	}
	return 0, false
}

// detectCPU resolves the usable core count: explicit override, cgroup v2
// cpu.max quota, then the host's logical core count. CPU never fails the
// start; the clamps in Detect handle degenerate values.
func (d *Detector) detectCPU(o Overrides) float64 {
	if o.CPUCores > 0 {
		d.logger.Info("cpu source: explicit override", "cpu_cores", o.CPUCores)
		return o.CPUCores
	}

	if cpu, ok := d.cgroupCPUCores(); ok {
		d.logger.Info("cpu source: cgroup v2 quota", "cpu_cores", cpu)
		return cpu
	}
	d.logger.Debug("cpu source: cgroup v2 quota not usable")

	cpu := float64(runtime.NumCPU())
	d.logger.Info("cpu source: host logical cores", "cpu_cores", cpu)
	return cpu
}

// cgroupCPUCores reads the cgroup v2 cpu.max file ("<quota> <period>" or
// "max <period>").
func (d *Detector) cgroupCPUCores() (float64, bool) {
	raw, err := os.ReadFile(filepath.Join(d.cgroupRoot, "cpu.max"))
	if err != nil {
		return 0, false
	}

	fields := strings.Fields(string(raw))
	if len(fields) != 2 || fields[0] == "max" {
		return 0, false
	}

	quota, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || quota <= 0 {
		return 0, false
	}
	period, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || period <= 0 {
		return 0, false
	}
	return quota / period, true
}
