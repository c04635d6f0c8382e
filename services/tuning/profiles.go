// Copyright (C) 2025 PgFoundry Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tuning

import "fmt"

// Workload is an operator-selected category that fixes the connection
// ceiling and related planner defaults. The set is closed; ParseWorkload
// rejects anything else.
type Workload string

const (
	// WorkloadWeb covers request/response applications with many short
	// sessions behind a pooler.
	WorkloadWeb Workload = "web"

	// WorkloadOLTP covers transaction-heavy systems with a high number of
	// concurrent writers.
	WorkloadOLTP Workload = "oltp"

	// WorkloadDW covers data warehouses: few sessions, large scans,
	// elevated statistics target for the planner.
	WorkloadDW Workload = "dw"

	// WorkloadMixed is the default when the operator does not choose.
	WorkloadMixed Workload = "mixed"
)

// workloadConnections fixes the connection ceiling per workload. The
// ceiling is a property of the workload class, never derived from RAM
// directly; RAM only lowers it through the step table in Tune.
var workloadConnections = map[Workload]int{
	WorkloadWeb:   200,
	WorkloadOLTP:  300,
	WorkloadDW:    40,
	WorkloadMixed: 100,
}

// workloadStatisticsTarget fixes default_statistics_target per workload.
// Only data warehouses get the elevated value; everything else keeps the
// engine default.
var workloadStatisticsTarget = map[Workload]int{
	WorkloadWeb:   100,
	WorkloadOLTP:  100,
	WorkloadDW:    500,
	WorkloadMixed: 100,
}

// ParseWorkload converts an operator-supplied name to a Workload. The
// empty string selects WorkloadMixed; any other unrecognized value is a
// fatal input error, never a silent fallback.
func ParseWorkload(s string) (Workload, error) {
	switch s {
	case "":
		return WorkloadMixed, nil
	case string(WorkloadWeb), string(WorkloadOLTP), string(WorkloadDW), string(WorkloadMixed):
		return Workload(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected web, oltp, dw or mixed)", ErrUnknownWorkload, s)
	}
}

// MaxConnections returns the workload's fixed connection ceiling.
func (w Workload) MaxConnections() int {
	return workloadConnections[w]
}

// StatisticsTarget returns the workload's default_statistics_target.
func (w Workload) StatisticsTarget() int {
	return workloadStatisticsTarget[w]
}

// Storage is an operator-selected category that fixes the planner's I/O
// cost constants. The set is closed; ParseStorage rejects anything else.
type Storage string

const (
	// StorageSSD is the default: local NVMe or SATA flash.
	StorageSSD Storage = "ssd"

	// StorageHDD covers spinning disks, where random reads are expensive.
	StorageHDD Storage = "hdd"

	// StorageSAN covers network-attached storage with deep queues.
	StorageSAN Storage = "san"
)

// storageCosts binds each storage class to its
// (random_page_cost, effective_io_concurrency) pair. Applied verbatim by
// Tune; there is no interpolation between classes.
var storageCosts = map[Storage]struct {
	randomPageCost float64
	ioConcurrency  int
}{
	StorageSSD: {1.1, 200},
	StorageHDD: {4.0, 2},
	StorageSAN: {1.1, 300},
}

// ParseStorage converts an operator-supplied name to a Storage. The
// empty string selects StorageSSD.
func ParseStorage(s string) (Storage, error) {
	switch s {
	case "":
		return StorageSSD, nil
	case string(StorageSSD), string(StorageHDD), string(StorageSAN):
		return Storage(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected ssd, hdd or san)", ErrUnknownStorage, s)
	}
}

// RandomPageCost returns the storage class's random_page_cost constant.
func (s Storage) RandomPageCost() float64 {
	return storageCosts[s].randomPageCost
}

// EffectiveIOConcurrency returns the storage class's
// effective_io_concurrency constant.
func (s Storage) EffectiveIOConcurrency() int {
	return storageCosts[s].ioConcurrency
}
