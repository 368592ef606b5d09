package services

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

const (
	minAnalysisWorkers = 2
	maxAnalysisWorkers = 16
	cpuBusyPercent     = 80.0
	memoryBusyPercent  = 85.0
)

// SystemSnapshot is the host state used to size the analysis worker pool.
type SystemSnapshot struct {
	CPUCores    int     `json:"cpu_cores"`
	MemoryGB    float64 `json:"memory_gb"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

// SystemProbe reads the current host state.
type SystemProbe interface {
	Snapshot(ctx context.Context) (SystemSnapshot, error)
}

// HostProbe reads CPU and memory figures through gopsutil.
type HostProbe struct{}

func (HostProbe) Snapshot(ctx context.Context) (SystemSnapshot, error) {
	snap := SystemSnapshot{CPUCores: runtime.NumCPU()}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, err
	}
	snap.MemoryGB = float64(vm.Total) / (1024 * 1024 * 1024)
	snap.MemoryUsage = vm.UsedPercent

	// interval 0 compares against the previous call, so the first read may be 0
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return snap, err
	}
	if len(usage) > 0 {
		snap.CPUUsage = usage[0]
	}
	return snap, nil
}

// OptimalConcurrency sizes the worker pool at twice the core count, reduced
// on small or busy hosts and kept within [minAnalysisWorkers, maxAnalysisWorkers].
func OptimalConcurrency(snap SystemSnapshot) int {
	workers := snap.CPUCores * 2
	if workers > maxAnalysisWorkers {
		workers = maxAnalysisWorkers
	}

	memoryFactor := 1.0
	switch {
	case snap.MemoryGB > 0 && snap.MemoryGB < 4:
		memoryFactor = 0.5
	case snap.MemoryGB > 0 && snap.MemoryGB < 8:
		memoryFactor = 0.75
	}

	loadFactor := 1.0
	if snap.CPUUsage > cpuBusyPercent {
		loadFactor = 0.7
	} else if snap.MemoryUsage > memoryBusyPercent {
		loadFactor = 0.8
	}

	workers = int(float64(workers) * memoryFactor * loadFactor)
	if workers < minAnalysisWorkers {
		workers = minAnalysisWorkers
	}
	return workers
}

// ResolveConcurrency returns configured when positive, otherwise a limit
// derived from the host. Probe failures fall back to the core count.
func ResolveConcurrency(ctx context.Context, configured int, probe SystemProbe, logger *logrus.Logger) int {
	if configured > 0 {
		return configured
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	snap, err := probe.Snapshot(ctx)
	if err != nil {
		logger.WithError(err).Warn("Could not read system resources, sizing by CPU count")
		snap = SystemSnapshot{CPUCores: runtime.NumCPU()}
	}
	workers := OptimalConcurrency(snap)
	logger.WithFields(logrus.Fields{
		"cpu_cores":    snap.CPUCores,
		"memory_gb":    snap.MemoryGB,
		"cpu_usage":    snap.CPUUsage,
		"memory_usage": snap.MemoryUsage,
		"workers":      workers,
	}).Info("Resolved analysis concurrency")
	return workers
}
