//go:build !linux

package health

import (
	"context"
	"runtime"
	"time"
)

// DiskCheck is a no-op outside Linux; the service only deploys there.
type DiskCheck struct {
	Path           string
	MinFreePercent float64
	MinFreeBytes   int64
}

func (c *DiskCheck) Name() string { return "disk" }

func (c *DiskCheck) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:    StatusHealthy,
		Message:   "disk stats only available on Linux",
		Timestamp: time.Now(),
	}
}

// SystemMemoryCheck falls back to Go runtime stats outside Linux.
type SystemMemoryCheck struct {
	MaxUsagePercent float64
}

func (c *SystemMemoryCheck) Name() string { return "system_memory" }

func (c *SystemMemoryCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	result.Metadata["heap_alloc_bytes"] = m.HeapAlloc
	result.Metadata["sys_bytes"] = m.Sys
	result.Metadata["platform"] = runtime.GOOS

	result.Status = StatusHealthy
	result.Message = "system memory stats only available on Linux; showing Go runtime stats"
	return result
}
