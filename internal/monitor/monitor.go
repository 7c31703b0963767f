// Package monitor samples OS-level resource usage for a supervised process.
// Sampling is best effort: a missing process or a probe failure yields an
// empty report, never an error.
package monitor

import (
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Report is a point-in-time resource snapshot. Nil fields mean the value was
// unavailable at sampling time.
type Report struct {
	CPUPercent  *float64   `json:"cpu_percent,omitempty"`
	MemoryBytes *uint64    `json:"memory_bytes,omitempty"`
	DiskIOBytes *uint64    `json:"disk_io_bytes,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
}

// Sample collects a report for the given pid. A pid of zero or a vanished
// process returns an empty report.
func Sample(pid int) Report {
	var report Report
	if pid <= 0 {
		return report
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return report
	}

	if cpu, err := proc.CPUPercent(); err == nil {
		report.CPUPercent = &cpu
	}

	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss := mem.RSS
		report.MemoryBytes = &rss
	}

	if io, err := proc.IOCounters(); err == nil && io != nil {
		total := io.ReadBytes + io.WriteBytes
		report.DiskIOBytes = &total
	}

	if createMs, err := proc.CreateTime(); err == nil && createMs > 0 {
		start := time.UnixMilli(createMs)
		report.StartTime = &start
	}

	return report
}
