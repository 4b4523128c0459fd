package metrics

import (
	"context"
	"strconv"
	"time"

	"codeberg.org/mutker/coreprobe/internal/readings"
)

// MetricsCollector records report history
type MetricsCollector interface {
	Record(ctx context.Context, snapshot *MetricsSnapshot) error
	Close() error
}

// MetricsRepository defines the interface for metrics data storage
type MetricsRepository interface {
	Record(snapshot *MetricsSnapshot) error
	Close() error
}

// MetricsSnapshot is one collected report flattened into table rows
type MetricsSnapshot struct {
	Timestamp time.Time
	ReportID  string
	Packages  []PackageRow
	CPUs      []CPURow
}

type PackageRow struct {
	Adapter     string
	PackageID   string
	Temperature float64
	High        float64
	Critical    float64
	CoreCount   int
	Hottest     float64
}

type CPURow struct {
	CPU         string
	Socket      string
	Core        string
	CoreType    string
	Temperature *int // nil when the register could not be read
}

// FromSensorReport flattens a Linux report into one row per CPU package.
func FromSensorReport(report *readings.SensorReport) *MetricsSnapshot {
	snapshot := &MetricsSnapshot{
		Timestamp: report.CollectedAt,
		ReportID:  report.ReportID,
		Packages:  make([]PackageRow, 0, len(report.Packages)),
	}

	for _, p := range report.Packages {
		snapshot.Packages = append(snapshot.Packages, PackageRow{
			Adapter:     p.Adapter,
			PackageID:   p.ID,
			Temperature: p.Temperature,
			High:        p.High,
			Critical:    p.Critical,
			CoreCount:   len(p.Cores),
			Hottest:     p.Hottest(),
		})
	}

	return snapshot
}

// FromESXiReport flattens an ESXi report into one row per logical CPU.
func FromESXiReport(report *readings.ESXiReport) *MetricsSnapshot {
	snapshot := &MetricsSnapshot{
		Timestamp: report.CollectedAt,
		ReportID:  report.ReportID,
	}

	for _, cpu := range report.Host.CPUs {
		for _, core := range cpu.Cores {
			row := CPURow{
				CPU:      cpu.CPUID,
				Socket:   cpu.SocketID,
				Core:     core.CoreID,
				CoreType: core.CoreType,
			}
			if t, err := strconv.Atoi(core.Temperature); err == nil {
				row.Temperature = &t
			}
			snapshot.CPUs = append(snapshot.CPUs, row)
		}
	}

	return snapshot
}
