// Package probe assembles one report per tick from the host inventory, the
// sensors tool, GPUs, or the ESXi registers depending on the detected mode.
package probe

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/execution"
	"codeberg.org/mutker/coreprobe/internal/hostinfo"
	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/msr"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"codeberg.org/mutker/coreprobe/internal/sensors"
	"github.com/google/uuid"
)

type hostSource interface {
	Snapshot(ctx context.Context) readings.HostSnapshot
}

type packageSource interface {
	Collect() []readings.PackageReading
}

// GPUSource supplies GPU readings; *gpu.Prober implements it.
type GPUSource interface {
	Readings() ([]readings.GPUReading, error)
}

type registerSource interface {
	TjMax() int
	Topology() readings.Topology
	SystemTopology() readings.SystemTopology
}

// Report holds exactly one of the two report kinds.
type Report struct {
	Linux *readings.SensorReport
	ESXi  *readings.ESXiReport
}

// Payload returns the populated report for encoding.
func (r Report) Payload() any {
	if r.ESXi != nil {
		return r.ESXi
	}
	return r.Linux
}

type Probe struct {
	mode      Mode
	host      hostSource
	packages  packageSource
	gpus      GPUSource
	registers registerSource
	now       func() time.Time
	newID     func() string
	log       logger.Logger
	startOnce sync.Once
}

type Option func(*Probe)

// WithGPU adds GPU readings to Linux reports.
func WithGPU(g GPUSource) Option {
	return func(p *Probe) {
		p.gpus = g
	}
}

func New(mode Mode, runner execution.Runner, opts ...Option) *Probe {
	p := &Probe{
		mode:      mode,
		host:      hostinfo.NewMonitor(),
		packages:  sensors.NewCollector(runner),
		registers: msr.NewService(runner),
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.WithComponent("probe"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Probe) Mode() Mode {
	return p.mode
}

// Start logs the static ESXi host facts once. It is a no-op on Linux.
func (p *Probe) Start() {
	p.startOnce.Do(func() {
		if p.mode != ModeESXi {
			return
		}

		topology := p.registers.Topology()
		p.log.Info().
			Int("tjmax", p.registers.TjMax()).
			Int("sockets", topology.Sockets).
			Int("cores", topology.Cores).
			Int("threads", topology.Threads).
			Msg("ESXi host info")
	})
}

// Collect builds one report. Data source failures degrade to empty or
// sentinel values; only a cancelled context is returned as an error.
func (p *Probe) Collect(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, errors.New().Wrap(errors.ErrCollectReport, err)
	}

	if p.mode == ModeESXi {
		return Report{ESXi: p.collectESXi()}, nil
	}

	return Report{Linux: p.collectLinux(ctx)}, nil
}

func (p *Probe) collectLinux(ctx context.Context) *readings.SensorReport {
	report := &readings.SensorReport{
		ReportID:    p.newID(),
		CollectedAt: p.now().UTC(),
		Host:        p.host.Snapshot(ctx),
		Packages:    p.packages.Collect(),
	}

	if p.gpus != nil {
		gpus, err := p.gpus.Readings()
		if err != nil {
			p.log.Warn().Err(err).Msg("Failed to read GPU sensors")
		}
		report.GPUs = gpus
	}

	p.log.Debug().
		Str("report_id", report.ReportID).
		Int("packages", len(report.Packages)).
		Int("gpus", len(report.GPUs)).
		Msg("Collected Linux report")

	return report
}

func (p *Probe) collectESXi() *readings.ESXiReport {
	report := &readings.ESXiReport{
		ReportID:    p.newID(),
		CollectedAt: p.now().UTC(),
		Host:        p.registers.SystemTopology(),
	}

	p.log.Debug().
		Str("report_id", report.ReportID).
		Int("cpus", len(report.Host.CPUs)).
		Msg("Collected ESXi report")

	return report
}
