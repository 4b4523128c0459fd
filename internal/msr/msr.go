// Package msr reads ESXi model-specific registers and cpu topology through
// vsish and decodes them into temperatures. Decode failures never surface as
// errors: they fall back to 100 for TjMax, 0 for topology counts, and textual
// sentinels for per-cpu values.
package msr

import (
	"fmt"
	"slices"
	"sync"

	"codeberg.org/mutker/coreprobe/internal/execution"
	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/readings"
)

const (
	tool = "vsish"

	tjmaxRegister = "/hardware/msr/pcpu/0/addr/0x1A2"
	cpuInfoPath   = "/hardware/cpu/cpuInfo"
	cpuListDir    = "/hardware/msr/pcpu/"

	labelSockets = "Number of packages"
	labelCores   = "Number of cores"
	labelThreads = "Number of CPUs (threads)"

	// DefaultTjMax is used when the temperature target register cannot be decoded.
	DefaultTjMax = 100

	notAvailable = readings.NotAvailable
)

// Service reads registers through a Runner. TjMax, topology and the cpu list
// are read once per Service and cached.
type Service struct {
	runner execution.Runner
	log    logger.Logger

	tjmaxOnce sync.Once
	tjmax     int

	topologyOnce sync.Once
	topology     readings.Topology

	cpuListOnce sync.Once
	cpus        []string
}

func NewService(runner execution.Runner) *Service {
	return &Service{
		runner: runner,
		log:    logger.WithComponent("msr"),
	}
}

func (s *Service) cat(path string) (string, error) {
	return s.runner.Execute(tool, "-e", "cat", path)
}

// TjMax returns the junction temperature ceiling of cpu 0.
func (s *Service) TjMax() int {
	s.tjmaxOnce.Do(func() {
		s.tjmax = DefaultTjMax

		raw, err := s.cat(tjmaxRegister)
		if err != nil {
			s.log.Warn().Err(err).Int("default", DefaultTjMax).Msg("Failed to read TjMax register, using default")
			return
		}

		tjmax, ok := decodeTjMax(raw)
		if !ok {
			s.log.Warn().Str("raw", raw).Int("default", DefaultTjMax).Msg("Invalid TjMax value, using default")
			return
		}

		s.tjmax = tjmax
	})

	return s.tjmax
}

// Topology returns the socket, core and thread counts of the host.
func (s *Service) Topology() readings.Topology {
	s.topologyOnce.Do(func() {
		info, err := s.cat(cpuInfoPath)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to read cpu info")
		}

		s.topology = readings.Topology{
			Sockets: topologyValue(info, labelSockets),
			Cores:   topologyValue(info, labelCores),
			Threads: topologyValue(info, labelThreads),
		}
	})

	return s.topology
}

// CPUList returns the logical cpu ids listed under the MSR directory.
func (s *Service) CPUList() []string {
	s.cpuListOnce.Do(func() {
		listing, err := s.runner.Execute(tool, "-e", "ls", cpuListDir)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to list cpus")
			return
		}

		s.cpus = parseCPUList(listing)
	})

	return slices.Clone(s.cpus)
}

// CoreSocketInfo returns the core and socket ids of a logical cpu, or "N/A"
// for both when the cpu entry cannot be read.
func (s *Service) CoreSocketInfo(cpu string) (core, socket string) {
	info, err := s.cat(fmt.Sprintf("/hardware/cpu/cpuList/%s", cpu))
	if err != nil {
		return notAvailable, notAvailable
	}

	return fieldValue(info, "core:"), fieldValue(info, "package:")
}

// CPUTemperature returns the digital readout and temperature of a logical
// cpu as text. The temperature is tjmax minus the readout.
func (s *Service) CPUTemperature(cpu string, tjmax int) (readout, temperature string) {
	raw, err := s.cat(fmt.Sprintf("/hardware/msr/pcpu/%s/addr/0x19C", cpu))
	if err != nil {
		s.log.Error().Err(err).Str("cpu", cpu).Msg("Failed to read thermal status register")
		return notAvailable, readings.ErrorReadingRegister
	}

	digital, ok := decodeReadout(raw)
	if !ok {
		s.log.Warn().Str("cpu", cpu).Str("raw", raw).Msg("Invalid thermal status value")
		return notAvailable, readings.InvalidTemperature
	}

	return fmt.Sprint(digital), fmt.Sprint(tjmax - digital)
}

// SystemTopology reads every logical cpu. The first cpu seen for a core id
// is the real core and later ones are its hyperthread siblings.
func (s *Service) SystemTopology() readings.SystemTopology {
	tjmax := s.TjMax()
	topo := s.Topology()

	list := s.CPUList()
	seen := make(map[string]struct{}, len(list))
	cpus := make([]readings.CPUDetail, 0, len(list))

	for _, cpu := range list {
		core, socket := s.CoreSocketInfo(cpu)

		coreType := readings.CoreTypeReal
		if _, ok := seen[core]; ok {
			coreType = readings.CoreTypeVirtual
		} else {
			seen[core] = struct{}{}
		}

		readout, temperature := s.CPUTemperature(cpu, tjmax)

		cpus = append(cpus, readings.CPUDetail{
			CPUID:    cpu,
			SocketID: socket,
			Cores: []readings.CoreDetail{{
				CoreID:         core,
				Temperature:    temperature,
				DigitalReadout: readout,
				CoreType:       coreType,
			}},
		})
	}

	return readings.SystemTopology{
		TjMax:             tjmax,
		Sockets:           topo.Sockets,
		CoresPerSocket:    topo.Cores / max(topo.Sockets, 1),
		ThreadsPerCore:    topo.Threads / max(topo.Cores, 1),
		LogicalProcessors: topo.Threads,
		CPUs:              cpus,
	}
}
