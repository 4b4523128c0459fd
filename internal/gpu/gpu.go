// Package gpu reads NVIDIA device temperatures, fan speed and power draw
// through NVML. It never changes device settings.
package gpu

import (
	"sync"

	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type Prober struct {
	nvml nvmlController
	log  logger.Logger
	mu   sync.Mutex
}

// New initializes NVML.
func New() (*Prober, error) {
	return newProber(&nvmlWrapper{})
}

func newProber(ctrl nvmlController) (*Prober, error) {
	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	return &Prober{
		nvml: ctrl,
		log:  logger.WithComponent("gpu"),
	}, nil
}

// Readings returns one reading per device. Fan and power failures leave
// those fields at 0; a device whose temperature cannot be read is skipped.
func (p *Prober) Readings() ([]readings.GPUReading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, err := p.nvml.GetDeviceCount()
	if err != nil {
		return nil, err
	}

	out := make([]readings.GPUReading, 0, count)
	for i := 0; i < count; i++ {
		device, err := p.nvml.GetDevice(i)
		if err != nil {
			p.log.Warn().Err(err).Int("index", i).Msg("Failed to get GPU handle")
			continue
		}

		r, err := p.read(i, device)
		if err != nil {
			p.log.Warn().Err(err).Int("index", i).Msg("Failed to read GPU temperature")
			continue
		}
		out = append(out, r)
	}

	return out, nil
}

func (p *Prober) read(index int, d Device) (readings.GPUReading, error) {
	temp, ret := d.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return readings.GPUReading{}, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	r := readings.GPUReading{Index: index, Temperature: int(temp)}

	if name, ret := d.GetName(); ret == nvml.SUCCESS {
		r.Name = name
	}
	if uuid, ret := d.GetUUID(); ret == nvml.SUCCESS {
		r.UUID = uuid
	}

	var err error
	if r.FanSpeed, err = fanSpeed(d); err != nil {
		p.log.Debug().Err(err).Int("index", index).Msg("Fan speed unavailable")
	}
	if r.PowerWatts, err = powerWatts(d); err != nil {
		p.log.Debug().Err(err).Int("index", index).Msg("Power usage unavailable")
	}

	return r, nil
}

func (p *Prober) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.nvml.Shutdown()
}
