package gpu

import (
	"testing"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	name     string
	uuid     string
	temp     uint32
	tempRet  nvml.Return
	fans     int
	fanSpeed uint32
	fanRet   nvml.Return
	powerMW  uint32
	powerRet nvml.Return
}

func (d *fakeDevice) GetName() (string, nvml.Return) { return d.name, nvml.SUCCESS }
func (d *fakeDevice) GetUUID() (string, nvml.Return) { return d.uuid, nvml.SUCCESS }
func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temp, d.tempRet
}
func (d *fakeDevice) GetNumFans() (int, nvml.Return)           { return d.fans, nvml.SUCCESS }
func (d *fakeDevice) GetFanSpeed_v2(int) (uint32, nvml.Return) { return d.fanSpeed, d.fanRet }
func (d *fakeDevice) GetPowerUsage() (uint32, nvml.Return)     { return d.powerMW, d.powerRet }

type fakeController struct {
	devices  []Device
	initErr  error
	shutdown bool
}

func (c *fakeController) Initialize() error { return c.initErr }
func (c *fakeController) Shutdown() error   { c.shutdown = true; return nil }
func (c *fakeController) GetDeviceCount() (int, error) {
	return len(c.devices), nil
}
func (c *fakeController) GetDevice(index int) (Device, error) {
	return c.devices[index], nil
}

func TestReadings(t *testing.T) {
	ctrl := &fakeController{devices: []Device{
		&fakeDevice{name: "RTX 4090", uuid: "GPU-1", temp: 61, fans: 2, fanSpeed: 45, powerMW: 215500},
		&fakeDevice{name: "broken", tempRet: nvml.ERROR_GPU_IS_LOST},
		&fakeDevice{name: "passive", uuid: "GPU-3", temp: 40, fans: 0, powerRet: nvml.ERROR_NOT_SUPPORTED},
	}}

	p, err := newProber(ctrl)
	require.NoError(t, err)

	got, err := p.Readings()
	require.NoError(t, err)

	assert.Equal(t, []readings.GPUReading{
		{Index: 0, Name: "RTX 4090", UUID: "GPU-1", Temperature: 61, FanSpeed: 45, PowerWatts: 215.5},
		{Index: 2, Name: "passive", UUID: "GPU-3", Temperature: 40},
	}, got)

	require.NoError(t, p.Shutdown())
	assert.True(t, ctrl.shutdown)
}

func TestNewFailsWhenInitFails(t *testing.T) {
	_, err := newProber(&fakeController{initErr: errFactory.New(ErrInitFailed)})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInitFailed))
}

func TestFanSpeedError(t *testing.T) {
	_, err := fanSpeed(&fakeDevice{fans: 1, fanRet: nvml.ERROR_NOT_SUPPORTED})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrFanReadFailed))
}
