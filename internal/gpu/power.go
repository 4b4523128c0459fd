package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

const milliWattsToWatts = 1000

// powerWatts returns the current board power draw.
func powerWatts(d Device) (float64, error) {
	usage, ret := d.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return 0, errFactory.Wrap(ErrPowerReadFailed, newNVMLError(ret))
	}

	return float64(usage) / milliWattsToWatts, nil
}
