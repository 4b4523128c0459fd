package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// fanSpeed returns the speed of the first fan in percent. Devices without
// fans report 0.
func fanSpeed(d Device) (int, error) {
	count, ret := d.GetNumFans()
	if ret != nvml.SUCCESS {
		return 0, errFactory.Wrap(ErrFanReadFailed, newNVMLError(ret))
	}
	if count == 0 {
		return 0, nil
	}

	speed, ret := d.GetFanSpeed_v2(0)
	if ret != nvml.SUCCESS {
		return 0, errFactory.Wrap(ErrFanReadFailed, newNVMLError(ret))
	}

	return int(speed), nil
}
