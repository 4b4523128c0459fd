// Package readings holds the plain values produced by the collectors and
// consumed by transport and history. Field tags follow the report wire format.
package readings

import (
	"fmt"
	"time"
)

// CoreReading is one "Core N:" line of lm-sensors output.
type CoreReading struct {
	Name        string  `json:"core_name"`
	Temperature float64 `json:"temperature"`
	High        float64 `json:"high_threshold"`
	Critical    float64 `json:"critical_threshold"`
}

// PackageReading is one coretemp adapter block with its package line and cores.
type PackageReading struct {
	ID          string        `json:"package_id"`
	Adapter     string        `json:"adapter_name"`
	Temperature float64       `json:"package_temperature"`
	High        float64       `json:"high_threshold"`
	Critical    float64       `json:"critical_threshold"`
	Cores       []CoreReading `json:"cores"`
}

// Hottest returns the highest core temperature, or the package temperature
// when the package has no cores.
func (p PackageReading) Hottest() float64 {
	if len(p.Cores) == 0 {
		return p.Temperature
	}

	hottest := p.Cores[0].Temperature
	for _, c := range p.Cores[1:] {
		if c.Temperature > hottest {
			hottest = c.Temperature
		}
	}

	return hottest
}

// Topology is the socket/core/thread count reported by the hypervisor.
type Topology struct {
	Sockets int `json:"sockets"`
	Cores   int `json:"cores"`
	Threads int `json:"threads"`
}

// Core type labels for ESXi logical cpus.
const (
	CoreTypeReal    = "Real Core"
	CoreTypeVirtual = "Virtual Thread"
)

// Sentinels used when a register cannot be read or decoded.
const (
	NotAvailable         = "N/A"
	InvalidTemperature   = "Invalid temperature"
	ErrorReadingRegister = "Error reading register"
)

// CoreDetail is the decoded thermal status of one logical cpu.
type CoreDetail struct {
	CoreID         string `json:"core_id"`
	Temperature    string `json:"temperature"`
	DigitalReadout string `json:"digital_readout"`
	CoreType       string `json:"core_type"`
}

// CPUDetail groups the core details of one logical cpu with its socket.
type CPUDetail struct {
	CPUID    string       `json:"cpu_id"`
	SocketID string       `json:"socket_id"`
	Cores    []CoreDetail `json:"cores"`
}

// SystemTopology is the full ESXi host view.
type SystemTopology struct {
	TjMax             int         `json:"tjmax"`
	Sockets           int         `json:"sockets"`
	CoresPerSocket    int         `json:"cores_per_socket"`
	ThreadsPerCore    int         `json:"threads_per_core"`
	LogicalProcessors int         `json:"logical_processors"`
	CPUs              []CPUDetail `json:"cpus"`
}

// Uptime splits a number of seconds into days, hours, minutes and seconds.
type Uptime struct {
	Days         uint64 `json:"days"`
	Hours        uint64 `json:"hours"`
	Minutes      uint64 `json:"minutes"`
	Seconds      uint64 `json:"seconds"`
	TotalSeconds uint64 `json:"total_seconds"`
}

// UptimeFromSeconds builds an Uptime from a total number of seconds.
func UptimeFromSeconds(total uint64) Uptime {
	return Uptime{
		Days:         total / 86400,
		Hours:        (total % 86400) / 3600,
		Minutes:      (total % 3600) / 60,
		Seconds:      total % 60,
		TotalSeconds: total,
	}
}

func (u Uptime) String() string {
	return fmt.Sprintf("%d days %d hours %d minutes %d seconds", u.Days, u.Hours, u.Minutes, u.Seconds)
}

type CPUInfo struct {
	UsagePerCore []float64 `json:"usage_per_core"`
	CoreCount    int       `json:"core_count"`
	Arch         string    `json:"cpu_arch"`
}

type MemoryInfo struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	TotalSwap uint64 `json:"total_swap"`
	UsedSwap  uint64 `json:"used_swap"`
}

type DiskInfo struct {
	Name           string `json:"name"`
	TotalSpace     uint64 `json:"total_space"`
	AvailableSpace uint64 `json:"available_space"`
	ReadBytes      uint64 `json:"read_bytes"`
	WrittenBytes   uint64 `json:"written_bytes"`
}

type NetworkInfo struct {
	Name        string `json:"interface_name"`
	Received    uint64 `json:"received"`
	Transmitted uint64 `json:"transmitted"`
	MTU         int    `json:"mtu,omitempty"`
}

// HostSnapshot is the host inventory gathered alongside sensor readings.
type HostSnapshot struct {
	Hostname     string        `json:"hostname"`
	ManagementIP string        `json:"management_ip"`
	Uptime       Uptime        `json:"uptime"`
	CPU          CPUInfo       `json:"cpu_info"`
	Memory       MemoryInfo    `json:"memory_info"`
	Disks        []DiskInfo    `json:"disks"`
	Networks     []NetworkInfo `json:"network_interfaces"`
}

// GPUReading is a read-only snapshot of one NVIDIA device.
type GPUReading struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	UUID        string  `json:"uuid"`
	Temperature int     `json:"temperature"`
	FanSpeed    int     `json:"fan_speed"`
	PowerWatts  float64 `json:"power_watts"`
}

// SensorReport is the Linux report sent every cycle.
type SensorReport struct {
	ReportID    string           `json:"report_id"`
	CollectedAt time.Time        `json:"collected_at"`
	Host        HostSnapshot     `json:"host"`
	Packages    []PackageReading `json:"cpu_packages"`
	GPUs        []GPUReading     `json:"gpus,omitempty"`
}

// ESXiReport is the hypervisor report sent every cycle.
type ESXiReport struct {
	ReportID    string         `json:"report_id"`
	CollectedAt time.Time      `json:"collected_at"`
	Host        SystemTopology `json:"host"`
}
