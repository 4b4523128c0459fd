// Package hostinfo gathers the host inventory sent with every Linux report.
package hostinfo

import (
	"context"
	"net/netip"
	"runtime"
	"slices"
	"strings"
	"time"

	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// UnknownIP is reported when no interface carries a usable IPv4 address.
const UnknownIP = "<unknown>"

const defaultSampleWindow = 250 * time.Millisecond

// Monitor takes host snapshots. Every source is best effort: a failing
// source leaves its part of the snapshot at zero values.
type Monitor struct {
	sampleWindow time.Duration
	log          logger.Logger
}

func NewMonitor() *Monitor {
	return &Monitor{
		sampleWindow: defaultSampleWindow,
		log:          logger.WithComponent("hostinfo"),
	}
}

func (m *Monitor) Snapshot(ctx context.Context) readings.HostSnapshot {
	snap := readings.HostSnapshot{
		ManagementIP: UnknownIP,
		Disks:        []readings.DiskInfo{},
		Networks:     []readings.NetworkInfo{},
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.Uptime = readings.UptimeFromSeconds(info.Uptime)
	} else {
		m.log.Debug().Err(err).Msg("Failed to read host info")
	}

	snap.CPU = m.cpuInfo(ctx)
	snap.Memory = m.memoryInfo(ctx)
	snap.Disks = m.disks(ctx)

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		snap.ManagementIP = managementIP(ifaces)
		snap.Networks = m.networks(ctx, ifaces)
	} else {
		m.log.Debug().Err(err).Msg("Failed to list network interfaces")
	}

	return snap
}

func (m *Monitor) cpuInfo(ctx context.Context) readings.CPUInfo {
	info := readings.CPUInfo{Arch: runtime.GOARCH}

	if arch, err := host.KernelArch(); err == nil && arch != "" {
		info.Arch = arch
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CoreCount = n
	}
	if per, err := cpu.PercentWithContext(ctx, m.sampleWindow, true); err == nil {
		info.UsagePerCore = per
	} else {
		m.log.Debug().Err(err).Msg("Failed to sample cpu usage")
	}

	return info
}

func (m *Monitor) memoryInfo(ctx context.Context) readings.MemoryInfo {
	var info readings.MemoryInfo

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.Total = vm.Total
		info.Used = vm.Total - vm.Available
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		info.TotalSwap = sw.Total
		info.UsedSwap = sw.Used
	}

	return info
}

func (m *Monitor) disks(ctx context.Context) []readings.DiskInfo {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		m.log.Debug().Err(err).Msg("Failed to list partitions")
		return []readings.DiskInfo{}
	}

	counters, _ := disk.IOCountersWithContext(ctx)

	out := make([]readings.DiskInfo, 0, len(parts))
	for _, p := range parts {
		d := readings.DiskInfo{Name: p.Device}
		if usage, err := disk.UsageWithContext(ctx, p.Mountpoint); err == nil {
			d.TotalSpace = usage.Total
			d.AvailableSpace = usage.Free
		}
		if io, ok := counters[strings.TrimPrefix(p.Device, "/dev/")]; ok {
			d.ReadBytes = io.ReadBytes
			d.WrittenBytes = io.WriteBytes
		}
		out = append(out, d)
	}

	return out
}

func (m *Monitor) networks(ctx context.Context, ifaces psnet.InterfaceStatList) []readings.NetworkInfo {
	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		m.log.Debug().Err(err).Msg("Failed to read network counters")
	}

	mtus := make(map[string]int, len(ifaces))
	for _, iface := range ifaces {
		mtus[iface.Name] = iface.MTU
	}

	out := make([]readings.NetworkInfo, 0, len(counters))
	for _, c := range counters {
		out = append(out, readings.NetworkInfo{
			Name:        c.Name,
			Received:    c.BytesRecv,
			Transmitted: c.BytesSent,
			MTU:         mtus[c.Name],
		})
	}

	return out
}

// managementIP returns the first IPv4 address of a non-loopback interface.
func managementIP(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}

		for _, addr := range iface.Addrs {
			prefix, err := netip.ParsePrefix(addr.Addr)
			if err != nil {
				continue
			}

			ip := prefix.Addr()
			if ip.Is4() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
				return ip.String()
			}
		}
	}

	return UnknownIP
}
