package hostinfo

import (
	"context"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
)

func TestManagementIP(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{
			{Addr: "fe80::1/64"},
			{Addr: "169.254.10.2/16"},
			{Addr: "10.20.30.40/24"},
		}},
		{Name: "eth1", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "192.168.0.2/24"}}},
	}

	assert.Equal(t, "10.20.30.40", managementIP(ifaces))
}

func TestManagementIPUnknown(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", Addrs: psnet.InterfaceAddrList{{Addr: "not-an-address"}, {Addr: "2001:db8::1/64"}}},
	}

	assert.Equal(t, UnknownIP, managementIP(ifaces))
	assert.Equal(t, UnknownIP, managementIP(nil))
}

func TestSnapshotIsBestEffort(t *testing.T) {
	m := NewMonitor()
	m.sampleWindow = 0

	snap := m.Snapshot(context.Background())

	assert.NotEmpty(t, snap.Hostname)
	assert.NotEmpty(t, snap.CPU.Arch)
	assert.NotEmpty(t, snap.ManagementIP)
	assert.NotNil(t, snap.Disks)
	assert.NotNil(t, snap.Networks)
	assert.Equal(t, snap.Uptime.TotalSeconds,
		snap.Uptime.Days*86400+snap.Uptime.Hours*3600+snap.Uptime.Minutes*60+snap.Uptime.Seconds)
}
