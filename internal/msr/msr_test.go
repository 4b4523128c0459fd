package msr_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"codeberg.org/mutker/coreprobe/internal/msr"
	"codeberg.org/mutker/coreprobe/internal/readings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVsish answers "vsish -e <verb> <path>" from a map keyed by "<verb> <path>".
type fakeVsish struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   map[string]int
}

func newFakeVsish(outputs map[string]string) *fakeVsish {
	return &fakeVsish{outputs: outputs, calls: make(map[string]int)}
}

func (f *fakeVsish) Execute(command string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if command != "vsish" || len(args) != 3 || args[0] != "-e" {
		return "", fmt.Errorf("unexpected command %s %v", command, args)
	}

	key := strings.Join(args[1:], " ")
	f.calls[key]++
	out, ok := f.outputs[key]
	if !ok {
		return "", fmt.Errorf("vsish: %s: not found", key)
	}

	return out, nil
}

func (f *fakeVsish) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[key]
}

const (
	tjmaxKey   = "cat /hardware/msr/pcpu/0/addr/0x1A2"
	cpuInfoKey = "cat /hardware/cpu/cpuInfo"
	cpuListKey = "ls /hardware/msr/pcpu/"
)

func hyperthreadedHost() map[string]string {
	return map[string]string{
		tjmaxKey:   "0x00640000\n",
		cpuInfoKey: "Number of packages:1\nNumber of cores:2\nNumber of CPUs (threads):3\n",
		cpuListKey: "0/\n1/\n4/\n",

		"cat /hardware/cpu/cpuList/0": "core:0\npackage:0\n",
		"cat /hardware/cpu/cpuList/1": "core:1\npackage:0\n",
		"cat /hardware/cpu/cpuList/4": "core:0\npackage:0\n",

		"cat /hardware/msr/pcpu/0/addr/0x19C": "0x00190000",
		"cat /hardware/msr/pcpu/1/addr/0x19C": "0x88000000",
		"cat /hardware/msr/pcpu/4/addr/0x19C": "0x001E0000",
	}
}

func TestTjMax(t *testing.T) {
	svc := msr.NewService(newFakeVsish(hyperthreadedHost()))
	assert.Equal(t, 100, svc.TjMax())
}

func TestTjMaxFallback(t *testing.T) {
	for name, outputs := range map[string]map[string]string{
		"missing prefix": {tjmaxKey: "00640000"},
		"not hex":        {tjmaxKey: "0xnothex"},
		"read failure":   {},
	} {
		t.Run(name, func(t *testing.T) {
			svc := msr.NewService(newFakeVsish(outputs))
			assert.Equal(t, msr.DefaultTjMax, svc.TjMax())
		})
	}
}

func TestCachesReadOnce(t *testing.T) {
	runner := newFakeVsish(hyperthreadedHost())
	svc := msr.NewService(runner)

	first := svc.TjMax()
	topo := svc.Topology()
	cpus := svc.CPUList()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, svc.TjMax())
		assert.Equal(t, topo, svc.Topology())
		assert.Equal(t, cpus, svc.CPUList())
	}
	svc.SystemTopology()
	svc.SystemTopology()

	assert.Equal(t, 1, runner.count(tjmaxKey))
	assert.Equal(t, 1, runner.count(cpuInfoKey))
	assert.Equal(t, 1, runner.count(cpuListKey))
	assert.Equal(t, 2, runner.count("cat /hardware/msr/pcpu/0/addr/0x19C"))
}

func TestCachesConcurrentFirstUse(t *testing.T) {
	runner := newFakeVsish(hyperthreadedHost())
	svc := msr.NewService(runner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.TjMax()
			svc.Topology()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, runner.count(tjmaxKey))
	assert.Equal(t, 1, runner.count(cpuInfoKey))
}

func TestTopology(t *testing.T) {
	svc := msr.NewService(newFakeVsish(hyperthreadedHost()))
	assert.Equal(t, readings.Topology{Sockets: 1, Cores: 2, Threads: 3}, svc.Topology())

	svc = msr.NewService(newFakeVsish(nil))
	assert.Equal(t, readings.Topology{}, svc.Topology())
}

func TestCoreSocketInfo(t *testing.T) {
	svc := msr.NewService(newFakeVsish(hyperthreadedHost()))

	core, socket := svc.CoreSocketInfo("1")
	assert.Equal(t, "1", core)
	assert.Equal(t, "0", socket)

	core, socket = svc.CoreSocketInfo("99")
	assert.Equal(t, readings.NotAvailable, core)
	assert.Equal(t, readings.NotAvailable, socket)
}

func TestCPUTemperature(t *testing.T) {
	svc := msr.NewService(newFakeVsish(hyperthreadedHost()))

	readout, temp := svc.CPUTemperature("0", 100)
	assert.Equal(t, "25", readout)
	assert.Equal(t, "75", temp)

	readout, temp = svc.CPUTemperature("1", 100)
	assert.Equal(t, readings.NotAvailable, readout)
	assert.Equal(t, readings.InvalidTemperature, temp)

	readout, temp = svc.CPUTemperature("7", 100)
	assert.Equal(t, readings.NotAvailable, readout)
	assert.Equal(t, readings.ErrorReadingRegister, temp)
}

func TestSystemTopologyClassifiesSiblings(t *testing.T) {
	svc := msr.NewService(newFakeVsish(hyperthreadedHost()))

	sys := svc.SystemTopology()

	assert.Equal(t, 100, sys.TjMax)
	assert.Equal(t, 1, sys.Sockets)
	assert.Equal(t, 2, sys.CoresPerSocket)
	assert.Equal(t, 1, sys.ThreadsPerCore)
	assert.Equal(t, 3, sys.LogicalProcessors)

	require.Len(t, sys.CPUs, 3)
	byCPU := make(map[string]readings.CoreDetail)
	for _, cpu := range sys.CPUs {
		require.Len(t, cpu.Cores, 1)
		assert.Equal(t, "0", cpu.SocketID)
		byCPU[cpu.CPUID] = cpu.Cores[0]
	}

	assert.Equal(t, readings.CoreTypeReal, byCPU["0"].CoreType)
	assert.Equal(t, readings.CoreTypeReal, byCPU["1"].CoreType)
	assert.Equal(t, readings.CoreTypeVirtual, byCPU["4"].CoreType)

	assert.Equal(t, "75", byCPU["0"].Temperature)
	assert.Equal(t, "70", byCPU["4"].Temperature)
	assert.Equal(t, readings.InvalidTemperature, byCPU["1"].Temperature)
}

func TestSystemTopologyWithoutCounts(t *testing.T) {
	outputs := hyperthreadedHost()
	delete(outputs, cpuInfoKey)
	svc := msr.NewService(newFakeVsish(outputs))

	sys := svc.SystemTopology()

	assert.Zero(t, sys.Sockets)
	assert.Zero(t, sys.CoresPerSocket)
	assert.Zero(t, sys.ThreadsPerCore)
	assert.Len(t, sys.CPUs, 3)
}
