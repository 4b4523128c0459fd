package msr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRegister(t *testing.T) {
	tests := []struct {
		raw  string
		want int32
		ok   bool
	}{
		{"0x00640000", 0x00640000, true},
		{"  0x88470000\n", 0, false}, // does not fit in 32 signed bits
		{"0x7fffffff", 0x7fffffff, true},
		{"0xABCDEF", 0xABCDEF, true},
		{"00640000", 0, false},
		{"0X00640000", 0, false},
		{"0x", 0, false},
		{"0x00zz0000", 0, false},
		{"0x-1", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseRegister(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestDecodeTjMax(t *testing.T) {
	v, ok := decodeTjMax("0x00640000")
	assert.True(t, ok)
	assert.Equal(t, 100, v)

	v, ok = decodeTjMax("0x0F5A0000")
	assert.True(t, ok)
	assert.Equal(t, 0x5A, v)

	_, ok = decodeTjMax("garbage")
	assert.False(t, ok)
}

func TestDecodeReadout(t *testing.T) {
	v, ok := decodeReadout("0x00190000")
	assert.True(t, ok)
	assert.Equal(t, 25, v)

	// bit 23 is outside the readout field
	v, ok = decodeReadout("0x00990000")
	assert.True(t, ok)
	assert.Equal(t, 25, v)
}

func TestTopologyValue(t *testing.T) {
	info := "CPU info {\n   Number of packages:2\n   Number of cores:16\n   Number of CPUs (threads):32\n   HT state:1\n}\n"

	assert.Equal(t, 2, topologyValue(info, "Number of packages"))
	assert.Equal(t, 16, topologyValue(info, "Number of cores"))
	assert.Equal(t, 32, topologyValue(info, "Number of CPUs (threads)"))
	assert.Equal(t, 0, topologyValue(info, "Number of CPUs"))
	assert.Equal(t, 0, topologyValue("Number of cores: many", "Number of cores"))
	assert.Equal(t, 0, topologyValue("", "Number of cores"))
}

func TestFieldValue(t *testing.T) {
	info := "CPU {\n   id:4\n   Core:2\n   Package:1\n}\n"

	assert.Equal(t, "2", fieldValue(info, "core:"))
	assert.Equal(t, "1", fieldValue(info, "package:"))
	assert.Equal(t, notAvailable, fieldValue(info, "node:"))
}

func TestParseCPUList(t *testing.T) {
	assert.Equal(t, []string{"0", "1", "2"}, parseCPUList("0/\n1/\n\n 2/ \n"))
	assert.Empty(t, parseCPUList(""))
}
