package probe

import (
	"strings"

	"codeberg.org/mutker/coreprobe/internal/execution"
)

type Mode string

const (
	ModeLinux Mode = "linux"
	ModeESXi  Mode = "esxi"

	esxiTool = "vsish"
)

// DetectMode asks an existence-check runner whether vsish is installed.
// Hosts with vsish are treated as ESXi, everything else as Linux.
func DetectMode(checker execution.Runner) Mode {
	out, err := checker.Execute(esxiTool)
	if err != nil {
		return ModeLinux
	}

	if strings.HasSuffix(strings.TrimSpace(out), ": true") {
		return ModeESXi
	}
	return ModeLinux
}
