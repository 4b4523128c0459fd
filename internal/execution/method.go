package execution

import "strings"

// Method selects how an external command is run.
type Method string

const (
	// Direct spawns the binary without a shell.
	Direct Method = "direct"
	// Shell runs a quoted command line through sh -c.
	Shell Method = "shell"
	// ForkExec replaces a forked child's image with the command. The child
	// inherits the probe's stdout and stderr, so no output is captured.
	ForkExec Method = "fork-exec"
	// ForkSyscall runs the command line through sh -c in a forked child whose
	// stdout and stderr are redirected into pipes drained by the parent.
	ForkSyscall Method = "fork-syscall"
	// ExistenceCheck only probes whether the binary exists on the search paths.
	ExistenceCheck Method = "existence-check"
)

var methodAliases = map[string]Method{
	"direct":          Direct,
	"debug":           Direct,
	"shell":           Shell,
	"fork-exec":       ForkExec,
	"execv":           ForkExec,
	"fork-syscall":    ForkSyscall,
	"libc":            ForkSyscall,
	"existence-check": ExistenceCheck,
	"check":           ExistenceCheck,
}

// ParseMethod maps a configured method name, including legacy aliases, to a Method.
func ParseMethod(name string) (Method, error) {
	if m, ok := methodAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m, nil
	}

	return "", errFactory.WithData(ErrUnknownMethod, name)
}

func (m Method) String() string {
	return string(m)
}
