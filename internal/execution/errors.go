package execution

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/coreprobe/internal/errors"
)

const (
	// Request Errors
	ErrUnknownMethod = errors.ErrorCode("execution_unknown_method")
	ErrEmptyCommand  = errors.ErrorCode("execution_empty_command")

	// Process Errors
	ErrSpawnFailed = errors.ErrorCode("execution_spawn_failed")
	ErrPipeFailed  = errors.ErrorCode("execution_pipe_failed")
	ErrWaitFailed  = errors.ErrorCode("execution_wait_failed")
	ErrNonZeroExit = errors.ErrorCode("execution_nonzero_exit")
)

var errFactory = errors.New()

// ExitError describes a command that ran but did not exit with status 0.
type ExitError struct {
	Command string
	Code    int
	Signal  string
	Stderr  string
}

func (e *ExitError) Error() string {
	var b strings.Builder

	if e.Signal != "" {
		fmt.Fprintf(&b, "%s terminated by signal %s", e.Command, e.Signal)
	} else {
		fmt.Fprintf(&b, "%s exited with code %d", e.Command, e.Code)
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}

	return b.String()
}

func exitFailure(command string, exitErr *ExitError) error {
	exitErr.Command = command

	return errFactory.Wrap(ErrNonZeroExit, exitErr)
}

func spawnFailure(command string, err error) error {
	return errFactory.Wrap(ErrSpawnFailed, fmt.Errorf("%s: %w", command, err))
}
