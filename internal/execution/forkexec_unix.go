//go:build unix

package execution

import (
	"os"
	"os/exec"
	"syscall"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"golang.org/x/sys/unix"
)

// runForkExec forks and execs command in the child. The child inherits the
// probe's stdout and stderr. syscall.ForkExec never returns to Go code in the
// child: if the exec fails the child exits with status 253 and the error is
// reported to the parent.
func runForkExec(command string, args []string) (*Result, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, spawnFailure(command, err)
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, spawnFailure(command, err)
	}

	argv := append([]string{command}, args...)
	pid, err := syscall.ForkExec(path, argv, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{devNull.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
	})
	devNull.Close()
	if err != nil {
		return nil, spawnFailure(command, err)
	}

	status, err := waitPID(pid)
	if err != nil {
		return nil, errFactory.Wrap(ErrWaitFailed, err)
	}

	return completed(command, nil, nil, statusExit(status))
}

func waitPID(pid int) (unix.WaitStatus, error) {
	var status unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &status, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		return status, err
	}
}

func statusExit(status unix.WaitStatus) *ExitError {
	switch {
	case status.Exited() && status.ExitStatus() == 0:
		return nil
	case status.Signaled():
		return &ExitError{Code: -1, Signal: status.Signal().String()}
	default:
		return &ExitError{Code: status.ExitStatus()}
	}
}
