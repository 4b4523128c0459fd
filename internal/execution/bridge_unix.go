//go:build unix

package execution

import (
	"io"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// runPipeBridge runs line through /bin/sh -c in a forked child whose stdout
// and stderr are pipes. Both pipes are drained while the parent waits, so a
// child writing more than a pipe buffer cannot block on a full pipe.
func runPipeBridge(line string) (*Result, error) {
	var outFDs, errFDs [2]int
	if err := unix.Pipe2(outFDs[:], unix.O_CLOEXEC); err != nil {
		return nil, errFactory.Wrap(ErrPipeFailed, err)
	}
	if err := unix.Pipe2(errFDs[:], unix.O_CLOEXEC); err != nil {
		closeFDs(outFDs[0], outFDs[1])
		return nil, errFactory.Wrap(ErrPipeFailed, err)
	}

	stdoutR := os.NewFile(uintptr(outFDs[0]), "stdout")
	stderrR := os.NewFile(uintptr(errFDs[0]), "stderr")
	defer stdoutR.Close()
	defer stderrR.Close()

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		closeFDs(outFDs[1], errFDs[1])
		return nil, spawnFailure(line, err)
	}

	// The child gets dups of the write ends on fd 1 and 2; the originals are
	// close-on-exec and the read ends never reach the shell.
	pid, err := syscall.ForkExec(shellPath, []string{"sh", "-c", line}, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{devNull.Fd(), uintptr(outFDs[1]), uintptr(errFDs[1])},
	})

	// Parent copies of the write ends must go before draining or the
	// readers never see EOF.
	closeFDs(outFDs[1], errFDs[1])
	devNull.Close()

	if err != nil {
		return nil, spawnFailure(line, err)
	}

	var (
		wg             sync.WaitGroup
		stdout, stderr []byte
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		stdout, _ = io.ReadAll(stdoutR)
	}()
	go func() {
		defer wg.Done()
		stderr, _ = io.ReadAll(stderrR)
	}()

	status, waitErr := waitPID(pid)
	wg.Wait()

	if waitErr != nil {
		return nil, errFactory.Wrap(ErrWaitFailed, waitErr)
	}

	return completed(line, stdout, stderr, statusExit(status))
}

func closeFDs(fds ...int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
