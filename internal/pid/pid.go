// Package pid guards against running two probes on the same host.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/coreprobe/internal/errors"
)

const (
	pidFile = "coreprobe.pid"
)

// DefaultPath returns the pid file location in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to a PID file.
func Write() error {
	return WriteTo(DefaultPath())
}

// WriteTo writes the current process ID to path, refusing when a live
// process other than this one already owns it.
func WriteTo(path string) error {
	errFactory := errors.New()
	self := os.Getpid()

	if data, err := os.ReadFile(path); err == nil {
		owner, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil && owner != self && running(owner) {
			return errFactory.WithData(errors.ErrAlreadyRunning, owner)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(self)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func running(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}

// Remove removes the PID file.
func Remove() error {
	return RemoveFrom(DefaultPath())
}

// RemoveFrom removes the PID file at path.
func RemoveFrom(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
