package execution

import (
	"bytes"
	"os"
	"os/exec"
	"strings"

	"codeberg.org/mutker/coreprobe/internal/errors"
)

const shellPath = "/bin/sh"

func runDirect(command string, args []string) (*Result, error) {
	return runCommand(command, exec.Command(command, args...))
}

func runShell(line string) (*Result, error) {
	return runCommand(line, exec.Command(shellPath, "-c", line))
}

// runCommand leaves cmd.Stdin nil so the child reads from the null device.
func runCommand(name string, cmd *exec.Cmd) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return completed(name, stdout.Bytes(), stderr.Bytes(), nil)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, spawnFailure(name, err)
	}

	return completed(name, stdout.Bytes(), stderr.Bytes(), processExit(exitErr.ProcessState))
}

func processExit(state *os.ProcessState) *ExitError {
	if code := state.ExitCode(); code >= 0 {
		return &ExitError{Code: code}
	}

	return &ExitError{Code: -1, Signal: strings.TrimPrefix(state.String(), "signal: ")}
}
