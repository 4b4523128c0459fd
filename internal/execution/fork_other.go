//go:build !unix

package execution

import (
	"os"
	"os/exec"

	"codeberg.org/mutker/coreprobe/internal/errors"
)

// Without fork the image-replacing strategy spawns the command with the
// probe's own stdout and stderr.
func runForkExec(command string, args []string) (*Result, error) {
	cmd := exec.Command(command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return completed(command, nil, nil, nil)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, spawnFailure(command, err)
	}

	return completed(command, nil, nil, processExit(exitErr.ProcessState))
}

func runPipeBridge(line string) (*Result, error) {
	return runShell(line)
}
