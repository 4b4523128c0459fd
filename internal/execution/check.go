package execution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Exists reports whether command is a regular file in one of the search
// paths. A command containing a slash is checked as given.
func (e *Executor) Exists(command string) bool {
	if command == "" {
		return false
	}

	if strings.ContainsRune(command, '/') {
		return isFile(command)
	}

	for _, dir := range e.searchPaths {
		if isFile(filepath.Join(dir, command)) {
			return true
		}
	}

	return false
}

func (e *Executor) runExistenceCheck(command string) *Result {
	return &Result{
		Success: true,
		Stdout:  fmt.Sprintf("Command `%s` exists: %t", command, e.Exists(command)),
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
