//go:build unix

package installer

import "golang.org/x/sys/unix"

func isRoot() bool {
	return unix.Geteuid() == 0
}
