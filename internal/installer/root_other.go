//go:build !unix

package installer

func isRoot() bool {
	return false
}
