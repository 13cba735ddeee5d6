//go:build unix

package interp

import "golang.org/x/sys/unix"

// getSetUmask sets the process umask to mask and returns the previous
// value, the same set-and-return-old contract as the umask(2) syscall
// the umask builtin wraps.
func getSetUmask(mask int) int {
	return unix.Umask(mask)
}
