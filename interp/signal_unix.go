//go:build unix

package interp

import "golang.org/x/sys/unix"

// sendSignal delivers sig to the process (not process group: this
// interpreter never forks a subshell into its own group, so pid always
// names a single external process started by runExternal) named by pid,
// backing the kill builtin.
func sendSignal(pid int, sig int) error {
	return unix.Kill(pid, unix.Signal(sig))
}
