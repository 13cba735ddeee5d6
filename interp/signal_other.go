//go:build windows || plan9 || js

package interp

import (
	"fmt"
	"os"
)

// sendSignal only supports a plain termination on non-unix targets, since
// neither syscall.Kill nor arbitrary signal numbers are meaningful there.
func sendSignal(pid int, sig int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if sig != sigKILL && sig != sigTERM {
		return fmt.Errorf("signal %d not supported on this platform", sig)
	}
	return proc.Kill()
}
