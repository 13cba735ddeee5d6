//go:build windows || plan9 || js

package interp

// getSetUmask is a no-op where there's no POSIX umask to change.
func getSetUmask(mask int) int { return 0 }
