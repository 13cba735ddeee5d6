package interp

import (
	"os"
	"testing"

	"github.com/arrowshell/posh/internal"
)

// TestMain sanitizes the process environment (locale, CDPATH, and a
// scratch PATH entry shadowing common one-letter variable names used as
// command names in scripts) before running any test that executes real
// external commands via runExternal.
func TestMain(m *testing.M) {
	internal.PrepareScriptEnv()
	os.Exit(m.Run())
}
