package interp

import (
	"fmt"
	"strings"
)

// Signal numbers are the common POSIX values, named the way bash's own
// `kill -l` table is, independent of the build-tagged sendSignal that
// actually delivers them.
const (
	sigHUP  = 1
	sigINT  = 2
	sigQUIT = 3
	sigKILL = 9
	sigUSR1 = 10
	sigUSR2 = 12
	sigPIPE = 13
	sigTERM = 15
	sigCONT = 18
	sigSTOP = 19
)

var signalNames = map[string]int{
	"HUP": sigHUP, "INT": sigINT, "QUIT": sigQUIT, "KILL": sigKILL,
	"USR1": sigUSR1, "USR2": sigUSR2, "PIPE": sigPIPE, "TERM": sigTERM,
	"CONT": sigCONT, "STOP": sigSTOP,
}

// signalByName resolves a kill/trap signal spec: "TERM", "SIGTERM", or a
// bare number, defaulting to SIGTERM the way bash's kill does with no -s/-
// flag at all.
func signalByName(spec string) (int, bool) {
	if spec == "" {
		return sigTERM, true
	}
	name := strings.ToUpper(strings.TrimPrefix(spec, "SIG"))
	if n, ok := signalNames[name]; ok {
		return n, true
	}
	var n int
	if _, err := fmt.Sscanf(spec, "%d", &n); err == nil {
		return n, true
	}
	return 0, false
}
