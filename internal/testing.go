package internal

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PrepareScriptEnv sanitizes the process environment before any test runs
// a script through the interpreter or shells out to a real external
// command, so results don't depend on the host's locale, CDPATH, or
// leftover PATH entries.
func PrepareScriptEnv() {
	// Pin the locale to something UTF-8 capable so string/byte-length
	// comparisons in tests behave the same across machines. Not every
	// system ships "C.UTF-8" (macOS notably doesn't), so fall back to US
	// English when it's missing.
	if out, _ := exec.Command("locale", "-a").Output(); strings.Contains(
		strings.ToLower(string(out)), "c.utf",
	) {
		os.Setenv("LANGUAGE", "C.UTF-8")
		os.Setenv("LC_ALL", "C.UTF-8")
	} else {
		os.Setenv("LANGUAGE", "en_US.UTF-8")
		os.Setenv("LC_ALL", "en_US.UTF-8")
	}

	// A shell prints the working directory after a cd when CDPATH is set;
	// leaving it set would make `cd`-driven test output machine-dependent.
	os.Unsetenv("CDPATH")

	pathDir, err := os.MkdirTemp("", "posh-test-bin-")
	if err != nil {
		panic(err)
	}

	// Single-letter and common short names are exactly what test scripts
	// tend to reach for as variable names ("a=1", "for f in ..."). If one
	// also happens to be an external command on the host PATH, a script
	// that meant the variable can accidentally run that command instead.
	// Unset them as env vars and shadow them on PATH with a script that
	// fails loudly, so any accidental invocation is obvious rather than
	// silently doing something host-specific.
	for _, name := range []string{
		"a", "b", "c", "d", "e", "f", "foo", "bar",
	} {
		os.Unsetenv(name)
		stub := filepath.Join(pathDir, name)
		if err := os.WriteFile(stub, []byte("#!/bin/sh\necho NO_SUCH_COMMAND; exit 1"), 0o777); err != nil {
			panic(err)
		}
	}

	os.Setenv("PATH", pathDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}
