package shell

import (
	"context"
	"fmt"
	"os"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/interp"
	"github.com/arrowshell/posh/syntax"
)

// SourceFile reads and runs a shell file from disk, then returns the
// variables it declared. It is a convenience wrapper around syntax.Parse
// and SourceNode for the common case of sourcing a config-style script to
// read back its settings.
func SourceFile(ctx context.Context, path string) (map[string]expand.Variable, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open: %v", err)
	}
	f, err := syntax.Parse(bs, path, 0)
	if err != nil {
		return nil, fmt.Errorf("could not parse: %v", err)
	}
	return SourceNode(ctx, f)
}

// SourceNode runs a parsed file and returns the variables it declared,
// skipping the handful of bookkeeping names (PWD, HOME, PATH, IFS,
// OPTIND) a caller asking "what did this script set" isn't interested in.
//
// SourceNode offers no sandboxing of external commands or file access:
// Runner has no module/hook seam to intercept exec or open calls through,
// so a sourced script can do anything a normal shell invocation can. Only
// feed it scripts you trust, the same way you would os/exec'ing them
// directly.
func SourceNode(ctx context.Context, f *syntax.File) (map[string]expand.Variable, error) {
	r, err := interp.New(interp.StdIO(os.Stdin, os.Stdout, os.Stderr))
	if err != nil {
		return nil, err
	}
	// Run always returns an ExitStatus (even ExitStatus(0) on success, still
	// boxed as a non-nil error interface value), so a plain err != nil
	// check would reject every successful run.
	if err := r.Run(ctx, f); err.(interp.ExitStatus) != 0 {
		return nil, fmt.Errorf("could not run: %v", err)
	}
	vars := map[string]expand.Variable{}
	r.Env.Each(func(name string, vr expand.Variable) bool {
		vars[name] = vr
		return true
	})
	for _, skip := range []string{"PWD", "HOME", "PATH", "IFS", "OPTIND"} {
		delete(vars, skip)
	}
	return vars, nil
}
