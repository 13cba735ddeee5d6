package interp

import (
	"context"
	"fmt"
	"strings"
)

// traceFlags holds the runtime-toggled debug switches for tracing and
// introspection. Every trace writes to stderr only, so it never
// disturbs a command's own stdout/stderr.
type traceFlags struct {
	tokens bool // token dump before parse
	ast    bool // AST dump before execute
	expand bool // expansion trace: input word, each stage, final fields
	exec   bool // xtrace-style fork/exec/dup2 and builtin-invocation trace
	scope  bool // scope push/pop/local/global trace
}

func (r *Runner) traceCommand(args []string) {
	if !r.opts[optXTrace] && !r.trace.exec {
		return
	}
	ps4 := r.Env.Get("PS4").String()
	if ps4 == "" {
		ps4 = "+ "
	}
	fmt.Fprintf(r.Stderr, "%s%s\n", ps4, strings.Join(args, " "))
}

func (r *Runner) traceScope(event, name string) {
	if !r.trace.scope {
		return
	}
	fmt.Fprintf(r.Stderr, "scope: %s %s\n", event, name)
}

// runTrap runs the action registered for a pseudo-signal
// (EXIT/ERR/DEBUG/RETURN) right away, at the point where its caller
// reaches that event. Traps set for real signals (INT, TERM, ...) are
// stored by the trap builtin but never run.
// Traps never nest on themselves to avoid infinite recursion if the trap
// action itself triggers the same condition.
func (r *Runner) runTrap(ctx context.Context, name string) {
	action, ok := r.traps[name]
	if !ok || action == "" || r.running[name] {
		return
	}
	r.running[name] = true
	defer delete(r.running, name)
	if err := r.Eval(ctx, action); err != nil {
		if _, ok := asExit(err); !ok {
			r.errf("trap %s: %v\n", name, err)
		}
	}
}
