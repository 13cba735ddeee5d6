// Package interp implements the variable store, the AST walker that
// executes parsed programs, the job/signal controller, the builtin
// registry, and the debug/introspection trace switches.
package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/syntax"
)

// ExitStatus is the exit code of a simple command, pipeline, or whole run.
type ExitStatus uint8

func (e ExitStatus) Error() string { return fmt.Sprintf("exit status %d", uint8(e)) }

// Runner executes parsed shell programs, threading one explicit
// shell-state object through every component rather than relying on
// global mutable state.
type Runner struct {
	Env  *scopeStack
	Funcs map[string]*syntax.Stmt

	Dir    string
	Params []string
	Name0  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// MaxCallDepth bounds function-call recursion as a configurable
	// ceiling; zero means the package default of 1000.
	MaxCallDepth int

	opts    shellOpts
	traps   map[string]string
	running map[string]bool // traps currently executing, to avoid re-entrant recursion

	cfg *expand.Config

	lastExit   int
	lastBgPID  int
	callDepth  int
	started    time.Time

	jobs *jobTable

	// alias is the alias table: name -> replacement words, applied once
	// at the first WORD of a simple command.
	alias map[string]aliasEntry

	// funcStack backs $FUNCNAME, a best-effort introspection aid: the
	// innermost-first stack of active function names.
	funcStack []string
	// ScriptName backs $BASH_SOURCE; set once at startup from the script
	// file argument, or left empty for -c/stdin sources.
	ScriptName string

	extraFD map[int]any

	// debug toggles
	trace traceFlags

	interactive bool
	exited      bool
}

// shellOpts is a fixed-size "set -o"/"shopt" boolean array, addressed by
// name through optIndexByName to keep `set -o` generic.
type shellOpts [len(optNames)]bool

const (
	optErrExit = iota
	optNoUnset
	optNoGlob
	optXTrace
	optPipefail
	optNoExec
	optVerbose
	optMonitor
	optAllExport
	optGlobStar
	optNullGlob
	optNoCaseGlob
	optDotGlob
	optNoClobber
	optExpandAliases
)

var optNames = [...]string{
	optErrExit:       "errexit",
	optNoUnset:       "nounset",
	optNoGlob:        "noglob",
	optXTrace:        "xtrace",
	optPipefail:      "pipefail",
	optNoExec:        "noexec",
	optVerbose:       "verbose",
	optMonitor:       "monitor",
	optAllExport:     "allexport",
	optGlobStar:      "globstar",
	optNullGlob:      "nullglob",
	optNoCaseGlob:    "nocaseglob",
	optDotGlob:       "dotglob",
	optNoClobber:     "noclobber",
	optExpandAliases: "expand_aliases",
}

// optIndexByName resolves a long option/shopt name ("errexit", "nullglob")
// to its slot in shellOpts, or -1 if unknown.
func optIndexByName(name string) int {
	for i, n := range optNames {
		if n == name {
			return i
		}
	}
	return -1
}

// SetOpt turns a `set -o`/`shopt -s`-style named option, or a single-letter
// `set -e`-style short option, on or off, reporting whether the name was
// recognized. This is what the CLI front end wires its command-line flags
// through, instead of reaching into Runner's unexported option array.
func (r *Runner) SetOpt(name string, on bool) bool {
	idx := -1
	if len(name) == 1 {
		idx = letterToOpt(name[0])
	}
	if idx < 0 {
		idx = optIndexByName(name)
	}
	if idx < 0 {
		return false
	}
	r.opts[idx] = on
	r.syncExpandOpts()
	return true
}

// Option configures a Runner at construction time.
type Option func(*Runner) error

// DebugTrace records the debug/introspection switches. Only scope has an
// effect in this package: traceScope writes scope events to stderr when
// it is set. tokens, ast and expand are stored but not read.
// (xtrace's command trace is the existing `set -x`/optXTrace switch.)
func DebugTrace(tokens, ast, expand, scope bool) Option {
	return func(r *Runner) error {
		r.trace.tokens, r.trace.ast, r.trace.expand, r.trace.scope = tokens, ast, expand, scope
		return nil
	}
}

// Interactive marks the Runner as driving an interactive session; the
// only behavior it changes is turning alias expansion (expand_aliases)
// on or off to match.
func Interactive(v bool) Option {
	return func(r *Runner) error {
		r.interactive = v
		r.opts[optExpandAliases] = v
		return nil
	}
}

// New builds a Runner with the process environment, current directory, and
// discard-output streams as fallbacks for anything Options didn't set.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		Funcs:        map[string]*syntax.Stmt{},
		MaxCallDepth: 1000,
		traps:        map[string]string{},
		running:      map[string]bool{},
		jobs:         newJobTable(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.Env == nil {
		r.Env = newScopeStack(expand.ListEnviron(os.Environ()...))
	}
	if r.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		r.Dir = wd
	}
	if r.Stdin == nil {
		r.Stdin = bytes.NewReader(nil)
	}
	if r.Stdout == nil {
		r.Stdout = io.Discard
	}
	if r.Stderr == nil {
		r.Stderr = io.Discard
	}
	r.started = time.Now()
	r.Env.dynamic = r.specialDynamic
	r.buildExpandConfig()
	return r, nil
}

// Env sets the starting variable environment.
func Env(env expand.Environ) Option {
	return func(r *Runner) error {
		r.Env = newScopeStack(env)
		return nil
	}
}

// Dir sets the starting working directory.
func Dir(path string) Option {
	return func(r *Runner) error {
		if path == "" {
			return nil
		}
		r.Dir = path
		return nil
	}
}

// Params sets $0 and the positional parameters.
func Params(args ...string) Option {
	return func(r *Runner) error {
		if len(args) > 0 {
			r.Name0 = args[0]
			r.Params = args[1:]
		}
		return nil
	}
}

// StdIO sets the three standard streams.
func StdIO(in io.Reader, out, errW io.Writer) Option {
	return func(r *Runner) error {
		r.Stdin, r.Stdout, r.Stderr = in, out, errW
		return nil
	}
}

func (r *Runner) buildExpandConfig() {
	r.cfg = &expand.Config{
		Env:      r.Env,
		Params:   r.Params,
		Name0:    r.Name0,
		ShellPID: os.Getpid(),
		Dir:      r.Dir,
		LastExitStatus: func() int { return r.lastExit },
		LastBgPID:      func() int { return r.lastBgPID },
		OptionString:   r.optionString,
		CmdSubst: func(w *strings.Builder, stmts []*syntax.Stmt) error {
			return r.captureOutput(w, stmts)
		},
		ProcSubst: r.runProcessSubstitution,
	}
	r.syncExpandOpts()
}

func (r *Runner) syncExpandOpts() {
	r.cfg.NoUnset = r.opts[optNoUnset]
	r.cfg.NoGlob = r.opts[optNoGlob]
	r.cfg.GlobStar = r.opts[optGlobStar]
	r.cfg.NullGlob = r.opts[optNullGlob]
	r.cfg.NoCaseGlob = r.opts[optNoCaseGlob]
}

func (r *Runner) optionString() string {
	var b strings.Builder
	letters := map[int]byte{optErrExit: 'e', optNoUnset: 'u', optXTrace: 'x', optNoGlob: 'f', optMonitor: 'm', optVerbose: 'v'}
	for idx, ch := range letters {
		if r.opts[idx] {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// Run executes an already parsed file and then its EXIT trap. It does not
// reset $? or other per-run state; Reset does that. It returns the
// ExitStatus of the last command executed, matching the shell's own
// exit-status contract.
func (r *Runner) Run(ctx context.Context, file *syntax.File) error {
	err := r.stmts(ctx, file.Stmts)
	r.runTrap(ctx, "EXIT")
	if ex, ok := asExit(err); ok {
		r.exited = true
		r.lastExit = ex
		return ExitStatus(ex)
	}
	return ExitStatus(r.lastExit)
}

// Exited reports whether an `exit` builtin ran during a previous Run call.
// A REPL uses this to stop reading more input instead of prompting again
// after the user's script called exit explicitly.
func (r *Runner) Exited() bool { return r.exited }

// Reset clears the per-invocation state ($?, trap re-entrancy guards, and
// the exited flag) that should not survive into an unrelated top-level
// parse, the way a fresh shell process would start clean. Variables,
// functions, and options are untouched, since sourcing or re-running in
// the same session is meant to build on them, not discard them.
func (r *Runner) Reset() {
	r.lastExit = 0
	r.lastBgPID = 0
	r.exited = false
	r.callDepth = 0
	r.running = map[string]bool{}
}

// sub returns a child Runner sharing this Runner's configuration but with
// an isolated variable scope and positional parameters, used for subshells,
// command substitution, and pipeline stages: each gets a full copy of
// shell state so its mutations never propagate back to the parent. Go has
// no fork(), so instead of actually forking a process this recurses into a
// copy of the interpreter state within the same process.
func (r *Runner) sub() *Runner {
	r2 := *r
	cp := map[string]expand.Variable{}
	r.Env.Each(func(name string, vr expand.Variable) bool {
		cp[name] = vr
		return true
	})
	sub := &scopeStack{globals: cp, base: r.Env.base, dynamic: r.specialDynamic}
	r2.Env = sub
	r2.Funcs = map[string]*syntax.Stmt{}
	for k, v := range r.Funcs {
		r2.Funcs[k] = v
	}
	r2.traps = map[string]string{}
	for k, v := range r.traps {
		r2.traps[k] = v
	}
	r2.alias = map[string]aliasEntry{}
	for k, v := range r.alias {
		r2.alias[k] = v
	}
	r2.funcStack = append([]string(nil), r.funcStack...)
	r2.running = map[string]bool{}
	r2.jobs = newJobTable()
	r2.buildExpandConfig()
	r2.cfg.Params = append([]string(nil), r.Params...)
	return &r2
}

func (r *Runner) errf(format string, args ...any) {
	fmt.Fprintf(r.Stderr, format, args...)
}

func (r *Runner) captureOutput(w *strings.Builder, stmts []*syntax.Stmt) error {
	r2 := r.sub()
	var buf bytes.Buffer
	r2.Stdout = &buf
	err := r2.stmts(context.Background(), stmts)
	w.WriteString(strings.TrimRight(buf.String(), "\n"))
	if ex, ok := asExit(err); ok {
		r.lastExit = ex
		return nil
	}
	return err
}

// runProcessSubstitution implements "<(cmds)"/">(cmds)": the subprogram
// runs concurrently against one end of an OS pipe, and the expansion
// yields a /dev/fd-style path naming the other end.
func (r *Runner) runProcessSubstitution(ps *syntax.ProcessSubstitution) (string, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", err
	}
	r2 := r.sub()
	path := fmt.Sprintf("/dev/fd/%d", pr.Fd())
	switch ps.Op {
	case syntax.CmdIn:
		r2.Stdout = pw
		go func() {
			defer pw.Close()
			r2.stmts(context.Background(), ps.Stmts)
		}()
		path = fmt.Sprintf("/dev/fd/%d", pr.Fd())
		_ = pr
	case syntax.CmdOut:
		r2.Stdin = pr
		go func() {
			defer pr.Close()
			r2.stmts(context.Background(), ps.Stmts)
		}()
		path = fmt.Sprintf("/dev/fd/%d", pw.Fd())
		_ = pw
	}
	return path, nil
}

// specialDynamic backs $RANDOM, $SECONDS, $FUNCNAME and $BASH_SOURCE:
// all are dynamic, computed when read rather than stored.
func (r *Runner) specialDynamic(name string) (string, bool) {
	switch name {
	case "RANDOM":
		return strconv.Itoa(int(time.Now().UnixNano() % 32768)), true
	case "SECONDS":
		return strconv.Itoa(int(time.Since(r.started).Seconds())), true
	case "FUNCNAME":
		if len(r.funcStack) == 0 {
			return "", true
		}
		return r.funcStack[len(r.funcStack)-1], true
	case "BASH_SOURCE":
		if r.ScriptName == "" {
			return r.Name0, true
		}
		return r.ScriptName, true
	}
	return "", false
}
