package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/fileutil"
	"github.com/arrowshell/posh/pattern"
	"github.com/arrowshell/posh/syntax"
)

// Control-flow signals (break/continue/return/exit) are modeled as typed
// errors rather than a result enum so ordinary Go error propagation
// (defer, wrapping, errors.As) does the unwinding for us.
type breakSignal struct{ n int }

func (b breakSignal) Error() string { return "break" }

type continueSignal struct{ n int }

func (c continueSignal) Error() string { return "continue" }

type returnSignal struct{ status int }

func (r returnSignal) Error() string { return "return" }

type exitSignal struct{ status int }

func (e exitSignal) Error() string { return "exit" }

func asExit(err error) (int, bool) {
	var e exitSignal
	if errors.As(err, &e) {
		return e.status, true
	}
	var ex ExitStatus
	if errors.As(err, &ex) {
		return int(ex), true
	}
	return 0, false
}

// stmts executes a sequence of statements in order, starting any marked
// with "&" in the background instead of waiting for it.
func (r *Runner) stmts(ctx context.Context, list []*syntax.Stmt) error {
	var err error
	for _, stmt := range list {
		if stmt.Background {
			r.runBackground(stmt)
			continue
		}
		err = r.stmt(ctx, stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runBackground(stmt *syntax.Stmt) {
	sub := r.sub()
	done := make(chan int, 1)
	pid := r.jobs.nextID()
	r.lastBgPID = pid
	go func() {
		err := sub.stmt(context.Background(), stmt)
		status, _ := asExit(err)
		done <- status
	}()
	r.jobs.add(pid, done)
}

// stmt applies negation and redirections around a single command:
// redirections apply in order, and a saved-fd table restores state
// when the command returns.
func (r *Runner) stmt(ctx context.Context, stmt *syntax.Stmt) error {
	r.runTrap(ctx, "DEBUG")

	for _, as := range stmt.Assigns {
		// This loop has no effect: assignments are applied below when
		// Cmd is nil, and by simpleCommand otherwise.
		_ = as
	}

	restore, err := r.pushRedirs(stmt.Redirs)
	if err != nil {
		r.errf("%v\n", err)
		r.setExit(1)
		return r.exemptErrexit(stmt, nil)
	}
	defer restore()

	var cmdErr error
	if stmt.Cmd == nil {
		cmdErr = r.applyAssigns(stmt.Assigns, false)
	} else {
		cmdErr = r.cmd(ctx, stmt.Cmd, stmt)
	}

	if stmt.Negated {
		if cmdErr == nil {
			r.setExit(boolToStatus(r.lastExit != 0, true))
		}
	}
	return r.exemptErrexit(stmt, cmdErr)
}

// exemptErrexit decides whether a non-zero status from this statement
// should terminate the shell under `set -e`. errexit exemptions: operand
// of "!", non-last of "&&"/"||", if/while/until test.
func (r *Runner) exemptErrexit(stmt *syntax.Stmt, err error) error {
	if _, ok := asExit(err); ok {
		return err
	}
	if err != nil {
		return err
	}
	if !r.opts[optErrExit] || stmt.Negated {
		return nil
	}
	if r.lastExit != 0 {
		r.runTrap(context.Background(), "ERR")
		return exitSignal{status: r.lastExit}
	}
	return nil
}

func boolToStatus(cond, invert bool) int {
	v := 0
	if cond {
		v = 1
	}
	if invert {
		if v == 0 {
			return 1
		}
		return 0
	}
	return v
}

func (r *Runner) setExit(n int) { r.lastExit = n }

// cmd dispatches on the Command's concrete type.
func (r *Runner) cmd(ctx context.Context, cmd syntax.Command, stmt *syntax.Stmt) error {
	switch x := cmd.(type) {
	case *syntax.SimpleCommand:
		return r.simpleCommand(ctx, stmt, x)
	case *syntax.Pipeline:
		return r.runPipeline(ctx, x)
	case *syntax.AndOrList:
		return r.andOrList(ctx, x)
	case *syntax.Subshell:
		return r.subshell(ctx, x)
	case *syntax.BraceGroup:
		return r.inExemptContext(func() error { return r.stmts(ctx, x.Stmts) })
	case *syntax.If:
		return r.ifClause(ctx, x)
	case *syntax.While:
		return r.whileClause(ctx, x, false)
	case *syntax.Until:
		return r.whileClause(ctx, &syntax.While{Cond: x.Cond, Do: x.Do}, true)
	case *syntax.For:
		return r.forClause(ctx, x)
	case *syntax.Case:
		return r.caseClause(ctx, x)
	case *syntax.Select:
		return r.selectClause(ctx, x)
	case *syntax.FunctionDef:
		r.Funcs[x.Name.Value] = x.Body
		r.setExit(0)
		return nil
	case *syntax.ArithmeticCommand:
		n, err := r.cfg.Arithm(x.X)
		if err != nil {
			return r.arithErr(err)
		}
		r.setExit(boolToStatus(n == 0, false))
		return nil
	case *syntax.ConditionalExpression:
		status, err := r.evalTest(ctx, x.X)
		if err != nil {
			return r.arithErr(err)
		}
		r.setExit(status)
		return nil
	default:
		return fmt.Errorf("unsupported command: %T", cmd)
	}
}

func (r *Runner) arithErr(err error) error {
	r.errf("%v\n", err)
	r.setExit(1)
	return nil
}

// inExemptContext runs fn without letting its own errexit decision escape
// beyond what its caller (stmt) will re-evaluate; compound commands delegate
// the exemption entirely to their constituent stmt() calls.
func (r *Runner) inExemptContext(fn func() error) error { return fn() }

func (r *Runner) andOrList(ctx context.Context, a *syntax.AndOrList) error {
	if err := r.runPipeline(ctx, a.First); err != nil {
		return err
	}
	for _, part := range a.Rest {
		if part.And && r.lastExit != 0 {
			continue
		}
		if !part.And && r.lastExit == 0 {
			continue
		}
		if err := r.runPipeline(ctx, part.X); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runPipeline(ctx context.Context, p *syntax.Pipeline) error {
	if len(p.Stages) == 1 {
		err := r.stmt(ctx, p.Stages[0])
		if p.Negated {
			r.setExit(boolToStatus(r.lastExit != 0, true))
		}
		return err
	}
	n := len(p.Stages)
	readers := make([]*io.PipeReader, n-1)
	writers := make([]*io.PipeWriter, n-1)
	for i := range readers {
		readers[i], writers[i] = io.Pipe()
	}
	statuses := make([]int, n)
	// Each stage runs concurrently under one errgroup; stage failures
	// surface as exit statuses rather than Go errors, so the group's own
	// error return goes unused, but its goroutine bookkeeping (Wait,
	// context propagation) is what every stage launch shares.
	g, gctx := errgroup.WithContext(ctx)
	for i, stage := range p.Stages {
		i, stage := i, stage
		g.Go(func() error {
			sub := r.sub()
			if i > 0 {
				sub.Stdin = readers[i-1]
			}
			if i < n-1 {
				sub.Stdout = writers[i]
			}
			if p.PipeAll && i < n-1 {
				sub.Stderr = writers[i]
			}
			err := sub.stmt(gctx, stage)
			if i > 0 {
				readers[i-1].Close()
			}
			if i < n-1 {
				writers[i].Close()
			}
			status, _ := asExit(err)
			if status == 0 {
				status = sub.lastExit
			}
			statuses[i] = status
			return nil
		})
	}
	g.Wait()
	status := statuses[n-1]
	if r.opts[optPipefail] {
		status = 0
		for _, s := range statuses {
			if s != 0 {
				status = s
			}
		}
	}
	if p.Negated {
		status = boolToStatus(status != 0, true)
	}
	r.setExit(status)
	return nil
}

func (r *Runner) subshell(ctx context.Context, s *syntax.Subshell) error {
	sub := r.sub()
	err := sub.stmts(ctx, s.Stmts)
	status, isExit := asExit(err)
	r.setExit(sub.lastExit)
	if isExit {
		r.setExit(status)
	}
	return nil
}

func (r *Runner) ifClause(ctx context.Context, c *syntax.If) error {
	if err := r.stmts(ctx, c.Cond); err != nil {
		return err
	}
	if r.lastExit == 0 {
		return r.stmts(ctx, c.Then)
	}
	for _, elif := range c.Elifs {
		if err := r.stmts(ctx, elif.Cond); err != nil {
			return err
		}
		if r.lastExit == 0 {
			return r.stmts(ctx, elif.Then)
		}
	}
	if c.Else != nil {
		return r.stmts(ctx, c.Else)
	}
	r.setExit(0)
	return nil
}

func (r *Runner) whileClause(ctx context.Context, w *syntax.While, until bool) error {
	for {
		if err := r.stmts(ctx, w.Cond); err != nil {
			return err
		}
		cond := r.lastExit == 0
		if until {
			cond = !cond
		}
		if !cond {
			break
		}
		if err := r.stmts(ctx, w.Do); err != nil {
			if b, ok := err.(breakSignal); ok {
				if b.n > 1 {
					return breakSignal{n: b.n - 1}
				}
				break
			}
			if c, ok := err.(continueSignal); ok {
				if c.n > 1 {
					return continueSignal{n: c.n - 1}
				}
				continue
			}
			return err
		}
	}
	r.setExit(0)
	return nil
}

func (r *Runner) forClause(ctx context.Context, f *syntax.For) error {
	runBody := func() (brk bool, err error) {
		if err := r.stmts(ctx, f.Do); err != nil {
			if b, ok := err.(breakSignal); ok {
				if b.n > 1 {
					return true, breakSignal{n: b.n - 1}
				}
				return true, nil
			}
			if c, ok := err.(continueSignal); ok {
				if c.n > 1 {
					return true, continueSignal{n: c.n - 1}
				}
				return false, nil
			}
			return true, err
		}
		return false, nil
	}
	switch loop := f.Loop.(type) {
	case *syntax.WordIter:
		items := loop.Items
		var words []*syntax.Word
		if loop.InPos == 0 {
			for i := range r.Params {
				words = append(words, wrapArithWord(r.Params[i]))
			}
		} else {
			for i := range items {
				words = append(words, &items[i])
			}
		}
		fields, err := r.cfg.Fields(words...)
		if err != nil {
			return r.arithErr(err)
		}
		for _, val := range fields {
			if err := r.Env.Set(loop.Name.Value, expand.Variable{Set: true, Kind: expand.String, Str: val}); err != nil {
				r.errf("%v\n", err)
			}
			brk, err := runBody()
			if err != nil {
				return err
			}
			if brk {
				break
			}
		}
	case *syntax.CFor:
		if loop.Init != nil {
			if _, err := r.cfg.Arithm(loop.Init); err != nil {
				return r.arithErr(err)
			}
		}
		for {
			if loop.Cond != nil {
				n, err := r.cfg.Arithm(loop.Cond)
				if err != nil {
					return r.arithErr(err)
				}
				if n == 0 {
					break
				}
			}
			brk, err := runBody()
			if err != nil {
				return err
			}
			if brk {
				break
			}
			if loop.Post != nil {
				if _, err := r.cfg.Arithm(loop.Post); err != nil {
					return r.arithErr(err)
				}
			}
		}
	}
	r.setExit(0)
	return nil
}

func (r *Runner) caseClause(ctx context.Context, c *syntax.Case) error {
	subj, err := r.cfg.Literal(&c.Word)
	if err != nil {
		return r.arithErr(err)
	}
	matched := false
	for _, item := range c.Items {
		if !matched {
			for _, pat := range item.Patterns {
				p, err := r.cfg.Pattern(&pat)
				if err != nil {
					return r.arithErr(err)
				}
				if globMatch(p, subj) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if err := r.stmts(ctx, item.Stmts); err != nil {
			return err
		}
		switch item.Term {
		case syntax.CaseBreak:
			return nil
		case syntax.CaseFall:
			continue
		case syntax.CaseTestFall:
			matched = false
			continue
		}
	}
	r.setExit(0)
	return nil
}

func (r *Runner) selectClause(ctx context.Context, s *syntax.Select) error {
	var words []*syntax.Word
	for i := range s.Items {
		words = append(words, &s.Items[i])
	}
	items, err := r.cfg.Fields(words...)
	if err != nil {
		return r.arithErr(err)
	}
	br := bufioReader(r.Stdin)
	for {
		r.printMenu(items)
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if err != nil && line == "" {
			r.setExit(1)
			return nil
		}
		r.Env.Set("REPLY", expand.Variable{Set: true, Kind: expand.String, Str: line})
		if line == "" {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		val := ""
		if convErr == nil && n >= 1 && n <= len(items) {
			val = items[n-1]
		}
		r.Env.Set(s.Name.Value, expand.Variable{Set: true, Kind: expand.String, Str: val})
		if err := r.stmts(ctx, s.Do); err != nil {
			if b, ok := err.(breakSignal); ok {
				if b.n > 1 {
					return breakSignal{n: b.n - 1}
				}
				break
			}
			if _, ok := err.(continueSignal); ok {
				continue
			}
			return err
		}
	}
	r.setExit(0)
	return nil
}

func (r *Runner) printMenu(items []string) {
	ps3 := r.Env.Get("PS3").String()
	if ps3 == "" {
		ps3 = "#? "
	}
	for i, it := range items {
		fmt.Fprintf(r.Stderr, "%d) %s\n", i+1, it)
	}
	fmt.Fprint(r.Stderr, ps3)
}

// simpleCommand expands and runs a simple command: alias expansion,
// word expansion, assignment application, and function, builtin or
// external dispatch. Redirections are set up and restored by stmt.
func (r *Runner) simpleCommand(ctx context.Context, stmt *syntax.Stmt, sc *syntax.SimpleCommand) error {
	var words []*syntax.Word
	for i := range sc.Args {
		words = append(words, &sc.Args[i])
	}
	words = r.expandAliases(words)
	args, err := r.cfg.Fields(words...)
	if err != nil {
		r.errf("%v\n", err)
		r.setExit(1)
		return nil
	}

	if len(args) == 0 {
		if err := r.applyAssigns(stmt.Assigns, false); err != nil {
			r.errf("%v\n", err)
			r.setExit(1)
		}
		return nil
	}

	r.traceCommand(args)

	name, rest := args[0], args[1:]

	if body, ok := r.Funcs[name]; ok {
		return r.callFunction(ctx, name, body, rest)
	}

	if isSpecialBuiltin(name) {
		if err := r.applyAssigns(stmt.Assigns, false); err != nil {
			r.errf("%v\n", err)
		}
		status, err := r.runBuiltin(ctx, name, rest)
		if err != nil {
			return err
		}
		r.setExit(status)
		return nil
	}

	if fn, ok := builtins[name]; ok {
		pushed := len(stmt.Assigns) > 0
		if pushed {
			r.Env.pushFrame()
			if err := r.applyAssigns(stmt.Assigns, true); err != nil {
				r.errf("%v\n", err)
			}
		}
		status := fn(ctx, r, rest)
		if pushed {
			r.Env.popFrame()
		}
		r.setExit(status)
		return nil
	}

	return r.runExternal(ctx, name, rest, stmt)
}

func (r *Runner) applyAssigns(assigns []*syntax.Assign, localScope bool) error {
	for _, as := range assigns {
		if as.Index != nil {
			if err := r.setIndexed(as); err != nil {
				return err
			}
			continue
		}
		vr, err := r.assignValue(as)
		if err != nil {
			return err
		}
		if err := r.Env.Set(as.Name.Value, vr); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runExternal(ctx context.Context, name string, args []string, stmt *syntax.Stmt) error {
	path, err := r.lookPath(name)
	if err != nil {
		r.errf("%s: %v\n", name, err)
		r.setExit(127)
		return nil
	}
	if !fileutil.IsExecutable(path) {
		r.errf("%s: permission denied\n", name)
		r.setExit(126)
		return nil
	}

	env := os.Environ()[:0]
	r.Env.Each(func(n string, vr expand.Variable) bool {
		if vr.Exported {
			env = append(env, n+"="+vr.String())
		}
		return true
	})
	for _, as := range stmt.Assigns {
		vr := r.Env.Get(as.Name.Value)
		env = append(env, as.Name.Value+"="+vr.String())
	}

	c := exec.CommandContext(ctx, path, args...)
	c.Args[0] = name
	c.Env = env
	c.Dir = r.Dir
	c.Stdin, c.Stdout, c.Stderr = r.Stdin, r.Stdout, r.Stderr

	err = c.Run()
	switch e := err.(type) {
	case nil:
		r.setExit(0)
	case *exec.ExitError:
		if ws, ok := e.Sys().(interface{ ExitStatus() int }); ok {
			r.setExit(ws.ExitStatus())
		} else {
			r.setExit(1)
		}
	default:
		r.errf("%s: %v\n", name, err)
		r.setExit(126)
	}
	return nil
}

func (r *Runner) lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	pathVar := r.Env.Get("PATH").String()
	if pathVar == "" {
		pathVar = os.Getenv("PATH")
	}
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			dir = "."
		}
		cand := filepath.Join(dir, name)
		if fi, err := os.Stat(cand); err == nil && !fi.IsDir() {
			return cand, nil
		}
	}
	return "", fmt.Errorf("command not found")
}

// callFunction activates a function: push a scope frame, rebind
// $0/positional parameters, run the body, and consume a Return signal
// as the function's own exit status.
func (r *Runner) callFunction(ctx context.Context, name string, body *syntax.Stmt, args []string) error {
	maxDepth := r.MaxCallDepth
	if maxDepth == 0 {
		maxDepth = 1000
	}
	if r.callDepth >= maxDepth {
		r.errf("%s: maximum function nesting level exceeded\n", name)
		r.setExit(1)
		return nil
	}
	r.callDepth++
	defer func() { r.callDepth-- }()

	r.Env.pushFrame()
	prevParams, prevName0 := r.Params, r.Name0
	r.Params, r.Name0 = args, name
	r.cfg.Params, r.cfg.Name0 = args, name
	r.funcStack = append(r.funcStack, name)

	err := r.stmt(ctx, body)

	r.funcStack = r.funcStack[:len(r.funcStack)-1]
	r.Env.popFrame()
	r.Params, r.Name0 = prevParams, prevName0
	r.cfg.Params, r.cfg.Name0 = prevParams, prevName0
	r.runTrap(ctx, "RETURN")

	if ret, ok := err.(returnSignal); ok {
		r.setExit(ret.status)
		return nil
	}
	return err
}

// Eval re-lexes and re-parses src (the concatenation of `eval`'s
// arguments, or a trap action) and executes it in the current shell.
func (r *Runner) Eval(ctx context.Context, src string) error {
	f, err := syntax.Parse([]byte(src), "", 0)
	if err != nil {
		r.errf("%v\n", err)
		r.setExit(2)
		return nil
	}
	return r.stmts(ctx, f.Stmts)
}

func bufioReader(r io.Reader) *lineReader { return &lineReader{r: r} }

// lineReader reads one byte at a time so interleaved reads (heredocs,
// `read`, `select`) never consume past a newline into the next command's
// input, matching how a real shell reads its script source.
type lineReader struct {
	r   io.Reader
	buf [1]byte
}

func (l *lineReader) ReadString(delim byte) (string, error) {
	var b bytes.Buffer
	for {
		n, err := l.r.Read(l.buf[:])
		if n > 0 {
			b.WriteByte(l.buf[0])
			if l.buf[0] == delim {
				return b.String(), nil
			}
		}
		if err != nil {
			return b.String(), err
		}
	}
}

func globMatch(pat, s string) bool {
	expr, err := pattern.Regexp(pat, pattern.EntireString)
	if err != nil {
		return pat == s
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return pat == s
	}
	return rx.MatchString(s)
}
