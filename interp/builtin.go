package interp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/syntax"
)

// isSpecialBuiltin reports whether name is one of POSIX's special
// builtins: these run in the caller's own scope (no new frame) and any
// assignment prefix on their command line persists past the command.
func isSpecialBuiltin(name string) bool {
	switch name {
	case ":", ".", "source", "break", "continue", "eval", "exec", "exit",
		"export", "readonly", "return", "set", "shift", "trap", "unset", "local":
		return true
	}
	return false
}

// runBuiltin dispatches the special builtins, which need direct access to
// control-flow signals and the current (non-snapshotted) scope.
func (r *Runner) runBuiltin(ctx context.Context, name string, args []string) (int, error) {
	switch name {
	case ":":
		return 0, nil
	case "eval":
		src := strings.Join(args, " ")
		if err := r.Eval(ctx, src); err != nil {
			return 0, err
		}
		return r.lastExit, nil
	case ".", "source":
		if len(args) == 0 {
			return 1, nil
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			r.errf("%s: %v\n", name, err)
			return 1, nil
		}
		f, err := syntax.Parse(data, args[0], 0)
		if err != nil {
			r.errf("%s: %v\n", name, err)
			return 2, nil
		}
		prevParams := r.Params
		if len(args) > 1 {
			r.Params = args[1:]
		}
		err = r.stmts(ctx, f.Stmts)
		r.Params = prevParams
		if err != nil {
			return 0, err
		}
		return r.lastExit, nil
	case "exec":
		if len(args) == 0 {
			return 0, nil
		}
		stmt := &syntax.Stmt{Cmd: &syntax.SimpleCommand{Args: argWords(args)}}
		return 0, r.cmd(ctx, stmt.Cmd, stmt)
	case "exit":
		status := r.lastExit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err == nil {
				status = n
			}
		}
		return 0, exitSignal{status: status}
	case "return":
		status := r.lastExit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err == nil {
				status = n
			}
		}
		return 0, returnSignal{status: status}
	case "break":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
				n = v
			}
		}
		return 0, breakSignal{n: n}
	case "continue":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
				n = v
			}
		}
		return 0, continueSignal{n: n}
	case "shift":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		if n > len(r.Params) {
			return 1, nil
		}
		r.Params = r.Params[n:]
		r.cfg.Params = r.Params
		return 0, nil
	case "export":
		return r.builtinExport(args), nil
	case "readonly":
		return r.builtinReadonly(args), nil
	case "local":
		return r.builtinLocal(args), nil
	case "unset":
		for _, name := range args {
			if name == "-f" || name == "-v" {
				continue
			}
			delete(r.Funcs, name)
			if err := r.Env.unset(name); err != nil {
				r.errf("%v\n", err)
				return 1, nil
			}
		}
		return 0, nil
	case "set":
		return r.builtinSet(args), nil
	case "trap":
		return r.builtinTrap(args), nil
	}
	return 0, fmt.Errorf("unimplemented special builtin: %s", name)
}

func argWords(args []string) []syntax.Word {
	out := make([]syntax.Word, len(args))
	for i, a := range args {
		out[i] = *wrapArithWord(a)
	}
	return out
}

func (r *Runner) builtinExport(args []string) int {
	if len(args) == 0 || args[0] == "-p" {
		r.Env.Each(func(name string, vr expand.Variable) bool {
			if vr.Exported {
				fmt.Fprintf(r.Stdout, "export %s=%s\n", name, vr.String())
			}
			return true
		})
		return 0
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		vr := r.Env.Get(name)
		vr.Exported = true
		if hasVal {
			vr.Set, vr.Kind, vr.Str = true, expand.String, val
		}
		if err := r.Env.Set(name, vr); err != nil {
			r.errf("%v\n", err)
			return 1
		}
	}
	return 0
}

func (r *Runner) builtinReadonly(args []string) int {
	if len(args) == 0 {
		r.Env.Each(func(name string, vr expand.Variable) bool {
			if vr.ReadOnly {
				fmt.Fprintf(r.Stdout, "readonly %s=%s\n", name, vr.String())
			}
			return true
		})
		return 0
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		vr := r.Env.Get(name)
		vr.ReadOnly = true
		if hasVal {
			vr.Set, vr.Kind, vr.Str = true, expand.String, val
		}
		if err := r.Env.Set(name, vr); err != nil {
			r.errf("%v\n", err)
			return 1
		}
	}
	return 0
}

func (r *Runner) builtinLocal(args []string) int {
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		vr := expand.Variable{Kind: expand.String}
		if hasVal {
			vr.Set, vr.Str = true, val
		}
		if err := r.Env.setLocal(name, vr); err != nil {
			r.errf("%v\n", err)
			return 1
		}
	}
	return 0
}

func (r *Runner) builtinSet(args []string) int {
	for i := 0; i < len(args); i++ {
		a := args[i]
		plus := strings.HasPrefix(a, "+")
		on := strings.HasPrefix(a, "-")
		if !plus && !on {
			continue
		}
		body := a[1:]
		if body == "o" {
			// "-o name" / "+o name": the option name is the next argv slot.
			if i+1 >= len(args) {
				continue
			}
			i++
			if idx := optIndexByName(args[i]); idx >= 0 {
				r.opts[idx] = on
			}
			continue
		}
		for _, ch := range body {
			idx := letterToOpt(byte(ch))
			if idx >= 0 {
				r.opts[idx] = on
			}
		}
	}
	r.syncExpandOpts()
	return 0
}

func letterToOpt(ch byte) int {
	switch ch {
	case 'e':
		return optErrExit
	case 'u':
		return optNoUnset
	case 'f':
		return optNoGlob
	case 'x':
		return optXTrace
	case 'v':
		return optVerbose
	case 'm':
		return optMonitor
	case 'a':
		return optAllExport
	}
	return -1
}

func (r *Runner) builtinTrap(args []string) int {
	if len(args) == 0 || args[0] == "-p" {
		for name, action := range r.traps {
			fmt.Fprintf(r.Stdout, "trap -- %q %s\n", action, name)
		}
		return 0
	}
	if args[0] == "-l" {
		names := make([]string, 0, len(signalNames))
		for name := range signalNames {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(r.Stdout, strings.Join(names, " "))
		return 0
	}
	action, names := args[0], args[1:]
	for _, name := range names {
		if action == "-" {
			delete(r.traps, name)
			continue
		}
		r.traps[name] = action
	}
	return 0
}

// builtins is the ordinary-builtin registry: each runs in the current
// shell, inside a frame holding its assignment prefixes (popped when it
// returns), and reports its status through its int return.
var builtins = map[string]func(ctx context.Context, r *Runner, args []string) int{
	"true":    func(ctx context.Context, r *Runner, args []string) int { return 0 },
	"false":   func(ctx context.Context, r *Runner, args []string) int { return 1 },
	"cd":      builtinCd,
	"pwd":     builtinPwd,
	"echo":    builtinEcho,
	"printf":  builtinPrintf,
	"read":    builtinRead,
	"test":    builtinTest,
	"[":       builtinTest,
	"wait":    builtinWait,
	"jobs":    builtinJobs,
	"fg":      builtinFgBg,
	"bg":      builtinFgBg,
	"type":    builtinType,
	"hash":    func(ctx context.Context, r *Runner, args []string) int { return 0 },
	"getopts": builtinGetopts,
	"declare": builtinDeclare,
	"typeset": builtinDeclare,
	"kill":    builtinKill,
	"shopt":   builtinShopt,
	"command": builtinCommand,
	"umask":   builtinUmask,
	"alias":   builtinAlias,
	"unalias": builtinUnalias,
}

func builtinCd(ctx context.Context, r *Runner, args []string) int {
	dir := r.Env.Get("HOME").String()
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		r.errf("cd: HOME not set\n")
		return 1
	}
	if !strings.HasPrefix(dir, "/") {
		dir = r.Dir + "/" + dir
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		r.errf("cd: %s: not a directory\n", dir)
		return 1
	}
	r.Env.Set("OLDPWD", expand.Variable{Set: true, Kind: expand.String, Str: r.Dir})
	r.Dir = dir
	r.cfg.Dir = dir
	r.Env.Set("PWD", expand.Variable{Set: true, Kind: expand.String, Str: dir})
	return 0
}

func builtinPwd(ctx context.Context, r *Runner, args []string) int {
	fmt.Fprintln(r.Stdout, r.Dir)
	return 0
}

func builtinEcho(ctx context.Context, r *Runner, args []string) int {
	noNewline := false
	interpret := false
	for len(args) > 0 {
		switch args[0] {
		case "-n":
			noNewline = true
		case "-e":
			interpret = true
		case "-E":
			interpret = false
		default:
			goto done
		}
		args = args[1:]
	}
done:
	out := strings.Join(args, " ")
	if interpret {
		out, _ = interpBackslashes(out)
	}
	fmt.Fprint(r.Stdout, out)
	if !noNewline {
		fmt.Fprintln(r.Stdout)
	}
	return 0
}

func interpBackslashes(s string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case 'c':
			return b.String(), true
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String(), false
}

func builtinRead(ctx context.Context, r *Runner, args []string) int {
	raw := false
	prompt := ""
	var names []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-r":
			raw = true
		case "-p":
			i++
			if i < len(args) {
				prompt = args[i]
			}
		case "-a":
			i++
			if i < len(args) {
				names = append(names, args[i])
			}
		default:
			names = append(names, args[i])
		}
	}
	if prompt != "" {
		fmt.Fprint(r.Stderr, prompt)
	}
	br := bufioReader(r.Stdin)
	line, err := br.ReadString('\n')
	line = strings.TrimRight(line, "\n")
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	fields := r.cfg.ReadFields(line, len(names), raw)
	for i, name := range names {
		val := ""
		if i < len(fields) {
			val = fields[i]
		}
		r.Env.Set(name, expand.Variable{Set: true, Kind: expand.String, Str: val})
	}
	if err != nil && line == "" {
		return 1
	}
	return 0
}

func builtinTest(ctx context.Context, r *Runner, args []string) int {
	if len(args) > 0 && args[len(args)-1] == "]" {
		args = args[:len(args)-1]
	}
	expr, err := parsePosixTest(args)
	if err != nil {
		r.errf("test: %v\n", err)
		return 2
	}
	ok, err := r.testBool(expr)
	if err != nil {
		r.errf("test: %v\n", err)
		return 2
	}
	return boolToStatus(ok, true)
}

// parsePosixTest builds a syntax.TestExpr out of test/[ argv the same shape
// the conditional-expression evaluator already understands, so "test"/"["
// and "[[ ]]" share one evaluator.
func parsePosixTest(args []string) (syntax.TestExpr, error) {
	lit := func(s string) *syntax.Word { return wrapArithWord(s) }
	switch len(args) {
	case 0:
		return lit(""), nil
	case 1:
		return lit(args[0]), nil
	case 2:
		if op, ok := unOps[args[0]]; ok {
			return &syntax.UnaryTest{Op: op, X: lit(args[1])}, nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", args[0])
	case 3:
		if args[0] == "!" {
			expr, err := parsePosixTest(args[1:])
			if err != nil {
				return nil, err
			}
			return &syntax.NotTest{X: expr}, nil
		}
		if op, ok := binOps[args[1]]; ok {
			return &syntax.BinaryTest{Op: op, X: lit(args[0]), Y: lit(args[2])}, nil
		}
		return nil, fmt.Errorf("unknown binary operator %q", args[1])
	default:
		return nil, fmt.Errorf("too many arguments")
	}
}

var unOps = map[string]syntax.UnTestOperator{
	"-e": syntax.TestExists, "-f": syntax.TestRegFile, "-d": syntax.TestDir,
	"-c": syntax.TestCharDev, "-b": syntax.TestBlockDev, "-p": syntax.TestNamedPipe,
	"-S": syntax.TestSocket, "-L": syntax.TestSymlink, "-h": syntax.TestSymlink,
	"-g": syntax.TestGIDSet, "-u": syntax.TestUIDSet, "-k": syntax.TestSticky,
	"-r": syntax.TestReadable, "-w": syntax.TestWritable, "-x": syntax.TestExecutable,
	"-s": syntax.TestNonEmpty, "-t": syntax.TestTerminal,
	"-z": syntax.TestEmptyStr, "-n": syntax.TestNonEmptyStr,
	"-o": syntax.TestOptSet, "-v": syntax.TestVarSet, "-R": syntax.TestNameRef,
	"-O": syntax.TestOwnedByUID, "-G": syntax.TestOwnedByGID, "-N": syntax.TestModifiedSinceRead,
}

var binOps = map[string]syntax.BinTestOperator{
	"=": syntax.TestStrEq, "==": syntax.TestStrEq, "!=": syntax.TestStrNe,
	"<": syntax.TestStrLt, ">": syntax.TestStrGt,
	"-nt": syntax.TestNewer, "-ot": syntax.TestOlder, "-ef": syntax.TestSameFile,
	"-eq": syntax.TestNumEq, "-ne": syntax.TestNumNe, "-le": syntax.TestNumLe,
	"-ge": syntax.TestNumGe, "-lt": syntax.TestNumLt, "-gt": syntax.TestNumGt,
}

func builtinWait(ctx context.Context, r *Runner, args []string) int {
	if len(args) == 0 {
		return r.jobs.waitAll()
	}
	status := 0
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			continue
		}
		if s, ok := r.jobs.wait(n); ok {
			status = s
		}
	}
	return status
}

func builtinJobs(ctx context.Context, r *Runner, args []string) int {
	for _, j := range r.jobs.list() {
		state := "Running"
		if j.exited {
			state = fmt.Sprintf("Done(%d)", j.status)
		}
		fmt.Fprintf(r.Stdout, "[%d]  %s\n", j.id, state)
	}
	return 0
}

// builtinFgBg is a documented no-op beyond status reporting: this runner has
// no real process group to hand the terminal to (see jobTable's doc comment).
func builtinFgBg(ctx context.Context, r *Runner, args []string) int {
	r.errf("no job control in this shell\n")
	return 1
}

// builtinKill delivers a signal to a raw PID. Unlike bash, job specs (%1)
// aren't accepted: jobTable tracks goroutines, not OS processes, so
// there is no PID on file to resolve a job spec to (see jobTable's doc
// comment on the same simplification for fg/bg).
func builtinKill(ctx context.Context, r *Runner, args []string) int {
	sig := sigTERM
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		spec := args[i][1:]
		if spec == "s" && i+1 < len(args) {
			i++
			spec = args[i]
		}
		if spec == "l" {
			names := make([]string, 0, len(signalNames))
			for name := range signalNames {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(r.Stdout, strings.Join(names, " "))
			return 0
		}
		n, ok := signalByName(spec)
		if !ok {
			r.errf("kill: %s: invalid signal specification\n", args[i])
			return 1
		}
		sig = n
		i++
	}
	if i == len(args) {
		r.errf("kill: usage: kill [-s sigspec | -signum] pid...\n")
		return 2
	}
	status := 0
	for _, a := range args[i:] {
		if strings.HasPrefix(a, "%") {
			r.errf("kill: %s: job specs are not supported, use a PID\n", a)
			status = 1
			continue
		}
		pid, err := strconv.Atoi(a)
		if err != nil {
			r.errf("kill: %s: arguments must be process IDs\n", a)
			status = 1
			continue
		}
		if err := sendSignal(pid, sig); err != nil {
			r.errf("kill: (%d): %v\n", pid, err)
			status = 1
		}
	}
	return status
}

// builtinShopt implements the subset of bash's shopt this interpreter
// tracks through shellOpts: dotglob, nullglob, nocaseglob, and globstar.
// With no -s/-u it reports the current state of every known shopt name,
// the way `shopt` with no arguments does.
func builtinShopt(ctx context.Context, r *Runner, args []string) int {
	var mode string // "-s", "-u", or "" (query)
	var names []string
	quiet := false
	for _, a := range args {
		switch a {
		case "-s", "-u":
			mode = a
		case "-q":
			// quiet query mode: suppress listing, still reflected in status
			quiet = true
		default:
			names = append(names, a)
		}
	}
	shoptNames := []string{"dotglob", "nullglob", "nocaseglob", "globstar"}
	if len(names) == 0 {
		names = shoptNames
	}
	status := 0
	for _, name := range names {
		idx := optIndexByName(name)
		if idx < 0 {
			r.errf("shopt: %s: invalid shell option name\n", name)
			status = 1
			continue
		}
		switch mode {
		case "-s":
			r.opts[idx] = true
		case "-u":
			r.opts[idx] = false
		default:
			state := "off"
			if r.opts[idx] {
				state = "on"
			} else {
				status = 1
			}
			if !quiet {
				fmt.Fprintf(r.Stdout, "%s\t%s\n", name, state)
			}
		}
	}
	if mode != "" {
		r.syncExpandOpts()
	}
	return status
}

// builtinCommand runs name bypassing function lookup (the "command"
// escape hatch), or with -v/-V reports how name would resolve without
// running it.
func builtinCommand(ctx context.Context, r *Runner, args []string) int {
	verbose := false
	for len(args) > 0 && (args[0] == "-v" || args[0] == "-V" || args[0] == "-p") {
		if args[0] == "-v" || args[0] == "-V" {
			verbose = true
		}
		args = args[1:]
	}
	if len(args) == 0 {
		return 0
	}
	name, rest := args[0], args[1:]
	if verbose {
		switch {
		case isSpecialBuiltin(name), builtins[name] != nil:
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
			return 0
		case r.Funcs[name] != nil:
			fmt.Fprintf(r.Stdout, "%s is a function\n", name)
			return 0
		default:
			path, err := r.lookPath(name)
			if err != nil {
				return 1
			}
			fmt.Fprintln(r.Stdout, path)
			return 0
		}
	}
	if isSpecialBuiltin(name) {
		status, err := r.runBuiltin(ctx, name, rest)
		if ex, ok := asExit(err); ok {
			return ex
		}
		return status
	}
	if fn, ok := builtins[name]; ok {
		return fn(ctx, r, rest)
	}
	if err := r.runExternal(ctx, name, rest, &syntax.Stmt{}); err != nil {
		return 1
	}
	return r.lastExit
}

// builtinUmask implements the creation-mode-mask builtin; with no operand
// it reports the current mask in octal, matching `umask` with no args.
func builtinUmask(ctx context.Context, r *Runner, args []string) int {
	if len(args) == 0 {
		old := getSetUmask(0)
		getSetUmask(old)
		fmt.Fprintf(r.Stdout, "%04o\n", old)
		return 0
	}
	n, err := strconv.ParseInt(args[0], 8, 32)
	if err != nil {
		r.errf("umask: %s: octal number required\n", args[0])
		return 1
	}
	getSetUmask(int(n))
	return 0
}

func builtinType(ctx context.Context, r *Runner, args []string) int {
	status := 0
	for _, name := range args {
		aliasEnt, isAlias := r.alias[name]
		switch {
		case isAlias:
			fmt.Fprintf(r.Stdout, "%s is aliased to `%s'\n", name, aliasEnt.raw)
		case r.Funcs[name] != nil:
			fmt.Fprintf(r.Stdout, "%s is a function\n", name)
		case isSpecialBuiltin(name), builtins[name] != nil:
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
		default:
			if path, err := r.lookPath(name); err == nil {
				fmt.Fprintf(r.Stdout, "%s is %s\n", name, path)
			} else {
				r.errf("%s: not found\n", name)
				status = 1
			}
		}
	}
	return status
}

func builtinGetopts(ctx context.Context, r *Runner, args []string) int {
	if len(args) < 2 {
		return 2
	}
	optstring, varName := args[0], args[1]
	operands := args[2:]
	optind := 1
	if v := r.Env.Get("OPTIND"); v.Set {
		if n, err := strconv.Atoi(v.String()); err == nil {
			optind = n
		}
	}
	if optind-1 >= len(operands) {
		r.Env.Set(varName, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		return 1
	}
	cur := operands[optind-1]
	if len(cur) < 2 || cur[0] != '-' {
		r.Env.Set(varName, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		return 1
	}
	opt := cur[1]
	idx := strings.IndexByte(optstring, opt)
	if idx < 0 {
		r.Env.Set(varName, expand.Variable{Set: true, Kind: expand.String, Str: "?"})
		r.Env.Set("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(optind + 1)})
		return 0
	}
	optind++
	if idx+1 < len(optstring) && optstring[idx+1] == ':' {
		if optind-1 < len(operands) {
			r.Env.Set("OPTARG", expand.Variable{Set: true, Kind: expand.String, Str: operands[optind-1]})
			optind++
		}
	}
	r.Env.Set(varName, expand.Variable{Set: true, Kind: expand.String, Str: string(opt)})
	r.Env.Set("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(optind)})
	return 0
}

func builtinDeclare(ctx context.Context, r *Runner, args []string) int {
	var global, array, assoc, nameref, integer, upper, lower, export, readonly bool
	var rest []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			for _, ch := range a[1:] {
				switch ch {
				case 'g':
					global = true
				case 'a':
					array = true
				case 'A':
					assoc = true
				case 'n':
					nameref = true
				case 'i':
					integer = true
				case 'u':
					upper = true
				case 'l':
					lower = true
				case 'x':
					export = true
				case 'r':
					readonly = true
				case 'p':
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	for _, a := range rest {
		name, val, hasVal := strings.Cut(a, "=")
		vr := r.Env.Get(name)
		vr.Integer, vr.CaseUpper, vr.CaseLower = integer, upper, lower
		vr.Exported = vr.Exported || export
		vr.ReadOnly = vr.ReadOnly || readonly
		switch {
		case nameref:
			vr.Kind, vr.Set = expand.NameRef, true
			if hasVal {
				vr.Str = val
			}
		case assoc:
			if vr.Kind != expand.Associative {
				vr.Kind, vr.Map, vr.MapKeys = expand.Associative, map[string]string{}, nil
			}
			vr.Set = true
		case array:
			if vr.Kind != expand.Indexed {
				vr.Kind = expand.Indexed
			}
			vr.Set = true
		case hasVal:
			vr.Set, vr.Kind, vr.Str = true, expand.String, applyCaseAttr(val, upper, lower)
		default:
			if vr.Kind == expand.Unknown {
				vr.Kind = expand.String
			}
		}
		var err error
		if global {
			err = r.Env.setGlobal(name, vr)
		} else {
			err = r.Env.Set(name, vr)
		}
		if err != nil {
			r.errf("%v\n", err)
			return 1
		}
	}
	if len(rest) == 0 {
		names := []string{}
		r.Env.Each(func(name string, vr expand.Variable) bool {
			if vr.Declared() {
				names = append(names, name)
			}
			return true
		})
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.Stdout, "declare -- %s=%q\n", name, r.Env.Get(name).String())
		}
	}
	return 0
}

// aliasEntry is the alias table's value: the replacement text, pre-parsed
// into words so expandAliases can splice it into a command's argument
// list without re-lexing on every invocation. blank records whether the
// replacement text ends in whitespace, which makes the *next* word (the
// one the alias pushed in front of) eligible for alias expansion too.
type aliasEntry struct {
	words []*syntax.Word
	raw   string
	blank bool
}

// expandAliases expands aliases once at the first WORD of a simple
// command, with a repeat-check so an alias can never expand itself
// recursively.
func (r *Runner) expandAliases(words []*syntax.Word) []*syntax.Word {
	if !r.opts[optExpandAliases] || len(r.alias) == 0 || len(words) == 0 {
		return words
	}
	seen := map[string]bool{}
	for i := 0; i < len(words); {
		lit := words[i].Lit()
		if lit == "" {
			break
		}
		entry, ok := r.alias[lit]
		if !ok || seen[lit] {
			break
		}
		seen[lit] = true
		next := make([]*syntax.Word, 0, len(words)-1+len(entry.words))
		next = append(next, words[:i]...)
		next = append(next, entry.words...)
		next = append(next, words[i+1:]...)
		words = next
		if !entry.blank {
			break
		}
		// The replacement ended in whitespace: the *next* word (the one
		// now sitting right after the replacement) is also eligible,
		// not the replacement's own first word.
		i += len(entry.words)
	}
	return words
}

// parseAliasWords parses an alias replacement string into its component
// words, the way `alias name=VALUE` captures VALUE once at definition time.
func parseAliasWords(src string) ([]*syntax.Word, error) {
	f, err := syntax.Parse([]byte(src), "alias", 0)
	if err != nil {
		return nil, err
	}
	if len(f.Stmts) == 0 {
		return nil, nil
	}
	sc, ok := f.Stmts[0].Cmd.(*syntax.SimpleCommand)
	if !ok {
		return nil, fmt.Errorf("alias: could not parse %q", src)
	}
	words := make([]*syntax.Word, len(sc.Args))
	for i := range sc.Args {
		words[i] = &sc.Args[i]
	}
	return words, nil
}

func builtinAlias(ctx context.Context, r *Runner, args []string) int {
	show := func(name string, entry aliasEntry) {
		fmt.Fprintf(r.Stdout, "alias %s='%s'\n", name, entry.raw)
	}
	if len(args) == 0 {
		names := make([]string, 0, len(r.alias))
		for name := range r.alias {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			show(name, r.alias[name])
		}
		return 0
	}
	status := 0
	for _, arg := range args {
		name, val, hasEq := strings.Cut(arg, "=")
		if !hasEq {
			entry, ok := r.alias[name]
			if !ok {
				r.errf("alias: %s: not found\n", name)
				status = 1
				continue
			}
			show(name, entry)
			continue
		}
		words, err := parseAliasWords(val)
		if err != nil {
			r.errf("alias: could not parse %q: %v\n", val, err)
			status = 1
			continue
		}
		if r.alias == nil {
			r.alias = map[string]aliasEntry{}
		}
		r.alias[name] = aliasEntry{
			words: words,
			raw:   val,
			blank: strings.TrimRight(val, " \t") != val,
		}
	}
	return status
}

func builtinUnalias(ctx context.Context, r *Runner, args []string) int {
	if len(args) > 0 && args[0] == "-a" {
		r.alias = map[string]aliasEntry{}
		return 0
	}
	status := 0
	for _, name := range args {
		if _, ok := r.alias[name]; !ok {
			r.errf("unalias: %s: not found\n", name)
			status = 1
			continue
		}
		delete(r.alias, name)
	}
	return status
}
