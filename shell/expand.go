// Package shell offers small convenience entry points for embedding the
// core expansion and execution pipeline without constructing a
// syntax.Parser/interp.Runner by hand.
package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/syntax"
)

// Expand performs shell expansion (the full brace, tilde, parameter,
// word-split, glob, and quote-removal pipeline) on s as a single word,
// joining the resulting fields back with no separator, using env to
// resolve variables. If env is nil, the process environment is used.
// Command and process substitution are not permitted, to avoid running
// arbitrary code from a string expansion helper; use interp.Runner
// directly when that's needed.
func Expand(s string, env func(string) string) (string, error) {
	fields, err := Fields(s, env)
	if err != nil {
		return "", err
	}
	return strings.Join(fields, ""), nil
}

// Fields is like Expand, but returns the individual fields produced by
// word-splitting instead of joining them.
func Fields(s string, env func(string) string) ([]string, error) {
	w, err := parseWord(s)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = os.Getenv
	}
	cfg := &expand.Config{Env: readOnlyEnviron{expand.FuncEnviron(env)}}
	return cfg.Fields(w)
}

// readOnlyEnviron adapts an expand.Environ (as returned by FuncEnviron,
// which only supports lookups) into the expand.WriteEnviron that
// expand.Config requires, since arithmetic expansions like $((x=1)) assign
// through it. Expand and Fields are read-only helpers, so Set reports an
// error rather than silently discarding the assignment.
type readOnlyEnviron struct{ expand.Environ }

func (readOnlyEnviron) Set(name string, vr expand.Variable) error {
	return fmt.Errorf("shell: cannot assign to %q during string expansion", name)
}

// parseWord parses s as a single word spanning its entire length, treating
// the whole string as one expandable unit rather than a command line. The
// syntax package has no exported word-only entry point, so this goes
// through the ordinary command parser
// and re-stitches every argument word it finds back together with literal
// space parts wherever the parser consumed run-of-the-mill unquoted
// whitespace, reconstructing a single Word whose Parts reproduce s. That
// keeps multi-token input like "$a $b" intact instead of truncating to the
// first token, at the cost of not handling input containing unescaped `;`,
// `|`, or other command separators, which callers of a pure expansion
// helper aren't expected to pass anyway.
func parseWord(s string) (*syntax.Word, error) {
	f, err := syntax.Parse([]byte(s), "", 0)
	if err != nil {
		return nil, err
	}
	var parts []syntax.WordPart
	for _, st := range f.Stmts {
		sc, ok := st.Cmd.(*syntax.SimpleCommand)
		if !ok {
			continue
		}
		for i, a := range sc.Args {
			if i > 0 || len(parts) > 0 {
				parts = append(parts, &syntax.Lit{Value: " "})
			}
			parts = append(parts, a.Parts...)
		}
	}
	w := syntax.Word{Parts: parts}
	return &w, nil
}
