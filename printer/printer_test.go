package printer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/diff"

	"github.com/arrowshell/posh/syntax"
)

// roundTrip checks parser determinism: lex→parse→unparse→lex→parse yields
// the same AST modulo whitespace, approximated here by comparing the
// re-parsed Dump of the printed source against the original Dump.
func roundTrip(t *testing.T, src string) {
	t.Helper()
	f, err := syntax.Parse([]byte(src), "", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out strings.Builder
	if err := Fprint(&out, f); err != nil {
		t.Fatalf("print: %v", err)
	}

	f2, err := syntax.Parse([]byte(out.String()), "", 0)
	if err != nil {
		t.Fatalf("reparse %q: %v", out.String(), err)
	}

	var d1, d2 strings.Builder
	Dump(&d1, f)
	Dump(&d2, f2)
	if diffText := cmp.Diff(d1.String(), d2.String()); diffText != "" {
		diff.Text("original", "round-tripped", strings.NewReader(d1.String()), strings.NewReader(d2.String()), &testWriter{t})
		t.Fatalf("AST dump changed across round-trip for %q (-original +round-tripped):\n%s", src, diffText)
	}
}

type testWriter struct{ t *testing.T }

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"echo hello world\n",
		"echo a; echo b\n",
		"if true; then echo yes; fi\n",
		"for i in 1 2 3; do echo $i; done\n",
		"while false; do echo no; done\n",
		"echo a | echo b\n",
		"echo a && echo b || echo c\n",
		"f() { echo in f; }\n",
		"case $x in a) echo A;; b) echo B;; esac\n",
	}
	for _, src := range cases {
		roundTrip(t, src)
	}
}

func TestDumpShape(t *testing.T) {
	c := qt.New(t)
	f, err := syntax.Parse([]byte("echo hi\n"), "", 0)
	c.Assert(err, qt.IsNil)
	var buf strings.Builder
	c.Assert(Dump(&buf, f), qt.IsNil)
	c.Assert(buf.String(), qt.Contains, "SimpleCommand")
	c.Assert(buf.String(), qt.Contains, `Word "echo"`)
}
