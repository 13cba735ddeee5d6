package interp

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/arrowshell/posh/internal"
	"github.com/arrowshell/posh/syntax"
)

// run parses src and executes it with a fresh Runner, returning stdout.
func run(tb testing.TB, src string, opts ...Option) (string, error) {
	tb.Helper()
	f, err := syntax.Parse([]byte(src), "", 0)
	if err != nil {
		tb.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	allOpts := append([]Option{StdIO(nil, &out, &out)}, opts...)
	r, err := New(allOpts...)
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	runErr := r.Run(context.Background(), f)
	return out.String(), runErr
}

// S1: brace expansion cross product.
func TestBraceExpansionCrossProduct(t *testing.T) {
	out, _ := run(t, `echo {a,b}{1,2}`)
	if got, want := strings.TrimRight(out, "\n"), "a1 a2 b1 b2"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// S2: indexed arrays.
func TestIndexedArrays(t *testing.T) {
	out, _ := run(t, `arr=(10 20 30); echo ${arr[@]:1}; echo ${#arr[@]}; arr+=(40); echo ${arr[-1]}`)
	want := "20 30\n3\n40\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// S3: dynamic scoping of `local`.
func TestDynamicScoping(t *testing.T) {
	out, _ := run(t, `f(){ local x=1; g; echo $x; }; g(){ x=2; }; x=0; f; echo $x`)
	want := "2\n0\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// S4: pipefail picks the rightmost non-zero status.
func TestPipefail(t *testing.T) {
	out, _ := run(t, `set -o pipefail; false | true | false | true; echo $?`)
	if got, want := strings.TrimRight(out, "\n"), "1"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// S5: nested brace-expansion loops.
func TestNestedBraceLoops(t *testing.T) {
	out, _ := run(t, `for i in {1..3}; do for j in a b; do echo $i$j; done; done`)
	want := "1a\n1b\n2a\n2b\n3a\n3b\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// Background jobs write to the shared Stdout from their own goroutine
// while the foreground continues; `wait` must block until the
// background job's write has landed. Stdout here is a ConcBuffer rather
// than a bare bytes.Buffer so the race detector doesn't flag the
// concurrent foreground/background writes as a data race.
func TestBackgroundJobConcurrentOutput(t *testing.T) {
	f, err := syntax.Parse([]byte(`(echo bg) & echo fg; wait`), "", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out internal.ConcBuffer
	r, err := New(StdIO(nil, &out, &out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Run(context.Background(), f); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "bg\n") || !strings.Contains(got, "fg\n") {
		t.Fatalf("got %q, want output containing both %q and %q", got, "bg\n", "fg\n")
	}
}

// S6: non-whitespace IFS yields empty fields between adjacent separators.
func TestIFSNonWhitespace(t *testing.T) {
	out, _ := run(t, `IFS=:; s="a::b:c"; for x in $s; do echo "[$x]"; done`)
	want := "[a]\n[]\n[b]\n[c]\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// Property 3: quoted "$@" preserves each positional parameter verbatim,
// including ones containing IFS characters, and iterates exactly n times.
func TestQuotedPositionalParameters(t *testing.T) {
	f, err := syntax.Parse([]byte(`for x in "$@"; do echo "<$x>"; done`), "", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	r, err := New(StdIO(nil, &out, &out), Params("sh", "a b", "", "c:d"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Run(context.Background(), f); err.(ExitStatus) != 0 {
		t.Fatalf("run: %v", err)
	}
	want := "<a b>\n<>\n<c:d>\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

// Property 3, n=0: zero positional parameters means zero iterations.
func TestQuotedPositionalParametersEmpty(t *testing.T) {
	out, _ := run(t, `for x in "$@"; do echo "got:$x"; done; echo done`)
	if out != "done\n" {
		t.Fatalf("got %q, want %q", out, "done\n")
	}
}

// Property 4: subshell mutations never propagate to the parent.
func TestSubshellIsolation(t *testing.T) {
	out, _ := run(t, `v=old; (v=new); echo $v`)
	if got, want := strings.TrimRight(out, "\n"), "old"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Property 5: readonly blocks every mutating form.
func TestReadonly(t *testing.T) {
	out, _ := run(t, `readonly v=1
v=2
echo "v=$v rc1=$?"
unset v
echo "v=$v rc2=$?"
declare +r v
echo "v=$v rc3=$?"`)
	want := "v=1 rc1=1\nv=1 rc2=1\nv=1 rc3=1\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// Property 7: errexit is exempt inside conditional contexts.
func TestErrexitExemptions(t *testing.T) {
	src := `set -e
if false; then :; fi
false || true
! false
while false; do :; done
echo survived`
	out, err := run(t, src)
	if strings.TrimRight(out, "\n") != "survived" {
		t.Fatalf("got %q, err %v", out, err)
	}
}

// errexit does trigger outside any exempt context.
func TestErrexitTriggers(t *testing.T) {
	out, err := run(t, "set -e\nfalse\necho unreachable")
	if strings.Contains(out, "unreachable") {
		t.Fatalf("errexit did not stop the script: %q", out)
	}
	if ex, ok := err.(ExitStatus); !ok || ex == 0 {
		t.Fatalf("want non-zero ExitStatus, got %v", err)
	}
}

// Property 8: arithmetic round-trips through $(( )).
func TestArithmeticRoundTrip(t *testing.T) {
	for _, n := range []string{"0", "1", "-1", "9223372036854775807", "-9223372036854775808"} {
		out, _ := run(t, `x=`+n+`; echo $((x))`)
		if got := strings.TrimRight(out, "\n"); got != n {
			t.Fatalf("n=%s: got %q", n, got)
		}
	}
}

// $0 inside a function is the function name, a deliberate deviation
// from bash (where $0 stays the script name).
func TestFunctionName0(t *testing.T) {
	out, _ := run(t, `f(){ echo $0; }; f`)
	if got, want := strings.TrimRight(out, "\n"), "f"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Case pattern matching and fallthrough terminators.
func TestCaseFallthrough(t *testing.T) {
	out, _ := run(t, `case abc in
  a*) echo one;;&
  *c) echo two;;
  *) echo three;;
esac`)
	want := "one\ntwo\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// Associative arrays preserve insertion order on iteration.
func TestAssociativeArray(t *testing.T) {
	out, _ := run(t, `declare -A m; m[z]=1; m[a]=2; for k in "${!m[@]}"; do echo "$k=${m[$k]}"; done`)
	want := "z=1\na=2\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// Alias expansion: a replacement ending in whitespace makes the
// *following* word eligible for alias expansion too (the classic
// "alias sudo='sudo '" pattern).
func TestAliasExpansion(t *testing.T) {
	out, _ := run(t, `alias p=' '
alias ls='echo LISTED'
p ls /tmp`, Interactive(true))
	want := "LISTED /tmp\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// An alias is not re-expanded while expanding itself.
func TestAliasNoSelfRecursion(t *testing.T) {
	out, _ := run(t, `alias echo='echo X'
echo hi`, Interactive(true))
	want := "X hi\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

// Parameter expansion operators: default, strip, replace, case modify.
func TestParamExpansionOperators(t *testing.T) {
	out, _ := run(t, `unset u; echo ${u:-def}
s=foobar; echo ${s#foo}; echo ${s%bar}; echo ${s/o/0}; echo ${s//o/0}
echo ${s^^}`)
	want := "def\nbar\nfoo\nf0obar\nf00bar\nFOOBAR\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
