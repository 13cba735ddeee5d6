package shell

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/syntax"
)

var mapTests = []struct {
	in   string
	want map[string]string // name -> scalar rendering, via Variable.String()
}{
	{
		"a=x; b=y",
		map[string]string{"a": "x", "b": "y"},
	},
	{
		"a=x; a=y",
		map[string]string{"a": "y"},
	},
	{
		"a=$(echo foo | sed 's/o/a/g')",
		map[string]string{"a": "faa"},
	},
}

func TestSourceNode(t *testing.T) {
	for i := range mapTests {
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			tc := mapTests[i]
			t.Parallel()
			f, err := syntax.Parse([]byte(tc.in), "", 0)
			if err != nil {
				t.Fatal(err)
			}
			got, err := SourceNode(context.Background(), f)
			if err != nil {
				t.Fatal(err)
			}
			for name, want := range tc.want {
				vr, ok := got[name]
				if !ok {
					t.Fatalf("missing variable %q in %v", name, got)
				}
				if vr.String() != want {
					t.Fatalf("%s: want %q, got %q", name, want, vr.String())
				}
			}
		})
	}
}

var errTests = []struct {
	in   string
	want string
}{
	{"a=b; exit 1", "exit status 1"},
}

func TestSourceNodeErr(t *testing.T) {
	for i := range errTests {
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			tc := errTests[i]
			t.Parallel()
			f, err := syntax.Parse([]byte(tc.in), "", 0)
			if err != nil {
				t.Fatal(err)
			}
			_, err = SourceNode(context.Background(), f)
			if err == nil {
				t.Fatal("wanted non-nil error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not match %q", err, tc.want)
			}
		})
	}
}

func TestSourceFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := dir + "/conf.sh"
	if err := os.WriteFile(path, []byte("FOO=bar\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := SourceFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	vr, ok := got["FOO"]
	if !ok || vr.Kind != expand.String || vr.Str != "bar" {
		t.Fatalf("FOO = %#v, want String \"bar\"", vr)
	}
}
