//go:build !windows

package interp

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/creack/pty"

	"github.com/arrowshell/posh/syntax"
)

// TestRunnerTerminalStdIO exercises "[[ -t N ]]" (test.go's TestTerminal
// case) against three kinds of Stdin/Stdout/Stderr: absent, a plain pipe,
// and a real pseudo-terminal, confirming term.IsTerminal only reports true
// for the pty.
func TestRunnerTerminalStdIO(t *testing.T) {
	t.Parallel()

	f, err := syntax.Parse([]byte(`
		for n in 0 1 2 3; do if [[ -t $n ]]; then echo -n $n; fi; done; echo end
	`), "", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	tests := []struct {
		name  string
		files func(t *testing.T) (slave io.Writer, master io.Reader)
		want  string
	}{
		{"Nil", func(t *testing.T) (io.Writer, io.Reader) {
			return nil, strings.NewReader("\n")
		}, "\n"},
		{"Pipe", func(t *testing.T) (io.Writer, io.Reader) {
			pr, pw := io.Pipe()
			return pw, pr
		}, "end\n"},
		{"Pseudo", func(t *testing.T) (io.Writer, io.Reader) {
			ptmx, tty, err := pty.Open()
			if err != nil {
				t.Fatal(err)
			}
			return tty, ptmx
		}, "012end\r\n"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			slave, master := test.files(t)
			slaveReader, _ := slave.(io.Reader)

			r, err := New(StdIO(slaveReader, slave, slave))
			if err != nil {
				t.Fatal(err)
			}
			go func() {
				if err := r.Run(context.Background(), f); err != nil {
					if _, ok := err.(ExitStatus); !ok {
						t.Error(err)
					}
				}
			}()

			got, err := bufio.NewReader(master).ReadString('\n')
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Fatalf("want: %q\ngot:  %q", test.want, got)
			}
			if c, ok := slave.(io.Closer); ok {
				c.Close()
			}
			if c, ok := master.(io.Closer); ok {
				c.Close()
			}
		})
	}
}
