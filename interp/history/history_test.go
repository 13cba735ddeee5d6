package history

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestExpandBang(t *testing.T) {
	c := qt.New(t)
	l := NewList(0)
	l.Add("echo one")
	l.Add("echo two")
	l.Add("ls -la")

	tests := []struct {
		in, want string
	}{
		{"!!", "ls -la"},
		{"echo !!", "echo ls -la"},
		{"!1", "echo one"},
		{"!-1", "ls -la"},
		{"!-2", "echo two"},
		{"!echo", "echo two"},
		{"!?one?", "echo one"},
		{"'!!' literal", "'!!' literal"},
	}
	for _, tt := range tests {
		got, err := l.Expand(tt.in)
		c.Assert(err, qt.IsNil, qt.Commentf("input %q", tt.in))
		c.Assert(got, qt.Equals, tt.want, qt.Commentf("input %q", tt.in))
	}
}

func TestExpandNotFound(t *testing.T) {
	c := qt.New(t)
	l := NewList(0)
	_, err := l.Expand("!!")
	c.Assert(err, qt.ErrorMatches, ".*event not found.*")
}

func TestLimitTrim(t *testing.T) {
	c := qt.New(t)
	l := NewList(2)
	l.Add("a")
	l.Add("b")
	l.Add("c")
	c.Assert(l.Len(), qt.Equals, 2)
	line, ok := l.At(1)
	c.Assert(ok, qt.IsFalse)
	line, ok = l.At(3)
	c.Assert(ok, qt.IsTrue)
	c.Assert(line, qt.Equals, "c")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "histfile")

	l := NewList(0)
	l.Add("echo a")
	l.Add("echo b")
	c.Assert(l.Save(path), qt.IsNil)

	l2 := NewList(0)
	c.Assert(l2.Load(path), qt.IsNil)
	c.Assert(l2.Len(), qt.Equals, 2)
	line, ok := l2.Last()
	c.Assert(ok, qt.IsTrue)
	c.Assert(line, qt.Equals, "echo b")
}
