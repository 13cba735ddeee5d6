package internal

import (
	"bytes"
	"sync"
)

// ConcBuffer wraps a bytes.Buffer in a mutex so that concurrent writes to
// it don't upset the race detector. Tests that run a foreground command
// alongside a background job against the same Stdout need this instead of
// a bare bytes.Buffer: two goroutines writing to the same *Runner's
// Stdout is exactly what background execution does for real.
type ConcBuffer struct {
	buf bytes.Buffer
	sync.Mutex
}

func (c *ConcBuffer) Write(p []byte) (int, error) {
	c.Lock()
	n, err := c.buf.Write(p)
	c.Unlock()
	return n, err
}

func (c *ConcBuffer) WriteString(s string) (int, error) {
	c.Lock()
	n, err := c.buf.WriteString(s)
	c.Unlock()
	return n, err
}

func (c *ConcBuffer) String() string {
	c.Lock()
	s := c.buf.String()
	c.Unlock()
	return s
}

func (c *ConcBuffer) Reset() {
	c.Lock()
	c.buf.Reset()
	c.Unlock()
}
