package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/arrowshell/posh/syntax"
)

// pushRedirs applies a statement's redirections against the Runner's
// standard streams and returns a restore func that undoes them, using a
// saved-fd table. Only fds 0/1/2 are modeled as the Runner's
// Stdin/Stdout/Stderr fields; any other fd is tracked in a small side
// map for n>&m / n<&m forms.
func (r *Runner) pushRedirs(redirs []*syntax.Redirect) (func(), error) {
	savedIn, savedOut, savedErr := r.Stdin, r.Stdout, r.Stderr
	var opened []io.Closer
	restore := func() {
		r.Stdin, r.Stdout, r.Stderr = savedIn, savedOut, savedErr
		for _, c := range opened {
			c.Close()
		}
	}

	for _, rd := range redirs {
		fd := 1
		if rd.N != nil {
			n, err := strconv.Atoi(rd.N.Value)
			if err == nil {
				fd = n
			}
		} else if rd.Op == syntax.RdrIn || rd.Op == syntax.RdrInOut {
			fd = 0
		}

		switch rd.Op {
		case syntax.RdrOut, syntax.AppOut, syntax.ClobberOut:
			path, err := r.cfg.Literal(&rd.Word)
			if err != nil {
				restore()
				return func() {}, err
			}
			flags := os.O_WRONLY | os.O_CREATE
			if rd.Op == syntax.AppOut {
				flags |= os.O_APPEND
			} else {
				if rd.Op == syntax.RdrOut && r.opts[optNoClobber] {
					if _, statErr := os.Stat(path); statErr == nil {
						restore()
						return func() {}, fmt.Errorf("%s: cannot overwrite existing file", path)
					}
				}
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				restore()
				return func() {}, err
			}
			opened = append(opened, f)
			r.setFD(fd, nil, f)

		case syntax.RdrAll, syntax.AppAll:
			path, err := r.cfg.Literal(&rd.Word)
			if err != nil {
				restore()
				return func() {}, err
			}
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if rd.Op == syntax.AppAll {
				flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				restore()
				return func() {}, err
			}
			opened = append(opened, f)
			r.Stdout, r.Stderr = f, f

		case syntax.RdrIn:
			path, err := r.cfg.Literal(&rd.Word)
			if err != nil {
				restore()
				return func() {}, err
			}
			f, err := os.Open(path)
			if err != nil {
				restore()
				return func() {}, err
			}
			opened = append(opened, f)
			r.setFD(fd, f, nil)

		case syntax.RdrInOut:
			path, err := r.cfg.Literal(&rd.Word)
			if err != nil {
				restore()
				return func() {}, err
			}
			f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				restore()
				return func() {}, err
			}
			opened = append(opened, f)
			r.setFD(fd, f, f)

		case syntax.DplOut, syntax.DplIn:
			lit := rd.Word.Lit()
			if lit == "-" {
				r.setFD(fd, nil, closedWriter{})
				continue
			}
			src, err := strconv.Atoi(lit)
			if err != nil {
				restore()
				return func() {}, fmt.Errorf("invalid fd duplication target %q", lit)
			}
			w := r.getWriterFD(src)
			rdr := r.getReaderFD(src)
			r.setFD(fd, rdr, w)

		case syntax.Hdoc, syntax.DashHdoc:
			body := ""
			if rd.Hdoc != nil {
				var err error
				if rd.HdocQuoted {
					body = rd.Hdoc.Lit()
					if body == "" {
						for _, p := range rd.Hdoc.Parts {
							if lit, ok := p.(*syntax.Lit); ok {
								body += lit.Value
							}
						}
					}
				} else {
					body, err = r.cfg.Literal(rd.Hdoc)
					if err != nil {
						restore()
						return func() {}, err
					}
				}
			}
			r.Stdin = stringReader(body)

		case syntax.WordHdoc:
			s, err := r.cfg.Literal(&rd.Word)
			if err != nil {
				restore()
				return func() {}, err
			}
			r.Stdin = stringReader(s + "\n")

		case syntax.CmdIn, syntax.CmdOut:
			// Process substitution as a redirection target: not wired to a
			// real fifo in this environment; fall back to literal expansion
			// of the substituted command's path placeholder.
			path, err := r.cfg.Literal(&rd.Word)
			if err == nil && path != "" {
				if rd.Op == syntax.CmdIn {
					if f, ferr := os.Open(path); ferr == nil {
						opened = append(opened, f)
						r.setFD(fd, f, nil)
					}
				}
			}
		}
	}
	return restore, nil
}

func (r *Runner) setFD(fd int, in io.Reader, out io.Writer) {
	switch fd {
	case 0:
		if in != nil {
			r.Stdin = in
		}
	case 1:
		if out != nil {
			r.Stdout = out
		}
	case 2:
		if out != nil {
			r.Stderr = out
		}
	default:
		if r.extraFD == nil {
			r.extraFD = map[int]any{}
		}
		if in != nil {
			r.extraFD[fd] = in
		} else if out != nil {
			r.extraFD[fd] = out
		}
	}
}

func (r *Runner) getWriterFD(fd int) io.Writer {
	switch fd {
	case 1:
		return r.Stdout
	case 2:
		return r.Stderr
	default:
		if w, ok := r.extraFD[fd].(io.Writer); ok {
			return w
		}
	}
	return nil
}

func (r *Runner) getReaderFD(fd int) io.Reader {
	if fd == 0 {
		return r.Stdin
	}
	if rd, ok := r.extraFD[fd].(io.Reader); ok {
		return rd
	}
	return nil
}

type closedWriter struct{}

func (closedWriter) Write(p []byte) (int, error) { return 0, fmt.Errorf("fd closed") }

func stringReader(s string) io.Reader { return &stringReaderState{s: s} }

type stringReaderState struct {
	s string
	i int
}

func (s *stringReaderState) Read(p []byte) (int, error) {
	if s.i >= len(s.s) {
		return 0, io.EOF
	}
	n := copy(p, s.s[s.i:])
	s.i += n
	return n, nil
}
