package printer

import (
	"fmt"
	"io"

	"github.com/arrowshell/posh/syntax"
)

// Dump writes an indented, tagged structural view of f's statements to w,
// a companion to Fprint's source-shaped rendering for debugging the AST
// directly. Each node is printed as its Go type name followed by its
// immediate children, one per line.
func Dump(w io.Writer, f *syntax.File) error {
	d := &dumper{w: w}
	for _, s := range f.Stmts {
		d.stmt(s, 0)
	}
	return nil
}

type dumper struct{ w io.Writer }

func (d *dumper) line(depth int, format string, args ...any) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(d.w, "  ")
	}
	fmt.Fprintf(d.w, format+"\n", args...)
}

func (d *dumper) stmt(s *syntax.Stmt, depth int) {
	tag := "Stmt"
	if s.Negated {
		tag += " negated"
	}
	if s.Background {
		tag += " background"
	}
	d.line(depth, "%s", tag)
	for _, a := range s.Assigns {
		d.line(depth+1, "Assign %s = %s", a.Name.Value, wordText(a.Value))
	}
	d.command(s.Cmd, depth+1)
	for _, r := range s.Redirs {
		d.line(depth+1, "Redirect %s %s", redirOpText(r.Op), wordText(r.Word))
	}
}

func (d *dumper) command(cmd syntax.Command, depth int) {
	switch c := cmd.(type) {
	case *syntax.SimpleCommand:
		d.line(depth, "SimpleCommand")
		for _, w := range c.Args {
			d.line(depth+1, "Word %q", wordText(w))
		}
	case *syntax.Pipeline:
		d.line(depth, "Pipeline negated=%v pipeAll=%v", c.Negated, c.PipeAll)
		for _, s := range c.Stages {
			d.stmt(s, depth+1)
		}
	case *syntax.AndOrList:
		d.line(depth, "AndOrList")
		d.stmtsInPipeline(c.First, depth+1)
		for _, part := range c.Rest {
			op := "||"
			if part.And {
				op = "&&"
			}
			d.line(depth+1, "%s", op)
			d.stmtsInPipeline(part.X, depth+1)
		}
	case *syntax.Subshell:
		d.line(depth, "Subshell")
		for _, s := range c.Stmts {
			d.stmt(s, depth+1)
		}
	case *syntax.BraceGroup:
		d.line(depth, "BraceGroup")
		for _, s := range c.Stmts {
			d.stmt(s, depth+1)
		}
	case *syntax.If:
		d.line(depth, "If")
		d.line(depth+1, "Cond")
		for _, s := range c.Cond {
			d.stmt(s, depth+2)
		}
		d.line(depth+1, "Then")
		for _, s := range c.Then {
			d.stmt(s, depth+2)
		}
		for i, e := range c.Elifs {
			d.line(depth+1, "Elif[%d]", i)
			for _, s := range e.Then {
				d.stmt(s, depth+2)
			}
		}
		if len(c.Else) > 0 {
			d.line(depth+1, "Else")
			for _, s := range c.Else {
				d.stmt(s, depth+2)
			}
		}
	case *syntax.While:
		d.line(depth, "While")
		for _, s := range c.Do {
			d.stmt(s, depth+1)
		}
	case *syntax.Until:
		d.line(depth, "Until")
		for _, s := range c.Do {
			d.stmt(s, depth+1)
		}
	case *syntax.For:
		d.line(depth, "For")
		for _, s := range c.Do {
			d.stmt(s, depth+1)
		}
	case *syntax.Select:
		d.line(depth, "Select %s", c.Name.Value)
		for _, s := range c.Do {
			d.stmt(s, depth+1)
		}
	case *syntax.Case:
		d.line(depth, "Case %s", wordText(c.Word))
		for _, item := range c.Items {
			for _, s := range item.Stmts {
				d.stmt(s, depth+1)
			}
		}
	case *syntax.FunctionDef:
		d.line(depth, "FunctionDef %s", c.Name.Value)
		d.stmt(c.Body, depth+1)
	case *syntax.ArithmeticCommand:
		d.line(depth, "ArithmeticCommand %s", arithmText(c.X))
	case *syntax.ConditionalExpression:
		d.line(depth, "ConditionalExpression %s", testText(c.X))
	default:
		d.line(depth, "<unknown command>")
	}
}

func (d *dumper) stmtsInPipeline(p *syntax.Pipeline, depth int) {
	for _, s := range p.Stages {
		d.stmt(s, depth)
	}
}
