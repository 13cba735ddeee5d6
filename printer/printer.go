// Package printer renders a parsed AST (package syntax) back to shell
// source text, and to an indented structural dump. It backs two
// debug/introspection surfaces: dumping the AST before execution, in
// multiple formats (Dump), and source round-tripping, via Fprint, used
// to check that lex→parse→unparse→lex→parse yields the same AST modulo
// whitespace.
package printer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/arrowshell/posh/syntax"
)

// Config controls source-printing layout.
type Config struct {
	Spaces int // 0 (default) uses a tab per indent level; >0 uses that many spaces
}

// Fprint pretty-prints f to w using default settings.
func Fprint(w io.Writer, f *syntax.File) error {
	return Config{}.Fprint(w, f)
}

// Fprint pretty-prints f to w.
func (c Config) Fprint(w io.Writer, f *syntax.File) error {
	p := &printerState{bw: bufio.NewWriter(w), indentUnit: c.indent()}
	p.stmtList(f.Stmts, 0)
	return p.bw.Flush()
}

func (c Config) indent() string {
	if c.Spaces <= 0 {
		return "\t"
	}
	return strings.Repeat(" ", c.Spaces)
}

type printerState struct {
	bw         *bufio.Writer
	indentUnit string
}

func (p *printerState) ind(depth int) {
	for i := 0; i < depth; i++ {
		p.bw.WriteString(p.indentUnit)
	}
}

func (p *printerState) stmtList(stmts []*syntax.Stmt, depth int) {
	for i, s := range stmts {
		if i > 0 {
			p.bw.WriteByte('\n')
		}
		p.ind(depth)
		p.stmt(s, depth)
	}
}

func (p *printerState) stmt(s *syntax.Stmt, depth int) {
	if s.Negated {
		p.bw.WriteString("! ")
	}
	for _, a := range s.Assigns {
		p.assign(a)
		p.bw.WriteByte(' ')
	}
	p.command(s.Cmd, depth)
	for _, r := range s.Redirs {
		p.bw.WriteByte(' ')
		p.redirect(r)
	}
	if s.Background {
		p.bw.WriteString(" &")
	} else {
		p.bw.WriteByte(';')
	}
}

func (p *printerState) assign(a *syntax.Assign) {
	p.bw.WriteString(a.Name.Value)
	if a.Index != nil {
		p.bw.WriteByte('[')
		p.bw.WriteString(arithmText(a.Index))
		p.bw.WriteByte(']')
	}
	if a.Naked {
		return
	}
	if a.Append {
		p.bw.WriteString("+=")
	} else {
		p.bw.WriteByte('=')
	}
	if a.Array {
		p.bw.WriteByte('(')
		for i, el := range a.Elems {
			if i > 0 {
				p.bw.WriteByte(' ')
			}
			if el.Index != nil {
				fmt.Fprintf(p.bw, "[%s]=", arithmText(el.Index))
			}
			p.bw.WriteString(wordText(el.Value))
		}
		p.bw.WriteByte(')')
		return
	}
	p.bw.WriteString(wordText(a.Value))
}

func (p *printerState) redirect(r *syntax.Redirect) {
	if r.N != nil {
		p.bw.WriteString(r.N.Value)
	}
	p.bw.WriteString(redirOpText(r.Op))
	p.bw.WriteString(wordText(r.Word))
}

func redirOpText(op syntax.RedirOperator) string {
	switch op {
	case syntax.RdrOut:
		return ">"
	case syntax.AppOut:
		return ">>"
	case syntax.RdrIn:
		return "<"
	case syntax.RdrInOut:
		return "<>"
	case syntax.DplIn:
		return "<&"
	case syntax.DplOut:
		return ">&"
	case syntax.Hdoc:
		return "<<"
	case syntax.DashHdoc:
		return "<<-"
	case syntax.WordHdoc:
		return "<<<"
	case syntax.RdrAll:
		return "&>"
	case syntax.AppAll:
		return "&>>"
	case syntax.CmdIn:
		return "<("
	case syntax.CmdOut:
		return ">("
	case syntax.ClobberOut:
		return ">|"
	}
	return "?"
}

func (p *printerState) command(cmd syntax.Command, depth int) {
	switch c := cmd.(type) {
	case *syntax.SimpleCommand:
		for i, w := range c.Args {
			if i > 0 {
				p.bw.WriteByte(' ')
			}
			p.bw.WriteString(wordText(w))
		}
	case *syntax.Pipeline:
		if c.Negated {
			p.bw.WriteString("! ")
		}
		for i, st := range c.Stages {
			if i > 0 {
				if c.PipeAll {
					p.bw.WriteString(" |& ")
				} else {
					p.bw.WriteString(" | ")
				}
			}
			p.command(st.Cmd, depth)
		}
	case *syntax.AndOrList:
		p.command(c.First, depth)
		for _, part := range c.Rest {
			if part.And {
				p.bw.WriteString(" && ")
			} else {
				p.bw.WriteString(" || ")
			}
			p.command(part.X, depth)
		}
	case *syntax.Subshell:
		p.bw.WriteString("(\n")
		p.stmtList(c.Stmts, depth+1)
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteByte(')')
	case *syntax.BraceGroup:
		p.bw.WriteString("{\n")
		p.stmtList(c.Stmts, depth+1)
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteByte('}')
	case *syntax.If:
		p.bw.WriteString("if ")
		p.stmtList(c.Cond, 0)
		p.bw.WriteString(" then\n")
		p.stmtList(c.Then, depth+1)
		for _, e := range c.Elifs {
			p.bw.WriteByte('\n')
			p.ind(depth)
			p.bw.WriteString("elif ")
			p.stmtList(e.Cond, 0)
			p.bw.WriteString(" then\n")
			p.stmtList(e.Then, depth+1)
		}
		if len(c.Else) > 0 {
			p.bw.WriteByte('\n')
			p.ind(depth)
			p.bw.WriteString("else\n")
			p.stmtList(c.Else, depth+1)
		}
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteString("fi")
	case *syntax.While:
		p.bw.WriteString("while ")
		p.stmtList(c.Cond, 0)
		p.bw.WriteString(" do\n")
		p.stmtList(c.Do, depth+1)
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteString("done")
	case *syntax.Until:
		p.bw.WriteString("until ")
		p.stmtList(c.Cond, 0)
		p.bw.WriteString(" do\n")
		p.stmtList(c.Do, depth+1)
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteString("done")
	case *syntax.For:
		p.bw.WriteString("for ")
		switch l := c.Loop.(type) {
		case *syntax.WordIter:
			p.bw.WriteString(l.Name.Value)
			if l.InPos > 0 {
				p.bw.WriteString(" in")
				for _, it := range l.Items {
					p.bw.WriteByte(' ')
					p.bw.WriteString(wordText(it))
				}
			}
		case *syntax.CFor:
			fmt.Fprintf(p.bw, "(( %s; %s; %s ))", arithmText(l.Init), arithmText(l.Cond), arithmText(l.Post))
		}
		p.bw.WriteString("; do\n")
		p.stmtList(c.Do, depth+1)
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteString("done")
	case *syntax.Select:
		p.bw.WriteString("select ")
		p.bw.WriteString(c.Name.Value)
		p.bw.WriteString(" in")
		for _, it := range c.Items {
			p.bw.WriteByte(' ')
			p.bw.WriteString(wordText(it))
		}
		p.bw.WriteString("; do\n")
		p.stmtList(c.Do, depth+1)
		p.bw.WriteByte('\n')
		p.ind(depth)
		p.bw.WriteString("done")
	case *syntax.Case:
		p.bw.WriteString("case ")
		p.bw.WriteString(wordText(c.Word))
		p.bw.WriteString(" in\n")
		for _, item := range c.Items {
			p.ind(depth + 1)
			for i, pat := range item.Patterns {
				if i > 0 {
					p.bw.WriteString(" | ")
				}
				p.bw.WriteString(wordText(pat))
			}
			p.bw.WriteString(")\n")
			p.stmtList(item.Stmts, depth+2)
			p.bw.WriteByte('\n')
			p.ind(depth + 2)
			switch item.Term {
			case syntax.CaseFall:
				p.bw.WriteString(";&\n")
			case syntax.CaseTestFall:
				p.bw.WriteString(";;&\n")
			default:
				p.bw.WriteString(";;\n")
			}
		}
		p.ind(depth)
		p.bw.WriteString("esac")
	case *syntax.FunctionDef:
		if c.BashStyle {
			p.bw.WriteString("function ")
			p.bw.WriteString(c.Name.Value)
			p.bw.WriteString(" ")
		} else {
			p.bw.WriteString(c.Name.Value)
			p.bw.WriteString("() ")
		}
		p.command(c.Body.Cmd, depth)
	case *syntax.ArithmeticCommand:
		fmt.Fprintf(p.bw, "(( %s ))", arithmText(c.X))
	case *syntax.ConditionalExpression:
		fmt.Fprintf(p.bw, "[[ %s ]]", testText(c.X))
	default:
		p.bw.WriteString("<?>")
	}
}

// wordText, arithmText, and testText render the word/arithmetic/test
// sub-grammars back to source without needing separate printer state,
// since they never introduce new indentation levels.
func wordText(w syntax.Word) string {
	var b strings.Builder
	for _, part := range w.Parts {
		wordPartText(&b, part)
	}
	return b.String()
}

func wordPartText(b *strings.Builder, part syntax.WordPart) {
	switch x := part.(type) {
	case *syntax.Lit:
		b.WriteString(x.Value)
	case *syntax.SglQuoted:
		if x.Dollar {
			b.WriteByte('$')
		}
		b.WriteByte('\'')
		b.WriteString(x.Value)
		b.WriteByte('\'')
	case *syntax.DblQuoted:
		if x.Dollar {
			b.WriteByte('$')
		}
		b.WriteByte('"')
		for _, p := range x.Parts {
			wordPartText(b, p)
		}
		b.WriteByte('"')
	case *syntax.ParamExp:
		b.WriteByte('$')
		if x.Short {
			b.WriteString(x.Param.Value)
			return
		}
		b.WriteByte('{')
		if x.Excl {
			b.WriteByte('!')
		}
		if x.Length {
			b.WriteByte('#')
		}
		b.WriteString(x.Param.Value)
		if x.Index != nil {
			fmt.Fprintf(b, "[%s]", arithmText(x.Index))
		} else if x.At {
			b.WriteString("[@]")
		} else if x.Star {
			b.WriteString("[*]")
		}
		if x.Exp != nil {
			b.WriteString(expOperatorText(x.Exp.Op))
			b.WriteString(wordText(x.Exp.Word))
		}
		b.WriteByte('}')
	case *syntax.CmdSubst:
		if x.Backquoted {
			b.WriteByte('`')
			stmtsText(b, x.Stmts)
			b.WriteByte('`')
		} else {
			b.WriteString("$(")
			stmtsText(b, x.Stmts)
			b.WriteByte(')')
		}
	case *syntax.ArithmExp:
		if x.Bracket {
			fmt.Fprintf(b, "$[%s]", arithmText(x.X))
		} else {
			fmt.Fprintf(b, "$((%s))", arithmText(x.X))
		}
	case *syntax.ProcessSubstitution:
		if x.In {
			b.WriteString("<(")
		} else {
			b.WriteString(">(")
		}
		stmtsText(b, x.Stmts)
		b.WriteByte(')')
	case *syntax.ExtGlob:
		b.WriteByte(x.Op)
		b.WriteByte('(')
		b.WriteString(x.Pattern.Value)
		b.WriteByte(')')
	}
}

func expOperatorText(op syntax.ExpOperator) string {
	switch op {
	case syntax.ExpUnsetOrEmptyUse:
		return ":-"
	case syntax.ExpUnsetUse:
		return "-"
	case syntax.ExpUnsetOrEmptyAssign:
		return ":="
	case syntax.ExpUnsetAssign:
		return "="
	case syntax.ExpUnsetOrEmptyError:
		return ":?"
	case syntax.ExpUnsetError:
		return "?"
	case syntax.ExpUnsetOrEmptyAlt:
		return ":+"
	case syntax.ExpUnsetAlt:
		return "+"
	case syntax.ExpRemSmallPrefix:
		return "#"
	case syntax.ExpRemLargePrefix:
		return "##"
	case syntax.ExpRemSmallSuffix:
		return "%"
	case syntax.ExpRemLargeSuffix:
		return "%%"
	}
	return "?"
}

func stmtsText(b *strings.Builder, stmts []*syntax.Stmt) {
	var sb strings.Builder
	bw := bufio.NewWriter(&sb)
	p := &printerState{bw: bw, indentUnit: "\t"}
	p.stmtList(stmts, 0)
	bw.Flush()
	b.WriteString(sb.String())
}

func arithmText(x syntax.ArithmExpr) string {
	if x == nil {
		return ""
	}
	switch e := x.(type) {
	case *syntax.Word:
		return wordText(*e)
	case *syntax.BinaryArithm:
		return arithmText(e.X) + " " + arithOpText(e.Op) + " " + arithmText(e.Y)
	case *syntax.UnaryArithm:
		if e.Post {
			return arithmText(e.X) + arithOpText(e.Op)
		}
		return arithOpText(e.Op) + arithmText(e.X)
	case *syntax.TernaryArithm:
		return arithmText(e.Cond) + " ? " + arithmText(e.Then) + " : " + arithmText(e.Else)
	case *syntax.ParenArithm:
		return "(" + arithmText(e.X) + ")"
	}
	return "?"
}

func arithOpText(op syntax.ArithOperator) string {
	names := map[syntax.ArithOperator]string{
		syntax.ArithIncr: "++", syntax.ArithDecr: "--", syntax.ArithNot: "!", syntax.ArithBitNot: "~",
		syntax.ArithPlus: "+", syntax.ArithMinus: "-", syntax.ArithPow: "**", syntax.ArithMul: "*",
		syntax.ArithQuo: "/", syntax.ArithRem: "%", syntax.ArithAdd: "+", syntax.ArithSub: "-",
		syntax.ArithShl: "<<", syntax.ArithShr: ">>", syntax.ArithLss: "<", syntax.ArithLeq: "<=",
		syntax.ArithGtr: ">", syntax.ArithGeq: ">=", syntax.ArithEql: "==", syntax.ArithNeq: "!=",
		syntax.ArithBitAnd: "&", syntax.ArithBitXor: "^", syntax.ArithBitOr: "|",
		syntax.ArithLAnd: "&&", syntax.ArithLOr: "||", syntax.ArithAssgn: "=",
		syntax.ArithAddAssgn: "+=", syntax.ArithSubAssgn: "-=", syntax.ArithMulAssgn: "*=",
		syntax.ArithQuoAssgn: "/=", syntax.ArithRemAssgn: "%=", syntax.ArithAndAssgn: "&=",
		syntax.ArithOrAssgn: "|=", syntax.ArithXorAssgn: "^=", syntax.ArithShlAssgn: "<<=",
		syntax.ArithShrAssgn: ">>=", syntax.ArithComma: ",",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "?"
}

func testText(x syntax.TestExpr) string {
	switch e := x.(type) {
	case *syntax.Word:
		return wordText(*e)
	case *syntax.UnaryTest:
		return unTestOpText(e.Op) + " " + testText(e.X)
	case *syntax.NotTest:
		return "! " + testText(e.X)
	case *syntax.BinaryTest:
		return testText(e.X) + " " + binTestOpText(e.Op) + " " + testText(e.Y)
	case *syntax.ParenTest:
		return "(" + testText(e.X) + ")"
	}
	return "?"
}

func unTestOpText(op syntax.UnTestOperator) string {
	names := map[syntax.UnTestOperator]string{
		syntax.TestExists: "-e", syntax.TestRegFile: "-f", syntax.TestDir: "-d",
		syntax.TestCharDev: "-c", syntax.TestBlockDev: "-b", syntax.TestNamedPipe: "-p",
		syntax.TestSocket: "-S", syntax.TestSymlink: "-L", syntax.TestGIDSet: "-g",
		syntax.TestUIDSet: "-u", syntax.TestSticky: "-k", syntax.TestReadable: "-r",
		syntax.TestWritable: "-w", syntax.TestExecutable: "-x", syntax.TestNonEmpty: "-s",
		syntax.TestTerminal: "-t", syntax.TestEmptyStr: "-z", syntax.TestNonEmptyStr: "-n",
		syntax.TestOptSet: "-o", syntax.TestVarSet: "-v", syntax.TestNameRef: "-R",
		syntax.TestOwnedByUID: "-O", syntax.TestOwnedByGID: "-G", syntax.TestModifiedSinceRead: "-N",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "?"
}

func binTestOpText(op syntax.BinTestOperator) string {
	names := map[syntax.BinTestOperator]string{
		syntax.TestStrEq: "==", syntax.TestStrNe: "!=", syntax.TestStrLt: "<", syntax.TestStrGt: ">",
		syntax.TestReMatch: "=~", syntax.TestNewer: "-nt", syntax.TestOlder: "-ot", syntax.TestSameFile: "-ef",
		syntax.TestNumEq: "-eq", syntax.TestNumNe: "-ne", syntax.TestNumLe: "-le", syntax.TestNumGe: "-ge",
		syntax.TestNumLt: "-lt", syntax.TestNumGt: "-gt", syntax.TestAnd: "&&", syntax.TestOr: "||",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "?"
}
