// Package syntax turns shell source text into an AST. Reader (source.go)
// reads the source; Lexer (lexer.go) is the token-shape recognizer;
// Parser (this file and parser_arithm.go) is a recursive-descent grammar
// that drives the Lexer directly rather than consuming a pre-built token
// slice, since shell grammar is too context-sensitive for that
// separation to pay for itself (what the next token even *means* depends
// on whether the parser is reading a plain word, a parameter expansion,
// or an arithmetic expression).
package syntax

import (
	"fmt"
	"strings"

	"github.com/arrowshell/posh/token"
)

// ParseMode toggles optional parser behavior.
type ParseMode uint

const (
	ParseComments ParseMode = 1 << iota
	PosixConformant
)

// ParseError is returned by Parse on a syntax error, carrying enough
// position information to print "line N:col M: message".
type ParseError struct {
	Filename   string
	Pos        token.Position
	Text       string
	Incomplete bool // true if the error is "needs more input" (interactive continuation)
}

func (e *ParseError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<stdin>"
	}
	return fmt.Sprintf("%s:%s: %s", name, e.Pos, e.Text)
}

type parsePanic struct{ err *ParseError }

// Parser holds all state for one parse of a single source. It is not
// reentrant; build a new Parser (via Parse) per source.
type Parser struct {
	lex  Lexer
	f    *File
	mode ParseMode

	// atCmdStart is set when parsing starts but never read; reserved
	// words and assignments are recognized without consulting it.
	atCmdStart bool
}

// Parse parses a complete shell program from src. name is used in error
// messages and as File.Name.
func Parse(src []byte, name string, mode ParseMode) (f *File, err error) {
	p := &Parser{mode: mode}
	p.lex = *NewLexer(src)
	p.lex.posixMode = mode&PosixConformant != 0
	p.f = &File{Name: name}
	defer func() {
		if r := recover(); r != nil {
			if pp, ok := r.(parsePanic); ok {
				err = pp.err
				return
			}
			panic(r)
		}
	}()
	p.atCmdStart = true
	p.f.Stmts = p.stmtList()
	p.f.Lines = p.lex.lines
	if !p.lex.eof() {
		p.errf(p.pos(), "unexpected input at end of program")
	}
	return p.f, nil
}

func (p *Parser) pos() token.Pos { return p.lex.pushPos() }

func (p *Parser) position(pos token.Pos) token.Position {
	f := &File{Lines: p.lex.lines}
	return f.Position(pos)
}

func (p *Parser) errf(pos token.Pos, format string, args ...any) {
	panic(parsePanic{&ParseError{
		Filename: p.f.Name, Text: fmt.Sprintf(format, args...), Pos: p.position(pos),
	}})
}

func (p *Parser) incompleteErr(pos token.Pos, format string, args ...any) {
	panic(parsePanic{&ParseError{
		Filename: p.f.Name, Text: fmt.Sprintf(format, args...), Pos: p.position(pos), Incomplete: true,
	}})
}

// --- statement lists -------------------------------------------------

// stopWords terminates a statement list when, at command-start position,
// the upcoming literal word equals one of these (e.g. "fi", "done",
// "esac") or the upcoming operator is one of the given kinds (e.g. ")",
// "}", ";;"). An empty stopWords/stopOps parses to true EOF.
type stopSet struct {
	words []string
	ops   []token.Kind
}

func (s stopSet) matchesWord(w string) bool {
	for _, sw := range s.words {
		if sw == w {
			return true
		}
	}
	return false
}

func (s stopSet) matchesOp(k token.Kind) bool {
	for _, sk := range s.ops {
		if sk == k {
			return true
		}
	}
	return false
}

// stmtList parses ';'/'&'/newline separated and-or-lists until EOF.
func (p *Parser) stmtList(stop ...stopSet) []*Stmt {
	var ss stopSet
	if len(stop) > 0 {
		ss = stop[0]
	}
	var stmts []*Stmt
	for {
		p.skipSeparators()
		if p.lex.eof() {
			return stmts
		}
		if p.atStop(ss) {
			return stmts
		}
		st := p.stmt()
		if st == nil {
			return stmts
		}
		stmts = append(stmts, st)
		if p.lex.eof() {
			return stmts
		}
	}
}

// skipSeparators consumes blank lines, comments, bare ';', and flushes any
// queued heredoc bodies once their declaring newline is reached.
func (p *Parser) skipSeparators() {
	for {
		p.lex.skipBlanks()
		switch p.lex.peekByte() {
		case '#':
			for !p.lex.eof() && p.lex.peekByte() != '\n' {
				p.lex.advance(1)
			}
		case '\n':
			p.lex.advance(1)
			p.flushHeredocs()
		case ';':
			if p.lex.byteAt(1) != ';' && p.lex.byteAt(1) != '&' {
				p.lex.advance(1)
			} else {
				return
			}
		default:
			return
		}
	}
}

func (p *Parser) flushHeredocs() {
	docs := p.lex.pendingHeredocs
	p.lex.pendingHeredocs = nil
	for _, rd := range docs {
		stop, stripTabs := p.heredocDelim(rd)
		body := p.lex.collectHeredocBody(stop, stripTabs)
		if rd.HdocQuoted {
			rd.Hdoc = &Word{Parts: []WordPart{&Lit{Value: body}}}
		} else {
			// Expandable heredoc body: re-lex the body text as a
			// double-quoted context so $var/$()/$(()) inside it expand
			// at execution time.
			sub := &Parser{mode: p.mode}
			sub.lex = *NewLexer([]byte(body))
			parts := sub.doubleQuotedPartsUntilEOF()
			rd.Hdoc = &Word{Parts: parts}
		}
	}
}

func (p *Parser) heredocDelim(rd *Redirect) (stop string, stripTabs bool) {
	stripTabs = rd.Op == DashHdoc
	return wordFlatText(rd.Word), stripTabs
}

// wordFlatText concatenates the literal text of a word's parts, unwrapping
// quotes. Used for heredoc delimiters, which cannot themselves contain
// expansions — only quoting that toggles whether the body expands.
func wordFlatText(w Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch v := part.(type) {
		case *Lit:
			sb.WriteString(v.Value)
		case *SglQuoted:
			sb.WriteString(v.Value)
		case *DblQuoted:
			for _, p2 := range v.Parts {
				if lit, ok := p2.(*Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		}
	}
	return sb.String()
}

func (p *Parser) atStop(ss stopSet) bool {
	if len(ss.words) == 0 && len(ss.ops) == 0 {
		return false
	}
	if k, _ := p.lex.operatorAt(); k != token.Illegal && ss.matchesOp(k) {
		return true
	}
	if w, ok := p.peekWordLit(); ok && ss.matchesWord(w) {
		return true
	}
	return false
}

// peekWordLit looks ahead at the next bare literal word (letters only, no
// expansions) without consuming it, for reserved-word/stop-word checks.
func (p *Parser) peekWordLit() (string, bool) {
	save := p.lex.pos
	saveLine := p.lex.line
	saveLines := append([]int(nil), p.lex.lines...)
	p.lex.skipBlanks()
	start := p.lex.pos
	for !p.lex.eof() && !wordBreak(p.lex.peekByte()) {
		p.lex.advance(1)
	}
	s := string(p.lex.src[start:p.lex.pos])
	p.lex.pos = save
	p.lex.line = saveLine
	p.lex.lines = saveLines
	return s, s != ""
}

// consumeWordLit consumes exactly the reserved word previously peeked.
func (p *Parser) consumeWordLit(word string) token.Pos {
	p.lex.skipBlanks()
	pos := p.pos()
	if got, _ := p.peekWordLit(); got != word {
		if p.lex.eof() {
			// Reaching EOF still looking for a closing keyword (fi/done/
			// esac/...) means an interactive reader should ask for another
			// line, not report a fixed syntax error.
			p.incompleteErr(pos, "reached EOF without matching keyword %q", word)
		}
		p.errf(pos, "expected %q, found %q", word, got)
	}
	p.lex.advance(len(word))
	return pos
}

// --- statement / pipeline / and-or ------------------------------------

func (p *Parser) stmt() *Stmt {
	pos := p.pos()
	st := &Stmt{Position: pos}
	p.readAssignsAndRedirs(st)
	if w, ok := p.peekWordLit(); ok && w == "!" && st.Cmd == nil {
		p.lex.advance(1)
		st.Negated = true
		p.lex.skipBlanks()
	}
	if st.Cmd == nil && len(st.Assigns) == 0 && len(st.Redirs) == 0 {
		return nil
	}
	aol := p.andOrList(st)
	return p.finishStmt(st, aol)
}

// readAssignsAndRedirs consumes any leading assignment words and
// redirections before the command word; the two can be interleaved
// before the first WORD.
func (p *Parser) readAssignsAndRedirs(st *Stmt) {
	for {
		p.lex.skipBlanks()
		if p.atRedirect() {
			st.Redirs = append(st.Redirs, p.redirect())
			continue
		}
		if as, ok := p.tryAssign(); ok {
			st.Assigns = append(st.Assigns, as)
			continue
		}
		return
	}
}

func (p *Parser) andOrList(st *Stmt) *AndOrList {
	first := p.pipeline(st)
	if first == nil {
		return nil
	}
	aol := &AndOrList{First: first}
	for {
		p.lex.skipBlanks()
		k, n := p.lex.operatorAt()
		if k != token.AndAnd && k != token.OrOr {
			break
		}
		opPos := p.pos()
		p.lex.advance(n)
		p.skipNewlines()
		next := p.pipeline(nil)
		if next == nil {
			p.errf(opPos, "expected a command after %q", k)
		}
		aol.Rest = append(aol.Rest, AndOrPart{OpPos: opPos, And: k == token.AndAnd, X: next})
	}
	return aol
}

func (p *Parser) skipNewlines() {
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '\n' {
			p.lex.advance(1)
			p.flushHeredocs()
			continue
		}
		if p.lex.peekByte() == '#' {
			for !p.lex.eof() && p.lex.peekByte() != '\n' {
				p.lex.advance(1)
			}
			continue
		}
		return
	}
}

// pipeline parses "[!] command ( '|' command )*". If st is non-nil, it is
// reused as the first stage (it may already carry leading assignments,
// redirs, or a negation collected by stmt()).
func (p *Parser) pipeline(st *Stmt) *Pipeline {
	if st == nil {
		st = &Stmt{Position: p.pos()}
		p.readAssignsAndRedirs(st)
	}
	negated := st.Negated
	st.Negated = false
	st.Cmd = p.command()
	p.trailingRedirs(st)
	pipe := &Pipeline{Negated: negated, Stages: []*Stmt{st}}
	for {
		p.lex.skipBlanks()
		k, n := p.lex.operatorAt()
		if k != token.Pipe && k != token.PipeAll {
			break
		}
		if k == token.PipeAll {
			pipe.PipeAll = true
		}
		p.lex.advance(n)
		p.skipNewlines()
		st2 := &Stmt{Position: p.pos()}
		p.readAssignsAndRedirs(st2)
		st2.Cmd = p.command()
		p.trailingRedirs(st2)
		pipe.Stages = append(pipe.Stages, st2)
	}
	return pipe
}

// finishStmt consumes a trailing ';'/'&'/newline/EOF and folds the parsed
// and-or-list into a single Command for the Stmt: a Stmt wraps exactly
// one Command, so AndOrList/Pipeline collapse to their single member
// when there's nothing to combine, avoiding a redundant wrapper node.
func (p *Parser) finishStmt(st *Stmt, aol *AndOrList) *Stmt {
	if aol == nil {
		return nil
	}
	switch {
	case len(aol.Rest) == 0 && len(aol.First.Stages) == 1:
		*st = *aol.First.Stages[0]
		st.Negated = aol.First.Negated
	case len(aol.Rest) == 0:
		st.Cmd = aol.First
	default:
		st.Cmd = aol
	}
	p.lex.skipBlanks()
	switch p.lex.peekByte() {
	case '&':
		if p.lex.byteAt(1) != '&' {
			st.SemiPos = p.pos()
			st.Background = true
			p.lex.advance(1)
		}
	case ';':
		if p.lex.byteAt(1) != ';' && p.lex.byteAt(1) != '&' {
			st.SemiPos = p.pos()
			p.lex.advance(1)
		}
	}
	return st
}

func (p *Parser) trailingRedirs(st *Stmt) {
	for {
		p.lex.skipBlanks()
		if !p.atRedirect() {
			return
		}
		st.Redirs = append(st.Redirs, p.redirect())
	}
}

// --- commands ----------------------------------------------------------

func (p *Parser) command() Command {
	p.lex.skipBlanks()
	pos := p.pos()
	w, ok := p.peekWordLit()
	if ok {
		switch w {
		case "{":
			return p.braceGroup()
		case "if":
			return p.ifClause()
		case "while":
			return p.whileClause()
		case "until":
			return p.untilClause()
		case "for":
			return p.forClause()
		case "case":
			return p.caseClause()
		case "select":
			return p.selectClause()
		case "function":
			return p.functionDef(true)
		case "coproc":
			p.errf(pos, "coproc is not supported")
		}
	}
	if p.lex.peekByte() == '(' {
		if p.lex.byteAt(1) == '(' {
			return p.arithmeticCommand()
		}
		return p.subshell()
	}
	if ok && w == "[[" {
		return p.conditionalExpr()
	}
	if ok && looksLikeFuncDecl(p, w) {
		return p.functionDef(false)
	}
	// Returning a *SimpleCommand directly here, even a nil one, would box
	// into a non-nil Command interface value (a nil concrete pointer is
	// not a nil interface); callers checking "Cmd == nil" for an
	// assignment-only statement need a genuinely nil interface.
	if sc := p.simpleCommand(); sc != nil {
		return sc
	}
	return nil
}

// looksLikeFuncDecl reports whether the upcoming text is "NAME()", the
// POSIX function-declaration form.
func looksLikeFuncDecl(p *Parser, name string) bool {
	if !validName(name) {
		return false
	}
	save := p.lex.pos
	p.lex.advance(len(name))
	p.lex.skipBlanks()
	isFunc := p.lex.peekByte() == '(' && p.lex.byteAt(1) == ')'
	p.lex.pos = save
	return isFunc
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func (p *Parser) simpleCommand() *SimpleCommand {
	var words []Word
	for {
		p.lex.skipBlanks()
		if p.lex.eof() {
			break
		}
		if p.atRedirect() {
			break
		}
		if k, _ := p.lex.operatorAt(); k != token.Illegal {
			break
		}
		if p.lex.peekByte() == '\n' {
			break
		}
		words = append(words, p.word())
	}
	if len(words) == 0 {
		return nil
	}
	return &SimpleCommand{Args: words}
}

func (p *Parser) braceGroup() *BraceGroup {
	lb := p.consumeWordLit("{")
	body := p.stmtList(stopSet{words: []string{"}"}})
	rb := p.consumeWordLit("}")
	return &BraceGroup{Lbrace: lb, Rbrace: rb, Stmts: body}
}

func (p *Parser) subshell() *Subshell {
	lp := p.pos()
	p.lex.advance(1)
	body := p.stmtList(stopSet{ops: []token.Kind{token.RParen}})
	p.lex.skipBlanks()
	if p.lex.peekByte() != ')' {
		if p.lex.eof() {
			p.incompleteErr(lp, "reached EOF without matching ( with )")
		}
		p.errf(p.pos(), "expected ')'")
	}
	rp := p.pos()
	p.lex.advance(1)
	return &Subshell{Lparen: lp, Rparen: rp, Stmts: body}
}

func (p *Parser) arithmeticCommand() *ArithmeticCommand {
	lp := p.pos()
	p.lex.advance(2)
	x := p.arithmExpr(0, "))")
	p.lex.skipBlanks()
	rp := p.pos()
	if p.lex.peekByte() != ')' || p.lex.byteAt(1) != ')' {
		p.errf(rp, "expected '))'")
	}
	p.lex.advance(2)
	return &ArithmeticCommand{Left: lp, Right: rp, X: x}
}

func (p *Parser) ifClause() *If {
	ifPos := p.consumeWordLit("if")
	cl := &If{IfPos: ifPos}
	cl.Cond = p.stmtList(stopSet{words: []string{"then"}})
	p.consumeWordLit("then")
	cl.Then = p.stmtList(stopSet{words: []string{"elif", "else", "fi"}})
	for {
		w, _ := p.peekWordLit()
		if w != "elif" {
			break
		}
		ep := p.consumeWordLit("elif")
		e := &Elif{ElifPos: ep}
		e.Cond = p.stmtList(stopSet{words: []string{"then"}})
		p.consumeWordLit("then")
		e.Then = p.stmtList(stopSet{words: []string{"elif", "else", "fi"}})
		cl.Elifs = append(cl.Elifs, e)
	}
	if w, _ := p.peekWordLit(); w == "else" {
		p.consumeWordLit("else")
		cl.Else = p.stmtList(stopSet{words: []string{"fi"}})
	}
	cl.FiPos = p.consumeWordLit("fi")
	return cl
}

func (p *Parser) whileClause() *While {
	wp := p.consumeWordLit("while")
	w := &While{WhilePos: wp}
	w.Cond = p.stmtList(stopSet{words: []string{"do"}})
	p.consumeWordLit("do")
	w.Do = p.stmtList(stopSet{words: []string{"done"}})
	w.DonePos = p.consumeWordLit("done")
	return w
}

func (p *Parser) untilClause() *Until {
	up := p.consumeWordLit("until")
	u := &Until{UntilPos: up}
	u.Cond = p.stmtList(stopSet{words: []string{"do"}})
	p.consumeWordLit("do")
	u.Do = p.stmtList(stopSet{words: []string{"done"}})
	u.DonePos = p.consumeWordLit("done")
	return u
}

func (p *Parser) forClause() *For {
	fp := p.consumeWordLit("for")
	f := &For{ForPos: fp}
	p.lex.skipBlanks()
	if k, _ := p.lex.operatorAt(); k == token.DblLParen {
		f.Loop = p.cFor()
	} else {
		f.Loop = p.wordIter()
	}
	p.skipNewlines()
	if w, _ := p.peekWordLit(); w == ";" {
		p.lex.advance(1)
	}
	p.skipSeparators()
	p.consumeWordLit("do")
	f.Do = p.stmtList(stopSet{words: []string{"done"}})
	f.DonePos = p.consumeWordLit("done")
	return f
}

func (p *Parser) cFor() *CFor {
	lp := p.pos()
	p.lex.advance(2)
	c := &CFor{Lparen: lp}
	c.Init = p.arithmExprOpt(";")
	p.expectByte(';')
	c.Cond = p.arithmExprOpt(";")
	p.expectByte(';')
	c.Post = p.arithmExprOpt(")")
	p.lex.skipBlanks()
	rp := p.pos()
	if p.lex.peekByte() != ')' || p.lex.byteAt(1) != ')' {
		p.errf(rp, "expected '))'")
	}
	c.Rparen = rp
	p.lex.advance(2)
	return c
}

func (p *Parser) arithmExprOpt(stop string) ArithmExpr {
	p.lex.skipBlanks()
	if p.lex.peekByte() == ';' || (stop == ")" && p.lex.peekByte() == ')') {
		return nil
	}
	return p.arithmExpr(0, stop)
}

func (p *Parser) expectByte(b byte) {
	p.lex.skipBlanks()
	if p.lex.peekByte() != b {
		p.errf(p.pos(), "expected %q", string(b))
	}
	p.lex.advance(1)
}

func (p *Parser) wordIter() *WordIter {
	p.lex.skipBlanks()
	namePos := p.pos()
	name := p.readBareName()
	wi := &WordIter{Name: Lit{ValuePos: namePos, Value: name}}
	p.lex.skipBlanks()
	if w, _ := p.peekWordLit(); w == "in" {
		wi.InPos = p.consumeWordLit("in")
		for {
			p.lex.skipBlanks()
			if p.lex.peekByte() == '\n' || p.lex.peekByte() == ';' || p.lex.eof() {
				break
			}
			wi.Items = append(wi.Items, p.word())
		}
	}
	return wi
}

func (p *Parser) readBareName() string {
	start := p.lex.pos
	for !p.lex.eof() && !wordBreak(p.lex.peekByte()) {
		p.lex.advance(1)
	}
	return string(p.lex.src[start:p.lex.pos])
}

func (p *Parser) selectClause() *Select {
	sp := p.consumeWordLit("select")
	s := &Select{SelectPos: sp}
	p.lex.skipBlanks()
	namePos := p.pos()
	s.Name = Lit{ValuePos: namePos, Value: p.readBareName()}
	p.lex.skipBlanks()
	if w, _ := p.peekWordLit(); w == "in" {
		p.consumeWordLit("in")
		for {
			p.lex.skipBlanks()
			if p.lex.peekByte() == '\n' || p.lex.peekByte() == ';' || p.lex.eof() {
				break
			}
			s.Items = append(s.Items, p.word())
		}
	}
	p.skipSeparators()
	p.consumeWordLit("do")
	s.Do = p.stmtList(stopSet{words: []string{"done"}})
	s.DonePos = p.consumeWordLit("done")
	return s
}

func (p *Parser) caseClause() *Case {
	cp := p.consumeWordLit("case")
	c := &Case{CasePos: cp}
	c.Word = p.word()
	p.skipNewlines()
	p.consumeWordLit("in")
	p.skipNewlines()
	for {
		if w, _ := p.peekWordLit(); w == "esac" {
			break
		}
		c.Items = append(c.Items, p.caseItem())
		p.skipNewlines()
	}
	c.EsacPos = p.consumeWordLit("esac")
	return c
}

func (p *Parser) caseItem() *CaseItem {
	item := &CaseItem{}
	p.lex.skipBlanks()
	if p.lex.peekByte() == '(' {
		p.lex.advance(1)
	}
	for {
		item.Patterns = append(item.Patterns, p.patternWord())
		p.lex.skipBlanks()
		if p.lex.peekByte() == '|' {
			p.lex.advance(1)
			continue
		}
		break
	}
	p.lex.skipBlanks()
	if p.lex.peekByte() != ')' {
		p.errf(p.pos(), "expected ')' in case pattern")
	}
	p.lex.advance(1)
	item.Stmts = p.stmtList(stopSet{ops: []token.Kind{token.DblSemi, token.SemiAmp, token.DblSemiAmp}, words: []string{"esac"}})
	p.lex.skipBlanks()
	item.TermPos = p.pos()
	switch k, n := p.lex.operatorAt(); k {
	case token.DblSemi:
		item.Term = CaseBreak
		p.lex.advance(n)
	case token.SemiAmp:
		item.Term = CaseFall
		p.lex.advance(n)
	case token.DblSemiAmp:
		item.Term = CaseTestFall
		p.lex.advance(n)
	default:
		item.Term = CaseBreak
	}
	return item
}

// patternWord reads a case pattern: a word where "|" and ")" terminate it
// even though they aren't ordinary word-break bytes outside case context.
func (p *Parser) patternWord() Word {
	var parts []WordPart
	for {
		if p.lex.eof() {
			break
		}
		b := p.lex.peekByte()
		if b == '|' || b == ')' || b == '\n' {
			break
		}
		if wordBreak(b) && b != '(' {
			break
		}
		parts = append(parts, p.wordPart(false))
	}
	return Word{Parts: parts}
}

func (p *Parser) functionDef(kwForm bool) *FunctionDef {
	fd := &FunctionDef{Position: p.pos(), BashStyle: kwForm}
	if kwForm {
		p.consumeWordLit("function")
		p.lex.skipBlanks()
	}
	namePos := p.pos()
	name := p.readBareName()
	fd.Name = Lit{ValuePos: namePos, Value: name}
	p.lex.skipBlanks()
	if p.lex.peekByte() == '(' && p.lex.byteAt(1) == ')' {
		p.lex.advance(2)
	}
	p.skipNewlines()
	bodyPos := p.pos()
	bodyCmd := p.command()
	body := &Stmt{Position: bodyPos, Cmd: bodyCmd}
	p.trailingRedirs(body)
	fd.Body = body
	return fd
}

func (p *Parser) conditionalExpr() *ConditionalExpression {
	left := p.consumeWordLit("[[")
	x := p.testExpr(0)
	p.lex.skipBlanks()
	right := p.pos()
	w, _ := p.peekWordLit()
	if w != "]]" {
		p.errf(right, "expected ']]'")
	}
	p.lex.advance(2)
	return &ConditionalExpression{Left: left, Right: right, X: x}
}

// --- assignments & redirections ----------------------------------------

// tryAssign speculatively parses "NAME=word", "NAME+=word", or
// "NAME[idx]=word", rewinding if what follows '=' doesn't look like an
// assignment. Assignments are recognized at command-start position by
// their NAME=... shape.
func (p *Parser) tryAssign() (*Assign, bool) {
	save := p.lex.pos
	start := p.lex.pos
	for !p.lex.eof() && isNameByte(p.lex.peekByte()) {
		p.lex.advance(1)
	}
	name := string(p.lex.src[start:p.lex.pos])
	if name == "" || !validName(name) {
		p.lex.pos = save
		return nil, false
	}
	as := &Assign{Name: &Lit{ValuePos: token.Pos(start + 1), Value: name}}
	if p.lex.peekByte() == '[' {
		p.lex.advance(1)
		as.Index = p.arithmExpr(0, "]")
		if p.lex.peekByte() != ']' {
			p.lex.pos = save
			return nil, false
		}
		p.lex.advance(1)
	}
	if p.lex.peekByte() == '+' && p.lex.byteAt(1) == '=' {
		as.Append = true
		p.lex.advance(2)
	} else if p.lex.peekByte() == '=' {
		p.lex.advance(1)
	} else {
		p.lex.pos = save
		return nil, false
	}
	if p.lex.peekByte() == '(' {
		as.Array = true
		p.lex.advance(1)
		p.lex.skipBlanks()
		for p.lex.peekByte() != ')' && !p.lex.eof() {
			el := ArrayElem{}
			if p.lex.peekByte() == '[' {
				p.lex.advance(1)
				el.Index = p.arithmExpr(0, "]")
				p.expectByte(']')
				p.expectByte('=')
			}
			el.Value = p.word()
			as.Elems = append(as.Elems, el)
			p.lex.skipBlanks()
		}
		p.lex.advance(1)
		return as, true
	}
	as.Value = p.word()
	return as, true
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (p *Parser) atRedirect() bool {
	b := p.lex.peekByte()
	if b >= '0' && b <= '9' {
		i := 0
		for isDigit(p.lex.byteAt(i)) {
			i++
		}
		nb := p.lex.byteAt(i)
		return nb == '<' || nb == '>'
	}
	if b == '{' {
		// {name}> form: bounded name then '}' then redirect op.
		i := 1
		for isNameByte(p.lex.byteAt(i)) {
			i++
		}
		return p.lex.byteAt(i) == '}' && (p.lex.byteAt(i+1) == '<' || p.lex.byteAt(i+1) == '>')
	}
	return b == '<' || b == '>'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (p *Parser) redirect() *Redirect {
	rd := &Redirect{}
	if isDigit(p.lex.peekByte()) {
		start := p.lex.pos
		pos := p.pos()
		for isDigit(p.lex.peekByte()) {
			p.lex.advance(1)
		}
		rd.N = &Lit{ValuePos: pos, Value: string(p.lex.src[start:p.lex.pos])}
	} else if p.lex.peekByte() == '{' {
		start := p.lex.pos + 1
		pos := p.pos() + 1
		p.lex.advance(1)
		for isNameByte(p.lex.peekByte()) {
			p.lex.advance(1)
		}
		rd.N = &Lit{ValuePos: pos, Value: string(p.lex.src[start:p.lex.pos])}
		p.lex.advance(1) // '}'
	}
	rd.OpPos = p.pos()
	k, n := p.lex.operatorAt()
	switch k {
	case token.Less:
		rd.Op = RdrIn
	case token.Great:
		rd.Op = RdrOut
	case token.DblGreat:
		rd.Op = AppOut
	case token.DblLess:
		rd.Op = Hdoc
	case token.DashLess:
		rd.Op = DashHdoc
	case token.TripLess:
		rd.Op = WordHdoc
	case token.LessAmp:
		rd.Op = DplIn
	case token.GreatAmp:
		rd.Op = DplOut
	case token.LessGreat:
		rd.Op = RdrInOut
	case token.AmpGreat:
		rd.Op = RdrAll
	case token.AmpGtGt:
		rd.Op = AppAll
	case token.LessParen:
		rd.Op = CmdIn
	case token.GreatParen:
		rd.Op = CmdOut
	case token.ClobberGt:
		rd.Op = ClobberOut
	default:
		p.errf(rd.OpPos, "expected a redirection operator")
	}
	p.lex.advance(n)
	p.lex.skipBlanks()
	switch rd.Op {
	case Hdoc, DashHdoc:
		word := p.heredocDelimWord()
		rd.Word = word
		rd.HdocQuoted = wordIsQuoted(word)
		p.lex.pendingHeredocs = append(p.lex.pendingHeredocs, rd)
	case CmdIn, CmdOut:
		stmts, rp := p.procSubstBody()
		rd.Word = Word{Parts: []WordPart{&ProcessSubstitution{OpPos: rd.OpPos, Rparen: rp, In: rd.Op == CmdIn, Stmts: stmts}}}
	default:
		rd.Word = p.word()
	}
	return rd
}

// heredocDelimWord reads a heredoc delimiter word, which may be quoted,
// which suppresses expansion of the body.
func (p *Parser) heredocDelimWord() Word {
	return p.word()
}

func wordIsQuoted(w Word) bool {
	for _, part := range w.Parts {
		switch part.(type) {
		case *SglQuoted, *DblQuoted:
			return true
		}
	}
	return false
}

// procSubstBody parses the statement list inside "<(" / ">(", with the
// lexer already positioned just past the opening two bytes. It returns
// the statements and the position of the closing ')'.
func (p *Parser) procSubstBody() ([]*Stmt, token.Pos) {
	body := p.stmtList(stopSet{ops: []token.Kind{token.RParen}})
	p.lex.skipBlanks()
	if p.lex.peekByte() != ')' {
		p.errf(p.pos(), "expected ')' to close process substitution")
	}
	rp := p.pos()
	p.lex.advance(1)
	return body, rp
}

// doubleQuotedPartsUntilEOF re-lexes an already-collected heredoc body
// string as if it were the inside of a double-quoted string, for
// expandable heredocs.
func (p *Parser) doubleQuotedPartsUntilEOF() []WordPart {
	var parts []WordPart
	for !p.lex.eof() {
		parts = append(parts, p.wordPart(true))
	}
	return parts
}

// --- words & word parts --------------------------------------------------

func (p *Parser) word() Word {
	var parts []WordPart
	for {
		if p.lex.eof() {
			break
		}
		b := p.lex.peekByte()
		if wordBreak(b) {
			break
		}
		parts = append(parts, p.wordPart(false))
	}
	return Word{Parts: parts}
}

// wordPart reads one fragment of a word. inDouble reports whether we are
// already inside a double-quoted context (so a bare '"' ends it rather
// than starting a new one, and unescaped single quotes are literal).
func (p *Parser) wordPart(inDouble bool) WordPart {
	b := p.lex.peekByte()
	switch b {
	case '\'':
		if inDouble {
			return p.literalRun(inDouble)
		}
		return p.singleQuoted()
	case '"':
		if inDouble {
			// handled by caller (doubleQuoted stops here); shouldn't reach.
			return p.literalRun(inDouble)
		}
		return p.doubleQuoted()
	case '$':
		return p.dollarExpr(inDouble)
	case '`':
		return p.backquoted()
	case '~':
		if !inDouble && p.atTildePos() {
			return p.tildeExpr()
		}
		return p.literalRun(inDouble)
	case '<':
		if !inDouble && p.lex.byteAt(1) == '(' {
			pos := p.pos()
			p.lex.advance(2)
			stmts, rp := p.procSubstBody()
			return &ProcessSubstitution{OpPos: pos, Rparen: rp, In: true, Stmts: stmts}
		}
		return p.literalRun(inDouble)
	case '>':
		if !inDouble && p.lex.byteAt(1) == '(' {
			pos := p.pos()
			p.lex.advance(2)
			stmts, rp := p.procSubstBody()
			return &ProcessSubstitution{OpPos: pos, Rparen: rp, In: false, Stmts: stmts}
		}
		return p.literalRun(inDouble)
	case '?', '*', '+', '@', '!':
		if !inDouble && p.lex.byteAt(1) == '(' {
			return p.extGlob(b)
		}
		return p.literalRun(inDouble)
	default:
		return p.literalRun(inDouble)
	}
}

// atTildePos always reports true, so every unquoted '~' starts a part of
// its own. Whether it expands is decided later by expand's expandTilde,
// which only expands a '~' in a word's first part; a '~' after ':' is
// not expanded.
func (p *Parser) atTildePos() bool {
	return true
}

func (p *Parser) tildeExpr() WordPart {
	pos := p.pos()
	start := p.lex.pos
	p.lex.advance(1)
	for isNameByte(p.lex.peekByte()) || p.lex.peekByte() == '-' || p.lex.peekByte() == '+' {
		p.lex.advance(1)
	}
	return &Lit{ValuePos: pos, Value: string(p.lex.src[start:p.lex.pos])}
}

func (p *Parser) extGlob(op byte) *ExtGlob {
	pos := p.pos()
	p.lex.advance(2) // op + '('
	start := p.lex.pos
	depth := 1
	for !p.lex.eof() && depth > 0 {
		switch p.lex.peekByte() {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				break
			}
		}
		if depth == 0 {
			break
		}
		p.lex.advance(1)
	}
	pat := string(p.lex.src[start:p.lex.pos])
	p.lex.advance(1) // ')'
	return &ExtGlob{OpPos: pos, Op: op, Pattern: Lit{ValuePos: token.Pos(start + 1), Value: pat}}
}

// literalRun reads a maximal run of plain literal bytes, honoring
// backslash escaping and stopping at any byte that starts a new word
// part or ends the word/quote.
func (p *Parser) literalRun(inDouble bool) *Lit {
	pos := p.pos()
	var sb strings.Builder
	for !p.lex.eof() {
		b := p.lex.peekByte()
		if b == '\\' {
			nb := p.lex.byteAt(1)
			if inDouble {
				switch nb {
				case '$', '`', '"', '\\', '\n':
					if nb == '\n' {
						p.lex.advance(2)
						continue
					}
					sb.WriteByte(nb)
					p.lex.advance(2)
					continue
				}
				sb.WriteByte('\\')
				p.lex.advance(1)
				continue
			}
			if nb == '\n' {
				p.lex.advance(2)
				continue
			}
			sb.WriteByte('\\')
			if nb != 0 {
				sb.WriteByte(nb)
				p.lex.advance(2)
			} else {
				p.lex.advance(1)
			}
			continue
		}
		if inDouble {
			if b == '"' || b == '$' || b == '`' {
				break
			}
		} else {
			if b == '\'' || b == '"' || b == '$' || b == '`' || wordBreak(b) {
				break
			}
		}
		sb.WriteByte(b)
		p.lex.advance(1)
	}
	return &Lit{ValuePos: pos, Value: sb.String()}
}

func (p *Parser) singleQuoted() *SglQuoted {
	pos := p.pos()
	p.lex.advance(1)
	start := p.lex.pos
	for !p.lex.eof() && p.lex.peekByte() != '\'' {
		p.lex.advance(1)
	}
	val := string(p.lex.src[start:p.lex.pos])
	if p.lex.eof() {
		p.incompleteErr(pos, "reached EOF without closing quote '")
	}
	p.lex.advance(1)
	return &SglQuoted{Position: pos, Value: val}
}

func (p *Parser) dollarSingleQuoted() *SglQuoted {
	pos := p.pos()
	p.lex.advance(2) // $'
	var sb strings.Builder
	for !p.lex.eof() && p.lex.peekByte() != '\'' {
		b := p.lex.peekByte()
		if b == '\\' {
			sb.WriteByte(b)
			p.lex.advance(1)
			if !p.lex.eof() {
				sb.WriteByte(p.lex.peekByte())
				p.lex.advance(1)
			}
			continue
		}
		sb.WriteByte(b)
		p.lex.advance(1)
	}
	if p.lex.eof() {
		p.incompleteErr(pos, "reached EOF without closing quote $'")
	}
	p.lex.advance(1)
	return &SglQuoted{Position: pos, Dollar: true, Value: sb.String()}
}

func (p *Parser) doubleQuoted() *DblQuoted {
	pos := p.pos()
	p.lex.advance(1)
	dq := &DblQuoted{Position: pos}
	for !p.lex.eof() && p.lex.peekByte() != '"' {
		dq.Parts = append(dq.Parts, p.wordPart(true))
	}
	if p.lex.eof() {
		p.incompleteErr(pos, `reached EOF without closing quote "`)
	}
	p.lex.advance(1)
	return dq
}

func (p *Parser) dollarDoubleQuoted() *DblQuoted {
	pos := p.pos()
	p.lex.advance(2) // $"
	dq := &DblQuoted{Position: pos, Dollar: true}
	for !p.lex.eof() && p.lex.peekByte() != '"' {
		dq.Parts = append(dq.Parts, p.wordPart(true))
	}
	p.lex.advance(1)
	return dq
}

func (p *Parser) backquoted() *CmdSubst {
	pos := p.pos()
	p.lex.advance(1)
	start := p.lex.pos
	var sb strings.Builder
	for !p.lex.eof() && p.lex.peekByte() != '`' {
		if p.lex.peekByte() == '\\' && (p.lex.byteAt(1) == '`' || p.lex.byteAt(1) == '\\' || p.lex.byteAt(1) == '$') {
			sb.WriteByte(p.lex.byteAt(1))
			p.lex.advance(2)
			continue
		}
		sb.WriteByte(p.lex.peekByte())
		p.lex.advance(1)
	}
	_ = start
	if p.lex.eof() {
		p.incompleteErr(pos, "reached EOF without closing backquote")
	}
	end := p.pos()
	p.lex.advance(1)
	sub := &Parser{mode: p.mode}
	sub.lex = *NewLexer([]byte(sb.String()))
	sub.atCmdStart = true
	stmts := sub.stmtList()
	return &CmdSubst{Left: pos, Right: end, Stmts: stmts, Backquoted: true}
}

// dollarExpr dispatches on the byte following '$'.
func (p *Parser) dollarExpr(inDouble bool) WordPart {
	pos := p.pos()
	nb := p.lex.byteAt(1)
	switch nb {
	case '\'':
		if !inDouble {
			return p.dollarSingleQuoted()
		}
	case '"':
		if !inDouble {
			return p.dollarDoubleQuoted()
		}
	case '{':
		return p.paramExpBraced()
	case '(':
		if p.lex.byteAt(2) == '(' {
			return p.arithmExpansion()
		}
		return p.cmdSubstParen()
	case '[':
		return p.arithmExpansionBracket()
	}
	return p.paramExpSimple(pos)
}

func (p *Parser) cmdSubstParen() *CmdSubst {
	left := p.pos()
	p.lex.advance(2) // $(
	stmts := p.stmtList(stopSet{ops: []token.Kind{token.RParen}})
	p.lex.skipBlanks()
	if p.lex.peekByte() != ')' {
		p.errf(p.pos(), "expected ')' to close command substitution")
	}
	right := p.pos()
	p.lex.advance(1)
	return &CmdSubst{Left: left, Right: right, Stmts: stmts}
}

func (p *Parser) arithmExpansion() *ArithmExp {
	left := p.pos()
	p.lex.advance(3) // $((
	x := p.arithmExpr(0, "))")
	p.lex.skipBlanks()
	right := p.pos()
	if p.lex.peekByte() != ')' || p.lex.byteAt(1) != ')' {
		p.errf(right, "expected '))'")
	}
	p.lex.advance(2)
	return &ArithmExp{Left: left, Right: right, X: x}
}

func (p *Parser) arithmExpansionBracket() *ArithmExp {
	left := p.pos()
	p.lex.advance(2) // $[
	x := p.arithmExpr(0, "]")
	p.lex.skipBlanks()
	right := p.pos()
	if p.lex.peekByte() != ']' {
		p.errf(right, "expected ']'")
	}
	p.lex.advance(1)
	return &ArithmExp{Left: left, Right: right, Bracket: true, X: x}
}

var specialParams = "@*#?-$!0123456789"

func (p *Parser) paramExpSimple(pos token.Pos) *ParamExp {
	p.lex.advance(1) // $
	b := p.lex.peekByte()
	pe := &ParamExp{Dollar: pos, Short: true}
	switch {
	case strings.IndexByte("@*#?-$!", b) >= 0:
		pe.Param = Lit{ValuePos: p.pos(), Value: string(b)}
		// "$@"/"$*" need the same At/Star marking as the braced and
		// array-subscript forms so expansion can treat all three
		// uniformly as "list of independent fields" contexts.
		switch b {
		case '@':
			pe.At = true
		case '*':
			pe.Star = true
		}
		p.lex.advance(1)
	case isDigit(b):
		// each digit is its own single-character positional parameter
		// reference when unbraced, per POSIX.
		pe.Param = Lit{ValuePos: p.pos(), Value: string(b)}
		p.lex.advance(1)
	default:
		start := p.lex.pos
		namePos := p.pos()
		for isNameByte(p.lex.peekByte()) {
			p.lex.advance(1)
		}
		pe.Param = Lit{ValuePos: namePos, Value: string(p.lex.src[start:p.lex.pos])}
	}
	return pe
}

// paramExpBraced parses the full "${...}" grammar.
func (p *Parser) paramExpBraced() *ParamExp {
	dollar := p.pos()
	p.lex.advance(2) // ${
	pe := &ParamExp{Dollar: dollar}

	if p.lex.peekByte() == '#' && p.lex.byteAt(1) != '}' && p.lex.byteAt(1) != '#' {
		pe.Length = true
		p.lex.advance(1)
	} else if p.lex.peekByte() == '!' {
		save := p.lex.pos
		p.lex.advance(1)
		name := p.readParamName()
		if name == "" {
			p.lex.pos = save
		} else {
			pe.Excl = true
			pe.Param = Lit{Value: name}
			p.lex.skipBlanks()
			switch p.lex.peekByte() {
			case '*':
				pe.Names, pe.NamesAt = true, false
				p.lex.advance(1)
			case '@':
				pe.Names, pe.NamesAt = true, true
				p.lex.advance(1)
			case '[':
				p.lex.advance(1)
				if p.lex.peekByte() == '@' && p.lex.byteAt(1) == ']' {
					pe.At = true
					p.lex.advance(1)
				} else if p.lex.peekByte() == '*' && p.lex.byteAt(1) == ']' {
					pe.Star = true
					p.lex.advance(1)
				} else {
					pe.Index = p.arithmExpr(0, "]")
				}
				p.expectByte(']')
			}
			pe.Rbrace = p.pos()
			p.expectByte('}')
			return pe
		}
	}

	if pe.Param.Value == "" {
		namePos := p.pos()
		name := p.readParamName()
		pe.Param = Lit{ValuePos: namePos, Value: name}
		switch name {
		case "@":
			pe.At = true
		case "*":
			pe.Star = true
		}
	}

	if p.lex.peekByte() == '[' {
		p.lex.advance(1)
		if p.lex.peekByte() == '@' && p.lex.byteAt(1) == ']' {
			pe.At = true
			p.lex.advance(2)
		} else if p.lex.peekByte() == '*' && p.lex.byteAt(1) == ']' {
			pe.Star = true
			p.lex.advance(2)
		} else {
			pe.Index = p.arithmExpr(0, "]")
			p.expectByte(']')
		}
	}

	p.paramExpOperator(pe)
	pe.Rbrace = p.pos()
	if p.lex.peekByte() != '}' {
		p.errf(pe.Rbrace, "expected '}'")
	}
	p.lex.advance(1)
	return pe
}


func (p *Parser) readParamName() string {
	if strings.IndexByte(specialParams, p.lex.peekByte()) >= 0 && !isNameByte(p.lex.peekByte()) {
		b := p.lex.peekByte()
		p.lex.advance(1)
		return string(b)
	}
	start := p.lex.pos
	for isNameByte(p.lex.peekByte()) {
		p.lex.advance(1)
	}
	return string(p.lex.src[start:p.lex.pos])
}

// paramExpOperator reads the optional operator suffix of a "${...}"
// expansion (colon-forms, bare forms, strip/case/replace forms, or a
// length/indirect slice).
func (p *Parser) paramExpOperator(pe *ParamExp) {
	b := p.lex.peekByte()
	switch b {
	case '}':
		return
	case ':':
		nb := p.lex.byteAt(1)
		switch nb {
		case '-', '=', '?', '+':
			p.lex.advance(2)
			pe.Exp = &Expansion{Op: colonOp(nb), Word: p.wordUntilRBrace()}
		default:
			p.lex.advance(1)
			pe.Slice = p.sliceTail()
		}
	case '-', '=', '?', '+':
		p.lex.advance(1)
		pe.Exp = &Expansion{Op: bareOp(b), Word: p.wordUntilRBrace()}
	case '#':
		op := ExpRemSmallPrefix
		n := 1
		if p.lex.byteAt(1) == '#' {
			op, n = ExpRemLargePrefix, 2
		}
		p.lex.advance(n)
		pe.Exp = &Expansion{Op: op, Word: p.wordUntilRBrace()}
	case '%':
		op := ExpRemSmallSuffix
		n := 1
		if p.lex.byteAt(1) == '%' {
			op, n = ExpRemLargeSuffix, 2
		}
		p.lex.advance(n)
		pe.Exp = &Expansion{Op: op, Word: p.wordUntilRBrace()}
	case '/':
		pe.Repl = p.replaceTail()
	case '^', ',':
		first, double := b, false
		if p.lex.byteAt(1) == b {
			double = true
		}
		switch {
		case first == '^' && !double:
			pe.CaseOp = CaseUpperFirst
		case first == '^' && double:
			pe.CaseOp = CaseUpperAll
		case first == ',' && !double:
			pe.CaseOp = CaseLowerFirst
		default:
			pe.CaseOp = CaseLowerAll
		}
		n := 1
		if double {
			n = 2
		}
		p.lex.advance(n)
		if p.lex.peekByte() != '}' {
			pe.Exp = &Expansion{Word: p.wordUntilRBrace()}
		}
	}
}

func colonOp(b byte) ExpOperator {
	switch b {
	case '-':
		return ExpUnsetOrEmptyUse
	case '=':
		return ExpUnsetOrEmptyAssign
	case '?':
		return ExpUnsetOrEmptyError
	default:
		return ExpUnsetOrEmptyAlt
	}
}

func bareOp(b byte) ExpOperator {
	switch b {
	case '-':
		return ExpUnsetUse
	case '=':
		return ExpUnsetAssign
	case '?':
		return ExpUnsetError
	default:
		return ExpUnsetAlt
	}
}

func (p *Parser) sliceTail() *Slice {
	sl := &Slice{}
	sl.Offset = p.wordUntil(":}")
	if p.lex.peekByte() == ':' {
		p.lex.advance(1)
		sl.Length = p.wordUntilRBrace()
		sl.HasLength = true
	}
	return sl
}

func (p *Parser) replaceTail() *Replace {
	p.lex.advance(1) // '/'
	r := &Replace{}
	switch p.lex.peekByte() {
	case '/':
		r.All = true
		p.lex.advance(1)
	case '#':
		r.Anchor = ReplacePrefix
		p.lex.advance(1)
	case '%':
		r.Anchor = ReplaceSuffix
		p.lex.advance(1)
	}
	r.Orig = p.wordUntil("/}")
	if p.lex.peekByte() == '/' {
		p.lex.advance(1)
		r.With = p.wordUntilRBrace()
		r.HasWith = true
	}
	return r
}

// wordUntilRBrace and wordUntil read word parts until an unescaped '}'
// (optionally also stopping early at other terminator bytes), balancing
// nested "${"/"$(" so that e.g. ${x:-${y}} and ${x/a/$(echo b)} parse
// correctly.
func (p *Parser) wordUntilRBrace() Word { return p.wordUntil("}") }

func (p *Parser) wordUntil(stopBytes string) Word {
	var parts []WordPart
	depth := 0
	for !p.lex.eof() {
		b := p.lex.peekByte()
		if depth == 0 && strings.IndexByte(stopBytes, b) >= 0 {
			break
		}
		switch b {
		case '{':
			depth++
		case '}':
			depth--
		}
		parts = append(parts, p.wordPart(false))
	}
	return Word{Parts: parts}
}
