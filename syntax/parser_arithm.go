package syntax

import "github.com/arrowshell/posh/token"

// This file implements the two expression grammars that live inside shell
// syntax but are not shell-command grammar themselves: arithmetic
// expressions (an operator-precedence table, used by $((...)), ((...)),
// "for ((;;))", and array/parameter indices) and the "[[ ... ]]"
// conditional-expression grammar (extended test operators).
//
// Both are written as a ladder of explicit precedence levels rather than a
// generic precedence-climbing loop over a table, because the two grammars
// don't share an operator set and the ternary/assignment levels of
// arithmetic need special shapes (TernaryArithm, right-associative
// assignment) that don't fit a single climbing loop cleanly.

// arithmExpr parses an arithmetic expression. minPrec and stop are
// currently unused by the level-ladder implementation (every level knows
// its own precedence already); they're kept so callers needn't change if
// the grammar is later revisited, and so a future precedence-table
// rewrite doesn't have to touch every call site.
func (p *Parser) arithmExpr(minPrec int, stop string) ArithmExpr {
	_ = minPrec
	_ = stop
	return p.arithmComma()
}

func (p *Parser) arithmComma() ArithmExpr {
	x := p.arithmAssign()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() != ',' {
			return x
		}
		opPos := p.pos()
		p.lex.advance(1)
		y := p.arithmAssign()
		x = &BinaryArithm{OpPos: opPos, Op: ArithComma, X: x, Y: y}
	}
}

func (p *Parser) arithmAssign() ArithmExpr {
	x := p.arithmTernary()
	p.lex.skipBlanks()
	b, nb := p.lex.peekByte(), p.lex.byteAt(1)
	var op ArithOperator
	n := 0
	switch {
	case b == '=' && nb != '=':
		op, n = ArithAssgn, 1
	case b == '+' && nb == '=':
		op, n = ArithAddAssgn, 2
	case b == '-' && nb == '=':
		op, n = ArithSubAssgn, 2
	case b == '*' && nb == '=':
		op, n = ArithMulAssgn, 2
	case b == '/' && nb == '=':
		op, n = ArithQuoAssgn, 2
	case b == '%' && nb == '=':
		op, n = ArithRemAssgn, 2
	case b == '&' && nb == '=':
		op, n = ArithAndAssgn, 2
	case b == '|' && nb == '=':
		op, n = ArithOrAssgn, 2
	case b == '^' && nb == '=':
		op, n = ArithXorAssgn, 2
	case b == '<' && nb == '<' && p.lex.byteAt(2) == '=':
		op, n = ArithShlAssgn, 3
	case b == '>' && nb == '>' && p.lex.byteAt(2) == '=':
		op, n = ArithShrAssgn, 3
	default:
		return x
	}
	opPos := p.pos()
	p.lex.advance(n)
	y := p.arithmAssign()
	return &BinaryArithm{OpPos: opPos, Op: op, X: x, Y: y}
}

func (p *Parser) arithmTernary() ArithmExpr {
	cond := p.arithmLogOr()
	p.lex.skipBlanks()
	if p.lex.peekByte() != '?' {
		return cond
	}
	p.lex.advance(1)
	then := p.arithmAssign()
	p.lex.skipBlanks()
	if p.lex.peekByte() != ':' {
		p.errf(p.pos(), "expected ':' in ternary expression")
	}
	p.lex.advance(1)
	els := p.arithmTernary()
	return &TernaryArithm{Cond: cond, Then: then, Else: els}
}

func (p *Parser) arithmLogOr() ArithmExpr {
	x := p.arithmLogAnd()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '|' && p.lex.byteAt(1) == '|' {
			opPos := p.pos()
			p.lex.advance(2)
			y := p.arithmLogAnd()
			x = &BinaryArithm{OpPos: opPos, Op: ArithLOr, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) arithmLogAnd() ArithmExpr {
	x := p.arithmBitOr()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '&' && p.lex.byteAt(1) == '&' {
			opPos := p.pos()
			p.lex.advance(2)
			y := p.arithmBitOr()
			x = &BinaryArithm{OpPos: opPos, Op: ArithLAnd, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) arithmBitOr() ArithmExpr {
	x := p.arithmBitXor()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '|' && p.lex.byteAt(1) != '|' && p.lex.byteAt(1) != '=' {
			opPos := p.pos()
			p.lex.advance(1)
			y := p.arithmBitXor()
			x = &BinaryArithm{OpPos: opPos, Op: ArithBitOr, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) arithmBitXor() ArithmExpr {
	x := p.arithmBitAnd()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '^' && p.lex.byteAt(1) != '=' {
			opPos := p.pos()
			p.lex.advance(1)
			y := p.arithmBitAnd()
			x = &BinaryArithm{OpPos: opPos, Op: ArithBitXor, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) arithmBitAnd() ArithmExpr {
	x := p.arithmEq()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '&' && p.lex.byteAt(1) != '&' && p.lex.byteAt(1) != '=' {
			opPos := p.pos()
			p.lex.advance(1)
			y := p.arithmEq()
			x = &BinaryArithm{OpPos: opPos, Op: ArithBitAnd, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) arithmEq() ArithmExpr {
	x := p.arithmRel()
	for {
		p.lex.skipBlanks()
		b, nb := p.lex.peekByte(), p.lex.byteAt(1)
		var op ArithOperator
		switch {
		case b == '=' && nb == '=':
			op = ArithEql
		case b == '!' && nb == '=':
			op = ArithNeq
		default:
			return x
		}
		opPos := p.pos()
		p.lex.advance(2)
		y := p.arithmRel()
		x = &BinaryArithm{OpPos: opPos, Op: op, X: x, Y: y}
	}
}

func (p *Parser) arithmRel() ArithmExpr {
	x := p.arithmShift()
	for {
		p.lex.skipBlanks()
		b, nb := p.lex.peekByte(), p.lex.byteAt(1)
		var op ArithOperator
		var n int
		switch {
		case b == '<' && nb == '=':
			op, n = ArithLeq, 2
		case b == '>' && nb == '=':
			op, n = ArithGeq, 2
		case b == '<' && nb != '<':
			op, n = ArithLss, 1
		case b == '>' && nb != '>':
			op, n = ArithGtr, 1
		default:
			return x
		}
		opPos := p.pos()
		p.lex.advance(n)
		y := p.arithmShift()
		x = &BinaryArithm{OpPos: opPos, Op: op, X: x, Y: y}
	}
}

func (p *Parser) arithmShift() ArithmExpr {
	x := p.arithmAdd()
	for {
		p.lex.skipBlanks()
		b, nb := p.lex.peekByte(), p.lex.byteAt(1)
		if b == '<' && nb == '<' && p.lex.byteAt(2) != '=' {
			opPos := p.pos()
			p.lex.advance(2)
			y := p.arithmAdd()
			x = &BinaryArithm{OpPos: opPos, Op: ArithShl, X: x, Y: y}
			continue
		}
		if b == '>' && nb == '>' && p.lex.byteAt(2) != '=' {
			opPos := p.pos()
			p.lex.advance(2)
			y := p.arithmAdd()
			x = &BinaryArithm{OpPos: opPos, Op: ArithShr, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) arithmAdd() ArithmExpr {
	x := p.arithmMul()
	for {
		p.lex.skipBlanks()
		b := p.lex.peekByte()
		if b != '+' && b != '-' {
			return x
		}
		nb := p.lex.byteAt(1)
		if nb == '=' || nb == b {
			return x // assignment or ++/-- belongs to a different level
		}
		op := ArithAdd
		if b == '-' {
			op = ArithSub
		}
		opPos := p.pos()
		p.lex.advance(1)
		y := p.arithmMul()
		x = &BinaryArithm{OpPos: opPos, Op: op, X: x, Y: y}
	}
}

func (p *Parser) arithmMul() ArithmExpr {
	x := p.arithmPow()
	for {
		p.lex.skipBlanks()
		b := p.lex.peekByte()
		var op ArithOperator
		switch b {
		case '*':
			if p.lex.byteAt(1) == '*' {
				return x // "**" is power, handled one level down
			}
			op = ArithMul
		case '/':
			op = ArithQuo
		case '%':
			op = ArithRem
		default:
			return x
		}
		if p.lex.byteAt(1) == '=' {
			return x
		}
		opPos := p.pos()
		p.lex.advance(1)
		y := p.arithmPow()
		x = &BinaryArithm{OpPos: opPos, Op: op, X: x, Y: y}
	}
}

func (p *Parser) arithmPow() ArithmExpr {
	x := p.arithmUnary()
	p.lex.skipBlanks()
	if p.lex.peekByte() == '*' && p.lex.byteAt(1) == '*' {
		opPos := p.pos()
		p.lex.advance(2)
		y := p.arithmPow() // right-associative
		return &BinaryArithm{OpPos: opPos, Op: ArithPow, X: x, Y: y}
	}
	return x
}

func (p *Parser) arithmUnary() ArithmExpr {
	p.lex.skipBlanks()
	pos := p.pos()
	b, nb := p.lex.peekByte(), p.lex.byteAt(1)
	switch {
	case b == '+' && nb == '+':
		p.lex.advance(2)
		return &UnaryArithm{OpPos: pos, Op: ArithIncr, X: p.arithmUnary()}
	case b == '-' && nb == '-':
		p.lex.advance(2)
		return &UnaryArithm{OpPos: pos, Op: ArithDecr, X: p.arithmUnary()}
	case b == '!':
		p.lex.advance(1)
		return &UnaryArithm{OpPos: pos, Op: ArithNot, X: p.arithmUnary()}
	case b == '~':
		p.lex.advance(1)
		return &UnaryArithm{OpPos: pos, Op: ArithBitNot, X: p.arithmUnary()}
	case b == '+':
		p.lex.advance(1)
		return &UnaryArithm{OpPos: pos, Op: ArithPlus, X: p.arithmUnary()}
	case b == '-':
		p.lex.advance(1)
		return &UnaryArithm{OpPos: pos, Op: ArithMinus, X: p.arithmUnary()}
	}
	return p.arithmPostfix()
}

func (p *Parser) arithmPostfix() ArithmExpr {
	x := p.arithmPrimary()
	p.lex.skipBlanks()
	if p.lex.peekByte() == '+' && p.lex.byteAt(1) == '+' {
		opPos := p.pos()
		p.lex.advance(2)
		return &UnaryArithm{OpPos: opPos, Op: ArithIncr, Post: true, X: x}
	}
	if p.lex.peekByte() == '-' && p.lex.byteAt(1) == '-' {
		opPos := p.pos()
		p.lex.advance(2)
		return &UnaryArithm{OpPos: opPos, Op: ArithDecr, Post: true, X: x}
	}
	return x
}

// arithmPrimary reads one operand: a parenthesized sub-expression, a
// "$"-led expansion, or a bare run of name/number characters. Plain
// operands are represented as *Word (not a dedicated number/identifier
// node) because arithmetic operands are themselves subject to expansion
// before evaluation — a bare "x" might be a variable name, and "$x" or
// "$((y))" are just as valid operands as a literal "42".
func (p *Parser) arithmPrimary() ArithmExpr {
	p.lex.skipBlanks()
	pos := p.pos()
	if p.lex.peekByte() == '(' {
		p.lex.advance(1)
		x := p.arithmComma()
		p.lex.skipBlanks()
		if p.lex.peekByte() != ')' {
			p.errf(p.pos(), "expected ')'")
		}
		rp := p.pos()
		p.lex.advance(1)
		return &ParenArithm{Lparen: pos, Rparen: rp, X: x}
	}
	if p.lex.peekByte() == '$' {
		part := p.wordPart(false)
		return &Word{Parts: []WordPart{part}}
	}
	start := p.lex.pos
	for !p.lex.eof() && (isNameByte(p.lex.peekByte()) || p.lex.peekByte() == '.') {
		p.lex.advance(1)
	}
	if p.lex.pos == start {
		p.errf(pos, "expected an arithmetic operand")
	}
	lit := &Lit{ValuePos: pos, Value: string(p.lex.src[start:p.lex.pos])}
	return &Word{Parts: []WordPart{lit}}
}

// --- "[[ ... ]]" conditional expressions ---------------------------------

// testExpr parses a conditional expression. minPrec is unused for the same
// reason as in arithmExpr; kept so the call site in parser.go stays stable.
func (p *Parser) testExpr(minPrec int) TestExpr {
	_ = minPrec
	return p.testOr()
}

func (p *Parser) testOr() TestExpr {
	x := p.testAnd()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '|' && p.lex.byteAt(1) == '|' {
			opPos := p.pos()
			p.lex.advance(2)
			y := p.testAnd()
			x = &BinaryTest{OpPos: opPos, Op: TestOr, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) testAnd() TestExpr {
	x := p.testUnaryLevel()
	for {
		p.lex.skipBlanks()
		if p.lex.peekByte() == '&' && p.lex.byteAt(1) == '&' {
			opPos := p.pos()
			p.lex.advance(2)
			y := p.testUnaryLevel()
			x = &BinaryTest{OpPos: opPos, Op: TestAnd, X: x, Y: y}
			continue
		}
		return x
	}
}

func (p *Parser) testUnaryLevel() TestExpr {
	p.lex.skipBlanks()
	if p.lex.peekByte() == '!' && isBoundary(p.lex.byteAt(1)) {
		bang := p.pos()
		p.lex.advance(1)
		return &NotTest{Bang: bang, X: p.testUnaryLevel()}
	}
	if p.lex.peekByte() == '(' {
		lp := p.pos()
		p.lex.advance(1)
		x := p.testOr()
		p.lex.skipBlanks()
		if p.lex.peekByte() != ')' {
			p.errf(p.pos(), "expected ')'")
		}
		rp := p.pos()
		p.lex.advance(1)
		return p.maybeBinaryTest(&ParenTest{Lparen: lp, Rparen: rp, X: x})
	}
	if opStr, ok := p.peekTestUnaryOp(); ok {
		opPos := p.pos()
		p.lex.advance(len(opStr))
		p.lex.skipBlanks()
		operand := p.testWordOperand()
		return &UnaryTest{OpPos: opPos, Op: unaryTestOps[opStr], X: operand}
	}
	left := p.testWordOperand()
	return p.maybeBinaryTest(left)
}

func (p *Parser) maybeBinaryTest(left TestExpr) TestExpr {
	p.lex.skipBlanks()
	if op, n, ok := p.peekTestBinaryOp(); ok {
		opPos := p.pos()
		p.lex.advance(n)
		p.lex.skipBlanks()
		right := p.testWordOperand()
		return &BinaryTest{OpPos: opPos, Op: op, X: left, Y: right}
	}
	return left
}

// testWordOperand reads a word operand of a [[ ]] test: like word(), but
// stops at whitespace, "]]", "&&", "||", or ")", none of which are
// ordinary word-break bytes but all of which end an operand here.
func (p *Parser) testWordOperand() TestExpr {
	var parts []WordPart
	for {
		if p.lex.eof() {
			break
		}
		b := p.lex.peekByte()
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			break
		}
		if b == ']' && p.lex.byteAt(1) == ']' {
			break
		}
		if b == '&' && p.lex.byteAt(1) == '&' {
			break
		}
		if b == '|' && p.lex.byteAt(1) == '|' {
			break
		}
		if b == ')' {
			break
		}
		parts = append(parts, p.wordPart(false))
	}
	w := Word{Parts: parts}
	return &w
}

func isBoundary(b byte) bool {
	return b == 0 || b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isAlphaByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

var unaryTestOps = map[string]UnTestOperator{
	"-e": TestExists, "-f": TestRegFile, "-d": TestDir, "-c": TestCharDev,
	"-b": TestBlockDev, "-p": TestNamedPipe, "-S": TestSocket, "-L": TestSymlink,
	"-h": TestSymlink, "-g": TestGIDSet, "-u": TestUIDSet, "-k": TestSticky,
	"-r": TestReadable, "-w": TestWritable, "-x": TestExecutable, "-s": TestNonEmpty,
	"-t": TestTerminal, "-z": TestEmptyStr, "-n": TestNonEmptyStr, "-o": TestOptSet,
	"-v": TestVarSet, "-R": TestNameRef, "-O": TestOwnedByUID, "-G": TestOwnedByGID,
	"-N": TestModifiedSinceRead,
}

func (p *Parser) peekTestUnaryOp() (string, bool) {
	p.lex.skipBlanks()
	if p.lex.peekByte() != '-' || !isAlphaByte(p.lex.byteAt(1)) {
		return "", false
	}
	s := string([]byte{'-', p.lex.byteAt(1)})
	if !isBoundary(p.lex.byteAt(2)) {
		return "", false
	}
	if _, ok := unaryTestOps[s]; !ok {
		return "", false
	}
	return s, true
}

var binTestOps = map[string]BinTestOperator{
	"-nt": TestNewer, "-ot": TestOlder, "-ef": TestSameFile,
	"-eq": TestNumEq, "-ne": TestNumNe, "-le": TestNumLe, "-ge": TestNumGe,
	"-lt": TestNumLt, "-gt": TestNumGt,
}

func (p *Parser) peekTestBinaryOp() (BinTestOperator, int, bool) {
	p.lex.skipBlanks()
	b, nb := p.lex.peekByte(), p.lex.byteAt(1)
	switch b {
	case '=':
		if nb == '~' {
			return TestReMatch, 2, true
		}
		if nb == '=' {
			return TestStrEq, 2, true
		}
		return TestStrEq, 1, true
	case '!':
		if nb == '=' {
			return TestStrNe, 2, true
		}
	case '<':
		return TestStrLt, 1, true
	case '>':
		return TestStrGt, 1, true
	case '-':
		if isAlphaByte(nb) && isAlphaByte(p.lex.byteAt(2)) && isBoundary(p.lex.byteAt(3)) {
			s := string([]byte{'-', nb, p.lex.byteAt(2)})
			if op, ok := binTestOps[s]; ok {
				return op, 3, true
			}
		}
	}
	return 0, 0, false
}

var _ = token.Illegal // silence unused import if level ladder above changes
