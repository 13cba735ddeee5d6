package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arrowshell/posh/syntax"
)

// Arithm evaluates an arithmetic expression against 64-bit signed
// integers: signed two's-complement integers of at least 64 bits.
func (cfg *Config) Arithm(expr syntax.ArithmExpr) (int64, error) {
	switch expr := expr.(type) {
	case *syntax.Word:
		str, err := cfg.Literal(expr)
		if err != nil {
			return 0, err
		}
		return cfg.arithmVarChase(str, 0)
	case *syntax.ParenArithm:
		return cfg.Arithm(expr.X)
	case *syntax.UnaryArithm:
		return cfg.unaryArithm(expr)
	case *syntax.BinaryArithm:
		return cfg.binaryArithm(expr)
	case *syntax.TernaryArithm:
		cond, err := cfg.Arithm(expr.Cond)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return cfg.Arithm(expr.Then)
		}
		return cfg.Arithm(expr.Else)
	default:
		return 0, fmt.Errorf("unexpected arithmetic expression: %T", expr)
	}
}

// arithmVarChase implements the bash convention that a bare name inside an
// arithmetic context is recursively re-evaluated as an expression: "x=y;
// y=2; echo $((x))" prints 2.
func (cfg *Config) arithmVarChase(str string, depth int) (int64, error) {
	if depth >= maxNameRefDepth {
		return 0, fmt.Errorf("too much recursion resolving arithmetic operand")
	}
	if isValidName(str) {
		vr := cfg.Env.Get(str)
		if !vr.Declared() {
			return 0, nil
		}
		val := vr.String()
		if val == "" || val == str {
			return 0, nil
		}
		return cfg.arithmVarChase(val, depth+1)
	}
	return atoi(str), nil
}

func isValidName(s string) bool {
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

// atoi parses a (possibly empty, possibly base-prefixed) integer literal,
// defaulting to 0 on any malformed input, matching bash's lenient
// arithmetic operand parsing. Supports 0x/0X hex and a leading 0 octal
// prefix, as bash's arithmetic evaluator does.
func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	var n int64
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		n, _ = strconv.ParseInt(s[2:], 16, 64)
	case len(s) > 1 && s[0] == '0':
		n, _ = strconv.ParseInt(s, 8, 64)
	default:
		if neg {
			// Parse with the sign so -9223372036854775808 does not overflow.
			n, _ = strconv.ParseInt("-"+s, 10, 64)
			return n
		}
		n, _ = strconv.ParseInt(s, 10, 64)
	}
	if neg {
		return -n
	}
	return n
}

func oneIf(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (cfg *Config) unaryArithm(expr *syntax.UnaryArithm) (int64, error) {
	switch expr.Op {
	case syntax.ArithIncr, syntax.ArithDecr:
		name, idx := arithmLValue(expr.X)
		old, err := cfg.arithmGet(name, idx)
		if err != nil {
			return 0, err
		}
		val := old
		if expr.Op == syntax.ArithIncr {
			val++
		} else {
			val--
		}
		if err := cfg.arithmSet(name, idx, val); err != nil {
			return 0, err
		}
		if expr.Post {
			return old, nil
		}
		return val, nil
	}
	val, err := cfg.Arithm(expr.X)
	if err != nil {
		return 0, err
	}
	switch expr.Op {
	case syntax.ArithNot:
		return oneIf(val == 0), nil
	case syntax.ArithBitNot:
		return ^val, nil
	case syntax.ArithPlus:
		return val, nil
	default: // ArithMinus
		return -val, nil
	}
}

func (cfg *Config) binaryArithm(expr *syntax.BinaryArithm) (int64, error) {
	switch expr.Op {
	case syntax.ArithAssgn, syntax.ArithAddAssgn, syntax.ArithSubAssgn,
		syntax.ArithMulAssgn, syntax.ArithQuoAssgn, syntax.ArithRemAssgn,
		syntax.ArithAndAssgn, syntax.ArithOrAssgn, syntax.ArithXorAssgn,
		syntax.ArithShlAssgn, syntax.ArithShrAssgn:
		return cfg.assignArithm(expr)
	case syntax.ArithLAnd:
		left, err := cfg.Arithm(expr.X)
		if err != nil {
			return 0, err
		}
		if left == 0 {
			return 0, nil
		}
		right, err := cfg.Arithm(expr.Y)
		if err != nil {
			return 0, err
		}
		return oneIf(right != 0), nil
	case syntax.ArithLOr:
		left, err := cfg.Arithm(expr.X)
		if err != nil {
			return 0, err
		}
		if left != 0 {
			return 1, nil
		}
		right, err := cfg.Arithm(expr.Y)
		if err != nil {
			return 0, err
		}
		return oneIf(right != 0), nil
	case syntax.ArithComma:
		if _, err := cfg.Arithm(expr.X); err != nil {
			return 0, err
		}
		return cfg.Arithm(expr.Y)
	}
	left, err := cfg.Arithm(expr.X)
	if err != nil {
		return 0, err
	}
	right, err := cfg.Arithm(expr.Y)
	if err != nil {
		return 0, err
	}
	return binOp(expr.Op, left, right)
}

func binOp(op syntax.ArithOperator, x, y int64) (int64, error) {
	switch op {
	case syntax.ArithAdd:
		return x + y, nil
	case syntax.ArithSub:
		return x - y, nil
	case syntax.ArithMul:
		return x * y, nil
	case syntax.ArithQuo:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x / y, nil
	case syntax.ArithRem:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x % y, nil
	case syntax.ArithPow:
		return intPow(x, y), nil
	case syntax.ArithEql:
		return oneIf(x == y), nil
	case syntax.ArithNeq:
		return oneIf(x != y), nil
	case syntax.ArithGtr:
		return oneIf(x > y), nil
	case syntax.ArithGeq:
		return oneIf(x >= y), nil
	case syntax.ArithLss:
		return oneIf(x < y), nil
	case syntax.ArithLeq:
		return oneIf(x <= y), nil
	case syntax.ArithBitAnd:
		return x & y, nil
	case syntax.ArithBitOr:
		return x | y, nil
	case syntax.ArithBitXor:
		return x ^ y, nil
	case syntax.ArithShl:
		return x << uint(y), nil
	case syntax.ArithShr:
		return x >> uint(y), nil
	default:
		return 0, fmt.Errorf("unexpected arithmetic operator %v", op)
	}
}

func intPow(a, b int64) int64 {
	if b < 0 {
		return 0
	}
	var p int64 = 1
	for b > 0 {
		if b&1 != 0 {
			p *= a
		}
		b >>= 1
		a *= a
	}
	return p
}

func (cfg *Config) assignArithm(b *syntax.BinaryArithm) (int64, error) {
	name, idx := arithmLValue(b.X)
	val, err := cfg.arithmGet(name, idx)
	if err != nil {
		return 0, err
	}
	arg, err := cfg.Arithm(b.Y)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case syntax.ArithAssgn:
		val = arg
	case syntax.ArithAddAssgn:
		val += arg
	case syntax.ArithSubAssgn:
		val -= arg
	case syntax.ArithMulAssgn:
		val *= arg
	case syntax.ArithQuoAssgn:
		if arg == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		val /= arg
	case syntax.ArithRemAssgn:
		if arg == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		val %= arg
	case syntax.ArithAndAssgn:
		val &= arg
	case syntax.ArithOrAssgn:
		val |= arg
	case syntax.ArithXorAssgn:
		val ^= arg
	case syntax.ArithShlAssgn:
		val <<= uint(arg)
	case syntax.ArithShrAssgn:
		val >>= uint(arg)
	}
	if err := cfg.arithmSet(name, idx, val); err != nil {
		return 0, err
	}
	return val, nil
}

// arithmLValue extracts the assignable name (and, for "a[i]++" etc, the
// index expression) out of an arithmetic operand. Only a bare *Word
// (variable name, possibly with a trailing "[idx]") is assignable;
// anything else is a parse-level guarantee violation, not a runtime one.
func arithmLValue(x syntax.ArithmExpr) (string, syntax.ArithmExpr) {
	w, _ := x.(*syntax.Word)
	if w == nil {
		return "", nil
	}
	name := w.Lit()
	if i := strings.IndexByte(name, '['); i >= 0 && strings.HasSuffix(name, "]") {
		// Parsed as a single literal by arithmPrimary; re-split here since
		// the arithmetic grammar doesn't break out subscripts itself.
		return name[:i], nil
	}
	return name, nil
}

func (cfg *Config) arithmGet(name string, idx syntax.ArithmExpr) (int64, error) {
	if name == "" {
		return 0, nil
	}
	vr := cfg.Env.Get(name)
	_, vr = vr.Resolve(cfg.Env)
	return cfg.arithmVarChase(vr.String(), 0)
}

func (cfg *Config) arithmSet(name string, idx syntax.ArithmExpr, val int64) error {
	if name == "" {
		return fmt.Errorf("invalid arithmetic assignment target")
	}
	return cfg.Env.Set(name, Variable{Set: true, Kind: String, Str: strconv.FormatInt(val, 10)})
}
