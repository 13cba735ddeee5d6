package interp

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"syscall"

	"golang.org/x/term"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/syntax"
)

// evalTest evaluates a "[[ ... ]]" conditional expression, returning the
// command's exit status: 0 for true, 1 for false.
func (r *Runner) evalTest(ctx context.Context, expr syntax.TestExpr) (int, error) {
	ok, err := r.testBool(expr)
	if err != nil {
		return 1, err
	}
	return boolToStatus(ok, true), nil
}

func (r *Runner) testBool(expr syntax.TestExpr) (bool, error) {
	switch x := expr.(type) {
	case *syntax.Word:
		s, err := r.cfg.Literal(x)
		if err != nil {
			return false, err
		}
		return s != "", nil
	case *syntax.ParenTest:
		return r.testBool(x.X)
	case *syntax.NotTest:
		v, err := r.testBool(x.X)
		return !v, err
	case *syntax.BinaryTest:
		return r.binTest(x)
	case *syntax.UnaryTest:
		s, err := r.testOperand(x.X)
		if err != nil {
			return false, err
		}
		return r.unTest(x.Op, s), nil
	}
	return false, nil
}

// testOperand renders a TestExpr to its string operand form, used by unary
// tests and as the default for a BinaryTest's left/right before pattern or
// numeric comparison is applied.
func (r *Runner) testOperand(expr syntax.TestExpr) (string, error) {
	switch x := expr.(type) {
	case *syntax.Word:
		return r.cfg.Literal(x)
	case *syntax.ParenTest:
		return r.testOperand(x.X)
	}
	ok, err := r.testBool(expr)
	if err != nil {
		return "", err
	}
	if ok {
		return "1", nil
	}
	return "", nil
}

func (r *Runner) binTest(x *syntax.BinaryTest) (bool, error) {
	switch x.Op {
	case syntax.TestAnd:
		l, err := r.testBool(x.X)
		if err != nil || !l {
			return false, err
		}
		return r.testBool(x.Y)
	case syntax.TestOr:
		l, err := r.testBool(x.X)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return r.testBool(x.Y)
	}
	left, err := r.testOperand(x.X)
	if err != nil {
		return false, err
	}

	if x.Op == syntax.TestStrEq || x.Op == syntax.TestStrNe {
		rightWord, ok := x.Y.(*syntax.Word)
		if ok {
			pat, err := r.cfg.Pattern(rightWord)
			if err != nil {
				return false, err
			}
			matched := globMatch(pat, left)
			if x.Op == syntax.TestStrNe {
				matched = !matched
			}
			return matched, nil
		}
	}

	right, err := r.testOperand(x.Y)
	if err != nil {
		return false, err
	}

	switch x.Op {
	case syntax.TestStrEq:
		return left == right, nil
	case syntax.TestStrNe:
		return left != right, nil
	case syntax.TestStrLt:
		return left < right, nil
	case syntax.TestStrGt:
		return left > right, nil
	case syntax.TestReMatch:
		rx, err := regexp.Compile(right)
		if err != nil {
			return false, err
		}
		loc := rx.FindStringSubmatch(left)
		if loc == nil {
			return false, nil
		}
		r.setRegexCaptures(loc)
		return true, nil
	case syntax.TestNewer:
		i1, i2 := statInfo(left), statInfo(right)
		return i1 != nil && i2 != nil && i1.ModTime().After(i2.ModTime()), nil
	case syntax.TestOlder:
		i1, i2 := statInfo(left), statInfo(right)
		return i1 != nil && i2 != nil && i1.ModTime().Before(i2.ModTime()), nil
	case syntax.TestSameFile:
		i1, i2 := statInfo(left), statInfo(right)
		if i1 == nil || i2 == nil {
			return false, nil
		}
		s1, ok1 := i1.Sys().(*syscall.Stat_t)
		s2, ok2 := i2.Sys().(*syscall.Stat_t)
		return ok1 && ok2 && s1.Ino == s2.Ino && s1.Dev == s2.Dev, nil
	case syntax.TestNumEq, syntax.TestNumNe, syntax.TestNumLe, syntax.TestNumGe, syntax.TestNumLt, syntax.TestNumGt:
		a, err := strconv.ParseInt(left, 10, 64)
		if err != nil {
			return false, err
		}
		b, err := strconv.ParseInt(right, 10, 64)
		if err != nil {
			return false, err
		}
		switch x.Op {
		case syntax.TestNumEq:
			return a == b, nil
		case syntax.TestNumNe:
			return a != b, nil
		case syntax.TestNumLe:
			return a <= b, nil
		case syntax.TestNumGe:
			return a >= b, nil
		case syntax.TestNumLt:
			return a < b, nil
		default:
			return a > b, nil
		}
	}
	return false, nil
}

// setRegexCaptures stores a "=~" match's capture groups in BASH_REMATCH,
// accessible for the lifetime of the conditional's enclosing command.
func (r *Runner) setRegexCaptures(groups []string) {
	r.Env.Set("BASH_REMATCH", expand.Variable{Set: true, Kind: expand.Indexed, List: groups})
}

func statInfo(name string) os.FileInfo {
	info, err := os.Lstat(name)
	if err != nil {
		return nil
	}
	return info
}

func (r *Runner) unTest(op syntax.UnTestOperator, x string) bool {
	statFollow := func() os.FileInfo {
		info, err := os.Stat(x)
		if err != nil {
			return nil
		}
		return info
	}
	switch op {
	case syntax.TestExists:
		return statFollow() != nil
	case syntax.TestRegFile:
		info := statFollow()
		return info != nil && info.Mode().IsRegular()
	case syntax.TestDir:
		info := statFollow()
		return info != nil && info.IsDir()
	case syntax.TestCharDev:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeCharDevice != 0
	case syntax.TestBlockDev:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeDevice != 0 && info.Mode()&os.ModeCharDevice == 0
	case syntax.TestNamedPipe:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeNamedPipe != 0
	case syntax.TestSocket:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeSocket != 0
	case syntax.TestSymlink:
		info := statInfo(x)
		return info != nil && info.Mode()&os.ModeSymlink != 0
	case syntax.TestGIDSet:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeSetgid != 0
	case syntax.TestUIDSet:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeSetuid != 0
	case syntax.TestSticky:
		info := statFollow()
		return info != nil && info.Mode()&os.ModeSticky != 0
	case syntax.TestReadable:
		return accessOK(x, 4)
	case syntax.TestWritable:
		return accessOK(x, 2)
	case syntax.TestExecutable:
		return accessOK(x, 1)
	case syntax.TestNonEmpty:
		info := statFollow()
		return info != nil && info.Size() > 0
	case syntax.TestTerminal:
		n, err := strconv.Atoi(x)
		if err != nil {
			return false
		}
		var stream any
		switch n {
		case 0:
			stream = r.Stdin
		case 1:
			stream = r.Stdout
		case 2:
			stream = r.Stderr
		default:
			stream = r.extraFD[n]
		}
		f, ok := stream.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	case syntax.TestEmptyStr:
		return x == ""
	case syntax.TestNonEmptyStr:
		return x != ""
	case syntax.TestOptSet:
		for idx, name := range optNames {
			if name == x {
				return r.opts[idx]
			}
		}
		return false
	case syntax.TestVarSet:
		return r.Env.Get(x).Declared()
	case syntax.TestNameRef:
		return r.Env.Get(x).Kind == expand.NameRef
	case syntax.TestOwnedByUID:
		info := statFollow()
		if info == nil {
			return false
		}
		st, ok := info.Sys().(*syscall.Stat_t)
		return ok && int(st.Uid) == os.Geteuid()
	case syntax.TestOwnedByGID:
		info := statFollow()
		if info == nil {
			return false
		}
		st, ok := info.Sys().(*syscall.Stat_t)
		return ok && int(st.Gid) == os.Getegid()
	case syntax.TestModifiedSinceRead:
		return false
	}
	return false
}

func accessOK(path string, mode uint32) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	perm := uint32(info.Mode().Perm())
	if os.Geteuid() == 0 {
		return mode != 1 || perm&0o111 != 0
	}
	return perm&mode != 0 || perm&(mode<<3) != 0 || perm&(mode<<6) != 0
}
