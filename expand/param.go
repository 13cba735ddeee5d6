package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arrowshell/posh/pattern"
	"github.com/arrowshell/posh/syntax"
)

// UnsetParameterError is returned from Literal/Fields for ${name:?msg}
// and for any reference under "set -u"
// to a variable that has never been assigned.
type UnsetParameterError struct {
	Name    string
	Message string
}

func (u UnsetParameterError) Error() string {
	if u.Message != "" {
		return fmt.Sprintf("%s: %s", u.Name, u.Message)
	}
	return fmt.Sprintf("%s: unbound variable", u.Name)
}

func anyOfLit(w syntax.Word, vals ...string) string {
	lit := w.Lit()
	for _, val := range vals {
		if lit == val {
			return val
		}
	}
	return ""
}

func isAtOrStar(idx syntax.ArithmExpr) string {
	w, ok := idx.(*syntax.Word)
	if !ok {
		return ""
	}
	return anyOfLit(*w, "@", "*")
}

// paramExp evaluates a single "${...}"/"$name" parameter expansion to its
// scalar or multi-element (for "@"/"*" contexts) string form.
func (cfg *Config) paramExp(pe *syntax.ParamExp) (string, error) {
	name := pe.Param.Value

	// Special parameters that the variable store cannot itself answer.
	switch name {
	case "@", "*":
		return cfg.specialListParam(pe, name)
	case "#":
		return strconv.Itoa(len(cfg.Params)), nil
	case "?":
		return strconv.Itoa(cfg.LastExitStatus()), nil
	case "$":
		return strconv.Itoa(cfg.ShellPID), nil
	case "!":
		return cfg.lastBgPID(), nil
	case "-":
		return cfg.optionString(), nil
	case "0":
		return cfg.Name0, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 1 {
		if n > len(cfg.Params) {
			return "", nil
		}
		return cfg.Params[n-1], nil
	}

	vr := cfg.Env.Get(name)
	set := vr.Declared()
	if !set && cfg.NoUnset && pe.Exp == nil {
		return "", UnsetParameterError{Name: name}
	}
	_, rv := vr.Resolve(cfg.Env)

	var str string
	var elems []string
	isList := false
	switch {
	case pe.At || pe.Star:
		isList = true
		elems = arrayElems(rv)
		if pe.Star {
			str = ifsJoin(cfg.ifs(), elems)
		} else {
			str = strings.Join(elems, " ")
		}
	case pe.Index != nil:
		v, err := cfg.arrayIndex(rv, pe.Index)
		if err != nil {
			return "", err
		}
		str = v
	default:
		str = rv.String()
	}

	switch {
	case pe.Length:
		if isList {
			return strconv.Itoa(len(elems)), nil
		}
		return strconv.Itoa(utf8.RuneCountInString(str)), nil
	case pe.Excl:
		return cfg.indirectExpand(pe, rv)
	case pe.Slice != nil:
		return cfg.sliceStr(pe, str)
	case pe.Repl != nil:
		return cfg.replaceStr(pe, str)
	case pe.Exp != nil:
		return cfg.expOp(pe, name, set, str, elems, isList)
	case pe.CaseOp != syntax.CaseNone:
		return cfg.caseOp(pe, str, elems, isList)
	}
	return str, nil
}

func arrayElems(vr Variable) []string {
	switch vr.Kind {
	case Indexed:
		return append([]string(nil), vr.List...)
	case Associative:
		keys := vr.OrderedKeys()
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = vr.Map[k]
		}
		return vals
	case String, NameRef:
		if vr.Str == "" && !vr.Set {
			return nil
		}
		return []string{vr.Str}
	}
	return nil
}

func (cfg *Config) specialListParam(pe *syntax.ParamExp, name string) (string, error) {
	var str string
	if name == "*" {
		str = ifsJoin(cfg.ifs(), cfg.Params)
	} else {
		str = strings.Join(cfg.Params, " ")
	}
	if pe.Length {
		return strconv.Itoa(len(cfg.Params)), nil
	}
	return str, nil
}

// arrayKeys returns the subscripts a "${!arr[@]}"/"${!arr[*]}" expansion
// lists: numeric indices in order for an indexed array, keys in insertion
// order for an associative array.
func arrayKeys(vr Variable) []string {
	switch vr.Kind {
	case Indexed:
		keys := make([]string, len(vr.List))
		for i := range vr.List {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	case Associative:
		return vr.OrderedKeys()
	default:
		if vr.Set {
			return []string{"0"}
		}
		return nil
	}
}

func (cfg *Config) arrayIndex(vr Variable, idx syntax.ArithmExpr) (string, error) {
	switch vr.Kind {
	case Indexed:
		i, err := cfg.Arithm(idx)
		if err != nil {
			return "", err
		}
		if i < 0 {
			i += int64(len(vr.List))
		}
		if i < 0 || i >= int64(len(vr.List)) {
			return "", nil
		}
		return vr.List[i], nil
	case Associative:
		w, ok := idx.(*syntax.Word)
		if !ok {
			return "", nil
		}
		key, err := cfg.Literal(w)
		if err != nil {
			return "", err
		}
		return vr.Map[key], nil
	default:
		i, err := cfg.Arithm(idx)
		if err != nil {
			return "", err
		}
		if i == 0 {
			return vr.String(), nil
		}
		return "", nil
	}
}

func (cfg *Config) indirectExpand(pe *syntax.ParamExp, vr Variable) (string, error) {
	if pe.Names {
		names := cfg.namesByPrefix(pe.Param.Value)
		sort.Strings(names)
		sep := " "
		if pe.NamesAt {
			sep = " "
		}
		return strings.Join(names, sep), nil
	}
	if pe.At || pe.Star {
		// "${!arr[@]}"/"${!arr[*]}": the array's indices (Indexed) or keys
		// in insertion order (Associative), not "${!name}" indirection.
		return strings.Join(arrayKeys(vr), " "), nil
	}
	target := vr.String()
	if target == "" {
		return "", nil
	}
	_, rv := cfg.Env.Get(target).Resolve(cfg.Env)
	return rv.String(), nil
}

func (cfg *Config) namesByPrefix(prefix string) []string {
	var names []string
	cfg.Env.Each(func(name string, vr Variable) bool {
		if strings.HasPrefix(name, prefix) && vr.Declared() {
			names = append(names, name)
		}
		return true
	})
	return names
}

func (cfg *Config) sliceStr(pe *syntax.ParamExp, str string) (string, error) {
	runes := []rune(str)
	slicePos := func(expr syntax.ArithmExpr) (int, error) {
		p, err := cfg.Arithm(expr)
		if err != nil {
			return 0, err
		}
		n := int(p)
		if n < 0 {
			n += len(runes)
			if n < 0 {
				n = 0
			}
		} else if n > len(runes) {
			n = len(runes)
		}
		return n, nil
	}
	offset := 0
	if pe.Slice.Offset.Parts != nil {
		o, err := slicePos(&pe.Slice.Offset)
		if err != nil {
			return "", err
		}
		offset = o
	}
	end := len(runes)
	if pe.Slice.HasLength {
		length, err := cfg.Arithm(&pe.Slice.Length)
		if err != nil {
			return "", err
		}
		if length < 0 {
			end = len(runes) + int(length)
		} else {
			end = offset + int(length)
		}
	}
	if offset > len(runes) {
		offset = len(runes)
	}
	if end > len(runes) {
		end = len(runes)
	}
	if end < offset {
		end = offset
	}
	return string(runes[offset:end]), nil
}

// listFields resolves the element list a "$@"/"$*"/"${arr[@]}"/"${arr[*]}"
// expansion denotes, applying an "[@]:offset:length" slice by element
// index rather than by character.
func (cfg *Config) listFields(pe *syntax.ParamExp) ([]string, error) {
	name := pe.Param.Value
	var elems []string
	if name == "@" || name == "*" {
		elems = append([]string(nil), cfg.Params...)
	} else {
		vr := cfg.Env.Get(name)
		_, rv := vr.Resolve(cfg.Env)
		elems = arrayElems(rv)
	}
	if pe.Slice == nil {
		return elems, nil
	}
	return cfg.sliceElems(pe, elems)
}

func (cfg *Config) sliceElems(pe *syntax.ParamExp, elems []string) ([]string, error) {
	slicePos := func(expr syntax.ArithmExpr) (int, error) {
		p, err := cfg.Arithm(expr)
		if err != nil {
			return 0, err
		}
		n := int(p)
		if n < 0 {
			n += len(elems)
			if n < 0 {
				n = 0
			}
		} else if n > len(elems) {
			n = len(elems)
		}
		return n, nil
	}
	offset := 0
	if pe.Slice.Offset.Parts != nil {
		o, err := slicePos(&pe.Slice.Offset)
		if err != nil {
			return nil, err
		}
		offset = o
	}
	end := len(elems)
	if pe.Slice.HasLength {
		length, err := cfg.Arithm(&pe.Slice.Length)
		if err != nil {
			return nil, err
		}
		if length < 0 {
			end = len(elems) + int(length)
		} else {
			end = offset + int(length)
		}
	}
	if offset > len(elems) {
		offset = len(elems)
	}
	if end > len(elems) {
		end = len(elems)
	}
	if end < offset {
		end = offset
	}
	return append([]string(nil), elems[offset:end]...), nil
}

func (cfg *Config) replaceStr(pe *syntax.ParamExp, str string) (string, error) {
	orig, err := cfg.Pattern(&pe.Repl.Orig)
	if err != nil {
		return "", err
	}
	with := ""
	if pe.Repl.HasWith {
		with, err = cfg.Literal(&pe.Repl.With)
		if err != nil {
			return "", err
		}
	}
	n := 1
	if pe.Repl.All {
		n = -1
	}
	mode := pattern.Mode(0)
	if pe.Repl.All {
		mode = 0
	}
	expr, err := pattern.Regexp(orig, mode)
	if err != nil {
		return str, nil
	}
	switch pe.Repl.Anchor {
	case syntax.ReplacePrefix:
		expr = "^(?:" + expr + ")"
		n = 1
	case syntax.ReplaceSuffix:
		expr = "(?:" + expr + ")$"
		n = 1
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return str, nil
	}
	locs := rx.FindAllStringIndex(str, n)
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(str[last:loc[0]])
		b.WriteString(with)
		last = loc[1]
		if loc[0] == loc[1] {
			// avoid looping forever on a zero-width match
			if last < len(str) {
				b.WriteByte(str[last])
				last++
			} else {
				break
			}
		}
	}
	b.WriteString(str[last:])
	return b.String(), nil
}

func (cfg *Config) expOp(pe *syntax.ParamExp, name string, set bool, str string, elems []string, isList bool) (string, error) {
	op := pe.Exp.Op
	arg, err := cfg.Literal(&pe.Exp.Word)
	if err != nil {
		return "", err
	}
	switch op {
	case syntax.ExpUnsetOrEmptyUse:
		if str == "" {
			return arg, nil
		}
		return str, nil
	case syntax.ExpUnsetUse:
		if !set {
			return arg, nil
		}
		return str, nil
	case syntax.ExpUnsetOrEmptyAssign:
		if str == "" {
			if err := cfg.Env.Set(name, Variable{Set: true, Kind: String, Str: arg}); err != nil {
				return "", err
			}
			return arg, nil
		}
		return str, nil
	case syntax.ExpUnsetAssign:
		if !set {
			if err := cfg.Env.Set(name, Variable{Set: true, Kind: String, Str: arg}); err != nil {
				return "", err
			}
			return arg, nil
		}
		return str, nil
	case syntax.ExpUnsetOrEmptyError:
		if str == "" {
			return "", UnsetParameterError{Name: name, Message: arg}
		}
		return str, nil
	case syntax.ExpUnsetError:
		if !set {
			return "", UnsetParameterError{Name: name, Message: arg}
		}
		return str, nil
	case syntax.ExpUnsetOrEmptyAlt:
		if str != "" {
			return arg, nil
		}
		return "", nil
	case syntax.ExpUnsetAlt:
		if set {
			return arg, nil
		}
		return "", nil
	case syntax.ExpRemSmallPrefix, syntax.ExpRemLargePrefix,
		syntax.ExpRemSmallSuffix, syntax.ExpRemLargeSuffix:
		suffix := op == syntax.ExpRemSmallSuffix || op == syntax.ExpRemLargeSuffix
		greedy := op == syntax.ExpRemLargePrefix || op == syntax.ExpRemLargeSuffix
		if isList {
			out := make([]string, len(elems))
			for i, e := range elems {
				out[i] = removePattern(e, arg, suffix, greedy)
			}
			return strings.Join(out, " "), nil
		}
		return removePattern(str, arg, suffix, greedy), nil
	}
	return str, nil
}

func removePattern(str, pat string, fromEnd, greedy bool) string {
	mode := pattern.Mode(0)
	if !greedy {
		mode |= pattern.Shortest
	}
	expr, err := pattern.Regexp(pat, mode)
	if err != nil {
		return str
	}
	switch {
	case fromEnd:
		expr = "(?:" + expr + ")$"
	default:
		expr = "^(?:" + expr + ")"
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return str
	}
	if loc := rx.FindStringIndex(str); loc != nil {
		return str[:loc[0]] + str[loc[1]:]
	}
	return str
}

func (cfg *Config) caseOp(pe *syntax.ParamExp, str string, elems []string, isList bool) (string, error) {
	caseFn := unicode.ToLower
	if pe.CaseOp == syntax.CaseUpperFirst || pe.CaseOp == syntax.CaseUpperAll {
		caseFn = unicode.ToUpper
	}
	all := pe.CaseOp == syntax.CaseUpperAll || pe.CaseOp == syntax.CaseLowerAll

	var rx *regexp.Regexp
	if pe.Exp != nil {
		arg, err := cfg.Literal(&pe.Exp.Word)
		if err != nil {
			return "", err
		}
		expr, err := pattern.Regexp(arg, 0)
		if err == nil {
			rx = regexp.MustCompile(expr)
		}
	}
	apply := func(s string) string {
		rs := []rune(s)
		for i, r := range rs {
			if rx != nil && !rx.MatchString(string(r)) {
				continue
			}
			rs[i] = caseFn(r)
			if !all {
				break
			}
		}
		return string(rs)
	}
	if isList {
		out := make([]string, len(elems))
		for i, e := range elems {
			out[i] = apply(e)
		}
		return strings.Join(out, " "), nil
	}
	return apply(str), nil
}

func (cfg *Config) lastBgPID() string {
	if cfg.LastBgPID == nil {
		return ""
	}
	if p := cfg.LastBgPID(); p != 0 {
		return strconv.Itoa(p)
	}
	return ""
}

func (cfg *Config) optionString() string {
	if cfg.OptionString == nil {
		return ""
	}
	return cfg.OptionString()
}
