package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/arrowshell/posh/expand"
	"github.com/arrowshell/posh/syntax"
)

// scopeStack is the Runner's variable store: a global map plus a stack of
// function-call frames. Lookups and plain assignments walk the frame
// stack from the innermost frame outward, which is what gives bash's
// dynamic `local` scoping (e.g. a function `g` mutating a caller `f`'s
// local `x`) instead of the lexical scoping a naive map-per-call-stack
// would give.
type scopeStack struct {
	globals map[string]expand.Variable
	frames  []map[string]expand.Variable
	base    expand.Environ // the process environment, read-only fallback

	// dynamic answers a handful of names (RANDOM, SECONDS) whose value is
	// computed on read rather than stored, taking precedence over any
	// stored binding of the same name.
	dynamic func(name string) (string, bool)
}

func newScopeStack(base expand.Environ) *scopeStack {
	return &scopeStack{globals: make(map[string]expand.Variable), base: base}
}

func (s *scopeStack) pushFrame() { s.frames = append(s.frames, map[string]expand.Variable{}) }
func (s *scopeStack) popFrame()  { s.frames = s.frames[:len(s.frames)-1] }

// Get implements expand.Environ.
func (s *scopeStack) Get(name string) expand.Variable {
	if s.dynamic != nil {
		if v, ok := s.dynamic(name); ok {
			return expand.Variable{Set: true, Kind: expand.String, Str: v}
		}
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if vr, ok := s.frames[i][name]; ok {
			return vr
		}
	}
	if vr, ok := s.globals[name]; ok {
		return vr
	}
	if s.base != nil {
		return s.base.Get(name)
	}
	return expand.Variable{}
}

// Each implements expand.Environ: the base environment first (lowest
// precedence), then globals, then each frame, so later writes in the
// result map win, matching Get's precedence order.
func (s *scopeStack) Each(fn func(name string, vr expand.Variable) bool) {
	merged := map[string]expand.Variable{}
	if s.base != nil {
		s.base.Each(func(name string, vr expand.Variable) bool {
			merged[name] = vr
			return true
		})
	}
	for name, vr := range s.globals {
		merged[name] = vr
	}
	for _, frame := range s.frames {
		for name, vr := range frame {
			merged[name] = vr
		}
	}
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !fn(name, merged[name]) {
			return
		}
	}
}

// Set implements expand.WriteEnviron: it mutates whichever scope already
// holds the name (nearest frame first), falling back to a new global
// binding, which is bash's "assignment inside a function without `local`
// creates/updates a global" rule.
func (s *scopeStack) Set(name string, vr expand.Variable) error {
	if cur := s.Get(name); cur.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i][name]; ok {
			s.frames[i][name] = vr
			return nil
		}
	}
	s.globals[name] = vr
	return nil
}

// setLocal implements the `local` builtin: always binds in the innermost
// active frame, shadowing any outer binding of the same name for the
// duration of the current call.
func (s *scopeStack) setLocal(name string, vr expand.Variable) error {
	if len(s.frames) == 0 {
		return s.Set(name, vr)
	}
	if cur, ok := s.frames[len(s.frames)-1][name]; ok && cur.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	vr.Local = true
	s.frames[len(s.frames)-1][name] = vr
	return nil
}

// setGlobal implements `declare -g`: writes straight to the global scope,
// bypassing any local shadow.
func (s *scopeStack) setGlobal(name string, vr expand.Variable) error {
	if cur, ok := s.globals[name]; ok && cur.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	vr.Local = false
	s.globals[name] = vr
	return nil
}

func (s *scopeStack) unset(name string) error {
	if cur := s.Get(name); cur.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i][name]; ok {
			delete(s.frames[i], name)
			return nil
		}
	}
	delete(s.globals, name)
	return nil
}

// assignValue computes a Variable's new value for one *syntax.Assign,
// honoring +=/Naked/array-literal forms, without yet applying it: the
// caller decides the target scope.
func (r *Runner) assignValue(as *syntax.Assign) (expand.Variable, error) {
	prev := r.Env.Get(as.Name.Value)
	if as.Naked {
		return prev, nil
	}
	if as.Array {
		return r.assignArrayLiteral(as, prev)
	}
	s, err := r.cfg.Literal(&as.Value)
	if err != nil {
		return expand.Variable{}, err
	}
	if prev.Integer {
		n, err := r.cfg.Arithm(wrapArithWord(s))
		if err != nil {
			return expand.Variable{}, err
		}
		s = strconv.FormatInt(n, 10)
	}
	if as.Append && prev.Declared() {
		switch prev.Kind {
		case expand.Indexed:
			list := append([]string(nil), prev.List...)
			if len(list) == 0 {
				list = append(list, "")
			}
			list[len(list)-1] += s
			return expand.Variable{Set: true, Kind: expand.Indexed, List: list, Integer: prev.Integer, Exported: prev.Exported}, nil
		case expand.Associative:
			return prev, nil
		default:
			s = prev.Str + s
		}
	}
	s = applyCaseAttr(s, prev.CaseUpper, prev.CaseLower)
	return expand.Variable{
		Set: true, Kind: expand.String, Str: s,
		Integer: prev.Integer, Exported: prev.Exported,
		CaseUpper: prev.CaseUpper, CaseLower: prev.CaseLower,
	}, nil
}

func (r *Runner) assignArrayLiteral(as *syntax.Assign, prev expand.Variable) (expand.Variable, error) {
	assoc := prev.Kind == expand.Associative
	if !assoc && len(as.Elems) > 0 && as.Elems[0].Index != nil {
		if _, ok := as.Elems[0].Index.(*syntax.Word); ok {
			if w := as.Elems[0].Index.(*syntax.Word); isQuotedIndex(w) {
				assoc = true
			}
		}
	}
	if assoc {
		vr := expand.Variable{Set: true, Kind: expand.Associative}
		if prev.Kind == expand.Associative {
			for _, k := range prev.OrderedKeys() {
				vr.SetMapValue(k, prev.Map[k])
			}
		}
		for _, el := range as.Elems {
			key, err := r.cfg.Literal(wordOf(el.Index))
			if err != nil {
				return expand.Variable{}, err
			}
			val, err := r.cfg.Literal(&el.Value)
			if err != nil {
				return expand.Variable{}, err
			}
			vr.SetMapValue(key, val)
		}
		return vr, nil
	}
	var list []string
	if as.Append {
		list = append(list, prev.List...)
	}
	next := len(list)
	for _, el := range as.Elems {
		idx := next
		if el.Index != nil {
			n, err := r.cfg.Arithm(el.Index)
			if err != nil {
				return expand.Variable{}, err
			}
			idx = int(n)
		}
		val, err := r.cfg.Literal(&el.Value)
		if err != nil {
			return expand.Variable{}, err
		}
		for len(list) <= idx {
			list = append(list, "")
		}
		list[idx] = val
		next = idx + 1
	}
	return expand.Variable{Set: true, Kind: expand.Indexed, List: list}, nil
}

func isQuotedIndex(w *syntax.Word) bool {
	if len(w.Parts) != 1 {
		return false
	}
	switch w.Parts[0].(type) {
	case *syntax.DblQuoted, *syntax.SglQuoted:
		return true
	}
	return false
}

func wordOf(e syntax.ArithmExpr) *syntax.Word {
	if w, ok := e.(*syntax.Word); ok {
		return w
	}
	return &syntax.Word{}
}

func wrapArithWord(s string) *syntax.Word {
	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

// setIndexed implements "name[idx]=value" / "name[idx]+=value" assignment
// targets.
func (r *Runner) setIndexed(as *syntax.Assign) error {
	prev := r.Env.Get(as.Name.Value)
	if prev.ReadOnly {
		return fmt.Errorf("%s: readonly variable", as.Name.Value)
	}
	val, err := r.cfg.Literal(&as.Value)
	if err != nil {
		return err
	}
	if w, ok := as.Index.(*syntax.Word); ok && (isQuotedIndex(w) || prev.Kind == expand.Associative) {
		key, err := r.cfg.Literal(w)
		if err != nil {
			return err
		}
		vr := expand.Variable{Set: true, Kind: expand.Associative, Exported: prev.Exported}
		if prev.Kind == expand.Associative {
			for _, k := range prev.OrderedKeys() {
				vr.SetMapValue(k, prev.Map[k])
			}
		}
		if as.Append {
			val = vr.Map[key] + val
		}
		vr.SetMapValue(key, val)
		return r.Env.Set(as.Name.Value, vr)
	}
	n, err := r.cfg.Arithm(as.Index)
	if err != nil {
		return err
	}
	list := append([]string(nil), prev.List...)
	if prev.Kind == expand.String && prev.Set {
		list = []string{prev.Str}
	}
	idx := int(n)
	if idx < 0 {
		idx += len(list)
	}
	if idx < 0 {
		return fmt.Errorf("%s: bad array subscript", as.Name.Value)
	}
	for len(list) <= idx {
		list = append(list, "")
	}
	if as.Append {
		val = list[idx] + val
	}
	list[idx] = val
	return r.Env.Set(as.Name.Value, expand.Variable{Set: true, Kind: expand.Indexed, List: list, Exported: prev.Exported})
}

// applyCaseAttr transforms a string value per a `declare -u`/`-l` case
// attribute, applied at assignment time.
func applyCaseAttr(s string, upper, lower bool) string {
	switch {
	case upper:
		return strings.ToUpper(s)
	case lower:
		return strings.ToLower(s)
	default:
		return s
	}
}
