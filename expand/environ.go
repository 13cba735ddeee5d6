// Package expand implements the shell's seven-stage word expansion
// pipeline (brace, tilde, parameter/command/arithmetic, word splitting,
// pathname globbing, quote removal) plus the variable-value model
// (Environ/Variable) that both the expansion engine and the executor's
// variable store build on.
package expand

import (
	"sort"
	"strings"
)

// ValueKind tags which underlying representation a Variable's value uses.
type ValueKind uint8

const (
	Unknown ValueKind = iota
	String
	NameRef
	Indexed
	Associative
)

// Variable is a shell variable's value plus its attributes: scalar,
// indexed array, or associative array, each carrying
// export/readonly/local attributes.
type Variable struct {
	Set      bool
	Local    bool
	Exported bool
	ReadOnly bool
	Integer  bool // declare -i: RHS of assignment is evaluated arithmetically
	CaseUpper bool // declare -u: RHS is upper-cased on assignment
	CaseLower bool // declare -l: RHS is lower-cased on assignment

	Kind ValueKind

	Str string            // Kind == String or NameRef
	List []string          // Kind == Indexed
	Map  map[string]string // Kind == Associative

	// MapKeys preserves the order keys were first inserted into Map for
	// display purposes — a bare Go map has no iteration order of its own.
	MapKeys []string
}

// SetMapValue inserts or updates an associative-array element, recording
// the key's insertion order the first time it is seen.
func (v *Variable) SetMapValue(key, val string) {
	if v.Map == nil {
		v.Map = map[string]string{}
	}
	if _, ok := v.Map[key]; !ok {
		v.MapKeys = append(v.MapKeys, key)
	}
	v.Map[key] = val
}

// DeleteMapValue removes an associative-array element and its entry in the
// insertion-order list.
func (v *Variable) DeleteMapValue(key string) {
	if _, ok := v.Map[key]; !ok {
		return
	}
	delete(v.Map, key)
	for i, k := range v.MapKeys {
		if k == key {
			v.MapKeys = append(v.MapKeys[:i], v.MapKeys[i+1:]...)
			break
		}
	}
}

// OrderedKeys returns the associative array's keys in insertion order,
// falling back to a deterministic sort for a Map populated without going
// through SetMapValue (e.g. built directly by a caller outside this
// package).
func (v Variable) OrderedKeys() []string {
	if v.Kind != Associative {
		return nil
	}
	if len(v.MapKeys) == len(v.Map) {
		return append([]string(nil), v.MapKeys...)
	}
	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Variable) IsSet() bool { return v.Set }

// Declared reports whether the variable has been mentioned at all (export,
// readonly, or a declare-only attribute), even without a value.
func (v Variable) Declared() bool {
	return v.Set || v.Local || v.Exported || v.ReadOnly || v.Kind != Unknown
}

// String renders the variable as a scalar: an indexed array without an
// explicit subscript yields its element at index 0.
func (v Variable) String() string {
	switch v.Kind {
	case String, NameRef:
		return v.Str
	case Indexed:
		if len(v.List) > 0 {
			return v.List[0]
		}
	}
	return ""
}

const maxNameRefDepth = 100

// Resolve follows a chain of nameref variables (declare -n) to the
// variable they ultimately point to.
func (v Variable) Resolve(env Environ) (string, Variable) {
	name := ""
	for i := 0; i < maxNameRefDepth; i++ {
		if v.Kind != NameRef {
			return name, v
		}
		name = v.Str
		v = env.Get(name)
	}
	return name, Variable{}
}

// Environ is the read side of a shell's variable store.
type Environ interface {
	Get(name string) Variable
	Each(func(name string, vr Variable) bool)
}

// WriteEnviron additionally allows setting and unsetting variables.
type WriteEnviron interface {
	Environ
	Set(name string, vr Variable) error
}

// FuncEnviron adapts a plain name-to-value function (e.g. os.Getenv) into
// a read-only Environ, treating every returned value as exported.
func FuncEnviron(fn func(string) string) Environ { return funcEnviron(fn) }

type funcEnviron func(string) string

func (f funcEnviron) Get(name string) Variable {
	v := f(name)
	if v == "" {
		return Variable{}
	}
	return Variable{Set: true, Exported: true, Kind: String, Str: v}
}

func (f funcEnviron) Each(func(string, Variable) bool) {}

// ListEnviron builds an Environ from "name=value" pairs, such as os.Environ().
// All variables are exported; later duplicates win.
func ListEnviron(pairs ...string) Environ {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			continue
		}
		m[name] = val
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return &mapEnviron{names: names, values: m}
}

type mapEnviron struct {
	names  []string
	values map[string]string
}

func (e *mapEnviron) Get(name string) Variable {
	v, ok := e.values[name]
	if !ok {
		return Variable{}
	}
	return Variable{Set: true, Exported: true, Kind: String, Str: v}
}

func (e *mapEnviron) Each(fn func(name string, vr Variable) bool) {
	for _, name := range e.names {
		if !fn(name, e.Get(name)) {
			return
		}
	}
}
