package expand

import "strings"

// quoteLevel tracks whether a field fragment survived quote removal from
// inside single or double quotes, which controls both word splitting
// (applies only to the results of unquoted expansions) and pathname
// expansion (quoted metacharacters are literal).
type quoteLevel uint8

const (
	quoteNone quoteLevel = iota
	quoteDouble
	quoteSingle
)

// fieldPart is one quoted-or-not fragment of a field, kept separate until
// glob expansion needs to know which bytes came from a quoted context.
type fieldPart struct {
	val   string
	quote quoteLevel
}

func joinParts(parts []fieldPart) string {
	if len(parts) == 1 {
		return parts[0].val
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.val)
	}
	return b.String()
}

// ifs returns the configured IFS, defaulting to " \t\n" when unset.
func (cfg *Config) ifs() string {
	vr := cfg.Env.Get("IFS")
	if !vr.Set {
		return " \t\n"
	}
	return vr.String()
}

func ifsRune(ifs string, r rune) bool {
	for _, r2 := range ifs {
		if r == r2 {
			return true
		}
	}
	return false
}

// ifsJoin joins strs with the first IFS character, for quoted "$*".
func ifsJoin(ifs string, strs []string) string {
	sep := ""
	if ifs != "" {
		sep = ifs[:1]
	}
	return strings.Join(strs, sep)
}

// splitByIFS splits an unquoted value on IFS: runs of IFS whitespace
// collapse to one delimiter, but each non-whitespace IFS byte delimits
// on its own, so "a::b" on IFS=":" yields "a", "", "b".
func splitByIFS(ifs, val string) []string {
	if ifs == "" {
		return []string{val}
	}
	isWhitespace := func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }
	allWhitespace := true
	for _, r := range ifs {
		if !isWhitespace(r) {
			allWhitespace = false
			break
		}
	}
	if allWhitespace {
		return strings.FieldsFunc(val, func(r rune) bool { return ifsRune(ifs, r) })
	}
	var fields []string
	var cur strings.Builder
	i := 0
	runes := []rune(val)
	// Skip leading IFS-whitespace.
	for i < len(runes) && isWhitespace(runes[i]) && ifsRune(ifs, runes[i]) {
		i++
	}
	started := i > 0 || len(runes) == 0
	_ = started
	for i < len(runes) {
		r := runes[i]
		if ifsRune(ifs, r) {
			fields = append(fields, cur.String())
			cur.Reset()
			i++
			if isWhitespace(r) {
				for i < len(runes) && isWhitespace(runes[i]) && ifsRune(ifs, runes[i]) {
					i++
				}
			}
			continue
		}
		cur.WriteRune(r)
		i++
	}
	fields = append(fields, cur.String())
	// A trailing delimiter leaves an empty final field; drop it, so
	// "a:b:" on IFS=":" yields "a", "b".
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// ReadFields splits s on IFS for the `read` builtin, folding the last n-1
// fields' separators into the final field when n is bounded: extra words
// attach to the last variable. When raw is false, a backslash escapes
// the next character and strips itself, matching `read` without `-r`.
func (cfg *Config) ReadFields(s string, n int, raw bool) []string {
	ifs := cfg.ifs()
	type span struct{ start, end int }
	var spans []span

	runes := make([]rune, 0, len(s))
	inField := false
	esc := false
	for _, r := range s {
		if inField {
			if ifsRune(ifs, r) && (raw || !esc) {
				spans[len(spans)-1].end = len(runes)
				inField = false
			}
		} else if !ifsRune(ifs, r) || (!raw && esc) {
			spans = append(spans, span{start: len(runes), end: -1})
			inField = true
		}
		if r == '\\' && !raw {
			esc = !esc
			if esc {
				continue
			}
		} else {
			esc = false
		}
		runes = append(runes, r)
	}
	if len(spans) == 0 {
		return nil
	}
	if inField {
		spans[len(spans)-1].end = len(runes)
	}
	switch {
	case n == 1:
		spans[0].start, spans[0].end = 0, len(runes)
		spans = spans[:1]
	case n > 0 && n < len(spans):
		spans[n-1].end = spans[len(spans)-1].end
		spans = spans[:n]
	}
	fields := make([]string, len(spans))
	for i, sp := range spans {
		fields[i] = string(runes[sp.start:sp.end])
	}
	return fields
}
