package expand

import (
	"strconv"
	"strings"

	"github.com/arrowshell/posh/syntax"
)

// Braces performs brace expansion on a word: purely textual, operating on
// the raw word before any variable substitution. Malformed patterns are
// returned unchanged rather than erroring, so "a{b{c,d}" falls back to the
// literal fields "a{bc" and "a{bd" instead of failing the whole command.
func Braces(word syntax.Word) []syntax.Word {
	top := splitBraces(word)
	return expandBraceRec(top)
}

type braceSeq struct {
	seq   bool // {x..y[..incr]} rather than {x,y[,...]}
	elems []braceWord
}

// braceWord mirrors syntax.Word but its parts may also be *braceSeq nodes.
type braceWord struct {
	parts []any
}

var (
	litLeftBrace  = &syntax.Lit{Value: "{"}
	litComma      = &syntax.Lit{Value: ","}
	litDots       = &syntax.Lit{Value: ".."}
	litRightBrace = &syntax.Lit{Value: "}"}
)

func splitBraces(word syntax.Word) braceWord {
	top := braceWord{}
	acc := &top
	var cur *braceSeq
	var open []*braceSeq

	pop := func() *braceSeq {
		old := cur
		open = open[:len(open)-1]
		if len(open) == 0 {
			cur = nil
			acc = &top
		} else {
			cur = open[len(open)-1]
			acc = &cur.elems[len(cur.elems)-1]
		}
		return old
	}

	for _, wp := range word.Parts {
		lit, ok := wp.(*syntax.Lit)
		if !ok {
			acc.parts = append(acc.parts, wp)
			continue
		}
		last := 0
		for j := 0; j < len(lit.Value); j++ {
			addLit := func() {
				if last == j {
					return
				}
				l2 := *lit
				l2.Value = l2.Value[last:j]
				acc.parts = append(acc.parts, &l2)
			}
			switch lit.Value[j] {
			case '{':
				addLit()
				cur = &braceSeq{elems: []braceWord{{}}}
				open = append(open, cur)
				acc = &cur.elems[0]
			case ',':
				if cur == nil {
					continue
				}
				addLit()
				cur.elems = append(cur.elems, braceWord{})
				acc = &cur.elems[len(cur.elems)-1]
			case '.':
				if cur == nil {
					continue
				}
				if j+1 >= len(lit.Value) || lit.Value[j+1] != '.' {
					continue
				}
				addLit()
				cur.seq = true
				cur.elems = append(cur.elems, braceWord{})
				acc = &cur.elems[len(cur.elems)-1]
				j++
			case '}':
				if cur == nil {
					continue
				}
				addLit()
				br := pop()
				if len(br.elems) == 1 {
					acc.parts = append(acc.parts, litLeftBrace)
					acc.parts = append(acc.parts, br.elems[0].parts...)
					acc.parts = append(acc.parts, litRightBrace)
					break
				}
				if !br.seq {
					acc.parts = append(acc.parts, br)
					break
				}
				if !validSeq(br) {
					acc.parts = append(acc.parts, litLeftBrace)
					for i, elem := range br.elems {
						if i > 0 {
							acc.parts = append(acc.parts, litDots)
						}
						acc.parts = append(acc.parts, elem.parts...)
					}
					acc.parts = append(acc.parts, litRightBrace)
					break
				}
				acc.parts = append(acc.parts, br)
			default:
				continue
			}
			last = j + 1
		}
		if last == 0 {
			acc.parts = append(acc.parts, lit)
		} else {
			left := *lit
			left.Value = left.Value[last:]
			acc.parts = append(acc.parts, &left)
		}
	}
	for acc != &top {
		br := pop()
		acc.parts = append(acc.parts, litLeftBrace)
		for i, elem := range br.elems {
			if i > 0 {
				if br.seq {
					acc.parts = append(acc.parts, litDots)
				} else {
					acc.parts = append(acc.parts, litComma)
				}
			}
			acc.parts = append(acc.parts, elem.parts...)
		}
	}
	return top
}

// validSeq reports whether a {x..y[..incr]} sequence has well-formed
// endpoints: both integers, or both single lowercase/uppercase letters.
func validSeq(br *braceSeq) bool {
	if len(br.elems) < 2 || len(br.elems) > 3 {
		return false
	}
	kind := seqKind(braceWordLit(br.elems[0]))
	if kind == seqInvalid || seqKind(braceWordLit(br.elems[1])) != kind {
		return false
	}
	if len(br.elems) == 3 {
		if _, err := strconv.Atoi(braceWordLit(br.elems[2])); err != nil {
			return false
		}
	}
	return true
}

type seqValKind int

const (
	seqInvalid seqValKind = iota
	seqInt
	seqChar
)

func seqKind(val string) seqValKind {
	if _, err := strconv.Atoi(val); err == nil {
		return seqInt
	}
	if len(val) == 1 && (('a' <= val[0] && val[0] <= 'z') || ('A' <= val[0] && val[0] <= 'Z')) {
		return seqChar
	}
	return seqInvalid
}

func braceWordLit(bw braceWord) string {
	if len(bw.parts) != 1 {
		return ""
	}
	lit, ok := bw.parts[0].(*syntax.Lit)
	if !ok {
		return ""
	}
	return lit.Value
}

func expandBraceRec(bw braceWord) []syntax.Word {
	var all []syntax.Word
	var left []syntax.WordPart
	for i, wp := range bw.parts {
		br, ok := wp.(*braceSeq)
		if !ok {
			left = append(left, wp.(syntax.WordPart))
			continue
		}
		if br.seq {
			return append(all, expandSeq(br, bw, i, left)...)
		}
		for _, elem := range br.elems {
			next := bw
			next.parts = append(append([]any{}, elem.parts...), bw.parts[i+1:]...)
			exp := expandBraceRec(next)
			for j := range exp {
				exp[j].Parts = append(append([]syntax.WordPart{}, left...), exp[j].Parts...)
			}
			all = append(all, exp...)
		}
		return all
	}
	return []syntax.Word{{Parts: left}}
}

func expandSeq(br *braceSeq, bw braceWord, i int, left []syntax.WordPart) []syntax.Word {
	var all []syntax.Word
	fromVal, toVal := braceWordLit(br.elems[0]), braceWordLit(br.elems[1])
	isChar := seqKind(fromVal) == seqChar
	var from, to int
	var width int
	if isChar {
		from, to = int(fromVal[0]), int(toVal[0])
	} else {
		from, _ = strconv.Atoi(fromVal)
		to, _ = strconv.Atoi(toVal)
		width = zeroPadWidth(fromVal, toVal)
	}
	upward := from <= to
	incr := 1
	if !upward {
		incr = -1
	}
	if len(br.elems) > 2 {
		n, _ := strconv.Atoi(braceWordLit(br.elems[2]))
		if n != 0 {
			if n < 0 {
				n = -n
			}
			incr = n
			if !upward {
				incr = -incr
			}
		}
	}
	for n := from; (upward && n <= to) || (!upward && n >= to); n += incr {
		next := bw
		next.parts = append([]any{}, bw.parts[i+1:]...)
		var lit *syntax.Lit
		if isChar {
			lit = &syntax.Lit{Value: string(rune(n))}
		} else {
			lit = &syntax.Lit{Value: padInt(n, width)}
		}
		next.parts = append([]any{lit}, next.parts...)
		exp := expandBraceRec(next)
		for j := range exp {
			exp[j].Parts = append(append([]syntax.WordPart{}, left...), exp[j].Parts...)
		}
		all = append(all, exp...)
	}
	return all
}

// zeroPadWidth returns the common zero-padded width to use when either
// sequence endpoint has a leading zero, e.g. {08..10} yields 08 09 10.
func zeroPadWidth(from, to string) int {
	w := 0
	if hasLeadingZero(from) {
		w = len(strings.TrimPrefix(from, "-"))
	}
	if hasLeadingZero(to) && len(strings.TrimPrefix(to, "-")) > w {
		w = len(strings.TrimPrefix(to, "-"))
	}
	return w
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

func padInt(n, width int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	if width > 0 {
		for len(digits) < width {
			digits = "0" + digits
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}
