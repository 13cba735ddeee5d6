// Package history implements the in-memory command-history ring buffer and
// the bash-style "!"-history-expansion algorithm, applied before any other
// lexing in interactive mode. Everything else about history — the
// line-editor UI, key bindings, and incremental search — is out of scope
// for this package; this
// package only owns the ring buffer, the HISTFILE on-disk contract, and
// the textual expansion rule itself, since that rule is part of the
// language the Lexer must implement.
package history

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	maybeio "github.com/google/renameio/v2/maybe"
)

// List is a bounded ring of previously entered command lines, addressed by
// 1-based event number the way bash's `fc`/`!N` does.
type List struct {
	lines []string
	// base is the event number of lines[0]; entries before a Load or after
	// trimming to Limit keep their original numbering.
	base  int
	Limit int // 0 means unbounded
}

// NewList returns an empty history list. limit mirrors $HISTSIZE; 0 means
// unbounded.
func NewList(limit int) *List {
	return &List{base: 1, Limit: limit}
}

// Add appends a line as the newest history event, trimming the oldest
// entry once Limit is exceeded.
func (l *List) Add(line string) {
	if line == "" {
		return
	}
	l.lines = append(l.lines, line)
	if l.Limit > 0 && len(l.lines) > l.Limit {
		drop := len(l.lines) - l.Limit
		l.lines = l.lines[drop:]
		l.base += drop
	}
}

// Len reports the number of retained events.
func (l *List) Len() int { return len(l.lines) }

// At returns the 1-based event n, bash-numbered from l.base.
func (l *List) At(n int) (string, bool) {
	idx := n - l.base
	if idx < 0 || idx >= len(l.lines) {
		return "", false
	}
	return l.lines[idx], true
}

// Last returns the most recent event, or "" if empty.
func (l *List) Last() (string, bool) {
	if len(l.lines) == 0 {
		return "", false
	}
	return l.lines[len(l.lines)-1], true
}

// All returns every retained line, oldest first, each paired with its
// 1-based event number (for `history`/`fc -l`).
func (l *List) All() []struct {
	N    int
	Line string
} {
	out := make([]struct {
		N    int
		Line string
	}, len(l.lines))
	for i, line := range l.lines {
		out[i] = struct {
			N    int
			Line string
		}{l.base + i, line}
	}
	return out
}

// Load reads newline-separated history entries from HISTFILE, appending
// them to any already-present in-memory entries, as an interactive
// shell's startup does.
func (l *List) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		l.Add(sc.Text())
	}
	return sc.Err()
}

// Save atomically (write-temp-then-rename, via renameio) persists the
// retained history lines to HISTFILE, so a crash mid-write never truncates
// a user's history file.
func (l *List) Save(path string) error {
	if path == "" {
		return nil
	}
	var b strings.Builder
	for _, line := range l.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return maybeio.WriteFile(path, []byte(b.String()), 0o600)
}

// Expand applies bash's "!"-history-expansion to a single input line
// before it reaches the Lexer: `!!` is the previous command, `!N` is
// event N, `!-N` is N events back, `!prefix` is the most recent command
// starting with prefix, and `!?substr?` is the most recent command
// containing substr. It honors quoting: no expansion inside single quotes,
// and a `!` not followed by a character that can start a designator is
// passed through literally (bash's own rule, since `!` is common in
// passwords and globs).
func (l *List) Expand(line string) (string, error) {
	if !strings.Contains(line, "!") {
		return line, nil
	}
	var out strings.Builder
	inSingle := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\'' && !inSingle:
			inSingle = true
			out.WriteRune(c)
		case c == '\'' && inSingle:
			inSingle = false
			out.WriteRune(c)
		case c == '!' && !inSingle:
			repl, n, err := l.expandOne(runes[i:])
			if err != nil {
				return "", err
			}
			if n == 0 {
				out.WriteRune(c)
				continue
			}
			out.WriteString(repl)
			i += n - 1
		default:
			out.WriteRune(c)
		}
	}
	return out.String(), nil
}

// expandOne expands the single designator starting at runes[0] == '!',
// returning the replacement text and the number of runes it consumed (0 if
// runes[1] can't start a designator, in which case '!' is literal).
func (l *List) expandOne(runes []rune) (string, int, error) {
	if len(runes) < 2 {
		return "", 0, nil
	}
	rest := runes[1:]
	switch {
	case rest[0] == '!':
		line, ok := l.Last()
		if !ok {
			return "", 0, fmt.Errorf("!!: event not found")
		}
		return line, 2, nil
	case rest[0] == '?':
		end := 1
		for end < len(rest) && rest[end] != '?' {
			end++
		}
		substr := string(rest[1:end])
		consumed := end + 1
		if end < len(rest) {
			consumed = end + 2 // include closing '?'
		} else {
			consumed = end + 1
		}
		for _, e := range reverse(l.All()) {
			if strings.Contains(e.Line, substr) {
				return e.Line, consumed, nil
			}
		}
		return "", 0, fmt.Errorf("!?%s?: event not found", substr)
	case rest[0] == '-' || isDigit(rest[0]):
		end := 0
		if rest[0] == '-' {
			end = 1
		}
		for end < len(rest) && isDigit(rest[end]) {
			end++
		}
		numText := string(rest[:end])
		n, err := strconv.Atoi(numText)
		if err != nil {
			return "", 0, nil
		}
		event := n
		if strings.HasPrefix(numText, "-") {
			_, last := l.lastEventNumber()
			event = last + n + 1
		}
		line, ok := l.At(event)
		if !ok {
			return "", 0, fmt.Errorf("!%s: event not found", numText)
		}
		return line, end + 1, nil
	case isWordStart(rest[0]):
		end := 0
		for end < len(rest) && isWordByte(rest[end]) {
			end++
		}
		prefix := string(rest[:end])
		for _, e := range reverse(l.All()) {
			if strings.HasPrefix(e.Line, prefix) {
				return e.Line, end + 1, nil
			}
		}
		return "", 0, fmt.Errorf("!%s: event not found", prefix)
	default:
		return "", 0, nil
	}
}

func (l *List) lastEventNumber() (bool, int) {
	if len(l.lines) == 0 {
		return false, l.base - 1
	}
	return true, l.base + len(l.lines) - 1
}

func reverse(all []struct {
	N    int
	Line string
}) []struct {
	N    int
	Line string
} {
	out := make([]struct {
		N    int
		Line string
	}, len(all))
	for i, e := range all {
		out[len(all)-1-i] = e
	}
	return out
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWordStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isWordByte(r rune) bool {
	return isWordStart(r) || isDigit(r)
}
