// Package fileutil holds small file-probing helpers. The executor's
// command resolution ("resolve argv[0] via PATH") uses IsExecutable; the
// conditional-expression file tests do their own os.Stat checks.
package fileutil

import (
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var (
	shebangRe = regexp.MustCompile(`^#!\s?/(usr/)?bin/(env\s+)?(sh|bash)\s`)
	extRe     = regexp.MustCompile(`\.(sh|bash)$`)
)

// HasShebang reports whether bs begins with a valid sh or bash shebang.
func HasShebang(bs []byte) bool {
	return shebangRe.Match(bs)
}

// ScriptConfidence grades how likely a file is to be a shell script.
type ScriptConfidence int

const (
	ConfNotScript ScriptConfidence = iota
	ConfIfShebang
	ConfIsScript
)

// CouldBeScript reports how likely a directory entry is to be a shell
// script, discarding directories, symlinks, hidden files, and files with a
// non-shell extension.
func CouldBeScript(entry fs.DirEntry) ScriptConfidence {
	name := entry.Name()
	switch {
	case entry.IsDir(), name[0] == '.':
		return ConfNotScript
	case entry.Type()&os.ModeSymlink != 0:
		return ConfNotScript
	case extRe.MatchString(name):
		return ConfIsScript
	case strings.IndexByte(name, '.') > 0:
		return ConfNotScript
	default:
		return ConfIfShebang
	}
}

// IsExecutable reports whether path names an existing non-directory with
// at least one executable bit set, the test the Executor applies before
// exec'ing an argv[0] resolved via PATH.
func IsExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return fi.Mode()&0o111 != 0
}

// IsRegular reports whether path names a plain file.
func IsRegular(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
