package expand

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arrowshell/posh/pattern"
)

// glob expands one unquoted field as a pathname pattern, returning nil
// (not an empty slice) when the field has no glob metacharacters or the
// pattern matched nothing, so the caller can distinguish "no glob
// attempted" from "glob matched zero paths".
func (cfg *Config) glob(field string) ([]string, error) {
	if !pattern.HasMeta(field) && !(cfg.GlobStar && strings.Contains(field, "**")) {
		return nil, nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	anchored := field
	base := dir
	if path.IsAbs(field) {
		anchored = field[1:]
		base = "/"
	}
	segs := strings.Split(anchored, "/")

	mode := pattern.Mode(0)
	if cfg.NoCaseGlob {
		mode |= pattern.NoGlobCase
	}

	matches, err := cfg.globWalk(base, segs, mode)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		return nil, nil
	}
	for i, m := range matches {
		matches[i] = filepath.ToSlash(m)
	}
	return matches, nil
}

func (cfg *Config) globWalk(base string, segs []string, mode pattern.Mode) ([]string, error) {
	if len(segs) == 0 {
		if base == "" {
			return nil, nil
		}
		return []string{base}, nil
	}
	seg := segs[0]
	rest := segs[1:]

	if seg == "**" && cfg.GlobStar {
		return cfg.globStar(base, rest, mode)
	}
	if !pattern.HasMeta(seg) {
		next := joinPath(base, seg)
		if len(rest) == 0 {
			if cfg.exists(next) {
				return []string{next}, nil
			}
			return nil, nil
		}
		if !cfg.isDir(next) {
			return nil, nil
		}
		return cfg.globWalk(next, rest, mode)
	}

	entries, err := cfg.readDir(base)
	if err != nil {
		return nil, nil
	}
	exprStr, err := pattern.Regexp(seg, mode|pattern.EntireString)
	if err != nil {
		return nil, nil
	}
	rx, err := regexp.Compile(exprStr)
	if err != nil {
		return nil, nil
	}
	dotglob := strings.HasPrefix(seg, ".")

	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && !dotglob {
			continue
		}
		if !rx.MatchString(name) {
			continue
		}
		next := joinPath(base, name)
		if len(rest) == 0 {
			out = append(out, next)
			continue
		}
		if !e.IsDir() {
			continue
		}
		sub, err := cfg.globWalk(next, rest, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// globStar implements "**" (shopt -s globstar): it matches the current
// directory plus every directory below it, recursively.
func (cfg *Config) globStar(base string, rest []string, mode pattern.Mode) ([]string, error) {
	var dirs []string
	var walk func(dir string)
	walk = func(dir string) {
		dirs = append(dirs, dir)
		entries, err := cfg.readDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			walk(joinPath(dir, e.Name()))
		}
	}
	walk(base)

	var out []string
	for _, d := range dirs {
		sub, err := cfg.globWalk(d, rest, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func joinPath(base, name string) string {
	if base == "" || base == "." {
		return name
	}
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

func (cfg *Config) readDir(dir string) ([]os.DirEntry, error) {
	if cfg.ReadDir != nil {
		return cfg.ReadDir(dir)
	}
	return os.ReadDir(dir)
}

func (cfg *Config) exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func (cfg *Config) isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
