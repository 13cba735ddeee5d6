package pattern

import (
	"regexp"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRegexpPlainPassthrough(t *testing.T) {
	c := qt.New(t)
	got, err := Regexp("foobar", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "foobar")
}

func TestRegexpStar(t *testing.T) {
	c := qt.New(t)
	got, err := Regexp("foo*", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "(?s)foo.*")
}

func TestRegexpFilenamesDotglob(t *testing.T) {
	c := qt.New(t)
	src, err := Regexp("*foo", Filenames|EntireString)
	c.Assert(err, qt.IsNil)
	re := regexp.MustCompile(src)
	c.Assert(re.MatchString("prefix-foo"), qt.IsTrue)
	c.Assert(re.MatchString(".foo"), qt.IsFalse)
}

func TestRegexpGlobstar(t *testing.T) {
	c := qt.New(t)
	src, err := Regexp("**/foo", Filenames|EntireString)
	c.Assert(err, qt.IsNil)
	re := regexp.MustCompile(src)
	c.Assert(re.MatchString("a/b/c/foo"), qt.IsTrue)
	c.Assert(re.MatchString("foo"), qt.IsTrue)
}

func TestRegexpNoGlobStarFallsBack(t *testing.T) {
	c := qt.New(t)
	src, err := Regexp("**", Filenames|NoGlobStar|EntireString)
	c.Assert(err, qt.IsNil)
	re := regexp.MustCompile(src)
	c.Assert(re.MatchString("a/b"), qt.IsFalse)
}

func TestRegexpCharClass(t *testing.T) {
	c := qt.New(t)
	src, err := Regexp("[[:digit:]]", EntireString)
	c.Assert(err, qt.IsNil)
	re := regexp.MustCompile(src)
	c.Assert(re.MatchString("5"), qt.IsTrue)
	c.Assert(re.MatchString("x"), qt.IsFalse)
}

func TestRegexpUnterminatedBracket(t *testing.T) {
	c := qt.New(t)
	_, err := Regexp("[abc", 0)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestHasMetaAndQuoteMeta(t *testing.T) {
	c := qt.New(t)
	c.Assert(HasMeta(`foo*bar`), qt.IsTrue)
	c.Assert(HasMeta(`foo\*bar`), qt.IsFalse)
	c.Assert(QuoteMeta(`foo*bar?`), qt.Equals, `foo\*bar\?`)
}
