package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# This is a comment in a .gitignore file!
/node_modules
*.log

# Ignore this nonexistent file
/nonexistent

# Do not ignore this file
!/nonexistent/foo

# Ignore some files

/baz

/foo/*.wat

/test1

test2

# Ignore some deep sub folders
/othernonexistent/**/what

# Unignore some other sub folders
!/othernonexistent/**/what/foo


*.swp
`

func parse(t *testing.T, content string) *Matcher {
	t.Helper()
	m, err := Parse(content)
	require.NoError(t, err)
	return m
}

func TestAccepts(t *testing.T) {
	m := parse(t, sample)
	noNeg := parse(t, "node_modules")

	for _, p := range []string{
		"test/index.js",
		"wat/test/index.js",
		"/othernonexistent/blah/adsasd/whatads",
		"/othernonexistent/blah/adsasd/what/foo",
		"test1File.wat",
		"nonexistent/foo",
		"nonexistent/foo/wat",
	} {
		assert.True(t, m.Accepts(p), p)
	}
	assert.True(t, noNeg.Accepts("test/index.js"))

	for _, p := range []string{
		"test1",
		"test.swp",
		"node_modules/wat.js",
		"foo/bar.wat",
		"othernonexistent/blah/what",
		"nonexistent",
		"nonexistent/bar",
		"test2",
	} {
		assert.False(t, m.Accepts(p), p)
	}
	assert.False(t, noNeg.Accepts("node_modules"))
	assert.False(t, noNeg.Accepts("node_modules/wat.js"))
}

func TestAcceptsIsComplementOfDenies(t *testing.T) {
	matchers := []*Matcher{parse(t, sample), parse(t, ""), parse(t, "*.log\n!keep.log")}
	paths := []string{"", "/", "a", "keep.log", "x.log", "nonexistent/foo", "node_modules/a.js", "deep/dir/file.txt"}
	for _, m := range matchers {
		for _, p := range paths {
			assert.Equal(t, m.Accepts(p), !m.Denies(p), p)
		}
	}
}

func TestNegationOverridesExclusion(t *testing.T) {
	m := parse(t, "*.log\n!keep.log")
	assert.True(t, m.Accepts("keep.log"))
	assert.True(t, m.Denies("debug.log"))
}

func TestNoRulesAcceptsEverything(t *testing.T) {
	m := parse(t, "# only a comment\n\n   \n")
	assert.True(t, m.Accepts("anything/at/all.bin"))
	assert.Empty(t, m.Rules())
}

func TestSlashAloneIsEmptyPath(t *testing.T) {
	m := parse(t, "!/")
	assert.Equal(t, m.Accepts(""), m.Accepts("/"))
}

func TestRulesAreSortedPerGroup(t *testing.T) {
	m := parse(t, "zeta\nalpha\n!beta\n!/aleph")
	var got []string
	for _, r := range m.Rules() {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{"alpha", "zeta", "!aleph", "!beta"}, got)
}

func TestExplain(t *testing.T) {
	m := parse(t, "bin\nobj\n!important.bin")
	hits := m.Explain("bin/x.txt")
	require.Len(t, hits, 1)
	assert.Equal(t, "bin", hits[0].Pattern)
	assert.Empty(t, m.Explain("src/Main.py"))
}
