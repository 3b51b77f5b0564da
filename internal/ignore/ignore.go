// Package ignore compiles .funcignore files into path predicates.
//
// Rules are split into two groups, exclusions and negations. A path is denied
// when it matches an exclusion and no negation. Line order carries no
// precedence beyond that split, so existing ignore files keep behaving the
// way they always have even where full gitignore semantics would differ.
package ignore

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FileName is the ignore file read from the project root.
const FileName = ".funcignore"

// metaChars are escaped before glob expansion.
const metaChars = `-[]/{}()+?.\^$|`

// Rule is one compiled ignore line.
type Rule struct {
	Pattern string
	Negated bool

	full    *regexp.Regexp
	partial *regexp.Regexp
}

// MatchesFull reports whether the rule matches p from its start.
func (r Rule) MatchesFull(p string) bool { return r.full.MatchString(p) }

// MatchesPartial reports whether the rule matches p at a segment boundary.
func (r Rule) MatchesPartial(p string) bool { return r.partial.MatchString(p) }

func (r Rule) String() string {
	if r.Negated {
		return "!" + r.Pattern
	}
	return r.Pattern
}

// Matcher answers accept/deny questions for forward-slash relative paths.
type Matcher struct {
	rules []Rule

	// nil means the group is empty and never matches
	exclude *regexp.Regexp
	include *regexp.Regexp
}

// Parse compiles the contents of an ignore file.
func Parse(content string) (*Matcher, error) {
	var excludes, negations []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negated := strings.HasPrefix(line, "!")
		if negated {
			line = line[1:]
		}
		line = strings.TrimPrefix(line, "/")
		if negated {
			negations = append(negations, line)
		} else {
			excludes = append(excludes, line)
		}
	}
	sort.Strings(excludes)
	sort.Strings(negations)

	m := &Matcher{}
	var err error
	if m.exclude, err = compileGroup(excludes); err != nil {
		return nil, err
	}
	if m.include, err = compileGroup(negations); err != nil {
		return nil, err
	}
	for _, group := range []struct {
		patterns []string
		negated  bool
	}{{excludes, false}, {negations, true}} {
		for _, p := range group.patterns {
			rule, err := compileRule(p, group.negated)
			if err != nil {
				return nil, err
			}
			m.rules = append(m.rules, rule)
		}
	}
	return m, nil
}

// Accepts reports whether p should be packaged.
func (m *Matcher) Accepts(p string) bool {
	if p == "/" {
		p = ""
	}
	return matches(m.include, p) || !matches(m.exclude, p)
}

// Denies is the complement of Accepts.
func (m *Matcher) Denies(p string) bool {
	return !m.Accepts(p)
}

// Rules returns the compiled rules, exclusions first.
func (m *Matcher) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// Explain returns the rules whose full or partial pattern matches p.
func (m *Matcher) Explain(p string) []Rule {
	var hits []Rule
	for _, r := range m.rules {
		if r.MatchesFull(p) || r.MatchesPartial(p) {
			hits = append(hits, r)
		}
	}
	return hits
}

func matches(re *regexp.Regexp, p string) bool {
	return re != nil && re.MatchString(p)
}

func compileGroup(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	parts := make([]string, len(patterns))
	for i, p := range patterns {
		parts[i] = fullPattern(p)
	}
	re, err := regexp.Compile(`^((` + strings.Join(parts, ")|(") + `))\b`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ignore patterns: %w", err)
	}
	return re, nil
}

func compileRule(pattern string, negated bool) (Rule, error) {
	full, err := regexp.Compile(`^(` + fullPattern(pattern) + `)\b`)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
	}
	partial, err := regexp.Compile(`^` + partialPattern(pattern))
	if err != nil {
		return Rule{}, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
	}
	return Rule{Pattern: pattern, Negated: negated, full: full, partial: partial}, nil
}

// fullPattern escapes regex metacharacters, then expands ** to any number of
// segments and * to anything within one segment.
func fullPattern(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		if strings.ContainsRune(metaChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	s := strings.ReplaceAll(b.String(), "**", "(.+)")
	return strings.ReplaceAll(s, "*", `([^\/]+)`)
}

// partialPattern lets the first segment match at the start of the path or as
// the whole remaining path, and each later segment at a word boundary.
func partialPattern(pattern string) string {
	var b strings.Builder
	for i, seg := range strings.Split(pattern, "/") {
		if i == 0 {
			fmt.Fprintf(&b, `([\/]?(%s\b|$))`, fullPattern(seg))
		} else {
			fmt.Fprintf(&b, `(%s\b)`, fullPattern(seg))
		}
	}
	return b.String()
}
