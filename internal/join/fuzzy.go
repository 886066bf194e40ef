package join

import "regexp"

// RegexSet tests a value against many compiled patterns in one call.
// Go's regexp package has no native multi-pattern set type (unlike
// Rust's regex::RegexSet that the source's fuzzy join was modeled on,
// per original_source/), so this wraps a slice of *regexp.Regexp;
// see DESIGN.md for why no pack library fills this gap either.
type RegexSet struct {
	patterns []*regexp.Regexp
}

func CompileRegexSet(patterns []string) (*RegexSet, error) {
	rs := &RegexSet{patterns: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		rs.patterns[i] = re
	}
	return rs, nil
}

// MatchAny reports whether any pattern matches s, and the first
// matching pattern's index.
func (rs *RegexSet) MatchAny(s string) (int, bool) {
	for i, re := range rs.patterns {
		if re.MatchString(s) {
			return i, true
		}
	}
	return 0, false
}

// FuzzyKind selects the fuzzy join matcher variant.
type FuzzyKind int

const (
	FuzzySubstring FuzzyKind = iota
	FuzzyRegex
	FuzzyURLPrefix
)

// FuzzyMatcher unifies the three fuzzy join matchers behind one
// interface so the probe loop doesn't need a type switch per row.
type FuzzyMatcher interface {
	Match(value string) (patternIndex int, ok bool)
}

type acMatcher struct {
	ac       *AhoCorasick
	patterns []string
}

func NewSubstringMatcher(patterns []string) FuzzyMatcher {
	return &acMatcher{ac: BuildAhoCorasick(patterns), patterns: patterns}
}
func (m *acMatcher) Match(value string) (int, bool) { return m.ac.MatchAny(value) }

type regexMatcher struct{ rs *RegexSet }

func NewRegexMatcher(patterns []string) (FuzzyMatcher, error) {
	rs, err := CompileRegexSet(patterns)
	if err != nil {
		return nil, err
	}
	return &regexMatcher{rs: rs}, nil
}
func (m *regexMatcher) Match(value string) (int, bool) { return m.rs.MatchAny(value) }

type urlMatcher struct {
	trie     *URLPrefixTrie
	patterns []string
	index    map[string]int
}

func NewURLPrefixMatcher(patterns []string) FuzzyMatcher {
	trie := NewURLPrefixTrie()
	index := make(map[string]int, len(patterns))
	for i, p := range patterns {
		trie.Insert(p)
		index[p] = i
	}
	return &urlMatcher{trie: trie, patterns: patterns, index: index}
}
func (m *urlMatcher) Match(value string) (int, bool) {
	p, ok := m.trie.LongestPrefixMatch(value)
	if !ok {
		return 0, false
	}
	return m.index[p], true
}
