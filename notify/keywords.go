// Package notify flags incoming messages matching the user's keyword
// watch list (name, project codenames, whatever they subscribed to).
package notify

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"convosync/errors"
)

// Matcher runs an Aho-Corasick automaton over normalized message
// bodies. Matching is case-insensitive and tolerant of punctuation
// and common character substitutions, so "V.I.P" still hits a "vip"
// watch term.
type Matcher struct {
	matcher *goahocorasick.Machine
	terms   []string
}

// NewMatcher builds the automaton from the watch terms.
func NewMatcher(terms []string) (*Matcher, error) {
	if len(terms) == 0 {
		return nil, errors.ErrEmptyWatchTerms
	}

	patterns := make([][]rune, len(terms))
	for i, term := range terms {
		patterns[i] = normalizeRunes([]rune(term))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Matcher{matcher: m, terms: terms}, nil
}

// Match returns the watch terms present in the text, in pattern order,
// without duplicates.
func (m *Matcher) Match(text string) []string {
	normalized := normalizeRunes([]rune(text))
	if len(normalized) == 0 {
		return nil
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(spans))
	var hits []string
	for _, span := range spans {
		word := string(span.Word)
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		hits = append(hits, m.originalTerm(word))
	}
	return hits
}

// originalTerm maps a normalized match back to the term the user
// configured.
func (m *Matcher) originalTerm(normalized string) string {
	for _, term := range m.terms {
		if string(normalizeRunes([]rune(term))) == normalized {
			return term
		}
	}
	return normalized
}

// normalizeRunes lowercases, strips punctuation and spacing, and maps
// common substitution characters back to their alphabet counterparts.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
