package fallback

import (
	"fmt"
	"sort"
	"strings"

	"content-safety/internal/models"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Category is a named group of keywords
type Category struct {
	Name     string
	Label    string // human readable form used in reasons
	Code     models.ReasonCode
	Keywords []string
}

// Matcher finds keyword categories in text with a single Aho-Corasick pass.
// Matching is case-insensitive and substring based. Read-only after build.
type Matcher struct {
	machine    *goahocorasick.Machine
	categories []Category
	owner      map[string][]int
}

// NewMatcher builds the automaton over every category's keywords
func NewMatcher(categories []Category) (*Matcher, error) {
	owner := make(map[string][]int)
	var patterns [][]rune

	for i, c := range categories {
		for _, kw := range c.Keywords {
			word := strings.ToLower(strings.TrimSpace(kw))
			if word == "" {
				continue
			}
			if _, seen := owner[word]; !seen {
				patterns = append(patterns, []rune(word))
			}
			owner[word] = append(owner[word], i)
		}
	}

	if len(patterns) == 0 {
		return nil, fmt.Errorf("matcher needs at least one keyword")
	}

	sort.Slice(patterns, func(i, j int) bool {
		return string(patterns[i]) < string(patterns[j])
	})

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, fmt.Errorf("failed to build keyword automaton: %w", err)
	}

	return &Matcher{machine: m, categories: categories, owner: owner}, nil
}

// Match returns the categories found in text, in declaration order
func (m *Matcher) Match(text string) []Category {
	if text == "" {
		return nil
	}

	hits := make(map[int]struct{})
	for _, term := range m.machine.MultiPatternSearch([]rune(strings.ToLower(text)), false) {
		for _, idx := range m.owner[string(term.Word)] {
			hits[idx] = struct{}{}
		}
	}

	var out []Category
	for i, c := range m.categories {
		if _, ok := hits[i]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Any reports whether text contains at least one keyword
func (m *Matcher) Any(text string) bool {
	if text == "" {
		return false
	}
	return len(m.machine.MultiPatternSearch([]rune(strings.ToLower(text)), true)) > 0
}
