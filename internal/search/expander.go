package search

import (
	"context"
	"sort"
	"strings"

	"github.com/inventivepotter/dotmd/internal/extract"
	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/store"
)

// DefaultFuzzyThreshold is the maximum Levenshtein distance allowed when an
// acronym token has no exact dictionary match.
const DefaultFuzzyThreshold = 1

// QueryExpander expands a raw query in two stages: acronym substitution
// against the indexed acronym dictionary, then heading-structural expansion
// against the corpus's heading hierarchies.
type QueryExpander struct {
	acronyms       extract.AcronymDictionary
	metadata       store.MetadataStore
	fuzzyThreshold int
}

// NewQueryExpander constructs an expander bound to the given acronym
// dictionary and metadata store.
func NewQueryExpander(acronyms extract.AcronymDictionary, metadata store.MetadataStore, fuzzyThreshold int) *QueryExpander {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}
	return &QueryExpander{acronyms: acronyms, metadata: metadata, fuzzyThreshold: fuzzyThreshold}
}

// Expand runs the acronym stage then the structural stage and returns the
// combined ExpandedQuery.
func (e *QueryExpander) Expand(ctx context.Context, query string) (model.ExpandedQuery, error) {
	acronymTerms := e.expandAcronyms(query)

	structuralTerms, err := e.expandStructural(ctx, query, acronymTerms)
	if err != nil {
		return model.ExpandedQuery{}, err
	}

	all := append(append([]string{}, acronymTerms...), structuralTerms...)
	parts := append([]string{query}, all...)

	return model.ExpandedQuery{
		Original:      query,
		ExpandedTerms: all,
		ExpandedText:  strings.Join(parts, " "),
	}, nil
}

// expandAcronyms tokenizes the query on whitespace; for each token it
// strips to uppercase letters and looks up the acronym dictionary exactly,
// falling back to a fuzzy match within fuzzyThreshold edits. Every
// expansion of a hit is appended to the term list.
func (e *QueryExpander) expandAcronyms(query string) []string {
	if len(e.acronyms) == 0 {
		return nil
	}

	var terms []string
	seen := make(map[string]struct{})

	for _, token := range strings.Fields(query) {
		key := upperLettersOnly(token)
		if len(key) < 2 {
			continue
		}

		expansions, ok := e.acronyms[key]
		if !ok {
			expansions = e.fuzzyLookup(key)
		}
		for _, exp := range expansions {
			if _, dup := seen[exp]; dup {
				continue
			}
			seen[exp] = struct{}{}
			terms = append(terms, exp)
		}
	}

	return terms
}

func (e *QueryExpander) fuzzyLookup(key string) []string {
	for acr, expansions := range e.acronyms {
		if levenshtein(key, acr) <= e.fuzzyThreshold {
			return expansions
		}
	}
	return nil
}

// expandStructural tokenizes the acronym-expanded query to lowercase
// alphanumeric tokens of length > 1, then finds every heading across the
// corpus whose own tokens intersect the query token set, and adds every
// other heading from every hierarchy containing it.
func (e *QueryExpander) expandStructural(ctx context.Context, query string, acronymTerms []string) ([]string, error) {
	combined := query + " " + strings.Join(acronymTerms, " ")
	queryTokens := buildAlphaNumTokenSet(combined)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	chunks, err := e.metadata.GetAllChunks(ctx)
	if err != nil {
		return nil, err
	}

	termSet := make(map[string]struct{})
	for _, c := range chunks {
		for _, matched := range c.HeadingHierarchy {
			if !headingMatchesQuery(matched, queryTokens) {
				continue
			}
			for _, other := range c.HeadingHierarchy {
				if other == matched {
					continue
				}
				termSet[other] = struct{}{}
			}
		}
	}

	terms := make([]string, 0, len(termSet))
	for t := range termSet {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, nil
}

// headingMatchesQuery reports whether heading's own tokens intersect the
// query token set.
func headingMatchesQuery(heading string, queryTokens map[string]struct{}) bool {
	for token := range buildAlphaNumTokenSet(heading) {
		if _, ok := queryTokens[token]; ok {
			return true
		}
	}
	return false
}

func buildAlphaNumTokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 1 {
			set[strings.ToLower(cur.String())] = struct{}{}
		}
		cur.Reset()
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

func upperLettersOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// levenshtein computes edit distance between two strings.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
