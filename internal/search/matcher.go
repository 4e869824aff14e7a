package search

import (
	"sort"
	"strings"

	"github.com/yokharian/catalog-engine/internal/normalize"
)

// DefaultThreshold is the minimum similarity a candidate needs to count as a
// fuzzy resolution.
const DefaultThreshold = 0.80

// Matcher resolves free text against a universe of canonical values, with
// typo tolerance and word-order insensitivity.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher. A threshold outside (0, 1] falls back to
// DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Resolve returns the best-scoring candidate whose similarity to query
// reaches the threshold. Candidates tied at the top score resolve to the
// lexicographically smallest, so resolution is reproducible. The empty query
// never matches.
func (m *Matcher) Resolve(query string, universe []string) (string, float64, bool) {
	query = normalize.Text(query)
	if query == "" {
		return "", 0, false
	}

	best := ""
	bestScore := -1.0
	for _, candidate := range universe {
		c := normalize.Text(candidate)
		if c == "" {
			continue
		}
		score := TokenSetRatio(query, c)
		if score > bestScore || (score == bestScore && c < best) {
			best = c
			bestScore = score
		}
	}

	if bestScore < m.threshold {
		return "", 0, false
	}
	return best, bestScore, true
}

// TokenSetRatio scores the similarity of two strings on a 0..1 scale. Tokens
// are compared as sets, so word order never matters and a string whose tokens
// are a subset of the other's scores 1.0.
func TokenSetRatio(a, b string) float64 {
	both, onlyA, onlyB := splitTokens(tokenSet(a), tokenSet(b))

	common := strings.Join(both, " ")
	combinedA := joinNonEmpty(common, strings.Join(onlyA, " "))
	combinedB := joinNonEmpty(common, strings.Join(onlyB, " "))

	score := ratio(common, combinedA)
	if r := ratio(common, combinedB); r > score {
		score = r
	}
	if r := ratio(combinedA, combinedB); r > score {
		score = r
	}
	return score
}

// tokenSet splits s into a sorted set of normalized tokens.
func tokenSet(s string) []string {
	fields := strings.Fields(normalize.Text(s))
	seen := make(map[string]struct{}, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return tokens
}

// splitTokens partitions two sorted token sets into shared and exclusive
// tokens, preserving order.
func splitTokens(a, b []string) (both, onlyA, onlyB []string) {
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}
	inBoth := make(map[string]struct{})
	for _, t := range a {
		if _, ok := inB[t]; ok {
			inBoth[t] = struct{}{}
			both = append(both, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range b {
		if _, ok := inBoth[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	return both, onlyA, onlyB
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// ratio is the normalized similarity (l1+l2-distance)/(l1+l2) over runes.
// Two empty strings are identical.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return float64(total-levenshtein(ra, rb)) / float64(total)
}

// levenshtein calculates the edit distance between two rune slices.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
