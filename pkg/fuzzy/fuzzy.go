// Package fuzzy provides the string similarity primitives used to resolve
// ambiguous resource references. Strategies are tried in a fixed
// precedence order; the first strategy to produce a hit wins. Ties within
// a strategy are broken by higher score, then by shorter candidate.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
)

// Strategy identifies how a match was found, in precedence order.
type Strategy int

const (
	StrategyExact Strategy = iota
	StrategyPrefix
	StrategyContains
	StrategyInitials
	StrategyDistance
)

// String returns the strategy name for logs and reports.
func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyPrefix:
		return "prefix"
	case StrategyContains:
		return "contains"
	case StrategyInitials:
		return "initials"
	case StrategyDistance:
		return "distance"
	default:
		return "unknown"
	}
}

// Match is one candidate hit.
type Match struct {
	Candidate string
	Strategy  Strategy
	Score     float64 // 0..1, higher is better
}

// DefaultFloor is the minimum edit-distance similarity accepted when no
// stronger strategy fires.
const DefaultFloor = 0.6

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// initials extracts the leading rune of each segment of a candidate.
// Segments are split on '-', '_', '.', spaces, and lower→upper camel-case
// boundaries, so "promptSet" and "prompt-set" both yield "ps".
func initials(s string) string {
	var b strings.Builder
	newSegment := true
	var prev rune
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			newSegment = true
		case newSegment:
			b.WriteRune(unicode.ToLower(r))
			newSegment = false
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	return b.String()
}

// levenshtein computes the edit distance between two strings by runes.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(br)]
}

// Similarity maps edit distance to a 0..1 score relative to the longer
// input. Identical strings score 1.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// match evaluates a single candidate against the query, trying strategies
// in precedence order.
func match(query, candidate string, floor float64) (Match, bool) {
	q, c := normalize(query), normalize(candidate)
	if q == "" || c == "" {
		return Match{}, false
	}

	switch {
	case q == c:
		return Match{Candidate: candidate, Strategy: StrategyExact, Score: 1}, true
	case strings.HasPrefix(c, q):
		return Match{Candidate: candidate, Strategy: StrategyPrefix,
			Score: float64(len(q)) / float64(len(c))}, true
	case strings.Contains(c, q):
		return Match{Candidate: candidate, Strategy: StrategyContains,
			Score: float64(len(q)) / float64(len(c))}, true
	case q == initials(c):
		return Match{Candidate: candidate, Strategy: StrategyInitials, Score: 0.8}, true
	}

	if score := Similarity(q, c); score >= floor {
		return Match{Candidate: candidate, Strategy: StrategyDistance, Score: score}, true
	}
	return Match{}, false
}

// Rank matches the query against every candidate and returns hits sorted
// by strategy precedence, then score descending, then candidate length
// ascending. floor <= 0 uses DefaultFloor.
func Rank(query string, candidates []string, floor float64) []Match {
	if floor <= 0 {
		floor = DefaultFloor
	}
	var out []Match
	for _, c := range candidates {
		if m, ok := match(query, c, floor); ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strategy != out[j].Strategy {
			return out[i].Strategy < out[j].Strategy
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return len(out[i].Candidate) < len(out[j].Candidate)
	})
	return out
}

// Best returns the single best match for the query, if any.
func Best(query string, candidates []string, floor float64) (Match, bool) {
	ranked := Rank(query, candidates, floor)
	if len(ranked) == 0 {
		return Match{}, false
	}
	return ranked[0], true
}
