// Package match scores bibliographic search candidates against parsed
// citations. Scoring is a pure function of its inputs: the same citation
// and candidate always produce the same 0-100 score.
package match

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"doifind/internal/source"
)

// DefaultThreshold is the minimum score for a candidate to be accepted as
// a match.
const DefaultThreshold = 70

// Component weights. Title similarity dominates; year, author surnames and
// container share the rest. The weights sum to 100.
const (
	titleWeight     = 55
	yearWeight      = 15
	authorWeight    = 15
	containerWeight = 15

	// neutralShare is granted for a component when either side lacks the
	// field: absence is not evidence against a match.
	neutralFraction = 0.5
)

// Scorer computes match confidence between a citation query and search
// candidates.
type Scorer struct {
	threshold int
}

// NewScorer creates a Scorer with the given acceptance threshold;
// values outside 1..100 fall back to DefaultThreshold.
func NewScorer(threshold int) *Scorer {
	if threshold < 1 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Scorer{threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (s *Scorer) Threshold() int { return s.threshold }

// Score computes the 0-100 confidence that cand describes the same work as
// the citation behind q.
func (s *Scorer) Score(q source.Query, cand source.Candidate) int {
	score := titleWeight*s.titleSimilarity(q, cand) +
		yearWeight*yearScore(q.Year, cand.Year) +
		authorWeight*surnameOverlap(q.Authors, cand.Authors) +
		containerWeight*containerSimilarity(q, cand)

	n := int(math.Round(score))
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return n
}

// Best returns the highest-scoring candidate that clears the threshold.
// Earlier candidates win ties, preserving backend relevance order.
func (s *Scorer) Best(q source.Query, cands []source.Candidate) (source.Candidate, int, bool) {
	var best source.Candidate
	bestScore := -1
	for _, cand := range cands {
		if sc := s.Score(q, cand); sc > bestScore {
			best, bestScore = cand, sc
		}
	}
	if bestScore < s.threshold {
		return source.Candidate{}, 0, false
	}
	return best, bestScore, true
}

// titleSimilarity compares the parsed title against the candidate title.
// With no parsed title the raw citation text stands in: the fraction of
// candidate-title tokens present in the raw text.
func (s *Scorer) titleSimilarity(q source.Query, cand source.Candidate) float64 {
	candTokens := tokens(cand.Title)
	if len(candTokens) == 0 {
		return neutralFraction
	}
	if q.Title != "" {
		return tokenF1(tokens(q.Title), candTokens)
	}
	if q.Raw == "" {
		return neutralFraction
	}
	return containment(candTokens, tokens(q.Raw))
}

func yearScore(ours, theirs int) float64 {
	switch {
	case ours == 0 || theirs == 0:
		return neutralFraction
	case ours == theirs:
		return 1
	case ours-theirs == 1 || theirs-ours == 1:
		return 0.5
	default:
		return 0
	}
}

// surnameOverlap matches author lists on normalized surnames (first token
// of each "Last F" name).
func surnameOverlap(ours, theirs []string) float64 {
	if len(ours) == 0 || len(theirs) == 0 {
		return neutralFraction
	}

	set := make(map[string]bool, len(theirs))
	for _, name := range theirs {
		if s := surname(name); s != "" {
			set[s] = true
		}
	}

	matched := 0
	for _, name := range ours {
		if set[surname(name)] {
			matched++
		}
	}

	denom := len(ours)
	if len(theirs) > denom {
		denom = len(theirs)
	}
	return float64(matched) / float64(denom)
}

// containerSimilarity compares venue names with abbreviation tolerance:
// "J Med" should match "Journal of Medicine".
func containerSimilarity(q source.Query, cand source.Candidate) float64 {
	ours := tokens(q.Container)
	theirs := tokens(cand.Container)
	if len(ours) == 0 || len(theirs) == 0 {
		return neutralFraction
	}

	// Drop filler words that abbreviated forms omit.
	theirs = dropStopwords(theirs)
	ours = dropStopwords(ours)
	if len(ours) == 0 || len(theirs) == 0 {
		return neutralFraction
	}

	matched := 0
	for _, o := range ours {
		for _, t := range theirs {
			if prefixMatch(o, t) {
				matched++
				break
			}
		}
	}

	denom := len(ours)
	if len(theirs) > denom {
		denom = len(theirs)
	}
	return float64(matched) / float64(denom)
}

// prefixMatch reports whether one token abbreviates the other.
func prefixMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 2 && strings.HasPrefix(b, a) {
		return true
	}
	if len(b) >= 2 && strings.HasPrefix(a, b) {
		return true
	}
	return false
}

var stopwords = map[string]bool{"of": true, "the": true, "and": true, "for": true, "in": true}

func dropStopwords(ts []string) []string {
	var out []string
	for _, t := range ts {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// tokenF1 is the harmonic mean of token precision and recall, which keeps
// short-vs-long title comparisons symmetric.
func tokenF1(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setB := toSet(b)
	inter := 0
	for _, t := range a {
		if setB[t] {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	p := float64(inter) / float64(len(a))
	r := float64(inter) / float64(len(b))
	return 2 * p * r / (p + r)
}

// containment is the fraction of needle tokens present in haystack.
func containment(needle, haystack []string) float64 {
	if len(needle) == 0 {
		return 0
	}
	set := toSet(haystack)
	found := 0
	for _, t := range needle {
		if set[t] {
			found++
		}
	}
	return float64(found) / float64(len(needle))
}

func toSet(ts []string) map[string]bool {
	set := make(map[string]bool, len(ts))
	for _, t := range ts {
		set[t] = true
	}
	return set
}

// stripMarks removes diacritics so "Müller" and "Muller" compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases and strips diacritics.
func normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// tokens splits normalized text into alphanumeric runs.
func tokens(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// surname returns the normalized family-name token of a "Last F" name.
func surname(name string) string {
	fields := strings.Fields(normalize(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
