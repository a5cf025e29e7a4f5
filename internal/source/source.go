// Package source provides rate-limited clients for the bibliographic
// search backends used for DOI lookup: PubMed (NCBI E-utilities) and
// CrossRef. Both implement the Source interface so the resolver can treat
// them uniformly.
package source

import "context"

// Source names used in citation results and tie-breaking. PubMed is
// preferred on score ties.
const (
	NamePubMed   = "pubmed"
	NameCrossRef = "crossref"
)

// MaxCandidates bounds how many records a search returns per source.
const MaxCandidates = 5

// Query carries the structured fields of a parsed citation, plus the raw
// text as a fallback when no title could be extracted.
type Query struct {
	Title     string
	Year      int
	Authors   []string
	Container string
	Raw       string
}

// Text returns the string actually sent to the backend: the parsed title
// when available, otherwise the truncated raw citation.
func (q Query) Text() string {
	if q.Title != "" {
		return q.Title
	}
	raw := q.Raw
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return raw
}

// Candidate is one search-backend record with enough fields to score
// against a parsed citation. It is consumed by the scorer and discarded
// once the best candidate has been selected.
type Candidate struct {
	ProviderID string // PMID or CrossRef DOI, provider-native
	DOI        string
	Title      string
	Authors    []string // surname-first
	Container  string
	Year       int
}

// Source is the capability shared by every bibliographic backend.
//
// Search returns up to MaxCandidates records ordered by backend relevance.
// An empty slice with a nil error is the valid no-results outcome; network
// and server-side failures are reported as errors wrapping ErrTransient.
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
}
