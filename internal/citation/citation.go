// Package citation defines the core domain types for the resolution
// pipeline: a single extracted reference, its parsed fields, its lifecycle
// status, and derived per-job statistics.
package citation

// Status is the lifecycle state of a single citation.
type Status string

const (
	// StatusPending means the citation has been extracted but not yet resolved.
	StatusPending Status = "pending"

	// StatusHasDOI means a DOI was already present verbatim in the source text.
	StatusHasDOI Status = "has_doi"

	// StatusFound means a lookup produced an accepted match.
	StatusFound Status = "found"

	// StatusNotFound means no source produced an acceptable candidate.
	StatusNotFound Status = "not_found"
)

// Terminal reports whether the status is an end state for resolution.
func (s Status) Terminal() bool {
	return s == StatusHasDOI || s == StatusFound || s == StatusNotFound
}

// Style identifies a supported citation style.
type Style string

const (
	StyleAPA Style = "APA"
	StyleAMA Style = "AMA"
)

// ValidStyle reports whether s names a supported citation style.
func ValidStyle(s Style) bool {
	return s == StyleAPA || s == StyleAMA
}

// Fields holds the best-effort structured fields parsed from a citation
// string. Any field may be absent.
type Fields struct {
	Authors   []string `json:"authors,omitempty"` // surname-first, document order
	Year      int      `json:"year,omitempty"`    // 0 if unknown
	Title     string   `json:"title,omitempty"`
	Container string   `json:"container,omitempty"` // journal or other venue
}

// Empty reports whether parsing produced no fields at all.
func (f Fields) Empty() bool {
	return len(f.Authors) == 0 && f.Year == 0 && f.Title == "" && f.Container == ""
}

// Citation is one reference extracted from a source document.
//
// ID is the 1-based ordinal within the document and is stable for the life
// of the job. RawText is immutable after extraction. The remaining fields
// are written exactly once, by the job orchestrator, when resolution of the
// citation completes.
type Citation struct {
	ID         int    `json:"id"`
	RawText    string `json:"raw_text"`
	Parsed     Fields `json:"parsed"`
	DOI        string `json:"doi"`
	Status     Status `json:"status"`
	Confidence int    `json:"confidence"` // 0-100, meaningful when Status == found
	Source     string `json:"source"`     // backend that produced the match, or ""
}

// Stats are derived counts over a job's citations. They are always
// recomputed from the citation slice and never stored independently.
type Stats struct {
	Total    int `json:"total"`
	HasDOI   int `json:"has_doi"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Pending  int `json:"pending"`
}

// Tally computes stats over a citation slice.
func Tally(citations []Citation) Stats {
	s := Stats{Total: len(citations)}
	for _, c := range citations {
		switch c.Status {
		case StatusHasDOI:
			s.HasDOI++
		case StatusFound:
			s.Found++
		case StatusNotFound:
			s.NotFound++
		default:
			s.Pending++
		}
	}
	return s
}
