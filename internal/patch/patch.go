// Package patch applies resolved DOIs back onto a document: it renders
// the selected citations in the requested style and either appends a new
// references section or replaces the existing one.
//
// Apply is pure text-to-text. It works on copies of the citations, so
// manual DOI overrides never leak back into stored job state, and it is
// idempotent: applying the same request to its own output returns the
// output unchanged.
package patch

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"doifind/internal/citation"
	"doifind/internal/style"
)

// Mode selects how formatted citations are written into the document.
type Mode string

const (
	// ModeAppend adds a new references section at the end of the document
	// and leaves existing content untouched.
	ModeAppend Mode = "append_new_section"

	// ModeReplace rewrites the body of the existing references section in
	// place, falling back to append when no section can be located.
	// Clients may also send the short form "replace".
	ModeReplace Mode = "replace_references"
)

// canonicalMode resolves mode aliases. Reports false for unknown modes.
func canonicalMode(m Mode) (Mode, bool) {
	switch m {
	case ModeAppend:
		return ModeAppend, true
	case ModeReplace, "replace":
		return ModeReplace, true
	}
	return m, false
}

// ValidMode reports whether m is a supported apply mode.
func ValidMode(m Mode) bool {
	_, ok := canonicalMode(m)
	return ok
}

// Request carries one apply invocation's parameters.
type Request struct {
	Mode     Mode
	Style    citation.Style
	Selected []int // citation IDs to write into the document
	// Overrides maps citation IDs to manually supplied DOIs. An override
	// on a not_found citation promotes the working copy to found.
	Overrides map[int]string
}

var (
	// ErrNoSelection means no selected citation carried a DOI.
	ErrNoSelection = errors.New("no citations selected for application")

	// ErrInvalidMode means the apply mode is not supported.
	ErrInvalidMode = errors.New("invalid apply mode")

	// ErrInvalidDOI means a manual override was not a syntactically valid
	// DOI.
	ErrInvalidDOI = errors.New("invalid DOI override")

	// ErrUnknownCitation means a selected id does not exist in the job.
	ErrUnknownCitation = errors.New("unknown citation id")
)

// OverrideConfidence is recorded on working copies resolved by a manual
// DOI override.
const OverrideConfidence = 50

var (
	sectionHeading = regexp.MustCompile(`(?i)^\s*(references?|bibliography|works cited|literature cited)\s*:?\s*$`)
	sectionAfter   = regexp.MustCompile(`(?i)^\s*(appendix|acknowledg)`)
)

// Apply renders the selected citations and writes them into docText
// according to the request mode. The input citation slice is never
// modified.
func Apply(docText string, cits []citation.Citation, req Request) (string, error) {
	mode, ok := canonicalMode(req.Mode)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if !citation.ValidStyle(req.Style) {
		return "", fmt.Errorf("invalid citation style %q", req.Style)
	}
	for id, doi := range req.Overrides {
		if !citation.ValidDOI(citation.NormalizeDOI(doi)) {
			return "", fmt.Errorf("%w for citation %d: %q", ErrInvalidDOI, id, doi)
		}
	}

	known := make(map[int]bool, len(cits))
	for _, c := range cits {
		known[c.ID] = true
	}
	selected := make(map[int]bool, len(req.Selected))
	for _, id := range req.Selected {
		if !known[id] {
			return "", fmt.Errorf("%w: %d", ErrUnknownCitation, id)
		}
		selected[id] = true
	}

	var lines []string
	for _, c := range cits {
		if !selected[c.ID] {
			continue
		}
		c = withOverride(c, req.Overrides)
		if c.DOI == "" {
			continue
		}
		lines = append(lines, strconv.Itoa(c.ID)+". "+style.Format(c, req.Style))
	}
	if len(lines) == 0 {
		return "", ErrNoSelection
	}

	if mode == ModeReplace {
		if out, ok := replaceSection(docText, lines); ok {
			return out, nil
		}
	}
	return appendSection(docText, lines), nil
}

// withOverride returns a copy of c with any manual DOI applied.
func withOverride(c citation.Citation, overrides map[int]string) citation.Citation {
	doi, ok := overrides[c.ID]
	if !ok || doi == "" {
		return c
	}
	c.DOI = citation.NormalizeDOI(doi)
	if c.Status == citation.StatusNotFound {
		c.Status = citation.StatusFound
		c.Confidence = OverrideConfidence
		c.Source = "manual"
	}
	return c
}

// appendSection adds a references section at the end of the document. If
// the document already ends with exactly this section, it is returned
// unchanged.
func appendSection(docText string, lines []string) string {
	section := "References\n\n" + strings.Join(lines, "\n") + "\n"
	if strings.HasSuffix(docText, "\n"+section) || docText == section {
		return docText
	}
	body := strings.TrimRight(docText, " \t\n")
	if body == "" {
		return section
	}
	return body + "\n\n" + section
}

// replaceSection rewrites the body of an existing references section,
// leaving trailing material such as appendices in place. Reports false
// when no section heading is found.
func replaceSection(docText string, lines []string) (string, bool) {
	docLines := strings.Split(docText, "\n")
	start := -1
	for i, l := range docLines {
		if sectionHeading.MatchString(l) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	// The old body runs from the heading to the next trailing section
	// (appendix, acknowledgments) or the end of the document.
	end := start + 1
	for end < len(docLines) && !sectionAfter.MatchString(docLines[end]) {
		end++
	}

	out := make([]string, 0, len(docLines)+len(lines)+2)
	out = append(out, docLines[:start+1]...)
	out = append(out, "")
	out = append(out, lines...)
	out = append(out, "")
	out = append(out, docLines[end:]...)
	return strings.Join(out, "\n"), true
}

// OutputPath derives the artifact path from the uploaded file's path. The
// artifact is always plain text, so binary uploads map to a .txt sibling.
func OutputPath(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	switch strings.ToLower(ext) {
	case ".txt", ".md":
		return base + "_with_dois" + ext
	default:
		return base + "_with_dois.txt"
	}
}
