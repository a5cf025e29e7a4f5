package citation

import (
	"regexp"
	"strings"
)

// Reference-section heading and list-marker patterns. Headings cover the
// common "References"/"Bibliography" spellings; markers cover numbered
// ("1."), parenthesised ("1)") and bracketed ("[1]") enumerations.
var (
	sectionHeading = regexp.MustCompile(`(?im)^\s*(references?|bibliography|works cited|literature cited)\s*:?\s*$`)
	sectionEnd     = regexp.MustCompile(`(?im)^\s*(appendix|acknowledgm?ents?|tables?|figures?|author contributions?)\b`)
	listMarker     = regexp.MustCompile(`^\s*(?:\[(\d+)\]|(\d+)[.)])\s+(.*)$`)
	authorYearLine = regexp.MustCompile(`[A-Z][a-z]+,?\s+[A-Z]`)
	yearAnywhere   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// minSectionLen is the minimum size for a heading-delimited block to count
// as a real reference section rather than a stray "References" mention.
const minSectionLen = 100

// FindReferenceSection locates the reference list inside full document
// text. It returns the section text and true when a heading-delimited
// section was found; otherwise it returns the document tail (references
// almost always sit at the end) and false so the caller can report the
// weaker extraction.
func FindReferenceSection(text string) (string, bool) {
	if loc := sectionHeading.FindStringIndex(text); loc != nil {
		section := text[loc[1]:]
		if end := sectionEnd.FindStringIndex(section); end != nil {
			section = section[:end[0]]
		}
		section = strings.TrimSpace(section)
		if len(section) >= minSectionLen {
			return section, true
		}
	}

	// Fallback: last 30% of the document.
	tail := strings.TrimSpace(text[len(text)*7/10:])
	return tail, false
}

// Split turns reference-section text into individual citation strings in
// source order, with list markers stripped. Entries that wrap across lines
// are merged into the preceding marker's entry. It never fails: text with
// no recognizable entries yields an empty slice.
func Split(refText string) []string {
	lines := strings.Split(refText, "\n")

	if entries := splitByMarkers(lines); entries != nil {
		return entries
	}
	if entries := splitByAuthorYear(lines); entries != nil {
		return entries
	}

	// Last resort: every non-empty line is its own entry.
	var entries []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, collapseSpaces(line))
		}
	}
	return entries
}

// splitByMarkers groups lines under enumeration markers. A line without a
// marker continues the previous entry. Returns nil when the text has no
// markers at all.
func splitByMarkers(lines []string) []string {
	var entries []string
	current := ""
	seenMarker := false

	flush := func() {
		if c := collapseSpaces(current); c != "" {
			entries = append(entries, c)
		}
		current = ""
	}

	for _, line := range lines {
		if m := listMarker.FindStringSubmatch(line); m != nil {
			flush()
			seenMarker = true
			current = m[3]
			continue
		}
		if seenMarker {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				current += " " + trimmed
			}
		}
	}
	flush()

	if !seenMarker {
		return nil
	}
	return entries
}

// splitByAuthorYear treats lines that look like "Surname, X ... 2019" as
// individual entries. Returns nil when no line qualifies.
func splitByAuthorYear(lines []string) []string {
	var entries []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) >= 30 && authorYearLine.MatchString(line) && yearAnywhere.MatchString(line) {
			entries = append(entries, collapseSpaces(line))
		}
	}
	return entries
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
