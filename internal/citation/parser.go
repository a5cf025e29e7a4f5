package citation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parsing is best effort and never fails: on input that matches none of the
// heuristics every field is simply absent and the citation proceeds to
// lookup with its raw text as the query.

var (
	yearParen    = regexp.MustCompile(`\((\d{4})[a-z]?\)`)
	yearPunct    = regexp.MustCompile(`\b(\d{4})[;,.]`)
	apaAuthor    = regexp.MustCompile(`([A-Z][A-Za-z'’-]+),\s*((?:[A-Z]\.?[ -]?)+)`)
	amaAuthor    = regexp.MustCompile(`^[A-Z][A-Za-z'’-]+(?:\s+[A-Z]{1,3})?$`)
	quotedTitle  = regexp.MustCompile(`"([^"]{10,})"`)
	afterYearTxt = regexp.MustCompile(`\d{4}[;,.]?\s*([A-Z][^.]{9,}?)\.`)
)

// Parse extracts structured fields from one citation string. The style is
// supplied by the caller (from the upload request); it selects which field
// ordering to try first, with generic fallbacks for text that follows
// neither convention.
func Parse(raw string, style Style) Fields {
	raw = collapseSpaces(raw)
	f := Fields{Year: extractYear(raw)}

	switch style {
	case StyleAMA:
		parseAMA(raw, &f)
	default:
		parseAPA(raw, &f)
	}

	if f.Title == "" {
		f.Title = fallbackTitle(raw)
	}
	return f
}

// New builds a Citation from one extracted reference string, parsing its
// fields and detecting any DOI already present in the text.
func New(id int, raw string, style Style) Citation {
	c := Citation{
		ID:      id,
		RawText: strings.TrimSpace(raw),
		Parsed:  Parse(raw, style),
		Status:  StatusPending,
	}
	if doi := ExtractDOI(c.RawText); doi != "" {
		c.DOI = doi
		c.Status = StatusHasDOI
		c.Confidence = 100
	}
	return c
}

// parseAPA handles "Last, F. M., & Last, F. M. (Year). Title. Journal,
// vol(issue), pages." ordering.
func parseAPA(raw string, f *Fields) {
	head := raw
	rest := ""
	if loc := yearParen.FindStringIndex(raw); loc != nil {
		head = raw[:loc[0]]
		rest = strings.TrimLeft(raw[loc[1]:], ". ")
	}

	for _, m := range apaAuthor.FindAllStringSubmatch(head, -1) {
		f.Authors = append(f.Authors, m[1]+" "+initials(m[2]))
	}

	if rest != "" {
		title, after := splitSentence(rest)
		if len(title) >= 3 {
			f.Title = title
		}
		if after != "" {
			// Container runs up to the volume/page numbers.
			container := after
			if i := strings.IndexAny(container, ",."); i > 0 {
				container = container[:i]
			}
			container = strings.TrimSpace(strings.Trim(container, "*_"))
			if container != "" && !startsWithDigit(container) {
				f.Container = container
			}
		}
	}
}

// parseAMA handles "Last F, Last F. Title. J Abbrev. Year;vol(issue):pages."
// ordering.
func parseAMA(raw string, f *Fields) {
	segments := strings.Split(raw, ". ")
	if len(segments) == 0 {
		return
	}

	idx := 0
	if authors := amaAuthors(segments[0]); len(authors) > 0 {
		f.Authors = authors
		idx = 1
	}

	if idx < len(segments) {
		title := strings.TrimSpace(strings.TrimSuffix(segments[idx], "."))
		if len(title) >= 3 && !startsWithDigit(title) {
			f.Title = title
			idx++
		}
	}

	if idx < len(segments) {
		container := strings.TrimSpace(strings.Trim(strings.TrimSuffix(segments[idx], "."), "*_"))
		if container != "" && !startsWithDigit(container) && !yearAnywhere.MatchString(container) {
			f.Container = container
		}
	}
}

// amaAuthors parses a comma-separated "Smith J, Jones AB, et al" author
// segment. Returns nil when the segment does not look like an author list.
func amaAuthors(segment string) []string {
	var authors []string
	for _, part := range strings.Split(segment, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "et al") {
			continue
		}
		if !amaAuthor.MatchString(part) {
			return nil
		}
		authors = append(authors, part)
	}
	return authors
}

// extractYear finds a plausible publication year, preferring parenthesised
// and punctuation-delimited forms, bounded to 1900..current year.
func extractYear(raw string) int {
	for _, re := range []*regexp.Regexp{yearParen, yearPunct, yearAnywhere} {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			s := m[0]
			if len(m) > 1 && m[1] != "" && len(m[1]) == 4 {
				s = m[1]
			} else {
				s = yearDigits(s)
			}
			if y, err := strconv.Atoi(s); err == nil && y >= 1900 && y <= time.Now().Year() {
				return y
			}
		}
	}
	return 0
}

func yearDigits(s string) string {
	start := strings.IndexAny(s, "12")
	if start == -1 || start+4 > len(s) {
		return ""
	}
	return s[start : start+4]
}

// fallbackTitle mirrors the lookup-query heuristics: quoted text first,
// then the first sentence-like run after a year.
func fallbackTitle(raw string) string {
	if m := quotedTitle.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := afterYearTxt.FindStringSubmatch(raw); m != nil {
		t := strings.TrimSpace(m[1])
		if len(t) >= 10 && len(t) <= 150 {
			return t
		}
	}
	return ""
}

// splitSentence splits at the first period that ends a sentence, returning
// the sentence and the remainder.
func splitSentence(s string) (string, string) {
	if i := strings.Index(s, ". "); i > 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(strings.TrimSuffix(s, ".")), ""
}

// initials squeezes "F. M." style initials to "FM".
func initials(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
