// Package style renders resolved citations back into formatted reference
// strings, in either APA or AMA style.
package style

import (
	"strconv"
	"strings"
	"unicode"

	"doifind/internal/citation"
)

// amaAuthorLimit is the number of authors listed before "et al".
const amaAuthorLimit = 6

// Format renders a citation in the requested style from its parsed fields
// and resolved DOI. Missing fields are skipped rather than placeholdered;
// a citation with no usable fields falls back to its raw text.
func Format(c citation.Citation, s citation.Style) string {
	var out string
	switch s {
	case citation.StyleAPA:
		out = formatAPA(c)
	case citation.StyleAMA:
		out = formatAMA(c)
	}
	if out == "" {
		return strings.TrimSpace(c.RawText)
	}
	return out
}

// formatAPA renders: Author, F. M., & Author, F. (Year). Title. *Journal*.
// https://doi.org/...
func formatAPA(c citation.Citation) string {
	var parts []string

	if names := apaAuthors(c.Parsed.Authors); names != "" {
		parts = append(parts, names)
	}
	if c.Parsed.Year != 0 {
		parts = append(parts, "("+strconv.Itoa(c.Parsed.Year)+").")
	}
	if t := sentenceCase(c.Parsed.Title); t != "" {
		parts = append(parts, strings.TrimRight(t, ".")+".")
	}
	if c.Parsed.Container != "" {
		parts = append(parts, "*"+c.Parsed.Container+"*.")
	}
	if c.DOI != "" {
		parts = append(parts, "https://doi.org/"+c.DOI)
	}

	return terminate(strings.Join(parts, " "))
}

// formatAMA renders: Author F, Author F. Title. *J Abbrev*. Year. doi:...
// The container is run through the journal abbreviation table.
func formatAMA(c citation.Citation) string {
	var parts []string

	if names := amaAuthorList(c.Parsed.Authors); names != "" {
		parts = append(parts, names+".")
	}
	if c.Parsed.Title != "" {
		parts = append(parts, strings.TrimRight(c.Parsed.Title, ".")+".")
	}
	if c.Parsed.Container != "" {
		parts = append(parts, "*"+Abbreviate(c.Parsed.Container)+"*.")
	}
	if c.Parsed.Year != 0 {
		parts = append(parts, strconv.Itoa(c.Parsed.Year)+".")
	}
	if c.DOI != "" {
		parts = append(parts, "doi:"+c.DOI)
	}

	return terminate(strings.Join(parts, " "))
}

// apaAuthors joins "Surname IN" entries as "Surname, I. N.", with an
// ampersand before the final author.
func apaAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		surname, initials := splitAuthor(a)
		if surname == "" {
			continue
		}
		if initials == "" {
			names = append(names, surname)
			continue
		}
		dotted := make([]string, 0, len(initials))
		for _, r := range initials {
			if unicode.IsLetter(r) {
				dotted = append(dotted, string(r)+".")
			}
		}
		names = append(names, surname+", "+strings.Join(dotted, " "))
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " & " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", & " + names[len(names)-1]
	}
}

// amaAuthorList joins "Surname IN" entries unchanged, capped at six
// authors with a trailing "et al".
func amaAuthorList(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	listed := authors
	etAl := false
	if len(listed) > amaAuthorLimit {
		listed = listed[:amaAuthorLimit]
		etAl = true
	}
	out := strings.Join(listed, ", ")
	if etAl {
		out += ", et al"
	}
	return out
}

// splitAuthor breaks "Smith JA" into surname and run of initials. Names
// without a trailing initials token are returned whole.
func splitAuthor(a string) (surname, initials string) {
	a = strings.TrimSpace(a)
	i := strings.LastIndex(a, " ")
	if i < 0 {
		return a, ""
	}
	last := a[i+1:]
	if isInitials(last) {
		return a[:i], last
	}
	return a, ""
}

func isInitials(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// sentenceCase lowercases a title except for the first word and the first
// word of a subtitle after a colon.
func sentenceCase(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	segs := strings.SplitN(title, ":", 2)
	for i, seg := range segs {
		words := strings.Fields(seg)
		for w := range words {
			if w == 0 {
				words[w] = capitalize(words[w])
			} else {
				words[w] = strings.ToLower(words[w])
			}
		}
		segs[i] = strings.Join(words, " ")
	}
	return strings.Join(segs, ": ")
}

func capitalize(w string) string {
	r := []rune(strings.ToLower(w))
	if len(r) == 0 {
		return w
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// terminate guarantees exactly one closing period.
func terminate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
