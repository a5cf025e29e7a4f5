package citation

import (
	"regexp"
	"strings"
)

// DOI pattern: 10.XXXX/... where XXXX is 4+ digits. The prefixed form also
// matches "doi:" and doi.org URL spellings so in-text DOIs are found
// regardless of how the author wrote them.
var (
	doiPattern         = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)
	doiPrefixedPattern = regexp.MustCompile(`(?i)(?:doi:\s*|https?://(?:dx\.)?doi\.org/)?(10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+)`)
)

// ExtractDOI extracts the first DOI found in text, stripping any "doi:" or
// doi.org URL prefix and trailing punctuation. Returns "" if none is found.
func ExtractDOI(text string) string {
	for _, m := range doiPrefixedPattern.FindAllStringSubmatch(text, -1) {
		doi := strings.TrimRight(m[1], ".,;:)")
		if ValidDOI(doi) {
			return doi
		}
	}
	return ""
}

// ValidDOI performs basic shape validation on a DOI: the "10." prefix,
// at least four registrant digits, and a non-empty suffix after the slash.
func ValidDOI(doi string) bool {
	if len(doi) < 10 {
		return false
	}
	if !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	if slash == -1 || slash >= len(doi)-1 {
		return false
	}
	return doiPattern.MatchString(doi)
}

// NormalizeDOI strips any URL or "doi:" prefix so the bare identifier can
// be compared or stored.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			doi = strings.TrimSpace(doi[len(prefix):])
			break
		}
	}
	return doi
}
