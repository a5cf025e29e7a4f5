package style

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed journals.yaml
var journalsYAML []byte

var (
	abbrevOnce  sync.Once
	abbrevTable map[string]string
)

// Abbreviate returns the NLM-style abbreviation for a journal title, or
// the input unchanged when the journal is unknown or already abbreviated.
// Lookup is case-insensitive.
func Abbreviate(journal string) string {
	abbrevOnce.Do(loadAbbreviations)
	if ab, ok := abbrevTable[normalizeJournal(journal)]; ok {
		return ab
	}
	return journal
}

func loadAbbreviations() {
	var raw map[string]string
	if err := yaml.Unmarshal(journalsYAML, &raw); err != nil {
		// The table is compiled in; a parse failure is a build defect and
		// degrades to pass-through formatting.
		abbrevTable = map[string]string{}
		return
	}
	abbrevTable = make(map[string]string, len(raw))
	for name, ab := range raw {
		abbrevTable[normalizeJournal(name)] = ab
	}
}

func normalizeJournal(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "the ")
	return strings.Join(strings.Fields(s), " ")
}
