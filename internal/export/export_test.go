package export

import (
	"strings"
	"testing"

	"doifind/internal/citation"
)

func TestWriteCSV(t *testing.T) {
	cits := []citation.Citation{
		{ID: 1, RawText: "Smith J. One. J Med. 2020. doi:10.1/x", DOI: "10.1/x",
			Status: citation.StatusHasDOI, Confidence: 100},
		{ID: 2, RawText: "Jones A. Two. Nature. 2021.", DOI: "10.2/y",
			Status: citation.StatusFound, Confidence: 85, Source: "crossref"},
		{ID: 3, RawText: "Brown K. Three. Cell. 2019.",
			Status: citation.StatusNotFound},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, cits); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), sb.String())
	}
	if lines[0] != "id,raw_text,doi,status,confidence,source" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1,Smith J. One. J Med. 2020. doi:10.1/x,10.1/x,has_doi,100," {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "2,Jones A. Two. Nature. 2021.,10.2/y,found,85,crossref" {
		t.Errorf("row 2 = %q", lines[2])
	}
	// not_found rows leave doi, confidence, and source empty.
	if lines[3] != "3,Brown K. Three. Cell. 2019.,,not_found,," {
		t.Errorf("row 3 = %q", lines[3])
	}
}

func TestWriteCSV_QuotesCommas(t *testing.T) {
	cits := []citation.Citation{
		{ID: 1, RawText: "Smith J, Jones A. Title. J Med. 2020.", Status: citation.StatusNotFound},
	}
	var sb strings.Builder
	if err := WriteCSV(&sb, cits); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), `"Smith J, Jones A. Title. J Med. 2020."`) {
		t.Errorf("raw text not quoted:\n%s", sb.String())
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("paper.pdf"); got != "paper.pdf_citations.csv" {
		t.Errorf("got %q", got)
	}
	if got := Filename(""); got != "citations.csv" {
		t.Errorf("got %q", got)
	}
}
