// Package export writes job results as CSV for spreadsheet review.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"doifind/internal/citation"
)

// csvHeader is the fixed column layout of a results export.
var csvHeader = []string{"id", "raw_text", "doi", "status", "confidence", "source"}

// WriteCSV writes one row per citation in document order. Citations
// without a DOI leave the doi, confidence, and source columns empty.
func WriteCSV(w io.Writer, cits []citation.Citation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, c := range cits {
		row := []string{
			strconv.Itoa(c.ID),
			c.RawText,
			c.DOI,
			string(c.Status),
			"",
			c.Source,
		}
		if c.DOI != "" {
			row[4] = strconv.Itoa(c.Confidence)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", c.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename derives the export filename from the uploaded document name.
func Filename(uploaded string) string {
	if uploaded == "" {
		return "citations.csv"
	}
	return uploaded + "_citations.csv"
}
