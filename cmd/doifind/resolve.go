package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"doifind/internal/citation"
	"doifind/internal/docio"
	"doifind/internal/export"
	"doifind/internal/job"
)

var (
	resolveFormat string
	resolveCSV    bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <file>",
	Short: "Resolve a document's citations to DOIs and print the results",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "APA", "citation style (APA or AMA)")
	resolveCmd.Flags().BoolVar(&resolveCSV, "csv", false, "write results as CSV to stdout")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, logger, resolver, err := loadStack()
	if err != nil {
		return err
	}

	st := citation.Style(strings.ToUpper(resolveFormat))
	if !citation.ValidStyle(st) {
		return fmt.Errorf("unsupported citation style %q", resolveFormat)
	}
	path := args[0]
	if !docio.Supported(path) {
		return fmt.Errorf("unsupported file type, expected one of: %s",
			strings.Join(docio.SupportedExtensions, ", "))
	}

	docText, err := docio.ExtractText(path)
	if err != nil {
		return withExitCode(ExitDataError, fmt.Errorf("reading %s: %w", path, err))
	}
	section, located := citation.FindReferenceSection(docText)
	if !located {
		logger.Warn("no reference heading found, scanning document tail")
	}
	raws := citation.Split(section)
	if len(raws) == 0 {
		return withExitCode(ExitDataError, fmt.Errorf("no citations found in %s", path))
	}

	cits := make([]citation.Citation, 0, len(raws))
	for i, raw := range raws {
		cits = append(cits, citation.New(i+1, raw, st))
	}
	j := job.New(filepath.Base(path), path, st, cits)

	orch := job.NewOrchestrator(job.NewMemoryStore(), resolver, logger,
		job.WithWorkers(cfg.Pipeline.Workers),
		job.WithBudget(cfg.Pipeline.Budget))
	orch.Run(cmd.Context(), j)

	snap := j.Snapshot()
	if snap.Status == job.StateError {
		return fmt.Errorf("resolution failed: %s", snap.Error)
	}

	if resolveCSV {
		return export.WriteCSV(os.Stdout, snap.Citations)
	}

	fmt.Println(citationTable(snap.Citations))
	stats := citation.Tally(snap.Citations)
	fmt.Printf("%d citations: %d with DOI, %d found, %d not found\n",
		stats.Total, stats.HasDOI, stats.Found, stats.NotFound)
	return nil
}

// citationTable renders per-citation results for terminal review.
func citationTable(cits []citation.Citation) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Status", "DOI", "Conf", "Source", "Citation"})

	for _, c := range cits {
		conf := ""
		if c.DOI != "" {
			conf = strconv.Itoa(c.Confidence)
		}
		tw.AppendRow(table.Row{c.ID, string(c.Status), c.DOI, conf, c.Source, truncate(c.RawText, 60)})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
