package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lepinkainen/bookstor/internal/series"
)

// GapsCmd represents the gaps command
type GapsCmd struct {
	Series []string `arg:"" help:"Name of the series to check"`
	JSON   bool     `help:"Print the gap report as JSON"`
}

func (g *GapsCmd) Run() error {
	seriesName := strings.Join(g.Series, " ")

	shelf, err := openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = shelf.Close() }()

	ctx := context.Background()
	owned, err := shelf.BySeries(ctx, seriesName)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return fmt.Errorf("no owned books found for series %q", seriesName)
	}

	aggregator, store, err := newAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	analyzer := series.NewAnalyzer(aggregator.SearchTitle)
	report, err := analyzer.ComputeGaps(ctx, seriesName, owned)
	if err != nil {
		return err
	}

	if g.JSON {
		return printJSON(report)
	}

	printGapReport(report)
	return nil
}

func printGapReport(report *series.GapReport) {
	fmt.Printf("Series: %s\n", report.SeriesName)
	fmt.Printf("Owned: %d of %d known volumes (%.0f%% complete)\n",
		len(report.OwnedPositions), report.TotalKnown, report.Completion*100)
	if report.Estimated {
		fmt.Println("No provider knew this series; gaps are estimated from your highest owned volume.")
	}

	if len(report.Missing) == 0 {
		fmt.Println("No gaps found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Missing #", "Title", "Author"})
	for _, missing := range report.Missing {
		title, author := missing.Title, missing.Author
		if title == "" {
			title = "?"
		}
		t.AppendRow(table.Row{missing.Position, title, author})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
