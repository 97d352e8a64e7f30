package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lepinkainen/bookstor/internal/config"
	"github.com/lepinkainen/bookstor/internal/covers"
	"github.com/lepinkainen/bookstor/internal/metadata"
)

// LookupCmd represents the lookup command
type LookupCmd struct {
	ISBN  string `arg:"" help:"ISBN-10 or ISBN-13 to look up, hyphens and spaces allowed"`
	JSON  bool   `help:"Print the merged record as JSON"`
	Cover bool   `help:"Download the cover image to the covers directory"`
}

func (l *LookupCmd) Run() error {
	aggregator, store, err := newAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	result, err := aggregator.LookupISBN(ctx, l.ISBN)
	if err != nil {
		return err
	}

	if l.Cover && result.Book != nil && result.Book.Thumbnail != "" {
		downloader := covers.NewDownloader(config.CoverDir)
		if path, err := downloader.Download(ctx, result.Book.Thumbnail, result.Book.ISBN, false); err != nil {
			slog.Warn("Cover download failed", "isbn", result.Book.ISBN, "error", err)
		} else if path != "" {
			slog.Info("Cover saved", "path", path)
		}
	}

	if l.JSON {
		return printJSON(result)
	}

	if result.Book == nil {
		fmt.Println("No provider had a record for this ISBN.")
	} else {
		printBook(result.Book)
	}
	printOutcomes(result.Outcomes)
	return nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func printBook(book *metadata.BookMetadata) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{"ISBN", book.ISBN})
	t.AppendRow(table.Row{"Title", book.Title})
	if book.Subtitle != "" {
		t.AppendRow(table.Row{"Subtitle", book.Subtitle})
	}
	if len(book.Authors) > 0 {
		t.AppendRow(table.Row{"Authors", strings.Join(book.Authors, ", ")})
	}
	if book.Publisher != "" {
		t.AppendRow(table.Row{"Publisher", book.Publisher})
	}
	if book.PublishedDate != "" {
		t.AppendRow(table.Row{"Published", book.PublishedDate})
	}
	if book.PageCount > 0 {
		t.AppendRow(table.Row{"Pages", book.PageCount})
	}
	if len(book.Categories) > 0 {
		t.AppendRow(table.Row{"Categories", strings.Join(book.Categories, ", ")})
	}
	if book.SeriesName != "" {
		series := book.SeriesName
		if book.SeriesPosition != "" {
			series = fmt.Sprintf("%s #%s", series, book.SeriesPosition)
		}
		t.AppendRow(table.Row{"Series", series})
	}
	if len(book.SourceProviders) > 0 {
		t.AppendRow(table.Row{"Sources", strings.Join(book.SourceProviders, ", ")})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func printOutcomes(outcomes []metadata.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Provider", "Status", "Detail"})
	for _, outcome := range outcomes {
		t.AppendRow(table.Row{outcome.Provider, string(outcome.Status), outcome.Reason})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
