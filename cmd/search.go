package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lepinkainen/bookstor/internal/metadata"
	"github.com/lepinkainen/bookstor/internal/tui"
)

// SearchCmd represents the search command
type SearchCmd struct {
	Query       []string `arg:"" help:"Title text to search for"`
	Max         int      `help:"Maximum number of results" default:"10"`
	Interactive bool     `short:"i" help:"Pick a result interactively and print its details"`
	JSON        bool     `help:"Print results as JSON"`
}

func (s *SearchCmd) Run() error {
	query := strings.Join(s.Query, " ")

	aggregator, store, err := newAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	books, err := aggregator.SearchTitle(context.Background(), query, s.Max)
	if err != nil {
		return err
	}

	if s.JSON {
		return printJSON(books)
	}

	if s.Interactive {
		result, err := tui.Select(query, books)
		if err != nil {
			return err
		}
		if result.Action != tui.ActionSelected {
			fmt.Println("No book selected.")
			return nil
		}
		printBook(result.Selection)
		return nil
	}

	if len(books) == 0 {
		fmt.Println("No results.")
		return nil
	}
	printSearchResults(books)
	return nil
}

func printSearchResults(books []*metadata.BookMetadata) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "ISBN", "Title", "Authors", "Year", "Sources"})
	for i, book := range books {
		year := book.PublishedDate
		if len(year) > 4 {
			year = year[:4]
		}
		title := book.Title
		if book.SeriesName != "" && book.SeriesPosition != "" {
			title = fmt.Sprintf("%s (%s #%s)", title, book.SeriesName, book.SeriesPosition)
		}
		t.AppendRow(table.Row{
			i + 1,
			book.ISBN,
			title,
			strings.Join(book.Authors, ", "),
			year,
			strings.Join(book.SourceProviders, "+"),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
