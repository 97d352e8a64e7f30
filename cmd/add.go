package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookstor/internal/config"
	"github.com/lepinkainen/bookstor/internal/covers"
)

// AddCmd represents the add command
type AddCmd struct {
	ISBN          string `arg:"" help:"ISBN-10 or ISBN-13 of the book to add"`
	DownloadCover bool   `help:"Download the cover image even when covers.download is off"`
}

func (a *AddCmd) Run() error {
	aggregator, store, err := newAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	result, err := aggregator.LookupISBN(ctx, a.ISBN)
	if err != nil {
		return err
	}
	if result.Book == nil {
		printOutcomes(result.Outcomes)
		return fmt.Errorf("no provider had a record for %s", a.ISBN)
	}

	shelf, err := openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = shelf.Close() }()

	if err := shelf.Add(ctx, result.Book); err != nil {
		return fmt.Errorf("adding book to library: %w", err)
	}
	slog.Info("Book added to library", "isbn", result.Book.ISBN, "title", result.Book.Title)

	if (a.DownloadCover || config.DownloadCovers) && result.Book.Thumbnail != "" {
		downloader := covers.NewDownloader(config.CoverDir)
		path, err := downloader.Download(ctx, result.Book.Thumbnail, result.Book.ISBN, a.DownloadCover)
		if err != nil {
			// The book is saved either way, a missing cover is cosmetic.
			slog.Warn("Cover download failed", "isbn", result.Book.ISBN, "error", err)
		} else if path != "" {
			slog.Info("Cover saved", "path", path)
		}
	}

	printBook(result.Book)
	return nil
}
