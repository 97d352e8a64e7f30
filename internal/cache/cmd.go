package cache

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: google_books, open_library, hardcover, generic" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	cacheDB := viper.GetString("cache.dbfile")

	slog.Info("Invalidating cache", "source", i.Source, "database", cacheDB)

	tableName := i.Source + "_cache"
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: google_books, open_library, hardcover, generic", i.Source)
	}

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	rowsDeleted, err := cacheInstance.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

// StatsCacheCmd represents the cache stats subcommand
type StatsCacheCmd struct{}

func (s *StatsCacheCmd) Run() error {
	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	stats, err := cacheInstance.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Table", "Entries", "Oldest", "Newest"})
	for _, entry := range stats {
		oldest, newest := "-", "-"
		if !entry.Oldest.IsZero() {
			oldest = entry.Oldest.Format("2006-01-02 15:04")
		}
		if !entry.Newest.IsZero() {
			newest = entry.Newest.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{entry.Table, entry.Entries, oldest, newest})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
