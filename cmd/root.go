package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/bookstor/internal/cache"
	"github.com/lepinkainen/bookstor/internal/config"
	"github.com/lepinkainen/bookstor/internal/library"
	"github.com/lepinkainen/bookstor/internal/metadata"
	"github.com/lepinkainen/bookstor/internal/registry"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// CLI represents the complete command structure for the bookstor application
type CLI struct {
	// Global flags
	DBFile      string `help:"Path to SQLite database file holding providers and the library" default:"./bookstor.db"`
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)" default:"720h"`

	Lookup    LookupCmd    `cmd:"" help:"Look up a book by ISBN across all enabled providers"`
	Search    SearchCmd    `cmd:"" help:"Search providers for books by title"`
	Add       AddCmd       `cmd:"" help:"Look up an ISBN and add the book to the library"`
	Gaps      GapsCmd      `cmd:"" help:"Report missing volumes in a series you own"`
	Providers ProvidersCmd `cmd:"" help:"Manage metadata providers"`
	Cache     CacheCmd     `cmd:"" help:"Manage the metadata cache"`
}

// CacheCmd groups the cache maintenance subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Clear all cached responses for one provider"`
	Stats      cache.StatsCacheCmd      `cmd:"" help:"Show cache table statistics"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging()
	initConfig()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("bookstor"),
		kong.Description("A tool to aggregate book metadata from multiple providers and track series gaps."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)

	err := ctx.Run()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("registry.dbfile", cli.DBFile)
	viper.Set("library.dbfile", cli.DBFile)
	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)

	config.RegistryDBFile = cli.DBFile
	config.LibraryDBFile = cli.DBFile
}

func initLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("BOOKSTOR_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}

// openRegistry opens the provider registry at the configured path.
func openRegistry() (*registry.Store, error) {
	store, err := registry.Open(config.RegistryDBFile)
	if err != nil {
		return nil, fmt.Errorf("opening provider registry: %w", err)
	}
	return store, nil
}

// openLibrary opens the owned-book shelf at the configured path.
func openLibrary() (*library.Store, error) {
	store, err := library.Open(config.LibraryDBFile)
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}
	return store, nil
}

// newAggregator wires an aggregator over the provider registry. The
// caller closes the returned store when done.
func newAggregator() (*metadata.Aggregator, *registry.Store, error) {
	store, err := openRegistry()
	if err != nil {
		return nil, nil, err
	}
	return metadata.NewAggregator(store), store, nil
}
