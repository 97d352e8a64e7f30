package cmd

import (
	"os"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookstor/internal/cache"
	"github.com/lepinkainen/bookstor/internal/config"
)

func resetCmdState(t *testing.T) {
	origRegistry := config.RegistryDBFile
	origLibrary := config.LibraryDBFile

	t.Cleanup(func() {
		config.RegistryDBFile = origRegistry
		config.LibraryDBFile = origLibrary
		viper.Reset()
	})

	viper.Reset()
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"bookstor"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("bookstor"),
		kong.Description("A tool to aggregate book metadata from multiple providers and track series gaps."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)

	return cli, ctx
}

func TestUpdateGlobalConfig(t *testing.T) {
	resetCmdState(t)

	cli := &CLI{
		DBFile:      "/tmp/bookstor.db",
		CacheDBFile: "/tmp/cache.db",
		CacheTTL:    "12h",
	}

	updateGlobalConfig(cli)

	assert.Equal(t, "/tmp/bookstor.db", viper.GetString("registry.dbfile"))
	assert.Equal(t, "/tmp/bookstor.db", viper.GetString("library.dbfile"))
	assert.Equal(t, "/tmp/cache.db", viper.GetString("cache.dbfile"))
	assert.Equal(t, "12h", viper.GetString("cache.ttl"))
	assert.Equal(t, "/tmp/bookstor.db", config.RegistryDBFile)
	assert.Equal(t, "/tmp/bookstor.db", config.LibraryDBFile)
}

func TestCLIDefaultFlags(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "lookup", "9780747532699")

	assert.Equal(t, "./bookstor.db", cli.DBFile, "DBFile should default to ./bookstor.db")
	assert.Equal(t, "./cache.db", cli.CacheDBFile, "CacheDBFile should default to ./cache.db")
	assert.Equal(t, "720h", cli.CacheTTL, "CacheTTL should default to 720h")
}

func TestLookupCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "lookup", "978-0-7475-3269-9", "--json")

	assert.Equal(t, "978-0-7475-3269-9", cli.Lookup.ISBN)
	assert.True(t, cli.Lookup.JSON)
}

func TestSearchCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "search", "leviathan", "wakes", "--max", "5", "-i")

	assert.Equal(t, []string{"leviathan", "wakes"}, cli.Search.Query)
	assert.Equal(t, 5, cli.Search.Max)
	assert.True(t, cli.Search.Interactive)
	assert.False(t, cli.Search.JSON)
}

func TestGapsCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "gaps", "The", "Expanse")

	assert.Equal(t, []string{"The", "Expanse"}, cli.Gaps.Series)
}

func TestProviderAddCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "providers", "add", "my_api",
		"--display-name", "My API",
		"--base-url", "https://api.example.com",
		"--api-key", "secret",
		"--requires-key",
		"--priority", "5")

	add := cli.Providers.Add
	assert.Equal(t, "my_api", add.Name)
	assert.Equal(t, "My API", add.DisplayName)
	assert.Equal(t, "https://api.example.com", add.BaseURL)
	assert.Equal(t, "secret", add.APIKey)
	assert.True(t, add.RequiresKey)
	assert.Equal(t, 5, add.Priority)
	assert.False(t, add.Disabled)
}

func TestCacheInvalidateCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "cache", "invalidate", "google_books")

	assert.Equal(t, "google_books", cli.Cache.Invalidate.Source)
}

func TestCacheInvalidateRejectsUnknownSource(t *testing.T) {
	resetCmdState(t)

	invalidate := cache.InvalidateCacheCmd{Source: "bogus"}
	err := invalidate.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache source")
}

func TestInitLogging(t *testing.T) {
	for _, level := range []string{"", "debug", "DEBUG", "info", "warn", "error", "invalid"} {
		t.Run("level "+level, func(t *testing.T) {
			if level != "" {
				t.Setenv("BOOKSTOR_LOG_LEVEL", level)
			}
			require.NotPanics(t, func() {
				initLogging()
			})
		})
	}
}

func TestCommandStructure(t *testing.T) {
	resetCmdState(t)

	cli := &CLI{}

	assert.NotNil(t, cli.Lookup)
	assert.NotNil(t, cli.Search)
	assert.NotNil(t, cli.Gaps)
	assert.NotNil(t, cli.Providers)
	assert.NotNil(t, cli.Cache)
}
