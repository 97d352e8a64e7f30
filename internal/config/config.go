package config

import (
	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// RegistryDBFile is the SQLite file holding provider configurations
	RegistryDBFile string
	// LibraryDBFile is the SQLite file holding the owned-book shelf
	LibraryDBFile string
	// CoverDir is where downloaded cover images are stored
	CoverDir string
	// DownloadCovers controls whether adding a book fetches its cover
	DownloadCovers bool
)

// InitConfig initializes the global configuration
func InitConfig() {
	// Set default values
	viper.SetDefault("registry.dbfile", "./bookstor.db")
	viper.SetDefault("library.dbfile", "./bookstor.db")
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h")
	viper.SetDefault("covers.dir", "./covers/")
	viper.SetDefault("covers.download", false)
	viper.SetDefault("providers.timeout_seconds", 10)

	// API keys can come from the environment instead of the registry
	_ = viper.BindEnv("providers.google_books.api_key", "GOOGLE_BOOKS_API_KEY")
	_ = viper.BindEnv("providers.hardcover.api_key", "HARDCOVER_API_KEY")

	// Get values from viper
	RegistryDBFile = viper.GetString("registry.dbfile")
	LibraryDBFile = viper.GetString("library.dbfile")
	CoverDir = viper.GetString("covers.dir")
	DownloadCovers = viper.GetBool("covers.download")
}
