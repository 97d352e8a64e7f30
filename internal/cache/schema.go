package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency

// GoogleBooksCacheSchema defines the schema for Google Books API responses
const GoogleBooksCacheSchema = `
CREATE TABLE IF NOT EXISTS google_books_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_google_books_cached_at ON google_books_cache(cached_at);
`

// OpenLibraryCacheSchema defines the schema for Open Library responses
const OpenLibraryCacheSchema = `
CREATE TABLE IF NOT EXISTS open_library_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_open_library_cached_at ON open_library_cache(cached_at);
`

// HardcoverCacheSchema defines the schema for Hardcover GraphQL responses
const HardcoverCacheSchema = `
CREATE TABLE IF NOT EXISTS hardcover_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_hardcover_cached_at ON hardcover_cache(cached_at);
`

// GenericCacheSchema is shared by all user-defined providers. Keys are
// prefixed with the provider name so entries never collide.
const GenericCacheSchema = `
CREATE TABLE IF NOT EXISTS generic_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_generic_cached_at ON generic_cache(cached_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	GoogleBooksCacheSchema,
	OpenLibraryCacheSchema,
	HardcoverCacheSchema,
	GenericCacheSchema,
}

// CacheTableNames lists the cache tables in display order.
var CacheTableNames = []string{
	"google_books_cache",
	"open_library_cache",
	"hardcover_cache",
	"generic_cache",
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	"google_books_cache": true,
	"open_library_cache": true,
	"hardcover_cache":    true,
	"generic_cache":      true,
}
