// Package registry persists provider configurations in SQLite. The
// merge order of the metadata aggregator comes straight from the
// priority column here.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/lepinkainen/bookstor/internal/metadata"
)

const schema = `
CREATE TABLE IF NOT EXISTS api_integrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	base_url TEXT NOT NULL DEFAULT '',
	api_key TEXT NOT NULL DEFAULT '',
	requires_key INTEGER NOT NULL DEFAULT 0,
	is_enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 100,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_api_integrations_priority ON api_integrations(priority);
`

// ErrNotFound is returned when a provider name is not registered.
var ErrNotFound = errors.New("provider not found")

// Store is a SQLite-backed provider registry.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the registry database, applies the schema
// and seeds the built-in providers on first run.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to registry database: %w", err), closeErr)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create registry schema: %w", err), closeErr)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.seedDefaults(context.Background()); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(err, closeErr)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// seedDefaults registers the providers that ship enabled out of the
// box. Existing rows are never touched, so user edits survive.
func (s *Store) seedDefaults(ctx context.Context) error {
	defaults := []metadata.ProviderConfig{
		{
			Name:        "google_books",
			DisplayName: "Google Books",
			Description: "Google Books volumes API",
			Enabled:     true,
			Priority:    1,
		},
		{
			Name:        "open_library",
			DisplayName: "Open Library",
			Description: "Internet Archive Open Library search API",
			Enabled:     true,
			Priority:    2,
		},
	}

	for _, cfg := range defaults {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO api_integrations
				(name, display_name, description, base_url, api_key, requires_key, is_enabled, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, cfg.Name, cfg.DisplayName, cfg.Description, cfg.BaseURL, cfg.APIKey,
			boolToInt(cfg.RequiresKey), boolToInt(cfg.Enabled), cfg.Priority)
		if err != nil {
			return fmt.Errorf("failed to seed provider %s: %w", cfg.Name, err)
		}
	}
	return nil
}

const selectColumns = "name, display_name, description, base_url, api_key, requires_key, is_enabled, priority"

// Enabled returns the enabled providers ordered by priority, then by
// registration order. This is the merge order for lookups.
func (s *Store) Enabled(ctx context.Context) ([]metadata.ProviderConfig, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM api_integrations
		WHERE is_enabled = 1
		ORDER BY priority ASC, id ASC
	`, selectColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled providers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanConfigs(rows)
}

// All returns every registered provider ordered by priority.
func (s *Store) All(ctx context.Context) ([]metadata.ProviderConfig, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM api_integrations
		ORDER BY priority ASC, id ASC
	`, selectColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanConfigs(rows)
}

// Get returns a single provider by name.
func (s *Store) Get(ctx context.Context, name string) (*metadata.ProviderConfig, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM api_integrations WHERE name = ?
	`, selectColumns), name)

	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %s: %w", name, err)
	}
	return cfg, nil
}

// Add registers a new provider. The name must be unique.
func (s *Store) Add(ctx context.Context, cfg metadata.ProviderConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return errors.New("provider name is required")
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Name
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_integrations
			(name, display_name, description, base_url, api_key, requires_key, is_enabled, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, cfg.Name, cfg.DisplayName, cfg.Description, cfg.BaseURL, cfg.APIKey,
		boolToInt(cfg.RequiresKey), boolToInt(cfg.Enabled), cfg.Priority)
	if err != nil {
		return fmt.Errorf("failed to add provider %s: %w", cfg.Name, err)
	}
	return nil
}

// Upsert inserts a provider or replaces its configuration if the name
// is already registered. Used by the YAML import.
func (s *Store) Upsert(ctx context.Context, cfg metadata.ProviderConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return errors.New("provider name is required")
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Name
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_integrations
			(name, display_name, description, base_url, api_key, requires_key, is_enabled, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			base_url = excluded.base_url,
			api_key = excluded.api_key,
			requires_key = excluded.requires_key,
			is_enabled = excluded.is_enabled,
			priority = excluded.priority,
			updated_at = CURRENT_TIMESTAMP
	`, cfg.Name, cfg.DisplayName, cfg.Description, cfg.BaseURL, cfg.APIKey,
		boolToInt(cfg.RequiresKey), boolToInt(cfg.Enabled), cfg.Priority)
	if err != nil {
		return fmt.Errorf("failed to upsert provider %s: %w", cfg.Name, err)
	}
	return nil
}

// SetEnabled flips a provider on or off.
func (s *Store) SetEnabled(ctx context.Context, name string, enabled bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_integrations
		SET is_enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, boolToInt(enabled), name)
	if err != nil {
		return fmt.Errorf("failed to update provider %s: %w", name, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Remove deletes a provider from the registry.
func (s *Store) Remove(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_integrations WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to remove provider %s: %w", name, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*metadata.ProviderConfig, error) {
	var cfg metadata.ProviderConfig
	var requiresKey, isEnabled int
	err := row.Scan(&cfg.Name, &cfg.DisplayName, &cfg.Description, &cfg.BaseURL,
		&cfg.APIKey, &requiresKey, &isEnabled, &cfg.Priority)
	if err != nil {
		return nil, err
	}
	cfg.RequiresKey = requiresKey != 0
	cfg.Enabled = isEnabled != 0
	applyKeyOverride(&cfg)
	return &cfg, nil
}

func scanConfigs(rows *sql.Rows) ([]metadata.ProviderConfig, error) {
	var configs []metadata.ProviderConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider rows: %w", err)
	}
	return configs, nil
}

// applyKeyOverride fills in an API key from config when the registry
// row has none. Lets operators keep keys out of the database.
func applyKeyOverride(cfg *metadata.ProviderConfig) {
	if cfg.APIKey != "" {
		return
	}
	if key := viper.GetString("providers." + cfg.Name + ".api_key"); key != "" {
		cfg.APIKey = key
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
