package registry

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookstor/internal/metadata"
	"github.com/lepinkainen/bookstor/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	testutil.ResetViper(t)

	env := testutil.NewTestEnv(t)
	store, err := Open(filepath.Join(env.RootDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpen_SeedsDefaults(t *testing.T) {
	store := openTestStore(t)

	configs, err := store.Enabled(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	require.Equal(t, "google_books", configs[0].Name)
	require.Equal(t, 1, configs[0].Priority)
	require.Equal(t, "open_library", configs[1].Name)
	require.Equal(t, 2, configs[1].Priority)
}

func TestOpen_SeedIsIdempotent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	dbPath := filepath.Join(env.RootDir(), "registry.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SetEnabled(context.Background(), "open_library", false))
	require.NoError(t, store.Close())

	// Reopening must not resurrect the disabled provider.
	store, err = Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	cfg, err := store.Get(context.Background(), "open_library")
	require.NoError(t, err)
	require.False(t, cfg.Enabled)
}

func TestEnabled_OrderedByPriority(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, metadata.ProviderConfig{
		Name:        "hardcover",
		DisplayName: "Hardcover",
		RequiresKey: true,
		Enabled:     true,
		Priority:    0,
	}))

	configs, err := store.Enabled(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 3)
	require.Equal(t, "hardcover", configs[0].Name)
	require.Equal(t, "google_books", configs[1].Name)
}

func TestEnabled_PriorityTieBreaksOnRegistrationOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, metadata.ProviderConfig{Name: "first_tie", Enabled: true, Priority: 5}))
	require.NoError(t, store.Add(ctx, metadata.ProviderConfig{Name: "second_tie", Enabled: true, Priority: 5}))

	configs, err := store.Enabled(ctx)
	require.NoError(t, err)
	require.Equal(t, "first_tie", configs[2].Name)
	require.Equal(t, "second_tie", configs[3].Name)
}

func TestAdd_DuplicateNameFails(t *testing.T) {
	store := openTestStore(t)

	err := store.Add(context.Background(), metadata.ProviderConfig{Name: "google_books"})
	require.Error(t, err)
}

func TestSetEnabled_UnknownProvider(t *testing.T) {
	store := openTestStore(t)

	err := store.SetEnabled(context.Background(), "nope", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Remove(ctx, "open_library"))

	_, err := store.Get(ctx, "open_library")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAPIKeyOverrideFromConfig(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	viper.Set("providers.google_books.api_key", "key-from-env")

	cfg, err := store.Get(ctx, "google_books")
	require.NoError(t, err)
	require.Equal(t, "key-from-env", cfg.APIKey)

	// A key stored in the registry wins over the config overlay.
	require.NoError(t, store.Upsert(ctx, metadata.ProviderConfig{
		Name:     "google_books",
		APIKey:   "key-from-db",
		Enabled:  true,
		Priority: 1,
	}))
	cfg, err = store.Get(ctx, "google_books")
	require.NoError(t, err)
	require.Equal(t, "key-from-db", cfg.APIKey)
}

func TestExportImportRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, metadata.ProviderConfig{
		Name:        "hardcover",
		DisplayName: "Hardcover",
		BaseURL:     "https://api.hardcover.app/v1/graphql",
		APIKey:      "secret",
		RequiresKey: true,
		Enabled:     true,
		Priority:    3,
	}))

	var out strings.Builder
	require.NoError(t, store.Export(ctx, &out))
	require.Contains(t, out.String(), "hardcover")

	other := openTestStore(t)
	count, err := other.Import(ctx, strings.NewReader(out.String()))
	require.NoError(t, err)
	require.Equal(t, 3, count)

	cfg, err := other.Get(ctx, "hardcover")
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.APIKey)
	require.True(t, cfg.RequiresKey)
}

func TestImport_RejectsMalformedYAML(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Import(context.Background(), strings.NewReader("providers: [not a mapping"))
	require.Error(t, err)
}
