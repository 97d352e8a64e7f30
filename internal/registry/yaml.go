package registry

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/bookstor/internal/metadata"
)

// providerFile is the on-disk YAML shape for provider import/export.
type providerFile struct {
	Providers []metadata.ProviderConfig `yaml:"providers"`
}

// Export writes every registered provider to w as YAML. API keys are
// included, so treat the output as a secret.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	configs, err := s.All(ctx)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(providerFile{Providers: configs}); err != nil {
		return fmt.Errorf("failed to encode providers: %w", err)
	}
	return enc.Close()
}

// Import reads a YAML provider file from r and upserts every entry.
// Returns the number of providers imported.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var file providerFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to decode provider file: %w", err)
	}

	for _, cfg := range file.Providers {
		if err := s.Upsert(ctx, cfg); err != nil {
			return 0, err
		}
	}
	return len(file.Providers), nil
}
