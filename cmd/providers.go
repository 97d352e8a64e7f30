package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lepinkainen/bookstor/internal/metadata"
)

// ProvidersCmd groups the provider management subcommands
type ProvidersCmd struct {
	List    ProviderListCmd    `cmd:"" default:"1" help:"List all registered providers"`
	Add     ProviderAddCmd     `cmd:"" help:"Register a new provider"`
	Enable  ProviderEnableCmd  `cmd:"" help:"Enable a provider"`
	Disable ProviderDisableCmd `cmd:"" help:"Disable a provider"`
	Remove  ProviderRemoveCmd  `cmd:"" help:"Remove a provider"`
	Export  ProviderExportCmd  `cmd:"" help:"Export provider configurations as YAML"`
	Import  ProviderImportCmd  `cmd:"" help:"Import provider configurations from a YAML file"`
}

// ProviderListCmd represents the providers list subcommand
type ProviderListCmd struct{}

func (p *ProviderListCmd) Run() error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	configs, err := store.All(context.Background())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Display Name", "Priority", "Enabled", "API Key"})
	for _, cfg := range configs {
		key := "not needed"
		if cfg.RequiresKey {
			if cfg.APIKey != "" {
				key = "configured"
			} else {
				key = "missing"
			}
		}
		t.AppendRow(table.Row{cfg.Name, cfg.Label(), cfg.Priority, cfg.Enabled, key})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

// ProviderAddCmd represents the providers add subcommand
type ProviderAddCmd struct {
	Name        string `arg:"" help:"Unique provider name, e.g. my_rest_api"`
	DisplayName string `help:"Human-readable name shown in listings"`
	Description string `help:"Short description of the provider"`
	BaseURL     string `help:"Base URL of the provider API"`
	APIKey      string `help:"API key, stored in the registry"`
	RequiresKey bool   `help:"Skip the provider when no API key is configured"`
	Priority    int    `help:"Merge priority, lower wins" default:"100"`
	Disabled    bool   `help:"Register the provider without enabling it"`
}

func (p *ProviderAddCmd) Run() error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cfg := metadata.ProviderConfig{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		RequiresKey: p.RequiresKey,
		Enabled:     !p.Disabled,
		Priority:    p.Priority,
	}
	if err := store.Add(context.Background(), cfg); err != nil {
		return err
	}
	slog.Info("Provider registered", "name", p.Name, "priority", p.Priority)
	return nil
}

// ProviderEnableCmd represents the providers enable subcommand
type ProviderEnableCmd struct {
	Name string `arg:"" help:"Provider name"`
}

func (p *ProviderEnableCmd) Run() error {
	return setProviderEnabled(p.Name, true)
}

// ProviderDisableCmd represents the providers disable subcommand
type ProviderDisableCmd struct {
	Name string `arg:"" help:"Provider name"`
}

func (p *ProviderDisableCmd) Run() error {
	return setProviderEnabled(p.Name, false)
}

func setProviderEnabled(name string, enabled bool) error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetEnabled(context.Background(), name, enabled); err != nil {
		return err
	}
	slog.Info("Provider updated", "name", name, "enabled", enabled)
	return nil
}

// ProviderRemoveCmd represents the providers remove subcommand
type ProviderRemoveCmd struct {
	Name string `arg:"" help:"Provider name"`
}

func (p *ProviderRemoveCmd) Run() error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Remove(context.Background(), p.Name); err != nil {
		return err
	}
	slog.Info("Provider removed", "name", p.Name)
	return nil
}

// ProviderExportCmd represents the providers export subcommand
type ProviderExportCmd struct {
	Output string `short:"o" help:"Path to write the YAML to, stdout when omitted"`
}

func (p *ProviderExportCmd) Run() error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := os.Stdout
	if p.Output != "" {
		file, err := os.Create(p.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	return store.Export(context.Background(), out)
}

// ProviderImportCmd represents the providers import subcommand
type ProviderImportCmd struct {
	Input string `arg:"" help:"Path to a YAML file of provider configurations"`
}

func (p *ProviderImportCmd) Run() error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	file, err := os.Open(p.Input)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer func() { _ = file.Close() }()

	count, err := store.Import(context.Background(), file)
	if err != nil {
		return err
	}
	slog.Info("Providers imported", "count", count)
	return nil
}
