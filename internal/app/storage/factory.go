// Package storage creates the source read model the application serves from.
// Sources come either from the YAML configuration or from the database.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/store"
)

// Factory creates the source reader and manages its lifecycle
type Factory interface {
	// Reader returns the source read model
	Reader() store.Reader

	// Reload applies a reloaded configuration. Database backed factories ignore it.
	Reload(cfg *config.Config)

	// Cleanup releases any resources held by this factory
	Cleanup()
}

// NewStorageFactory returns a DatabaseFactory when a database is configured
// and a ConfigFactory otherwise
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database != nil {
		return NewDatabaseFactory(ctx, cfg.Database)
	}
	return NewConfigFactory(cfg), nil
}

// ConfigFactory serves the sources of the configuration file
type ConfigFactory struct {
	store *store.ConfigStore
}

var _ Factory = (*ConfigFactory)(nil)

// NewConfigFactory creates a factory serving cfg.Sources
func NewConfigFactory(cfg *config.Config) *ConfigFactory {
	return &ConfigFactory{store: store.NewConfigStore(cfg.Sources)}
}

// Reader returns the in-memory store
func (f *ConfigFactory) Reader() store.Reader {
	return f.store
}

// Reload swaps the served sources
func (f *ConfigFactory) Reload(cfg *config.Config) {
	f.store.Replace(cfg.Sources)
	slog.Info("Reloaded sources from configuration", "sources", len(cfg.Sources))
}

// Cleanup is a no-op
func (*ConfigFactory) Cleanup() {}

// DatabaseFactory serves the sources stored in PostgreSQL
type DatabaseFactory struct {
	store *store.DBStore
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory connects to the configured database
func NewDatabaseFactory(ctx context.Context, cfg *config.DatabaseConfig) (*DatabaseFactory, error) {
	s, err := store.NewDBStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database store: %w", err)
	}
	slog.Info("Serving sources from database", "host", cfg.Host, "database", cfg.Database)
	return &DatabaseFactory{store: s}, nil
}

// NewDatabaseFactoryFromStore wraps an existing store
func NewDatabaseFactoryFromStore(s *store.DBStore) *DatabaseFactory {
	return &DatabaseFactory{store: s}
}

// Reader returns the database store
func (f *DatabaseFactory) Reader() store.Reader {
	return f.store
}

// Reload ignores configuration changes, sources are managed in the database
func (*DatabaseFactory) Reload(*config.Config) {
	slog.Debug("Configuration reloaded, database backed sources are unchanged")
}

// Cleanup closes the connection pool
func (f *DatabaseFactory) Cleanup() {
	f.store.Close()
}
