package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/secrets"
)

const (
	selectSources = `SELECT name, type, packages, attributes, secret_key FROM package_sources`

	upsertSource = `INSERT INTO package_sources (name, type, packages, attributes, secret_key)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET
    type = EXCLUDED.type,
    packages = EXCLUDED.packages,
    attributes = EXCLUDED.attributes,
    secret_key = EXCLUDED.secret_key,
    updated_at = now()`

	deleteSource = `DELETE FROM package_sources WHERE name = $1`
)

// DBStore reads package sources from PostgreSQL
type DBStore struct {
	pool *pgxpool.Pool
}

var _ Reader = (*DBStore)(nil)

// NewDBStore connects to the configured database
func NewDBStore(ctx context.Context, cfg *config.DatabaseConfig) (*DBStore, error) {
	if cfg == nil {
		return nil, errors.New("database configuration is required")
	}
	connString, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to database", "host", cfg.Host, "database", cfg.Database)
	return NewDBStoreFromPool(pool), nil
}

// NewDBStoreFromPool wraps an existing pool
func NewDBStoreFromPool(pool *pgxpool.Pool) *DBStore {
	return &DBStore{pool: pool}
}

// Close closes the connection pool
func (s *DBStore) Close() {
	s.pool.Close()
}

// List returns all sources ordered by name
func (s *DBStore) List(ctx context.Context) ([]config.SourceConfig, error) {
	rows, err := s.pool.Query(ctx, selectSources+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []config.SourceConfig
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return out, nil
}

// Get returns the named source or ErrNotFound
func (s *DBStore) Get(ctx context.Context, name string) (*config.SourceConfig, error) {
	src, err := scanSource(s.pool.QueryRow(ctx, selectSources+` WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Upsert inserts or updates a source. Object storage secrets must be sealed.
func (s *DBStore) Upsert(ctx context.Context, src *config.SourceConfig) error {
	if src == nil {
		return errors.New("source cannot be nil")
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("invalid source %s: %w", src.Name, err)
	}

	var (
		attrs     any
		secretKey *string
	)
	switch {
	case src.Git != nil:
		attrs = src.Git
	case src.S3 != nil:
		if !secrets.IsSealed(src.S3.SecretKey) {
			return fmt.Errorf("source %s: secret key must be sealed before it is stored", src.Name)
		}
		attrs = src.S3
		secretKey = &src.S3.SecretKey
	default:
		attrs = src.File
	}

	attrJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	packages := src.Packages
	if packages == nil {
		packages = map[string]string{}
	}
	pkgJSON, err := json.Marshal(packages)
	if err != nil {
		return fmt.Errorf("failed to encode packages: %w", err)
	}

	if _, err := s.pool.Exec(ctx, upsertSource,
		src.Name, src.GetType(), string(pkgJSON), string(attrJSON), secretKey); err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", src.Name, err)
	}
	return nil
}

// Delete removes a source
func (s *DBStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, deleteSource, name)
	if err != nil {
		return fmt.Errorf("failed to delete source %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*config.SourceConfig, error) {
	var (
		src       config.SourceConfig
		pkgJSON   []byte
		attrJSON  []byte
		secretKey *string
	)
	if err := row.Scan(&src.Name, &src.Type, &pkgJSON, &attrJSON, &secretKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}

	if err := json.Unmarshal(pkgJSON, &src.Packages); err != nil {
		return nil, fmt.Errorf("source %s: invalid packages: %w", src.Name, err)
	}

	var target any
	switch src.Type {
	case config.SourceTypeGit:
		src.Git = &config.GitConfig{}
		target = src.Git
	case config.SourceTypeS3:
		src.S3 = &config.S3Config{}
		target = src.S3
	case config.SourceTypeFileSystem:
		src.File = &config.FileConfig{}
		target = src.File
	default:
		// unknown types are returned as is and rejected by the registry
		return &src, nil
	}
	if err := json.Unmarshal(attrJSON, target); err != nil {
		return nil, fmt.Errorf("source %s: invalid attributes: %w", src.Name, err)
	}
	if src.S3 != nil && secretKey != nil {
		src.S3.SecretKey = *secretKey
	}
	return &src, nil
}
