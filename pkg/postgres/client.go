// Package postgres opens the lib/pq connection pool and applies versioned
// schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
)

type Client struct {
	DB *sql.DB
}

// New opens a pool sized by cfg and verifies it with a ping.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error { return c.DB.Close() }

func (c *Client) Ping(ctx context.Context) error { return c.DB.PingContext(ctx) }

// InTx runs fn in a transaction, committing when it returns nil.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Migration is one schema step of a component, applied once.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	component  TEXT NOT NULL,
	version    INT NOT NULL,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (component, version)
)`

// Migrate applies the migrations of component not yet recorded in
// schema_migrations, in version order and in one transaction. An advisory
// lock keyed by component serializes replicas starting together.
func (c *Client) Migrate(ctx context.Context, component string, migrations ...Migration) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, component); err != nil {
			return fmt.Errorf("locking %s migrations: %w", component, err)
		}
		if _, err := tx.ExecContext(ctx, migrationsTable); err != nil {
			return fmt.Errorf("creating schema_migrations: %w", err)
		}
		applied, err := appliedVersions(ctx, tx, component)
		if err != nil {
			return err
		}
		todo, err := pending(applied, migrations)
		if err != nil {
			return fmt.Errorf("%s migrations: %w", component, err)
		}
		for _, m := range todo {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("%s migration %d (%s): %w", component, m.Version, m.Name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (component, version, name) VALUES ($1, $2, $3)`,
				component, m.Version, m.Name); err != nil {
				return fmt.Errorf("recording %s migration %d: %w", component, m.Version, err)
			}
			slog.Info("schema migrated", "component", component, "version", m.Version, "name", m.Name)
		}
		return nil
	})
}

func appliedVersions(ctx context.Context, tx *sql.Tx, component string) (map[int]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_migrations WHERE component = $1`, component)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// pending orders migrations by version and drops the applied ones.
func pending(applied map[int]bool, migrations []Migration) ([]Migration, error) {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	var out []Migration
	for i, m := range sorted {
		if m.Version < 1 {
			return nil, fmt.Errorf("migration %q has version %d", m.Name, m.Version)
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, fmt.Errorf("migration version %d declared twice", m.Version)
		}
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out, nil
}
