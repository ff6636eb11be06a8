package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/postgres"
)

const uniqueViolation = "23505"

// Migrations define the corpora table.
var Migrations = []postgres.Migration{
	{Version: 1, Name: "create corpora", SQL: `CREATE TABLE IF NOT EXISTS corpora (
		name        TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		generation  BIGINT NOT NULL,
		doc_count   BIGINT NOT NULL,
		docs        BYTEA NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`},
	{Version: 2, Name: "index corpora by generation", SQL: `CREATE INDEX IF NOT EXISTS corpora_generation_idx
		ON corpora (generation)`},
}

// PGStore keeps corpora in the corpora table, one serialized roaring bitmap
// per row.
type PGStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPGStore runs the schema migration and returns a store over db.
func NewPGStore(ctx context.Context, db *postgres.Client) (*PGStore, error) {
	if err := db.Migrate(ctx, "corpus", Migrations...); err != nil {
		return nil, fmt.Errorf("migrating corpora schema: %w", err)
	}
	return &PGStore{
		db:     db,
		logger: slog.Default().With("component", "corpus-store"),
	}, nil
}

func (s *PGStore) Put(ctx context.Context, c *Corpus, replace bool) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	docs := c.Docs
	if docs == nil {
		docs = roaring.New()
	}
	blob, err := encode(docs)
	if err != nil {
		return err
	}
	query := `INSERT INTO corpora (name, description, generation, doc_count, docs)
		VALUES ($1, $2, $3, $4, $5)`
	if replace {
		query += ` ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			generation = EXCLUDED.generation,
			doc_count = EXCLUDED.doc_count,
			docs = EXCLUDED.docs,
			created_at = now()`
	}
	_, err = s.db.DB.ExecContext(ctx, query,
		c.Name, c.Description, c.Generation, int64(docs.GetCardinality()), blob,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return exists(c.Name)
	}
	if err != nil {
		return fmt.Errorf("storing corpus %s: %w", c.Name, err)
	}
	s.logger.Info("corpus stored",
		"name", c.Name,
		"docs", docs.GetCardinality(),
		"generation", c.Generation,
		"replace", replace,
	)
	return nil
}

func (s *PGStore) Get(ctx context.Context, name string) (*Corpus, error) {
	var c Corpus
	var blob []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT name, description, generation, docs, created_at FROM corpora WHERE name = $1`,
		name,
	).Scan(&c.Name, &c.Description, &c.Generation, &blob, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", name, err)
	}
	if c.Docs, err = decode(blob); err != nil {
		return nil, fmt.Errorf("corpus %s: %w", name, err)
	}
	return &c, nil
}

func (s *PGStore) Delete(ctx context.Context, name string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM corpora WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting corpus %s: %w", name, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound(name)
	}
	s.logger.Info("corpus deleted", "name", name)
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, description, generation, doc_count, created_at FROM corpora ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var i Info
		var docs int64
		if err := rows.Scan(&i.Name, &i.Description, &i.Generation, &docs, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		i.Docs = uint64(docs)
		infos = append(infos, i)
	}
	return infos, rows.Err()
}

// Ping reports whether the backing database is reachable.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
