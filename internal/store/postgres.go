package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS kumule_documents (
	name       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the whole database as one JSONB row, so several
// underwriters can share a document without a file share.
type PostgresStore struct {
	pool   *pgxpool.Pool
	name   string
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, databaseURL, name string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDocuments); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if name == "" {
		name = "default"
	}
	return &PostgresStore{pool: pool, name: name, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM kumule_documents WHERE name = $1`, s.name,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", s.name, err)
	}
	return s.decode(body)
}

func (s *PostgresStore) Save(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSaveFailed, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO kumule_documents (name, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		s.name, data,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// Update locks the document row for the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO kumule_documents (name, body) VALUES ($1, '{}'::jsonb)
		ON CONFLICT (name) DO NOTHING`, s.name); err != nil {
		return fmt.Errorf("ensure document %q: %w", s.name, err)
	}

	var body []byte
	if err := tx.QueryRow(ctx,
		`SELECT body FROM kumule_documents WHERE name = $1 FOR UPDATE`, s.name,
	).Scan(&body); err != nil {
		return fmt.Errorf("lock document %q: %w", s.name, err)
	}

	doc, err := s.decode(body)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}

	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSaveFailed, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE kumule_documents SET body = $2, updated_at = now() WHERE name = $1`,
		s.name, data,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSaveFailed, err)
	}
	return nil
}

func (s *PostgresStore) decode(body []byte) (*Document, error) {
	doc, issues, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("parse document %q: %w", s.name, err)
	}
	logIssues(s.logger, issues)
	return doc, nil
}
