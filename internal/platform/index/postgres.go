package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// pgConn is the subset of *pgxpool.Pool used by PostgresStore.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps each collection in its own JSONB table keyed by
// (doc_type, id). Upserts merge top-level keys into the stored document.
type PostgresStore struct {
	conn   pgConn
	logger zerolog.Logger
}

func NewPostgresStore(conn pgConn, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{conn: conn, logger: logger}
}

func tableName(collection string) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	return pgx.Identifier{collection}.Sanitize(), nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    doc_type TEXT NOT NULL,
    id TEXT NOT NULL,
    doc JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (doc_type, id)
)`, table)
}

func selectSQL(table string) string {
	return fmt.Sprintf(`SELECT doc FROM %s WHERE doc_type = $1 AND id = $2`, table)
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %[1]s (doc_type, id, doc, updated_at)
VALUES ($1, $2, $3::jsonb, NOW())
ON CONFLICT (doc_type, id) DO UPDATE SET doc = %[1]s.doc || EXCLUDED.doc, updated_at = NOW()`, table)
}

func appendSQL(table string) string {
	return fmt.Sprintf(`UPDATE %s
SET doc = jsonb_set(doc, $3::text[], COALESCE(doc #> $3::text[], '[]'::jsonb) || $4::jsonb, true),
    updated_at = NOW()
WHERE doc_type = $1 AND id = $2`, table)
}

func (s *PostgresStore) EnsureCollections(ctx context.Context, names []string) error {
	for _, name := range names {
		table, err := tableName(name)
		if err != nil {
			return err
		}
		if _, err := s.conn.Exec(ctx, createTableSQL(table)); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, docType, id string) (json.RawMessage, bool) {
	table, err := tableName(collection)
	if err != nil {
		s.logger.Debug().Err(err).Msg("get document")
		return nil, false
	}
	var raw []byte
	if err := s.conn.QueryRow(ctx, selectSQL(table), docType, id).Scan(&raw); err != nil {
		s.logger.Debug().Err(err).
			Str("collection", collection).
			Str("type", docType).
			Str("id", id).
			Msg("document not found")
		return nil, false
	}
	return json.RawMessage(raw), true
}

func (s *PostgresStore) Upsert(ctx context.Context, collection, docType, id string, doc any) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if _, err := s.conn.Exec(ctx, upsertSQL(table), docType, id, string(body)); err != nil {
		return fmt.Errorf("upsert %s/%s/%s: %w", collection, docType, id, err)
	}
	return nil
}

func (s *PostgresStore) BulkUpsert(ctx context.Context, collection string, items []BulkItem) error {
	if len(items) == 0 {
		return nil
	}
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	query := upsertSQL(table)
	batch := &pgx.Batch{}
	for _, item := range items {
		body, err := json.Marshal(item.Doc)
		if err != nil {
			return fmt.Errorf("marshal bulk item %s/%s: %w", item.Type, item.ID, err)
		}
		batch.Queue(query, item.Type, item.ID, string(body))
	}

	br := s.conn.SendBatch(ctx, batch)
	defer br.Close()
	for _, item := range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("bulk upsert %s/%s/%s: %w", collection, item.Type, item.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendToArray(ctx context.Context, collection, docType, id, fieldPath string, items any) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	path, err := splitPath(fieldPath)
	if err != nil {
		return err
	}
	body, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	tag, err := s.conn.Exec(ctx, appendSQL(table), docType, id, path, string(body))
	if err != nil {
		return fmt.Errorf("append to %s/%s/%s: %w", collection, docType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s/%s not found", collection, docType, id)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.conn.Close()
}
