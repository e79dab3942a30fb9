package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// docDB is the per-collection SQLite-backed row store: chunk content,
// source location, metadata, and the dense/sparse vectors needed to
// rebuild the in-memory indexes on load. The pool is capped at one
// connection; WAL mode plus a busy timeout keeps concurrent readers from
// tripping over the single writer.
type docDB struct {
	db   *sql.DB
	path string
}

func openDocDB(path string) (*docDB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create collection dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	d := &docDB{db: db, path: path}
	if err := d.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *docDB) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id             TEXT PRIMARY KEY,
		content        TEXT NOT NULL,
		relative_path  TEXT NOT NULL,
		start_line     INTEGER NOT NULL,
		end_line       INTEGER NOT NULL,
		file_extension TEXT NOT NULL,
		metadata       TEXT NOT NULL,
		dense          BLOB,
		sparse_indices TEXT,
		sparse_values  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_documents_relative_path ON documents(relative_path);
	CREATE INDEX IF NOT EXISTS idx_documents_file_extension ON documents(file_extension);

	CREATE TABLE IF NOT EXISTS collection_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

func (d *docDB) close() error {
	return d.db.Close()
}

func (d *docDB) setMeta(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO collection_metadata(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (d *docDB) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM collection_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *docDB) upsert(ctx context.Context, c Chunk) error {
	metaJSON, err := marshalMetadata(c.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	denseBlob, err := encodeFloat32s(c.Dense)
	if err != nil {
		return fmt.Errorf("store: encode dense vector: %w", err)
	}

	var sparseIdxJSON, sparseValJSON sql.NullString
	if c.SparseIndices != nil {
		b, err := json.Marshal(c.SparseIndices)
		if err != nil {
			return fmt.Errorf("store: encode sparse indices: %w", err)
		}
		sparseIdxJSON = sql.NullString{String: string(b), Valid: true}
		b, err = json.Marshal(c.SparseValues)
		if err != nil {
			return fmt.Errorf("store: encode sparse values: %w", err)
		}
		sparseValJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO documents(id, content, relative_path, start_line, end_line, file_extension, metadata, dense, sparse_indices, sparse_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			relative_path = excluded.relative_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			file_extension = excluded.file_extension,
			metadata = excluded.metadata,
			dense = excluded.dense,
			sparse_indices = excluded.sparse_indices,
			sparse_values = excluded.sparse_values
	`, c.ID, c.Content, c.RelativePath, c.StartLine, c.EndLine, c.FileExtension, metaJSON, denseBlob, sparseIdxJSON, sparseValJSON)
	return err
}

func (d *docDB) deleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *docDB) get(ctx context.Context, id string) (Chunk, bool, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, content, relative_path, start_line, end_line, file_extension, metadata, dense, sparse_indices, sparse_values
		FROM documents WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, err
	}
	return c, true, nil
}

// all returns every chunk in the collection, ordered by id for determinism.
func (d *docDB) all(ctx context.Context) ([]Chunk, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, content, relative_path, start_line, end_line, file_extension, metadata, dense, sparse_indices, sparse_values
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *docDB) count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(s scanner) (Chunk, error) {
	var c Chunk
	var metaJSON string
	var denseBlob []byte
	var sparseIdxJSON, sparseValJSON sql.NullString

	err := s.Scan(&c.ID, &c.Content, &c.RelativePath, &c.StartLine, &c.EndLine, &c.FileExtension,
		&metaJSON, &denseBlob, &sparseIdxJSON, &sparseValJSON)
	if err != nil {
		return Chunk{}, err
	}

	c.Metadata = unmarshalMetadata(metaJSON)
	c.Dense, err = decodeFloat32s(denseBlob)
	if err != nil {
		return Chunk{}, fmt.Errorf("store: decode dense vector for %s: %w", c.ID, err)
	}
	if sparseIdxJSON.Valid {
		if err := json.Unmarshal([]byte(sparseIdxJSON.String), &c.SparseIndices); err != nil {
			return Chunk{}, fmt.Errorf("store: decode sparse indices for %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(sparseValJSON.String), &c.SparseValues); err != nil {
			return Chunk{}, fmt.Errorf("store: decode sparse values for %s: %w", c.ID, err)
		}
	}
	return c, nil
}
