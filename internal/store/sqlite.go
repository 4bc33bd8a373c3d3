package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// SQLiteStore keeps artifacts in a local SQLite file. It exists for local
// runs and development; the layout mirrors what the blob store exposes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the artifact database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable, "failed to create store directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable, "failed to open artifact store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable, "failed to migrate artifact store", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
	key TEXT PRIMARY KEY,
	size INTEGER NOT NULL DEFAULT 0,
	content BLOB,
	metadata TEXT NOT NULL DEFAULT '{}',
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_updated_at ON artifacts(updated_at);
`

func (s *SQLiteStore) List(ctx context.Context) (artifacts map[string]*Artifact, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, size, metadata FROM artifacts WHERE key NOT LIKE ? || '%'
	`, internalPrefix)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable, "failed to list artifacts", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	artifacts = make(map[string]*Artifact)
	for rows.Next() {
		var (
			artifact Artifact
			metaJSON string
		)
		if err := rows.Scan(&artifact.Key, &artifact.Size, &metaJSON); err != nil {
			return nil, err
		}
		if artifact.Metadata, err = decodeMetadata(metaJSON); err != nil {
			return nil, fmt.Errorf("artifact %q: %w", artifact.Key, err)
		}
		artifacts[artifact.Key] = &artifact
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, size, metadata FROM artifacts WHERE key = ?
	`, key)

	var (
		artifact Artifact
		metaJSON string
	)
	if err := row.Scan(&artifact.Key, &artifact.Size, &metaJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to read artifact %q", key), err)
	}

	meta, err := decodeMetadata(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: %w", key, err)
	}
	artifact.Metadata = meta
	return &artifact, nil
}

func (s *SQLiteStore) GetContent(ctx context.Context, key string) (io.ReadCloser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT content FROM artifacts WHERE key = ?`, key)

	var content []byte
	if err := row.Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to read artifact %q", key), err)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeTransferFailed,
			fmt.Sprintf("failed to read content for %q", key), err)
	}

	metaJSON, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (key, size, content, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			size = excluded.size,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, key, int64(len(content)), content, metaJSON, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to store artifact %q", key), err)
	}
	return nil
}

func (s *SQLiteStore) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	metaJSON, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE artifacts SET metadata = ?, updated_at = ? WHERE key = ?
	`, metaJSON, time.Now().UTC().Format(time.RFC3339), key)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to set metadata on %q", key), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set metadata on %q: %w", key, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE key = ?`, key)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to delete artifact %q", key), err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodeMetadata(meta map[string]string) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(metaJSON string) (map[string]string, error) {
	var meta map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return NormalizeMetadata(meta), nil
}
