// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetFileByPath returns the file row at path, or ErrNotFound.
func (s *Store) GetFileByPath(ctx context.Context, path string) (File, error) {
	return scanFileRow(s.db.QueryRowContext(ctx, fileSelectColumns+` WHERE file_path = ?`, path))
}

// GetFile returns the file row by id, or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, id int64) (File, error) {
	return scanFileRow(s.db.QueryRowContext(ctx, fileSelectColumns+` WHERE id = ?`, id))
}

const fileSelectColumns = `SELECT id, file_path, file_hash, format, status, error_msg, file_size, file_mtime, indexed_at FROM files`

func scanFileRow(row *sql.Row) (File, error) {
	var f File
	var errMsg sql.NullString
	var mtime, indexedAt int64
	err := row.Scan(&f.ID, &f.FilePath, &f.FileHash, &f.Format, &f.Status, &errMsg, &f.FileSize, &mtime, &indexedAt)
	if err == sql.ErrNoRows {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("store: scan file: %w", err)
	}
	if errMsg.Valid {
		f.ErrorMsg = &errMsg.String
	}
	f.FileMtime = time.Unix(mtime, 0).UTC()
	f.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return f, nil
}

// UpsertFileActive inserts or updates a file row to status=active with a
// fresh hash, size, mtime and indexed_at. Returns the resulting row id.
func (s *Store) UpsertFileActive(ctx context.Context, tx *sql.Tx, path, hash, format string, size int64, mtime time.Time) (int64, error) {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO files (file_path, file_hash, format, status, error_msg, file_size, file_mtime, indexed_at)
		VALUES (?, ?, ?, 'active', NULL, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_hash=excluded.file_hash, format=excluded.format, status='active',
			error_msg=NULL, file_size=excluded.file_size, file_mtime=excluded.file_mtime,
			indexed_at=excluded.indexed_at`,
		path, hash, format, size, mtime.UTC().Unix(), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: upsert file: %w", err)
	}
	// LastInsertId is not updated when the upsert takes the UPDATE branch,
	// so the id is read back by path.
	f, err := s.GetFileByPathTx(ctx, tx, path)
	if err != nil {
		return 0, err
	}
	return f.ID, nil
}

// MarkFileError persists a parse failure on the file row (step 4 of §4.3);
// parser failures are recorded, never fatal.
func (s *Store) MarkFileError(ctx context.Context, tx *sql.Tx, path, hash, format string, size int64, mtime time.Time, msg string) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO files (file_path, file_hash, format, status, error_msg, file_size, file_mtime, indexed_at)
		VALUES (?, ?, ?, 'error', ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_hash=excluded.file_hash, format=excluded.format, status='error',
			error_msg=excluded.error_msg, file_size=excluded.file_size, file_mtime=excluded.file_mtime,
			indexed_at=excluded.indexed_at`,
		path, hash, format, msg, size, mtime.UTC().Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("store: mark file error: %w", err)
	}
	return nil
}

// MarkFileDeleted sets status=deleted and cascades sequence/feature/primer
// deletion while preserving the file row itself (P3).
func (s *Store) MarkFileDeleted(ctx context.Context, path string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		f, err := s.GetFileByPathTx(ctx, tx, path)
		if err == ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.purgeFTSForFileTx(ctx, tx, f.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sequences WHERE file_id = ?`, f.ID); err != nil {
			return fmt.Errorf("store: delete sequences for deleted file: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE files SET status='deleted' WHERE id = ?`, f.ID); err != nil {
			return fmt.Errorf("store: mark file deleted: %w", err)
		}
		return nil
	})
}

// GetFileByPathTx is GetFileByPath run inside a caller-owned transaction,
// for use by writers that already hold the store's single connection (the
// ingestion pipeline's batched-commit mode; see ingest/pipeline.go).
func (s *Store) GetFileByPathTx(ctx context.Context, tx *sql.Tx, path string) (File, error) {
	return scanFileRow(tx.QueryRowContext(ctx, fileSelectColumns+` WHERE file_path = ?`, path))
}
