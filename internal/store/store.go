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
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// Store owns the index's single SQLite connection. Writes commit before
// yielding control (spec.md §5); a single connection avoids SQLITE_BUSY
// under the process's cooperative scheduling model.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var nopLogger = slog.New(slog.NewTextHandler(discardWriter{}, nil))

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a structured logger; defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (and, if necessary, creates) the SQLite database at dsn.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Init creates the schema if it doesn't already exist, including the FTS5
// trigram virtual tables backing the fuzzy search index of §4.2.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	ddl := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL UNIQUE,
			file_hash TEXT NOT NULL,
			format TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			error_msg TEXT,
			file_size INTEGER NOT NULL DEFAULT 0,
			file_mtime INTEGER NOT NULL DEFAULT 0,
			indexed_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			size_bp INTEGER NOT NULL,
			topology TEXT NOT NULL,
			sequence TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			meta TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sequences_file ON sequences(file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sequences_name ON sequences(name COLLATE NOCASE)`,
		`CREATE TABLE IF NOT EXISTS features (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq_id INTEGER NOT NULL REFERENCES sequences(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			start INTEGER NOT NULL,
			end INTEGER NOT NULL,
			strand INTEGER NOT NULL DEFAULT 0,
			qualifiers TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_features_seq ON features(seq_id)`,
		`CREATE TABLE IF NOT EXISTS primers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq_id INTEGER NOT NULL REFERENCES sequences(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			sequence TEXT NOT NULL,
			tm REAL,
			start INTEGER,
			end INTEGER,
			strand INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_primers_seq ON primers(seq_id)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL UNIQUE,
			preferences TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tool_approvals (
			filename TEXT NOT NULL UNIQUE,
			file_hash TEXT NOT NULL,
			tool_name TEXT,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			reviewed_at INTEGER
		)`,
		// Trigram FTS over sequence name/description, refreshed on every
		// sequence replace (see sequences.go). content='' (a "contentless"
		// table) since the canonical row lives in `sequences`.
		`CREATE VIRTUAL TABLE IF NOT EXISTS sequences_fts USING fts5(
			name, description, tags,
			content='', tokenize='trigram', contentless_delete=1
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS features_fts USING fts5(
			name,
			content='', tokenize='trigram', contentless_delete=1
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init: %w", err)
		}
	}
	s.logger.Info("store: schema ready", "duration", time.Since(start))
	return nil
}

// DB exposes the underlying handle for callers that need a raw session
// (e.g. the ingestion pipeline's own transactions).
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
