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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NewSequence is the insert-shape for ReplaceSequences: one parsed record
// plus its features and primers.
type NewSequence struct {
	Name        string
	SizeBP      int
	Topology    string
	Sequence    string
	Description string
	Meta        map[string]any
	Features    []Feature
	Primers     []Primer
}

// ReplaceSequences deletes any existing sequences (cascading to features and
// primers) belonging to fileID and inserts the given set, per §4.3 steps
// 5-7. Called inside the caller's ingestion transaction.
func (s *Store) ReplaceSequences(ctx context.Context, tx *sql.Tx, fileID int64, seqs []NewSequence) error {
	if err := s.purgeFTSForFileTx(ctx, tx, fileID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sequences WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("store: delete old sequences: %w", err)
	}
	now := time.Now().UTC().Unix()
	for _, sq := range seqs {
		metaJSON, err := json.Marshal(sq.Meta)
		if err != nil {
			return fmt.Errorf("store: marshal sequence meta: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sequences (file_id, name, size_bp, topology, sequence, description, meta, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, sq.Name, sq.SizeBP, sq.Topology, sq.Sequence, sq.Description, string(metaJSON), now, now)
		if err != nil {
			return fmt.Errorf("store: insert sequence: %w", err)
		}
		seqID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: sequence id: %w", err)
		}

		tags := tagsOf(sq.Meta)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sequences_fts(rowid, name, description, tags) VALUES (?, ?, ?, ?)`,
			seqID, sq.Name, sq.Description, strings.Join(tags, " ")); err != nil {
			return fmt.Errorf("store: index sequence fts: %w", err)
		}

		for _, f := range sq.Features {
			qualJSON, err := json.Marshal(f.Qualifiers)
			if err != nil {
				return fmt.Errorf("store: marshal qualifiers: %w", err)
			}
			fres, err := tx.ExecContext(ctx, `
				INSERT INTO features (seq_id, name, type, start, end, strand, qualifiers)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				seqID, f.Name, f.Type, f.Start, f.End, f.Strand, string(qualJSON))
			if err != nil {
				return fmt.Errorf("store: insert feature: %w", err)
			}
			featID, err := fres.LastInsertId()
			if err != nil {
				return fmt.Errorf("store: feature id: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO features_fts(rowid, name) VALUES (?, ?)`, featID, f.Name); err != nil {
				return fmt.Errorf("store: index feature fts: %w", err)
			}
		}
		for _, p := range sq.Primers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO primers (seq_id, name, sequence, tm, start, end, strand)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				seqID, p.Name, p.Sequence, p.Tm, p.Start, p.End, p.Strand); err != nil {
				return fmt.Errorf("store: insert primer: %w", err)
			}
		}
	}
	return nil
}

func tagsOf(meta map[string]any) []string {
	raw, ok := meta["tags"]
	if !ok {
		return nil
	}
	list, ok := raw.([]string)
	if ok {
		return list
	}
	anyList, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anyList))
	for _, v := range anyList {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// purgeFTSForFileTx removes FTS rows for every sequence/feature currently
// belonging to fileID, ahead of a delete or replace.
func (s *Store) purgeFTSForFileTx(ctx context.Context, tx *sql.Tx, fileID int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM sequences WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("store: list sequence ids: %w", err)
	}
	var seqIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan sequence id: %w", err)
		}
		seqIDs = append(seqIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range seqIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sequences_fts WHERE rowid = ?`, id); err != nil {
			return fmt.Errorf("store: purge sequence fts: %w", err)
		}
		frows, err := tx.QueryContext(ctx, `SELECT id FROM features WHERE seq_id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: list feature ids: %w", err)
		}
		var featIDs []int64
		for frows.Next() {
			var fid int64
			if err := frows.Scan(&fid); err != nil {
				frows.Close()
				return err
			}
			featIDs = append(featIDs, fid)
		}
		frows.Close()
		for _, fid := range featIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM features_fts WHERE rowid = ?`, fid); err != nil {
				return fmt.Errorf("store: purge feature fts: %w", err)
			}
		}
	}
	return nil
}

// GetSequence resolves by SID, restricted to active files if activeOnly.
func (s *Store) GetSequence(ctx context.Context, id int64, activeOnly bool) (Sequence, error) {
	q := sequenceSelectColumns + ` WHERE sq.id = ?`
	if activeOnly {
		q += ` AND f.status = 'active'`
	}
	return scanSequenceRow(s.db.QueryRowContext(ctx, q, id))
}

// GetSequenceByName resolves by case-insensitive exact name, restricted to
// active files if activeOnly. Ambiguous matches return the most recently
// updated row.
func (s *Store) GetSequenceByName(ctx context.Context, name string, activeOnly bool) (Sequence, error) {
	q := sequenceSelectColumns + ` WHERE sq.name = ? COLLATE NOCASE`
	if activeOnly {
		q += ` AND f.status = 'active'`
	}
	q += ` ORDER BY sq.updated_at DESC LIMIT 1`
	return scanSequenceRow(s.db.QueryRowContext(ctx, q, name))
}

// CountSequencesByName reports how many sequences share name, so a caller
// can detect an ambiguous name reference before picking one.
func (s *Store) CountSequencesByName(ctx context.Context, name string, activeOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM sequences sq JOIN files f ON f.id = sq.file_id WHERE sq.name = ? COLLATE NOCASE`
	if activeOnly {
		q += ` AND f.status = 'active'`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count sequences by name: %w", err)
	}
	return n, nil
}

const sequenceSelectColumns = `
	SELECT sq.id, sq.file_id, sq.name, sq.size_bp, sq.topology, sq.sequence, sq.description, sq.meta,
	       sq.created_at, sq.updated_at
	FROM sequences sq JOIN files f ON f.id = sq.file_id`

func scanSequenceRow(row *sql.Row) (Sequence, error) {
	var seq Sequence
	var metaJSON string
	var created, updated int64
	err := row.Scan(&seq.ID, &seq.FileID, &seq.Name, &seq.SizeBP, &seq.Topology, &seq.Sequence,
		&seq.Description, &metaJSON, &created, &updated)
	if err == sql.ErrNoRows {
		return Sequence{}, ErrNotFound
	}
	if err != nil {
		return Sequence{}, fmt.Errorf("store: scan sequence: %w", err)
	}
	seq.Meta = map[string]any{}
	_ = json.Unmarshal([]byte(metaJSON), &seq.Meta)
	seq.CreatedAt = time.Unix(created, 0).UTC()
	seq.UpdatedAt = time.Unix(updated, 0).UTC()
	return seq, nil
}

// LoadFeatures eager-loads a sequence's features ordered by start.
func (s *Store) LoadFeatures(ctx context.Context, seqID int64) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq_id, name, type, start, end, strand, qualifiers FROM features WHERE seq_id = ? ORDER BY start`, seqID)
	if err != nil {
		return nil, fmt.Errorf("store: load features: %w", err)
	}
	defer rows.Close()
	var out []Feature
	for rows.Next() {
		var f Feature
		var qualJSON sql.NullString
		if err := rows.Scan(&f.ID, &f.SeqID, &f.Name, &f.Type, &f.Start, &f.End, &f.Strand, &qualJSON); err != nil {
			return nil, fmt.Errorf("store: scan feature: %w", err)
		}
		if qualJSON.Valid && qualJSON.String != "" {
			f.Qualifiers = map[string]string{}
			_ = json.Unmarshal([]byte(qualJSON.String), &f.Qualifiers)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountActiveSequences reports how many sequences belong to an active file,
// for the client channel's status_update payload.
func (s *Store) CountActiveSequences(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sequences sq
		JOIN files f ON f.id = sq.file_id
		WHERE f.status = ?`, FileStatusActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count active sequences: %w", err)
	}
	return n, nil
}

// LoadPrimers eager-loads a sequence's primers ordered by start.
func (s *Store) LoadPrimers(ctx context.Context, seqID int64) ([]Primer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq_id, name, sequence, tm, start, end, strand FROM primers WHERE seq_id = ? ORDER BY COALESCE(start, 0)`, seqID)
	if err != nil {
		return nil, fmt.Errorf("store: load primers: %w", err)
	}
	defer rows.Close()
	var out []Primer
	for rows.Next() {
		var p Primer
		if err := rows.Scan(&p.ID, &p.SeqID, &p.Name, &p.Sequence, &p.Tm, &p.Start, &p.End, &p.Strand); err != nil {
			return nil, fmt.Errorf("store: scan primer: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
