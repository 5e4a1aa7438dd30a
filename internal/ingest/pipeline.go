// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest is the content-hash-gated ingestion pipeline (C4): one
// file in, one upserted (or no-op, or error-recorded) file row and its
// sequences/features/primers out.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aleutian-labs/sequencehive/internal/parsers"
	"github.com/aleutian-labs/sequencehive/internal/rules"
	"github.com/aleutian-labs/sequencehive/internal/store"
)

// Outcome classifies what Ingest did with a file.
type Outcome string

const (
	OutcomeIndexed   Outcome = "indexed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeError     Outcome = "error"
	OutcomeSkipped   Outcome = "skipped" // action != parse
)

// Result is what one Ingest call produces.
type Result struct {
	Outcome Outcome
	FileID  int64
	Path    string
	Err     error
}

// extByName maps the watcher rule's generic "biopython" parser name to a
// concrete parser selected by file extension, per §4.3 step 3.
var extByName = map[string]string{
	".gb":   "genbank",
	".gbk":  "genbank",
	".fa":   "fasta",
	".fasta": "fasta",
	".dna":  "snapgene",
	".rna":  "snapgene",
	".prot": "snapgene",
}

// Pipeline ingests files into the index store, hash-gated per §4.3.
type Pipeline struct {
	store   *store.Store
	parsers map[string]parsers.Parser
	logger  *slog.Logger
}

// New builds a Pipeline with the built-in parser set registered.
func New(st *store.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store: st,
		parsers: map[string]parsers.Parser{
			"genbank":  parsers.GenBank,
			"fasta":    parsers.FASTA,
			"snapgene": parsers.SnapGene,
		},
		logger: logger,
	}
}

func (p *Pipeline) resolveParser(name, path string) (parsers.Parser, string, error) {
	key := name
	if name == "" || name == "biopython" {
		ext := strings.ToLower(filepath.Ext(path))
		resolved, ok := extByName[ext]
		if !ok {
			return nil, "", fmt.Errorf("ingest: no parser for extension %q", ext)
		}
		key = resolved
	}
	parser, ok := p.parsers[key]
	if !ok {
		return nil, "", fmt.Errorf("ingest: unknown parser %q", key)
	}
	return parser, key, nil
}

// Ingest runs one file through the pipeline per §4.3 steps 1-8, in its own
// transaction. Used by the watcher's live fsnotify path, where files
// arrive one at a time; the initial scan uses the batched-commit mode
// below instead. When match.Action != parse this is a no-op returning
// OutcomeSkipped.
func (p *Pipeline) Ingest(ctx context.Context, path string, match rules.MatchResult, watcherRoot string) Result {
	if match.Action != rules.ActionParse {
		return Result{Outcome: OutcomeSkipped, Path: path}
	}
	var result Result
	if err := p.store.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = p.ingestTx(ctx, tx, path, match, watcherRoot)
		return txErr
	}); err != nil {
		return Result{Outcome: OutcomeError, Path: path, Err: fmt.Errorf("ingest: commit: %w", err)}
	}
	return result
}

// IngestInTx runs one file through the pipeline using a caller-supplied
// transaction, without committing. It's the building block behind Batch,
// for §4.3's batched-commit scan mode ("the pipeline accepts a
// commit=false hint; callers accumulate and commit every N files").
func (p *Pipeline) IngestInTx(ctx context.Context, tx *sql.Tx, path string, match rules.MatchResult, watcherRoot string) Result {
	if match.Action != rules.ActionParse {
		return Result{Outcome: OutcomeSkipped, Path: path}
	}
	result, err := p.ingestTx(ctx, tx, path, match, watcherRoot)
	if err != nil {
		return Result{Outcome: OutcomeError, Path: path, Err: err}
	}
	return result
}

// ingestTx does the actual per-file work of §4.3 steps 1-8 inside tx. Its
// error return is non-nil only for a store write failure. Ingest rolls its
// own transaction back on it; IngestInTx reports it through the Result and
// leaves the caller's transaction open, so rows this file already wrote in
// it stay there. A missing file, an unresolvable parser, or a parse failure
// are reported through the Result alone so one bad file never aborts a
// shared batch.
func (p *Pipeline) ingestTx(ctx context.Context, tx *sql.Tx, path string, match rules.MatchResult, watcherRoot string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Outcome: OutcomeError, Path: path, Err: fmt.Errorf("ingest: stat: %w", err)}, nil
	}

	hash, err := hashFile(path)
	if err != nil {
		return Result{Outcome: OutcomeError, Path: path, Err: fmt.Errorf("ingest: hash: %w", err)}, nil
	}

	existing, err := p.store.GetFileByPathTx(ctx, tx, path)
	if err != nil && err != store.ErrNotFound {
		return Result{}, fmt.Errorf("ingest: check existing: %w", err)
	}
	hadExisting := err == nil
	if hadExisting && existing.FileHash == hash {
		return Result{Outcome: OutcomeUnchanged, FileID: existing.ID, Path: path}, nil
	}

	parser, parserName, err := p.resolveParser(match.Parser, path)
	if err != nil {
		return Result{Outcome: OutcomeError, Path: path, Err: err}, nil
	}

	parsed, perr := parser(path, match.Extract)
	if perr != nil {
		p.logger.Warn("ingest: parse failed, recording error on file row", "path", path, "parser", parserName, "error", perr)
		if err := p.store.MarkFileError(ctx, tx, path, hash, parserName, info.Size(), info.ModTime(), perr.Error()); err != nil {
			return Result{}, fmt.Errorf("ingest: record parse error: %w", err)
		}
		return Result{Outcome: OutcomeError, Path: path, Err: perr}, nil
	}

	fileID, err := p.store.UpsertFileActive(ctx, tx, path, hash, parserName, info.Size(), info.ModTime())
	if err != nil {
		return Result{}, fmt.Errorf("ingest: upsert file: %w", err)
	}

	meta := parsed.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	meta["tags"] = deriveTags(path, watcherRoot)
	if _, ok := meta["molecule_type"]; !ok {
		meta["molecule_type"] = parsed.MoleculeType()
	}

	ns := store.NewSequence{
		Name:        parsed.Name,
		SizeBP:      parsed.SizeBP,
		Topology:    parsed.Topology,
		Sequence:    parsed.Sequence,
		Description: parsed.Description,
		Meta:        meta,
	}
	for _, f := range parsed.Features {
		ns.Features = append(ns.Features, store.Feature{
			Name: f.Name, Type: f.Type, Start: f.Start, End: f.End, Strand: f.Strand, Qualifiers: f.Qualifiers,
		})
	}
	for _, pr := range parsed.Primers {
		ns.Primers = append(ns.Primers, store.Primer{
			Name: pr.Name, Sequence: pr.Sequence, Tm: pr.Tm, Start: pr.Start, End: pr.End, Strand: pr.Strand,
		})
	}
	if err := p.store.ReplaceSequences(ctx, tx, fileID, []store.NewSequence{ns}); err != nil {
		return Result{}, fmt.Errorf("ingest: replace sequences: %w", err)
	}
	return Result{Outcome: OutcomeIndexed, FileID: fileID, Path: path}, nil
}

// Batch accumulates files under one shared transaction, for the initial
// scan's batched-commit mode (§4.3/§4.4: commit every N files, default
// 100, and always at the end). A crash mid-scan then loses at most the
// still-open batch instead of needing the whole scan to be all-or-nothing.
type Batch struct {
	pipeline *Pipeline
	tx       *sql.Tx
	n        int
}

// BeginBatch opens a new shared transaction for batched-commit ingestion.
// The transaction is not tied to ctx's cancellation, so a cancelled scan
// can still commit what the batch already holds.
func (p *Pipeline) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := p.store.DB().BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: begin batch: %w", err)
	}
	return &Batch{pipeline: p, tx: tx}, nil
}

// Ingest runs one file within the batch's shared transaction.
func (b *Batch) Ingest(ctx context.Context, path string, match rules.MatchResult, watcherRoot string) Result {
	res := b.pipeline.IngestInTx(ctx, b.tx, path, match, watcherRoot)
	b.n++
	return res
}

// Len reports how many files the batch has ingested since it was opened.
func (b *Batch) Len() int { return b.n }

// Commit commits the batch's transaction. The Batch must not be reused
// afterward.
func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("ingest: commit batch: %w", err)
	}
	return nil
}

// Rollback discards the batch's transaction without committing.
func (b *Batch) Rollback() error {
	return b.tx.Rollback()
}

// deriveTags returns the ordered directory-segment tags between
// watcherRoot and path (meta.tags of §3).
func deriveTags(path, watcherRoot string) []string {
	if watcherRoot == "" {
		return nil
	}
	rel, err := filepath.Rel(watcherRoot, filepath.Dir(path))
	if err != nil || rel == "." {
		return nil
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != ".." {
			out = append(out, p)
		}
	}
	return out
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Remove marks a file deleted (used by the watcher's delete event path and
// an admin "remove_file" edge), per §4.3/P3.
func (p *Pipeline) Remove(ctx context.Context, path string) error {
	return p.store.MarkFileDeleted(ctx, path)
}
