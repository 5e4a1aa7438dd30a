// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package blastindex builds the nucleotide/protein similarity-search
// databases (C6) consumed by the blast tool (C11), by shelling out to an
// external makeblastdb-style binary behind a filesystem lockfile.
package blastindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aleutian-labs/sequencehive/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	lockFilename    = ".build.lock"
	staleLockAfter  = 10 * time.Minute
	nucleotideFasta = "nucleotide.fasta"
	proteinFasta    = "protein.fasta"
	nucleotidePrefix = "nucleotide"
	proteinPrefix   = "protein"
)

// Builder rebuilds the similarity index atomically under a lockfile.
type Builder struct {
	store   *store.Store
	outDir  string
	binPath string // path to makeblastdb, or "" to resolve from PATH
	logger  *slog.Logger
	flight  singleflight.Group
}

// New builds a Builder writing databases under outDir. binDir, if set, is
// searched ahead of PATH for the makeblastdb binary.
func New(st *store.Store, outDir, binDir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	bin := "makeblastdb"
	if binDir != "" {
		bin = filepath.Join(binDir, "makeblastdb")
	}
	return &Builder{store: st, outDir: outDir, binPath: bin, logger: logger}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// sanitizeName whitespace-collapses a sequence name so it round-trips
// through the external FASTA-consuming tool, per §4.5 step 3.
func sanitizeName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
}

// Rebuild runs the full protocol of §4.5: create the output dir, take the
// lock (reaping a stale one), export per-molecule FASTAs, invoke the
// builder once per non-empty FASTA, and release the lock on every exit
// path. Two processes racing produce exactly one rebuild; concurrent
// in-process callers (several watcher batches landing back to back) are
// deduplicated by flight so every caller observes the same outcome
// instead of the later ones silently skipping on a held lock.
func (b *Builder) Rebuild(ctx context.Context) error {
	_, err, _ := b.flight.Do("rebuild", func() (any, error) {
		return nil, b.rebuildOnce(ctx)
	})
	return err
}

func (b *Builder) rebuildOnce(ctx context.Context) error {
	if err := os.MkdirAll(b.outDir, 0755); err != nil {
		return fmt.Errorf("blastindex: mkdir %s: %w", b.outDir, err)
	}

	acquired, err := b.acquireLock()
	if err != nil {
		return err
	}
	if !acquired {
		b.logger.Info("blastindex: build already in progress, skipping", "dir", b.outDir)
		return nil
	}
	defer b.releaseLock()

	nucPath := filepath.Join(b.outDir, nucleotideFasta)
	protPath := filepath.Join(b.outDir, proteinFasta)
	nucCount, protCount, err := b.exportFASTAs(ctx, nucPath, protPath)
	if err != nil {
		return err
	}

	if nucCount > 0 {
		if err := b.invokeMakeblastdb(ctx, nucPath, filepath.Join(b.outDir, nucleotidePrefix), "nucl"); err != nil {
			return err
		}
	}
	if protCount > 0 {
		if err := b.invokeMakeblastdb(ctx, protPath, filepath.Join(b.outDir, proteinPrefix), "prot"); err != nil {
			return err
		}
	}
	b.logger.Info("blastindex: rebuild complete", "nucleotide_seqs", nucCount, "protein_seqs", protCount)
	return nil
}

func (b *Builder) lockPath() string { return filepath.Join(b.outDir, lockFilename) }

// acquireLock attempts exclusive creation of the lockfile; a lock older
// than staleLockAfter is treated as abandoned and reaped.
func (b *Builder) acquireLock() (bool, error) {
	lp := b.lockPath()
	f, err := os.OpenFile(lp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		f.Close()
		return true, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return false, fmt.Errorf("blastindex: create lock: %w", err)
	}

	info, statErr := os.Stat(lp)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return b.acquireLock() // lock vanished between checks; retry once
		}
		return false, fmt.Errorf("blastindex: stat lock: %w", statErr)
	}
	if time.Since(info.ModTime()) < staleLockAfter {
		return false, nil
	}
	b.logger.Warn("blastindex: reaping stale lock", "path", lp, "age", time.Since(info.ModTime()))
	if err := os.Remove(lp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("blastindex: remove stale lock: %w", err)
	}
	return b.acquireLock()
}

func (b *Builder) releaseLock() {
	if err := os.Remove(b.lockPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Warn("blastindex: failed to release lock", "error", err)
	}
}

// exportFASTAs enumerates active sequences and splits them by molecule
// type into nucleotide/protein FASTA files, returning the sequence count
// written to each.
func (b *Builder) exportFASTAs(ctx context.Context, nucPath, protPath string) (int, int, error) {
	rows, err := b.store.Search(ctx, "", store.SearchFilters{})
	if err != nil {
		return 0, 0, fmt.Errorf("blastindex: enumerate sequences: %w", err)
	}

	nucFile, err := os.Create(nucPath)
	if err != nil {
		return 0, 0, fmt.Errorf("blastindex: create %s: %w", nucPath, err)
	}
	defer nucFile.Close()
	protFile, err := os.Create(protPath)
	if err != nil {
		return 0, 0, fmt.Errorf("blastindex: create %s: %w", protPath, err)
	}
	defer protFile.Close()

	var nucCount, protCount int
	for _, r := range rows {
		name := sanitizeName(r.Sequence.Name)
		switch r.Sequence.MoleculeType() {
		case "protein":
			fmt.Fprintf(protFile, ">%s\n%s\n", name, r.Sequence.Sequence)
			protCount++
		case "RNA":
			fmt.Fprintf(nucFile, ">%s\n%s\n", name, strings.ReplaceAll(r.Sequence.Sequence, "U", "T"))
			nucCount++
		default: // DNA, or unset defaults to nucleotide verbatim
			fmt.Fprintf(nucFile, ">%s\n%s\n", name, r.Sequence.Sequence)
			nucCount++
		}
	}
	return nucCount, protCount, nil
}

func (b *Builder) invokeMakeblastdb(ctx context.Context, fastaPath, outPrefix, dbtype string) error {
	cmd := exec.CommandContext(ctx, b.binPath,
		"-in", fastaPath,
		"-dbtype", dbtype,
		"-out", outPrefix,
		"-blastdb_version", "5",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("blastindex: makeblastdb %s: %w: %s", dbtype, err, string(output))
	}
	return nil
}
