// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher drives the two-phase ingestion source (C5): an initial
// recursive scan, then a live fsnotify change stream. Both phases funnel
// through the rule engine (C2) and ingestion pipeline (C4), and schedule a
// similarity-index rebuild (C6) whenever a file is (re)indexed.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aleutian-labs/sequencehive/internal/blastindex"
	"github.com/aleutian-labs/sequencehive/internal/ingest"
	"github.com/aleutian-labs/sequencehive/internal/rules"
)

const scanBatchSize = 100

// Watcher owns the scan + watch lifecycle for one configured root.
type Watcher struct {
	root      string
	recursive bool
	engine    *rules.Engine
	pipeline  *ingest.Pipeline
	builder   *blastindex.Builder
	logger    *slog.Logger

	fsw *fsnotify.Watcher
}

// New builds a Watcher. builder may be nil to disable the automatic
// similarity-index rebuild (e.g. in tests).
func New(root string, recursive bool, engine *rules.Engine, pipeline *ingest.Pipeline, builder *blastindex.Builder, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, recursive: recursive, engine: engine, pipeline: pipeline, builder: builder, logger: logger}
}

// Run performs the initial scan, then subscribes to live changes until ctx
// is cancelled. A cancellation during scan commits the current batch
// first, rather than discarding whatever's accumulated in it.
func (w *Watcher) Run(ctx context.Context) error {
	indexedAny, err := w.Scan(ctx)
	if err != nil {
		return err
	}
	if indexedAny {
		w.scheduleRebuild(ctx)
	}
	return w.Watch(ctx)
}

// Scan walks the watched root once, ingesting every matched file in
// shared transactions of up to scanBatchSize files (§4.3/§4.4's
// batched-commit mode), committing between batches and always at the
// end. Returns whether any file was (re)indexed.
func (w *Watcher) Scan(ctx context.Context) (bool, error) {
	walkOpts := filepath.WalkDir
	if !w.recursive {
		walkOpts = walkTopLevelOnly
	}

	indexedAny := false
	batch, err := w.pipeline.BeginBatch(ctx)
	if err != nil {
		return false, err
	}

	commit := func() error {
		if batch.Len() > 0 {
			w.logger.Info("watcher: scan batch commit", "root", w.root, "batch_size", batch.Len())
		}
		return batch.Commit()
	}

	walkErr := walkOpts(w.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.logger.Warn("watcher: scan walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		match, merr := w.engine.Match(path)
		if merr != nil {
			w.logger.Warn("watcher: rule match failed", "path", path, "error", merr)
			return nil
		}
		if match.Action != rules.ActionParse {
			return nil
		}
		res := batch.Ingest(ctx, path, match, w.root)
		switch res.Outcome {
		case ingest.OutcomeIndexed:
			indexedAny = true
		case ingest.OutcomeError:
			w.logger.Warn("watcher: ingest failed", "path", path, "error", res.Err)
		}
		if batch.Len() >= scanBatchSize {
			if err := commit(); err != nil {
				return err
			}
			batch, err = w.pipeline.BeginBatch(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})

	// A walk error (including cancellation) still commits whatever the
	// current batch already holds before propagating, per Run's
	// "cancellation during scan commits the current batch first".
	if cerr := commit(); cerr != nil && walkErr == nil {
		walkErr = cerr
	}

	if walkErr != nil && walkErr != context.Canceled {
		return indexedAny, walkErr
	}
	return indexedAny, nil
}

func walkTopLevelOnly(root string, fn fs.WalkDirFunc) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := fn(filepath.Join(root, e.Name()), e, nil); err != nil {
			return err
		}
	}
	return nil
}

// Watch subscribes to a recursive fsnotify stream rooted at w.root and
// ingests create/modify/delete events as they arrive, until ctx is
// cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := addRecursive(fsw, w.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		if err := w.pipeline.Remove(ctx, ev.Name); err != nil {
			w.logger.Warn("watcher: mark deleted failed", "path", ev.Name, "error", err)
		}
	case ev.Op&fsnotify.Create != 0 || ev.Op&fsnotify.Write != 0:
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
			return
		}
		match, merr := w.engine.Match(ev.Name)
		if merr != nil || match.Action != rules.ActionParse {
			return
		}
		res := w.pipeline.Ingest(ctx, ev.Name, match, w.root)
		if res.Outcome == ingest.OutcomeIndexed {
			w.scheduleRebuild(ctx)
		} else if res.Outcome == ingest.OutcomeError {
			w.logger.Warn("watcher: live ingest failed", "path", ev.Name, "error", res.Err)
		}
	}
}

func (w *Watcher) scheduleRebuild(ctx context.Context) {
	if w.builder == nil {
		return
	}
	go func() {
		rebuildCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := w.builder.Rebuild(rebuildCtx); err != nil {
			w.logger.Warn("watcher: similarity index rebuild failed", "error", err)
		}
	}()
	_ = ctx
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
