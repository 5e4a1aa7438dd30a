// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aleutian-labs/sequencehive/internal/blastindex"
	"github.com/aleutian-labs/sequencehive/internal/config"
	"github.com/aleutian-labs/sequencehive/internal/ingest"
	"github.com/aleutian-labs/sequencehive/internal/rules"
	"github.com/aleutian-labs/sequencehive/internal/watcher"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	scanStyleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	scanStyleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	scanStyleSkip = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
)

func runScan(cmd *cobra.Command, args []string) {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, scanStyleErr.Render(err.Error()))
		os.Exit(1)
	}
	cfg := config.Global
	ctx := context.Background()

	st, _, _, _, _, err := bootstrap(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, scanStyleErr.Render(err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	watcherRoot := config.ExpandPath(cfg.Watcher.Root)
	engine := rules.New(cfg.Watcher.Rules)
	pipeline := ingest.New(st, slog.Default())
	builder := blastindex.New(st, filepath.Join(config.ExpandPath(cfg.DataRoot), "blastdb"), cfg.Blast.BinDir, slog.Default())
	w := watcher.New(watcherRoot, cfg.Watcher.Recursive, engine, pipeline, builder, slog.Default())

	fmt.Println(scanStyleOK.Bold(true).Render("scanning " + watcherRoot))
	indexedAny, err := w.Scan(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, scanStyleErr.Render("scan failed: "+err.Error()))
		os.Exit(1)
	}
	if !indexedAny {
		fmt.Println(scanStyleSkip.Render("no new or changed files"))
		return
	}
	fmt.Println(scanStyleOK.Render("rebuilding similarity index"))
	if err := builder.Rebuild(ctx); err != nil {
		fmt.Fprintln(os.Stderr, scanStyleErr.Render("index rebuild failed: "+err.Error()))
		os.Exit(1)
	}
	fmt.Println(scanStyleOK.Bold(true).Render("done"))
}
