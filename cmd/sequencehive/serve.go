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
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aleutian-labs/sequencehive/internal/agent"
	"github.com/aleutian-labs/sequencehive/internal/blastindex"
	"github.com/aleutian-labs/sequencehive/internal/config"
	"github.com/aleutian-labs/sequencehive/internal/ingest"
	"github.com/aleutian-labs/sequencehive/internal/llm"
	"github.com/aleutian-labs/sequencehive/internal/rules"
	"github.com/aleutian-labs/sequencehive/internal/server"
	"github.com/aleutian-labs/sequencehive/internal/store"
	"github.com/aleutian-labs/sequencehive/internal/tools"
	"github.com/aleutian-labs/sequencehive/internal/watcher"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) {
	if err := config.Load(); err != nil {
		slog.Error("serve: failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := config.Global

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceOut, err := os.OpenFile(filepath.Join(config.ExpandPath(cfg.DataRoot), "traces.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("serve: failed to open trace output", "error", err)
		os.Exit(1)
	}
	shutdownTracing, err := server.SetupTracing(ctx, traceOut)
	if err != nil {
		slog.Error("serve: failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
		_ = traceOut.Close()
	}()

	st, registry, rtr, pool, chatsDir, err := bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("serve: bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	watcherRoot := config.ExpandPath(cfg.Watcher.Root)
	engine := rules.New(cfg.Watcher.Rules)
	pipeline := ingest.New(st, slog.Default())
	builder := blastindex.New(st, filepath.Join(config.ExpandPath(cfg.DataRoot), "blastdb"), cfg.Blast.BinDir, slog.Default())
	w := watcher.New(watcherRoot, cfg.Watcher.Recursive, engine, pipeline, builder, slog.Default())

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("serve: watcher stopped", "error", err)
		}
	}()

	srv := server.New(cfg, st, registry, rtr, pool, chatsDir, slog.Default())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("serve: listening", "addr", addr)

	go func() {
		<-ctx.Done()
		slog.Info("serve: shutting down")
	}()
	if err := srv.Engine().Run(addr); err != nil {
		slog.Error("serve: http server stopped", "error", err)
		os.Exit(1)
	}
}

// bootstrap opens the store, runs migrations, builds the tool registry
// (internal tools plus any approved external scripts), and wires the
// agentic router and LLM pool. Shared by `serve` and `scan`.
func bootstrap(ctx context.Context, cfg config.Config) (*store.Store, *tools.Registry, *agent.Router, *llm.Pool, string, error) {
	dsn := config.ExpandPath(cfg.Database.URL)
	st, err := store.Open(dsn)
	if err != nil {
		return nil, nil, nil, nil, "", fmt.Errorf("open store: %w", err)
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, nil, nil, nil, "", fmt.Errorf("init store: %w", err)
	}

	dataRoot := config.ExpandPath(cfg.DataRoot)
	dbDir := filepath.Join(dataRoot, "blastdb")
	resolver := tools.NewResolver(st)

	registry := tools.NewRegistry(slog.Default())
	quarantine := tools.NewQuarantine(st)
	factory := tools.NewFactory(registry, quarantine, slog.Default())
	factory.RegisterInternal(
		tools.NewSearchTool(st),
		tools.NewProfileTool(resolver),
		tools.NewFeaturesTool(resolver),
		tools.NewPrimersTool(resolver),
		tools.NewGCTool(resolver),
		tools.NewTranscribeTool(resolver),
		tools.NewRevcompTool(resolver),
		tools.NewTranslateTool(resolver),
		tools.NewDigestTool(resolver),
		tools.NewExtractTool(resolver),
		tools.NewBlastTool(resolver, st, dbDir, cfg.Blast),
	)
	externalDir := filepath.Join(dataRoot, "tools")
	if err := factory.DiscoverExternal(ctx, externalDir); err != nil {
		slog.Warn("bootstrap: external tool discovery failed", "error", err)
	}

	pool := llm.NewPool(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	rtr := agent.NewRouter(registry, agent.Config{
		MaxTurns:          cfg.LLM.AgentMaxTurns,
		PipeMinLength:     cfg.LLM.PipeMinLength,
		SummaryTokenLimit: cfg.LLM.SummaryTokenLimit,
		SystemPrompt:      systemPrompt,
	})

	chatsDir := filepath.Join(dataRoot, "chats")
	return st, registry, rtr, pool, chatsDir, nil
}

const systemPrompt = `You are sequencehive, an assistant for a local biology-lab sequence library. ` +
	`You can search the library, inspect sequence metadata, extract regions, run BLAST, and perform routine molecular biology calculations. ` +
	`Use the tools available to you rather than guessing at sequence content.`
