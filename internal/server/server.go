// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aleutian-labs/sequencehive/internal/agent"
	"github.com/aleutian-labs/sequencehive/internal/config"
	"github.com/aleutian-labs/sequencehive/internal/llm"
	"github.com/aleutian-labs/sequencehive/internal/store"
	"github.com/aleutian-labs/sequencehive/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the client channel (C15) over the registry, router and
// store. It owns no state itself beyond configuration: one Conductor lives
// per websocket connection, built fresh in the handler.
type Server struct {
	cfg      config.Config
	store    *store.Store
	registry *tools.Registry
	router   *agent.Router
	llmPool  *llm.Pool
	logger   *slog.Logger
	chatsDir string
}

// New builds a Server. chatsDir is where per-chat JSON records persist.
func New(cfg config.Config, st *store.Store, registry *tools.Registry, router *agent.Router, llmPool *llm.Pool, chatsDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, store: st, registry: registry, router: router, llmPool: llmPool, chatsDir: chatsDir, logger: logger}
}

// Engine builds the gin router: the websocket edge plus the ambient
// health/metrics surface.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	dbHealthy := s.store.DB().PingContext(ctx) == nil
	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"db_healthy": dbHealthy})
}

// logFeedback appends one submit_feedback message to a JSON Lines audit
// log, the same append-only pattern the orchestrator uses for scan
// findings: feedback is out of the core's scope, so the edge owns it.
func (s *Server) logFeedback(userSlug string, msg ClientMessage) {
	path := filepath.Join(s.chatsDir, "feedback.jsonl")
	if err := os.MkdirAll(s.chatsDir, 0755); err != nil {
		s.logger.Error("server: mkdir for feedback log", "error", err)
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		s.logger.Error("server: open feedback log", "error", err)
		return
	}
	defer f.Close()
	record := map[string]any{
		"user":      userSlug,
		"chat_id":   msg.ChatID,
		"rating":    msg.Rating,
		"comment":   msg.Comment,
		"tool":      msg.Tool,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSONLine(f, record); err != nil {
		s.logger.Warn("server: write feedback record", "error", err)
	}
}

func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
