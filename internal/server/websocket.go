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
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aleutian-labs/sequencehive/internal/agent"
	"github.com/aleutian-labs/sequencehive/internal/session"
	"github.com/aleutian-labs/sequencehive/internal/store"
	"github.com/aleutian-labs/sequencehive/internal/tools"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  10 * 1024 * 1024,
	WriteBufferSize: 10 * 1024 * 1024,
}

// safeConn serializes writes to one websocket connection; the router's
// progress callback and the main read loop both write to it.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *safeConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (s *Server) handleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("server: websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	connectionsTotal.Inc()
	activeConnections.Inc()
	defer activeConnections.Dec()

	conn := &safeConn{ws: ws}

	userSlug := ""
	var user store.User
	if token := c.Query("token"); token != "" {
		if u, err := s.store.GetUserByToken(c.Request.Context(), token); err == nil {
			user = u
			userSlug = u.Slug
		}
	}

	model := s.cfg.LLM.Models[0]
	cond := session.NewConductor(session.Config{
		MaxHistoryPairs:     s.cfg.Chat.MaxHistoryPairs,
		AutoSaveAfter:       s.cfg.Chat.AutoSaveAfter,
		WidgetDataThreshold: s.cfg.Chat.WidgetDataThreshold,
		ChatsDir:            s.chatsDir,
	}, userSlug, model, session.DefaultTitleGenerator)

	s.logger.Info("server: websocket client connected", "user", userSlug)

	if err := conn.send(s.initMessage(c.Request.Context(), model, userSlug)); err != nil {
		return
	}

	for {
		var msg ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			s.logger.Info("server: websocket client disconnected", "error", err.Error())
			break
		}
		if err := msg.Validate(); err != nil {
			_ = conn.send(ServerMessage{Kind: KindMessage, Error: "invalid message: " + err.Error()})
			continue
		}

		switch msg.Kind {
		case KindContent:
			s.handleContent(c.Request.Context(), conn, cond, user, msg)
		case KindCancel:
			cond.Cancel()
		case KindSetModel:
			cond.SetModel(msg.Model)
			_ = conn.send(ServerMessage{Kind: KindModelChanged, Model: msg.Model})
		case KindSetPreference:
			s.handleSetPreference(c.Request.Context(), conn, user, msg)
		case KindSubmitFeedback:
			s.logFeedback(userSlug, msg)
			_ = conn.send(ServerMessage{Kind: KindFeedbackSaved})
		case KindLoadChat:
			s.handleLoadChat(conn, cond, msg)
		case KindRerunTool:
			s.handleRerunTool(c.Request.Context(), conn, msg)
		default:
			_ = conn.send(ServerMessage{Kind: KindMessage, Error: "unrecognized message kind: " + msg.Kind})
		}
	}
}

func (s *Server) initMessage(ctx context.Context, model, userSlug string) ServerMessage {
	metadata := s.registry.Metadata()
	tm := make([]any, len(metadata))
	for i, m := range metadata {
		tm[i] = m
	}
	return ServerMessage{
		Kind:          KindInit,
		Config:        map[string]any{"pipe_min_length": s.cfg.LLM.PipeMinLength, "agent_max_turns": s.cfg.LLM.AgentMaxTurns},
		ToolsMetadata: tm,
		Models:        s.cfg.LLM.Models,
		CurrentModel:  model,
		User:          userSlug,
	}
}

// handleContent dispatches a content message through one of the router's
// three input modes: "//name args" is direct, "/name args" is guided, and
// anything else is natural language.
func (s *Server) handleContent(parent context.Context, conn *safeConn, cond *session.Conductor, user store.User, msg ClientMessage) {
	ctx := cond.Begin(parent)
	defer cond.End()

	ctx, span := tracer.Start(ctx, "handleContent")
	defer span.End()
	start := time.Now()
	defer func() { turnLatency.Observe(time.Since(start).Seconds()) }()

	client := s.llmPool.Get(cond.Model())
	onProgress := func(ev agent.ProgressEvent) {
		_ = conn.send(ServerMessage{Kind: KindProgress, Status: ev.Kind, Tool: ev.Tool})
	}

	mode, name, args, text := parseContent(msg.Content)
	var resp agent.Response
	switch mode {
	case "direct":
		resp = s.router.HandleDirect(ctx, name, args, tools.ModeDirect)
	case "guided":
		resp = s.router.HandleGuided(ctx, client, name, args, cond.History(), onProgress)
	default:
		resp = s.router.RunLoop(ctx, client, cond.History(), text, onProgress)
	}

	// A cancelled turn (cond.Cancel(), e.g. the client asked to stop a
	// long-running tool call) short-circuits to a bare "Cancelled."
	// message with no widget, chain, or chat-save side effect — whatever
	// the router returned on its way out of a cancelled ctx is discarded.
	if ctx.Err() == context.Canceled {
		_ = conn.send(ServerMessage{Kind: KindMessage, Content: "Cancelled."})
		return
	}

	if resp.LastTool != "" {
		toolExecutions.WithLabelValues(resp.LastTool, "ok").Inc()
	}

	out := ServerMessage{Kind: KindMessage, Content: resp.Text, Model: cond.Model()}
	if resp.LastTool != "" {
		out.Widget = &WidgetPayload{Type: resp.LastWidget, Tool: resp.LastTool, Params: chainParams(resp.Chain), Data: resp.LastData, Chain: resp.Chain}
	}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Tokens = &TokensPayload{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	}
	_ = conn.send(out)

	cond.AppendTurn(msg.Content, resp)

	if resp.LastTool != "" {
		s.sendStatusUpdate(parent, conn)
	}

	if saved, err := cond.MaybeSave(parent, client); err == nil && saved {
		_ = conn.send(ServerMessage{Kind: KindChatSaved, ChatID: cond.ChatID()})
	}
}

func chainParams(chain []agent.ChainStep) map[string]any {
	if len(chain) == 0 {
		return nil
	}
	last := chain[len(chain)-1]
	out := map[string]any{}
	for k, v := range last.Params {
		out[k] = v
	}
	return out
}

// sendStatusUpdate replays counts and backend health after a tool result,
// per the conductor's status-update responsibility carried out here where
// the store and llm.Pool health checks are actually reachable.
func (s *Server) sendStatusUpdate(ctx context.Context, conn *safeConn) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	count, _ := s.store.CountActiveSequences(ctx)
	dbHealthy := s.store.DB().PingContext(ctx) == nil
	llmHealthy := false
	if len(s.cfg.LLM.Models) > 0 {
		llmHealthy = s.llmPool.Get(s.cfg.LLM.Models[0]).Health(ctx)
	}
	_ = conn.send(ServerMessage{
		Kind: KindStatusUpdate, DBHealthy: dbHealthy, LLMHealthy: llmHealthy, SequenceCount: count,
	})
}

func (s *Server) handleSetPreference(ctx context.Context, conn *safeConn, user store.User, msg ClientMessage) {
	if user.ID == 0 {
		_ = conn.send(ServerMessage{Kind: KindPreferencesUpdated, Error: "no authenticated user for this connection"})
		return
	}
	if err := s.store.UpdatePreferences(ctx, user.ID, map[string]any{msg.PrefKey: msg.PrefValue}); err != nil {
		_ = conn.send(ServerMessage{Kind: KindPreferencesUpdated, Error: err.Error()})
		return
	}
	_ = conn.send(ServerMessage{Kind: KindPreferencesUpdated})
}

func (s *Server) handleLoadChat(conn *safeConn, cond *session.Conductor, msg ClientMessage) {
	chat, err := cond.LoadChat(msg.ChatID)
	if err != nil {
		_ = conn.send(ServerMessage{Kind: KindChatLoaded, Error: err.Error()})
		return
	}
	_ = conn.send(ServerMessage{Kind: KindChatLoaded, ChatID: chat.ID, Title: chat.Title, Model: chat.Model})
}

// handleRerunTool re-executes a stale widget's tool call with its original
// params and returns fresh widget_data, per §4.12's rerun mode.
func (s *Server) handleRerunTool(ctx context.Context, conn *safeConn, msg ClientMessage) {
	t, ok := s.registry.Get(msg.Tool)
	if !ok {
		_ = conn.send(ServerMessage{Kind: KindWidgetData, Error: "tool not found: " + msg.Tool})
		return
	}
	result := s.registry.Execute(ctx, msg.Tool, tools.Params(msg.Params), tools.ModeRerun)
	_ = conn.send(ServerMessage{
		Kind: KindWidgetData,
		Widget: &WidgetPayload{Type: t.Widget(), Tool: msg.Tool, Params: msg.Params, Data: result},
	})
}

// parseContent implements the "//name args" (direct), "/name args"
// (guided), plain-text (natural) input grammar.
func parseContent(content string) (mode, name, args, text string) {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "//"):
		rest := strings.TrimSpace(trimmed[2:])
		name, args = splitFirstWord(rest)
		return "direct", name, args, content
	case strings.HasPrefix(trimmed, "/"):
		rest := strings.TrimSpace(trimmed[1:])
		name, args = splitFirstWord(rest)
		return "guided", name, args, content
	default:
		return "natural", "", "", content
	}
}

func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t\n")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}
