// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server implements the client channel (C15): a gin + gorilla
// websocket edge over the agentic router and per-session conductor, plus
// chat persistence and the auxiliary HTTP surface.
package server

import (
	"github.com/aleutian-labs/sequencehive/internal/agent"
	"github.com/go-playground/validator/v10"
)

// maxContentBytes bounds one client message's content, so a single
// connection can't force an unbounded in-memory turn.
const maxContentBytes = 64 * 1024

var clientValidate *validator.Validate

func init() {
	clientValidate = validator.New()
	_ = clientValidate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxContentBytes
	})
}

// Client->server message kinds.
const (
	KindContent         = "content"
	KindCancel          = "cancel"
	KindSetModel        = "set_model"
	KindSetPreference   = "set_preference"
	KindSubmitFeedback  = "submit_feedback"
	KindLoadChat        = "load_chat"
	KindRerunTool       = "rerun_tool"
)

// Server->client message kinds.
const (
	KindInit               = "init"
	KindMessage            = "message"
	KindProgress           = "progress"
	KindStatusUpdate       = "status_update"
	KindWidgetData         = "widget_data"
	KindChatLoaded         = "chat_loaded"
	KindChatSaved          = "chat_saved"
	KindModelChanged       = "model_changed"
	KindPreferencesUpdated = "preferences_updated"
	KindFeedbackSaved      = "feedback_saved"
)

// ClientMessage is the envelope for every client->server message.
type ClientMessage struct {
	Kind      string         `json:"kind" validate:"required,oneof=content cancel set_model set_preference submit_feedback load_chat rerun_tool"`
	Content   string         `json:"content,omitempty" validate:"maxbytes"`
	Model     string         `json:"model,omitempty"`
	PrefKey   string         `json:"pref_key,omitempty"`
	PrefValue any            `json:"pref_value,omitempty"`
	Rating    int            `json:"rating,omitempty" validate:"gte=0,lte=5"`
	Comment   string         `json:"comment,omitempty" validate:"maxbytes"`
	ChatID    string         `json:"chat_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// Validate runs the struct-tag validation above; the websocket read loop
// rejects a malformed message before it reaches any handler.
func (m ClientMessage) Validate() error {
	return clientValidate.Struct(m)
}

// ServerMessage is the envelope for every server->client message. Only the
// fields relevant to Kind are populated; the rest are omitted.
type ServerMessage struct {
	Kind          string             `json:"kind"`
	Config        map[string]any     `json:"config,omitempty"`
	ToolsMetadata []any              `json:"tools_metadata,omitempty"`
	Models        []string           `json:"models,omitempty"`
	CurrentModel  string             `json:"current_model,omitempty"`
	User          string             `json:"user,omitempty"`
	Content       string             `json:"content,omitempty"`
	Widget        *WidgetPayload     `json:"widget,omitempty"`
	Tokens        *TokensPayload     `json:"tokens,omitempty"`
	Model         string             `json:"model,omitempty"`
	Status        string             `json:"status,omitempty"` // "thinking" | "tool"
	Tool          string             `json:"tool,omitempty"`
	DBHealthy     bool               `json:"db_healthy,omitempty"`
	LLMHealthy    bool               `json:"llm_healthy,omitempty"`
	SequenceCount int                `json:"sequence_count,omitempty"`
	ChatID        string             `json:"chat_id,omitempty"`
	Title         string             `json:"title,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// WidgetPayload is §6's `{type, tool, params, data, chain?, stale?}`.
type WidgetPayload struct {
	Type   string            `json:"type"`
	Tool   string            `json:"tool"`
	Params map[string]any    `json:"params"`
	Data   map[string]any    `json:"data,omitempty"`
	Chain  []agent.ChainStep `json:"chain,omitempty"`
	Stale  bool              `json:"stale,omitempty"`
}

// TokensPayload reports one turn's usage.
type TokensPayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
