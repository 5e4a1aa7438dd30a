// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the per-connection conductor (C14): the
// bounded message history, the single in-flight cancellable task, chat
// persistence, and auto-titling.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aleutian-labs/sequencehive/internal/agent"
	"github.com/aleutian-labs/sequencehive/internal/llm"
	"github.com/aleutian-labs/sequencehive/internal/tools"
	"github.com/google/uuid"
)

// Widget is the UI payload attached to a saved message.
type Widget struct {
	Type   string         `json:"type"`
	Tool   string         `json:"tool"`
	Params tools.Params   `json:"params"`
	Data   tools.Result   `json:"data,omitempty"`
	Chain  []agent.ChainStep `json:"chain,omitempty"`
	Stale  bool           `json:"stale,omitempty"`
}

// ChatMessage is one saved turn.
type ChatMessage struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Widget  *Widget `json:"widget,omitempty"`
}

// Chat is the on-disk record for one conversation.
type Chat struct {
	ID       string        `json:"id"`
	Title    string        `json:"title,omitempty"`
	Created  time.Time     `json:"created"`
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// Config holds the conductor's tunables, mirroring config.ChatConfig.
type Config struct {
	MaxHistoryPairs     int
	AutoSaveAfter       int
	WidgetDataThreshold int
	ChatsDir            string
}

// TitleGenerator asks the LLM for a short chat title; the conductor is
// decoupled from the router so tests can stub it out.
type TitleGenerator func(ctx context.Context, client llm.Client, firstMessages []ChatMessage) (string, error)

// Conductor owns one client connection's state.
type Conductor struct {
	mu sync.Mutex

	cfg            Config
	userSlug       string
	model          string
	history        []llm.Message
	chat           Chat
	titleGenerated bool
	userMsgCount   int

	cancel context.CancelFunc

	titleGen TitleGenerator
}

// NewConductor builds a conductor for one connection. userSlug may be empty
// for an anonymous session.
func NewConductor(cfg Config, userSlug, model string, titleGen TitleGenerator) *Conductor {
	return &Conductor{
		cfg: cfg, userSlug: userSlug, model: model,
		chat: Chat{ID: "", Created: time.Now().UTC()},
		titleGen: titleGen,
	}
}

// Model returns the conductor's current model.
func (c *Conductor) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// SetModel handles a set_model client message.
func (c *Conductor) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// History returns a copy of the bounded message history for the router.
func (c *Conductor) History() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}

// AppendTurn records a user message and the assistant's reply, truncating
// history to at most 2*MaxHistoryPairs entries (FIFO).
func (c *Conductor) AppendTurn(userText string, reply agent.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, llm.Message{Role: "user", Content: userText})
	c.history = append(c.history, llm.Message{Role: "assistant", Content: reply.Text})
	limit := 2 * c.cfg.MaxHistoryPairs
	if limit > 0 && len(c.history) > limit {
		c.history = c.history[len(c.history)-limit:]
	}

	c.userMsgCount++
	msg := ChatMessage{Role: "user", Content: userText}
	assistantMsg := ChatMessage{Role: "assistant", Content: reply.Text}
	if reply.LastTool != "" {
		assistantMsg.Widget = &Widget{
			Type: reply.LastWidget, Tool: reply.LastTool, Data: reply.LastData, Chain: reply.Chain,
		}
	}
	c.chat.Messages = append(c.chat.Messages, msg, assistantMsg)
}

// Begin installs a new cancellable context for an in-flight task, replacing
// any prior one (the conductor tracks exactly one in-flight task).
func (c *Conductor) Begin(parent context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return ctx
}

// Cancel cancels the in-flight task, if any.
func (c *Conductor) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// End clears the in-flight task handle once a turn completes.
func (c *Conductor) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
}

// MaybeSave persists the current chat once the user-message count reaches
// AutoSaveAfter, assigning a chat id on first save and generating a 2-word
// title once per chat from the first four messages.
func (c *Conductor) MaybeSave(ctx context.Context, client llm.Client) (saved bool, err error) {
	c.mu.Lock()
	shouldSave := c.userMsgCount >= c.cfg.AutoSaveAfter
	if !shouldSave {
		c.mu.Unlock()
		return false, nil
	}
	if c.chat.ID == "" {
		c.chat.ID = uuid.NewString()
	}
	needsTitle := !c.titleGenerated && c.titleGen != nil && client != nil
	firstFour := firstN(c.chat.Messages, 4)
	chatCopy := c.chat
	chatCopy.Model = c.model
	c.mu.Unlock()

	if needsTitle {
		title, terr := c.titleGen(ctx, client, firstFour)
		if terr == nil && title != "" {
			c.mu.Lock()
			c.chat.Title = title
			c.titleGenerated = true
			chatCopy.Title = title
			c.mu.Unlock()
		}
	}

	strippedChat := stripStaleWidgets(chatCopy, c.cfg.WidgetDataThreshold)
	if err := c.persist(strippedChat); err != nil {
		return false, err
	}
	c.mu.Lock()
	c.chat = strippedChat
	c.mu.Unlock()
	return true, nil
}

// LoadChat replaces the conductor's current chat with the one on disk.
func (c *Conductor) LoadChat(chatID string) (Chat, error) {
	path := c.chatPath(chatID)
	data, err := os.ReadFile(path)
	if err != nil {
		return Chat{}, fmt.Errorf("session: load chat %s: %w", chatID, err)
	}
	var chat Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		return Chat{}, fmt.Errorf("session: decode chat %s: %w", chatID, err)
	}
	c.mu.Lock()
	c.chat = chat
	c.titleGenerated = chat.Title != ""
	c.model = chat.Model
	c.history = messagesToHistory(chat.Messages, c.cfg.MaxHistoryPairs)
	c.mu.Unlock()
	return chat, nil
}

// ChatID returns the current chat's assigned id, or "" if not yet saved.
func (c *Conductor) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat.ID
}

func (c *Conductor) persist(chat Chat) error {
	if err := os.MkdirAll(c.cfg.ChatsDir, 0755); err != nil {
		return fmt.Errorf("session: mkdir %s: %w", c.cfg.ChatsDir, err)
	}
	data, err := json.MarshalIndent(chat, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal chat: %w", err)
	}
	return os.WriteFile(c.chatPath(chat.ID), data, 0644)
}

func (c *Conductor) chatPath(chatID string) string {
	name := chatID + ".json"
	if c.userSlug != "" {
		name = c.userSlug + "-" + chatID + ".json"
	}
	return filepath.Join(c.cfg.ChatsDir, name)
}

// stripStaleWidgets drops the data payload of any message whose widget
// would exceed thresholdBytes, marking it stale for later rerun.
func stripStaleWidgets(chat Chat, thresholdBytes int) Chat {
	if thresholdBytes <= 0 {
		return chat
	}
	for i := range chat.Messages {
		w := chat.Messages[i].Widget
		if w == nil || w.Data == nil {
			continue
		}
		encoded, err := json.Marshal(w.Data)
		if err == nil && len(encoded) > thresholdBytes {
			w.Data = nil
			w.Stale = true
		}
	}
	return chat
}

func firstN(messages []ChatMessage, n int) []ChatMessage {
	if n > len(messages) {
		n = len(messages)
	}
	return messages[:n]
}

func messagesToHistory(messages []ChatMessage, maxPairs int) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	limit := 2 * maxPairs
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// DefaultTitleGenerator asks the model for a two-word title from the
// conversation's opening messages.
func DefaultTitleGenerator(ctx context.Context, client llm.Client, firstMessages []ChatMessage) (string, error) {
	var sb strings.Builder
	for _, m := range firstMessages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	resp, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Reply with exactly two words that title this conversation. No punctuation."},
		{Role: "user", Content: sb.String()},
	}, nil, "none")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}
