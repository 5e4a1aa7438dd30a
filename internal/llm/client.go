// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm is the model client (C12): a thin chat-completion wrapper
// plus the lazy, idempotent per-model client pool the conductor draws from.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// callTimeout bounds every chat call, per §5's cancellation semantics.
const callTimeout = 120 * time.Second

// Message is one entry of a chat's message stack.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
	Name       string
}

// ToolCall is one function call the model asked for.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSchema is the OpenAI-style function schema for one tool.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Usage accumulates token counts across one router loop.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the result of one chat call.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
}

// Client is the chat-completion capability every model backend exposes.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSchema, toolChoice string) (ChatResponse, error)
	Health(ctx context.Context) bool
}

// OpenAIClient adapts github.com/sashabaranov/go-openai to Client.
type OpenAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAIClient builds a client for model, talking to baseURL (empty for
// the default OpenAI endpoint) using apiKey.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []ToolSchema, toolChoice string) (ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}
	switch toolChoice {
	case "none":
		req.ToolChoice = "none"
	case "":
		// model decides
	default:
		req.ToolChoice = toolChoice
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("llm: empty choices in response")
	}
	choice := resp.Choices[0]
	return ChatResponse{
		Message:      fromOpenAIMessage(choice.Message),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (c *OpenAIClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.api.ListModels(ctx)
	return err == nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		om := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	out := Message{Role: m.Role, Content: m.Content}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out
}

func toOpenAITools(tools []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// Pool lazily instantiates one Client per model name, reused across
// sessions (§5: "lazy per-model instantiation; idempotent").
type Pool struct {
	mu      sync.Mutex
	clients map[string]Client
	apiKey  string
	baseURL string
}

// NewPool builds an empty pool sharing one apiKey/baseURL across models.
func NewPool(apiKey, baseURL string) *Pool {
	return &Pool{clients: map[string]Client{}, apiKey: apiKey, baseURL: baseURL}
}

// Get returns the client for model, creating it on first use.
func (p *Pool) Get(model string) Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[model]; ok {
		return c
	}
	c := NewOpenAIClient(p.apiKey, p.baseURL, model)
	p.clients[model] = c
	return c
}
