// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the agentic router (C13): the three input
// modes, the bounded multi-turn tool-calling loop, and the per-turn tool
// narrowing table that keeps terminal tools terminal.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aleutian-labs/sequencehive/internal/llm"
	"github.com/aleutian-labs/sequencehive/internal/tools"
)

// ProgressEvent is a fire-and-forget status the router emits mid-loop; a
// dropped event never affects correctness.
type ProgressEvent struct {
	Kind string // "thinking" | "tool"
	Tool string
}

// ChainStep records one executed tool call for the response's audit trail.
type ChainStep struct {
	Tool    string
	Params  tools.Params
	Summary string
	Widget  string
}

// Response is what one router turn returns to the conductor.
type Response struct {
	Kind      string // "form" | "message" | "tool_result" | "refusal"
	Text      string
	Form      map[string]any
	LastTool  string
	LastData  tools.Result
	LastWidget string
	Chain     []ChainStep
	Usage     llm.Usage
}

// Config bounds the loop per §9's Design Notes and §4.11.
type Config struct {
	MaxTurns          int
	PipeMinLength     int
	SummaryTokenLimit int
	SystemPrompt      string
}

// narrowingTable is §4.11.1: after a given tool, only these tools may be
// called next. A tool absent from the map (or mapped to an empty slice)
// forces a text turn.
var narrowingTable = map[string][]string{
	"search":   {"extract", "profile", "features", "primers", "blast"},
	"profile":  {"extract", "features", "primers", "blast"},
	"features": {"extract", "blast"},
	"primers":  {"extract", "blast"},
	"extract":  {"blast", "translate", "transcribe", "revcomp", "digest", "gc"},
}

// Router drives the bounded tool-calling loop over a registry and an LLM
// client.
type Router struct {
	registry *tools.Registry
	cfg      Config
}

func NewRouter(registry *tools.Registry, cfg Config) *Router {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 8
	}
	if cfg.PipeMinLength <= 0 {
		cfg.PipeMinLength = 200
	}
	if cfg.SummaryTokenLimit <= 0 {
		cfg.SummaryTokenLimit = 1000
	}
	return &Router{registry: registry, cfg: cfg}
}

// HandleDirect implements the `//name args` input mode: resolve the tool by
// name, no LLM involvement. Returns a form response if args are empty and
// the schema has required fields.
func (r *Router) HandleDirect(ctx context.Context, name, args string, mode tools.Mode) Response {
	t, ok := r.registry.Get(name)
	if !ok {
		return Response{Kind: "message", Text: fmt.Sprintf("Tool '%s' not found.", name)}
	}
	if strings.TrimSpace(args) == "" && hasRequiredFields(t.InputSchema()) {
		return Response{Kind: "form", Form: map[string]any{"tool": name, "schema": t.InputSchema()}}
	}
	params := parseArgs(args)
	result := r.registry.Execute(ctx, name, params, mode)
	return Response{
		Kind: "tool_result", LastTool: name, LastData: result, LastWidget: t.Widget(),
		Text: t.FormatResult(result),
		Chain: []ChainStep{{Tool: name, Params: params, Summary: t.FormatResult(result), Widget: t.Widget()}},
	}
}

// HandleGuided implements `/name args`: same form-checking as direct, but
// when an LLM is configured and the tool is LLM-tagged, it rewrites the
// message and hands off to the natural-language loop instead.
func (r *Router) HandleGuided(ctx context.Context, client llm.Client, name, args string, history []llm.Message, onProgress func(ProgressEvent)) Response {
	t, ok := r.registry.Get(name)
	if !ok {
		return Response{Kind: "message", Text: fmt.Sprintf("Tool '%s' not found.", name)}
	}
	if strings.TrimSpace(args) == "" && hasRequiredFields(t.InputSchema()) {
		return Response{Kind: "form", Form: map[string]any{"tool": name, "schema": t.InputSchema()}}
	}
	if client == nil || !hasTag(t.Tags(), tools.TagLLM) {
		return r.HandleDirect(ctx, name, args, tools.ModeGuided)
	}
	rewritten := fmt.Sprintf("Use the %s tool: %s", name, args)
	return r.RunLoop(ctx, client, history, rewritten, onProgress)
}

// RunLoop implements the natural-language loop of §4.11 steps 1-6.
func (r *Router) RunLoop(ctx context.Context, client llm.Client, history []llm.Message, userMessage string, onProgress func(ProgressEvent)) Response {
	stack := make([]llm.Message, 0, len(history)+2)
	stack = append(stack, llm.Message{Role: "system", Content: r.cfg.SystemPrompt})
	stack = append(stack, history...)
	stack = append(stack, llm.Message{Role: "user", Content: userMessage})

	schemasAll := buildSchemas(r.registry.LLMTools())
	schemas := schemasAll
	cache := map[string]string{}
	usage := llm.Usage{}
	var chain []ChainStep
	forceText := false
	var lastTool string
	var lastData tools.Result
	var lastWidget string
	exceeded := false

	emit(onProgress, ProgressEvent{Kind: "thinking"})

	for turn := 0; turn < r.cfg.MaxTurns; turn++ {
		toolChoice := ""
		active := schemas
		if forceText {
			toolChoice = "none"
			active = dummySchema()
		}

		resp, err := client.Chat(ctx, stack, active, toolChoice)
		if err != nil {
			exceeded = true
			break
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens

		if resp.FinishReason == "refusal" {
			return Response{Kind: "refusal", Text: resp.Message.Content, Usage: usage}
		}

		if len(resp.Message.ToolCalls) == 0 || forceText {
			if lastTool != "" {
				return Response{
					Kind: "tool_result", Text: resp.Message.Content, LastTool: lastTool,
					LastData: lastData, LastWidget: lastWidget, Chain: chain, Usage: usage,
				}
			}
			return Response{Kind: "message", Text: resp.Message.Content, Usage: usage}
		}

		stack = append(stack, resp.Message)
		var calledTool string
		for _, call := range resp.Message.ToolCalls {
			params := parseToolCallArgs(call.Arguments)
			t, ok := r.registry.Get(call.Name)
			if !ok {
				stack = append(stack, llm.Message{Role: "tool", ToolCallID: call.ID, Name: call.Name,
					Content: fmt.Sprintf(`{"error":"Tool '%s' not found."}`, call.Name)})
				continue
			}
			applyAutoPipeInject(params, cache, r.cfg.PipeMinLength)

			emit(onProgress, ProgressEvent{Kind: "tool", Tool: call.Name})
			result := r.registry.Execute(ctx, call.Name, params, tools.ModeNatural)
			applyAutoPipeStash(result, cache, r.cfg.PipeMinLength)

			summary := tools.SummaryForLLM(result, r.cfg.SummaryTokenLimit)
			if s, ok := t.(tools.Summarizer); ok {
				summary = s.SummaryForLLM(result, r.cfg.SummaryTokenLimit)
			}
			stack = append(stack, llm.Message{Role: "tool", ToolCallID: call.ID, Name: call.Name, Content: summary})

			chain = append(chain, ChainStep{Tool: call.Name, Params: params, Summary: t.FormatResult(result), Widget: t.Widget()})
			lastTool, lastData, lastWidget = call.Name, result, t.Widget()
			calledTool = call.Name
			emit(onProgress, ProgressEvent{Kind: "thinking"})
		}

		next, ok := narrowingTable[calledTool]
		if !ok || len(next) == 0 {
			forceText = true
		} else {
			schemas = buildSchemas(filterByName(r.registry.LLMTools(), next))
		}
	}

	if len(chain) > 0 {
		text := chain[len(chain)-1].Summary
		if exceeded {
			text += " (reached maximum reasoning steps)"
		}
		return Response{Kind: "tool_result", Text: text, LastTool: lastTool, LastData: lastData, LastWidget: lastWidget, Chain: chain, Usage: usage}
	}
	return Response{Kind: "message", Text: "I wasn't able to reach a conclusion in time.", Usage: usage}
}

func emit(onProgress func(ProgressEvent), ev ProgressEvent) {
	if onProgress == nil {
		return
	}
	defer func() { _ = recover() }() // fire-and-forget; a panicking callback never breaks the loop
	onProgress(ev)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func hasRequiredFields(schema map[string]any) bool {
	req, ok := schema["required"].([]string)
	if ok {
		return len(req) > 0
	}
	reqAny, ok := schema["required"].([]any)
	return ok && len(reqAny) > 0
}

// parseArgs implements the direct/guided argument grammar: JSON first, else
// a bare string wrapped as {"query": args}.
func parseArgs(args string) tools.Params {
	args = strings.TrimSpace(args)
	if args == "" {
		return tools.Params{}
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(args), &parsed); err == nil {
		return tools.Params(parsed)
	}
	return tools.Params{"query": args}
}

// parseToolCallArgs parses the LLM's JSON tool-call arguments, dropping
// keys with null values.
func parseToolCallArgs(raw string) tools.Params {
	var parsed map[string]any
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &parsed)
	}
	out := tools.Params{}
	for k, v := range parsed {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// applyAutoPipeInject replaces any param whose LLM-provided value is
// missing, empty, or a short string with the cached value stashed under
// the same key by a prior tool call, per §4.11 step 5e.
func applyAutoPipeInject(params tools.Params, cache map[string]string, pipeMinLength int) {
	for key, cached := range cache {
		current, present := params[key]
		if !present {
			params[key] = cached
			continue
		}
		if s, ok := current.(string); ok && len(s) < pipeMinLength {
			params[key] = cached
		}
	}
}

// applyAutoPipeStash stores every long string field of a result in cache so
// a later tool call can reference it without round-tripping through the
// LLM context.
func applyAutoPipeStash(result tools.Result, cache map[string]string, pipeMinLength int) {
	for key, v := range result {
		if s, ok := v.(string); ok && len(s) >= pipeMinLength {
			cache[key] = s
		}
	}
}

// buildSchemas converts a tool list to the OpenAI-style function schema
// set, slimming each JSON schema per §4.11 step 2.
func buildSchemas(ts []tools.Tool) []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(ts))
	for _, t := range ts {
		out = append(out, llm.ToolSchema{
			Name:        t.Name(),
			Description: describeForLLM(t),
			Parameters:  slimSchema(t.InputSchema()),
		})
	}
	return out
}

func describeForLLM(t tools.Tool) string {
	if g := t.Guidelines(); g != "" {
		return t.Description() + " " + g
	}
	return t.Description()
}

// slimSchema removes "title", flattens anyOf:[{T},{null}] to T, and drops
// "default": nil, per §4.11 step 2.
func slimSchema(schema map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range schema {
		switch k {
		case "title":
			continue
		case "default":
			if v == nil {
				continue
			}
		}
		out[k] = v
	}
	if props, ok := out["properties"].(map[string]any); ok {
		slim := map[string]any{}
		for name, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				slim[name] = raw
				continue
			}
			slim[name] = slimProperty(prop)
		}
		out["properties"] = slim
	}
	return out
}

func slimProperty(prop map[string]any) map[string]any {
	anyOf, ok := prop["anyOf"].([]any)
	if !ok || len(anyOf) != 2 {
		return slimSchema(prop)
	}
	var concrete map[string]any
	sawNull := false
	for _, opt := range anyOf {
		m, ok := opt.(map[string]any)
		if !ok {
			return slimSchema(prop)
		}
		if m["type"] == "null" {
			sawNull = true
			continue
		}
		concrete = m
	}
	if !sawNull || concrete == nil {
		return slimSchema(prop)
	}
	out := slimSchema(concrete)
	for k, v := range prop {
		if k == "anyOf" {
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// dummySchema is the single placeholder schema passed with tool_choice
// "none" so the API shape stays consistent while forcing a text reply.
func dummySchema() []llm.ToolSchema {
	return []llm.ToolSchema{{
		Name:        "_no_op",
		Description: "Not callable; present only to satisfy the API shape while forcing a text reply.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}}
}

func filterByName(ts []tools.Tool, names []string) []tools.Tool {
	allowed := map[string]bool{}
	for _, n := range names {
		allowed[n] = true
	}
	out := make([]tools.Tool, 0, len(names))
	for _, t := range ts {
		if allowed[t.Name()] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
