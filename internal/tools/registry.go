// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry is the process-wide tool registry (§9: a process-wide
// singleton, passed explicitly rather than reached through globals).
// Safe for concurrent readers; writes only happen at startup/reload.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{tools: map[string]Tool{}, logger: logger}
}

// Register adds or replaces a tool by name. An external tool with the
// same name as an internal one overrides it, with a warning (§4.7).
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		r.logger.Warn("registry: tool name collision, overriding", "name", t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, sorted by name for deterministic
// iteration.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// LLMTools returns tools tagged "llm" — the set offered to the LLM.
func (r *Registry) LLMTools() []Tool {
	var out []Tool
	for _, t := range r.All() {
		if hasTag(t.Tags(), TagLLM) {
			out = append(out, t)
		}
	}
	return out
}

// VisibleTools returns tools not tagged "hidden" — the set the UI lists.
func (r *Registry) VisibleTools() []Tool {
	var out []Tool
	for _, t := range r.All() {
		if !hasTag(t.Tags(), TagHidden) {
			out = append(out, t)
		}
	}
	return out
}

// Metadata returns the UI-bootstrap list for every visible tool.
func (r *Registry) Metadata() []Metadata {
	visible := r.VisibleTools()
	out := make([]Metadata, 0, len(visible))
	for _, t := range visible {
		out = append(out, Metadata{
			Name:        t.Name(),
			Description: t.Description(),
			Widget:      t.Widget(),
			Tags:        t.Tags(),
			InputSchema: t.InputSchema(),
		})
	}
	return out
}

// Execute runs a tool by name with uniform failure containment: any
// panic or error surfaces as a result-shaped `{"error": ...}` value, never
// as a Go error the router has to special-case, per §4.6's "uniform
// failure containment".
func (r *Registry) Execute(ctx context.Context, name string, params Params, mode Mode) Result {
	t, ok := r.Get(name)
	if !ok {
		return Result{"error": fmt.Sprintf("Tool '%s' not found.", name)}
	}
	return r.executeContained(ctx, t, params, mode)
}

func (r *Registry) executeContained(ctx context.Context, t Tool, params Params, mode Mode) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("registry: tool panicked", "tool", t.Name(), "panic", rec)
			result = Result{"error": fmt.Sprintf("Tool '%s' failed. Check server logs.", t.Name())}
		}
	}()
	res, err := t.Execute(ctx, params, mode)
	if err != nil {
		r.logger.Error("registry: tool failed", "tool", t.Name(), "error", err)
		return Result{"error": fmt.Sprintf("Tool '%s' failed. Check server logs.", t.Name())}
	}
	if res == nil {
		res = Result{}
	}
	return res
}
