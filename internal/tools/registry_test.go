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
	"testing"

	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	tags   []string
	fail   error
	panics bool
}

func (s stubTool) Name() string                    { return s.name }
func (s stubTool) Description() string              { return "stub" }
func (s stubTool) Widget() string                    { return "none" }
func (s stubTool) Tags() []string                    { return s.tags }
func (s stubTool) Guidelines() string                { return "" }
func (s stubTool) InputSchema() map[string]any       { return map[string]any{"type": "object"} }
func (s stubTool) FormatResult(result Result) string { return "" }

func (s stubTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	if s.panics {
		panic("boom")
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return Result{"ok": true}, nil
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	res := r.Execute(context.Background(), "nope", nil, ModeDirect)
	require.Contains(t, res["error"], "not found")
}

func TestExecuteContainsPanic(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "boomer", panics: true})
	res := r.Execute(context.Background(), "boomer", nil, ModeDirect)
	require.Contains(t, res["error"], "failed")
}

func TestExecuteContainsError(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "failer", fail: context.DeadlineExceeded})
	res := r.Execute(context.Background(), "failer", nil, ModeDirect)
	require.Contains(t, res["error"], "failed")
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "worker"})
	res := r.Execute(context.Background(), "worker", nil, ModeDirect)
	require.Equal(t, true, res["ok"])
}

func TestLLMAndVisibleToolFiltering(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "alpha", tags: []string{TagLLM}})
	r.Register(stubTool{name: "beta", tags: []string{TagHidden}})
	r.Register(stubTool{name: "gamma"})

	llm := r.LLMTools()
	require.Len(t, llm, 1)
	require.Equal(t, "alpha", llm[0].Name())

	visible := r.VisibleTools()
	names := []string{}
	for _, t := range visible {
		names = append(names, t.Name())
	}
	require.ElementsMatch(t, []string{"alpha", "gamma"}, names)
}

func TestRegisterOverridesByName(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(stubTool{name: "dup", tags: []string{"v1"}})
	r.Register(stubTool{name: "dup", tags: []string{"v2"}})

	tool, ok := r.Get("dup")
	require.True(t, ok)
	require.Equal(t, []string{"v2"}, tool.Tags())
}
