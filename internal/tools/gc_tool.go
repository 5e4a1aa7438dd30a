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

	"github.com/aleutian-labs/sequencehive/internal/seqbio"
)

// GCTool computes base composition for a raw sequence string or a stored
// sequence reference.
type GCTool struct {
	resolver *Resolver
}

func NewGCTool(r *Resolver) *GCTool { return &GCTool{resolver: r} }

func (t *GCTool) Name() string        { return "gc" }
func (t *GCTool) Description() string { return "Compute GC/AT composition of a sequence." }
func (t *GCTool) Widget() string      { return "card" }
func (t *GCTool) Tags() []string      { return []string{TagLLM} }
func (t *GCTool) Guidelines() string  { return "" }

func (t *GCTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence": map[string]any{"type": "string", "description": "raw nucleotide string, SID, or sequence name"},
		},
		"required": []string{"sequence"},
	}
}

func (t *GCTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	raw, err := resolveSequenceText(ctx, t.resolver, params)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	comp := seqbio.GC(raw)
	return Result{
		"length": comp.Length, "a": comp.A, "c": comp.C, "g": comp.G, "t": comp.T, "n": comp.N,
		"gc_percent": comp.GCPercent, "at_percent": comp.ATPercent,
	}, nil
}

func (t *GCTool) FormatResult(result Result) string {
	gc, _ := result["gc_percent"].(float64)
	return fmt.Sprintf("GC %.1f%%", gc)
}

// resolveSequenceText treats params["sequence"] as a raw residue string when
// it looks like one (seqbio.LooksLikeSequence), else resolves it as a
// SID/name through the shared resolver, per the alphabet-based heuristic
// carried over from the original blast tool's _is_sequence check.
func resolveSequenceText(ctx context.Context, r *Resolver, params Params) (string, error) {
	ref, _ := params["sequence"].(string)
	if ref == "" {
		return "", fmt.Errorf("sequence is required")
	}
	if seqbio.LooksLikeSequence(ref) {
		return ref, nil
	}
	seq, err := r.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true})
	if err != nil {
		return "", err
	}
	return seq.Sequence, nil
}
