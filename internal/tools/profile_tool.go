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

// ProfileTool returns the metadata summary of one sequence: size, topology,
// molecule type, composition, and feature/primer counts.
type ProfileTool struct {
	resolver *Resolver
}

func NewProfileTool(r *Resolver) *ProfileTool { return &ProfileTool{resolver: r} }

func (t *ProfileTool) Name() string        { return "profile" }
func (t *ProfileTool) Description() string { return "Summarize one sequence: size, topology, composition, and feature/primer counts." }
func (t *ProfileTool) Widget() string      { return "card" }
func (t *ProfileTool) Tags() []string      { return []string{TagLLM} }
func (t *ProfileTool) Guidelines() string  { return "" }

func (t *ProfileTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"sequence": map[string]any{"type": "string", "description": "SID or exact sequence name"}},
		"required":   []string{"sequence"},
	}
}

func (t *ProfileTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	ref, _ := params["sequence"].(string)
	if ref == "" {
		return nil, fmt.Errorf("profile: sequence is required")
	}
	seq, err := t.resolver.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true, WithFeatures: true, WithPrimers: true})
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	comp := seqbio.GC(seq.Sequence)
	return Result{
		"sid":           seq.ID,
		"name":          seq.Name,
		"topology":      seq.Topology,
		"size_bp":       seq.SizeBP,
		"molecule_type": seq.MoleculeType(),
		"description":   seq.Description,
		"tags":          seq.Tags(),
		"gc_percent":    comp.GCPercent,
		"feature_count": len(seq.Features),
		"primer_count":  len(seq.Primers),
	}, nil
}

func (t *ProfileTool) FormatResult(result Result) string {
	name, _ := result["name"].(string)
	size, _ := result["size_bp"].(int)
	return fmt.Sprintf("%s: %d bp.", name, size)
}
