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

// RevcompTool reverse-complements a nucleotide sequence (P4).
type RevcompTool struct {
	resolver *Resolver
}

func NewRevcompTool(r *Resolver) *RevcompTool { return &RevcompTool{resolver: r} }

func (t *RevcompTool) Name() string        { return "revcomp" }
func (t *RevcompTool) Description() string { return "Reverse-complement a nucleotide sequence." }
func (t *RevcompTool) Widget() string      { return "text" }
func (t *RevcompTool) Tags() []string      { return []string{TagLLM} }
func (t *RevcompTool) Guidelines() string  { return "" }

func (t *RevcompTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"sequence": map[string]any{"type": "string"}},
		"required":   []string{"sequence"},
	}
}

func (t *RevcompTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	raw, err := resolveSequenceText(ctx, t.resolver, params)
	if err != nil {
		return nil, fmt.Errorf("revcomp: %w", err)
	}
	return Result{"reverse_complement": seqbio.ReverseComplement(raw)}, nil
}

func (t *RevcompTool) FormatResult(result Result) string {
	rc, _ := result["reverse_complement"].(string)
	return rc
}
