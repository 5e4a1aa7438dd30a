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

// TranslateTool maps a nucleotide sequence to its amino-acid translation.
type TranslateTool struct {
	resolver *Resolver
}

func NewTranslateTool(r *Resolver) *TranslateTool { return &TranslateTool{resolver: r} }

func (t *TranslateTool) Name() string        { return "translate" }
func (t *TranslateTool) Description() string { return "Translate a nucleotide sequence to protein." }
func (t *TranslateTool) Widget() string      { return "text" }
func (t *TranslateTool) Tags() []string      { return []string{TagLLM} }
func (t *TranslateTool) Guidelines() string  { return "Defaults to NCBI translation table 1." }

func (t *TranslateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence": map[string]any{"type": "string"},
			"table":    map[string]any{"type": "integer", "default": 1},
		},
		"required": []string{"sequence"},
	}
}

func (t *TranslateTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	raw, err := resolveSequenceText(ctx, t.resolver, params)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	table := 1
	if v, ok := asInt(params["table"]); ok {
		table = v
	}
	protein := seqbio.Translate(raw, table)
	return Result{"protein": protein, "complete_orf": seqbio.IsCompleteORF(protein)}, nil
}

func (t *TranslateTool) FormatResult(result Result) string {
	p, _ := result["protein"].(string)
	return p
}
