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

// TranscribeTool converts DNA to RNA (T -> U).
type TranscribeTool struct {
	resolver *Resolver
}

func NewTranscribeTool(r *Resolver) *TranscribeTool { return &TranscribeTool{resolver: r} }

func (t *TranscribeTool) Name() string        { return "transcribe" }
func (t *TranscribeTool) Description() string { return "Transcribe a DNA sequence to RNA." }
func (t *TranscribeTool) Widget() string      { return "text" }
func (t *TranscribeTool) Tags() []string      { return []string{TagLLM} }
func (t *TranscribeTool) Guidelines() string  { return "" }

func (t *TranscribeTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"sequence": map[string]any{"type": "string"}},
		"required":   []string{"sequence"},
	}
}

func (t *TranscribeTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	raw, err := resolveSequenceText(ctx, t.resolver, params)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return Result{"rna": seqbio.Transcribe(raw)}, nil
}

func (t *TranscribeTool) FormatResult(result Result) string {
	rna, _ := result["rna"].(string)
	return rna
}
