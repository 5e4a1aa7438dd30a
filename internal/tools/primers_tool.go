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
)

// PrimersTool lists the annotated primers of one sequence.
type PrimersTool struct {
	resolver *Resolver
}

func NewPrimersTool(r *Resolver) *PrimersTool { return &PrimersTool{resolver: r} }

func (t *PrimersTool) Name() string        { return "primers" }
func (t *PrimersTool) Description() string { return "List a sequence's annotated primers." }
func (t *PrimersTool) Widget() string      { return "table" }
func (t *PrimersTool) Tags() []string      { return []string{TagLLM} }
func (t *PrimersTool) Guidelines() string  { return "" }

func (t *PrimersTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"sequence": map[string]any{"type": "string"}},
		"required":   []string{"sequence"},
	}
}

func (t *PrimersTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	ref, _ := params["sequence"].(string)
	if ref == "" {
		return nil, fmt.Errorf("primers: sequence is required")
	}
	seq, err := t.resolver.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true, WithPrimers: true})
	if err != nil {
		return nil, fmt.Errorf("primers: %w", err)
	}
	rows := make([]any, 0, len(seq.Primers))
	for _, p := range seq.Primers {
		row := map[string]any{"name": p.Name, "sequence": p.Sequence}
		if p.Tm != nil {
			row["tm"] = *p.Tm
		}
		if p.Start != nil {
			row["start"] = *p.Start + 1
		}
		if p.End != nil {
			row["end"] = *p.End
		}
		if p.Strand != nil {
			row["strand"] = *p.Strand
		}
		rows = append(rows, row)
	}
	return Result{"sid": seq.ID, "primers": rows, "count": len(rows)}, nil
}

func (t *PrimersTool) FormatResult(result Result) string {
	count, _ := result["count"].(int)
	return fmt.Sprintf("%d primer(s).", count)
}
