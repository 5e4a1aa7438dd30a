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

// FeaturesTool lists the annotated features of one sequence, optionally
// filtered by feature type.
type FeaturesTool struct {
	resolver *Resolver
}

func NewFeaturesTool(r *Resolver) *FeaturesTool { return &FeaturesTool{resolver: r} }

func (t *FeaturesTool) Name() string        { return "features" }
func (t *FeaturesTool) Description() string { return "List a sequence's annotated features." }
func (t *FeaturesTool) Widget() string      { return "table" }
func (t *FeaturesTool) Tags() []string      { return []string{TagLLM} }
func (t *FeaturesTool) Guidelines() string  { return "" }

func (t *FeaturesTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence": map[string]any{"type": "string"},
			"type":     map[string]any{"type": "string"},
		},
		"required": []string{"sequence"},
	}
}

func (t *FeaturesTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	ref, _ := params["sequence"].(string)
	if ref == "" {
		return nil, fmt.Errorf("features: sequence is required")
	}
	wantType, _ := params["type"].(string)
	seq, err := t.resolver.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true, WithFeatures: true})
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	rows := make([]any, 0, len(seq.Features))
	for _, f := range seq.Features {
		if wantType != "" && f.Type != wantType {
			continue
		}
		rows = append(rows, map[string]any{
			"name": f.Name, "type": f.Type, "start": f.Start + 1, "end": f.End, "strand": f.Strand,
			"qualifiers": f.Qualifiers,
		})
	}
	return Result{"sid": seq.ID, "features": rows, "count": len(rows)}, nil
}

func (t *FeaturesTool) FormatResult(result Result) string {
	count, _ := result["count"].(int)
	return fmt.Sprintf("%d feature(s).", count)
}
