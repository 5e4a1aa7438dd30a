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

	"github.com/aleutian-labs/sequencehive/internal/store"
)

// SearchTool is the fuzzy/boolean search front door over the library
// (§4.2), backed by store.Store.Search.
type SearchTool struct {
	store *store.Store
}

func NewSearchTool(st *store.Store) *SearchTool { return &SearchTool{store: st} }

func (t *SearchTool) Name() string        { return "search" }
func (t *SearchTool) Description() string { return "Search the sequence library by name, description, feature, or tag." }
func (t *SearchTool) Widget() string      { return "table" }
func (t *SearchTool) Tags() []string      { return []string{TagLLM} }
func (t *SearchTool) Guidelines() string {
	return "Query supports && (AND) and || (OR, lower precedence). A bare topology word " +
		"(circular/linear) matches as a structural filter. Use topology/size_min/size_max/feature_type " +
		"to narrow results further."
}

func (t *SearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":        map[string]any{"type": "string"},
			"topology":     map[string]any{"type": "string", "enum": []string{"circular", "linear"}},
			"size_min":     map[string]any{"type": "integer"},
			"size_max":     map[string]any{"type": "integer"},
			"feature_type": map[string]any{"type": "string"},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	query, _ := params["query"].(string)
	filters := store.SearchFilters{}
	if topo, ok := params["topology"].(string); ok {
		filters.Topology = topo
	}
	if v, ok := asInt(params["size_min"]); ok {
		filters.SizeMin = &v
	}
	if v, ok := asInt(params["size_max"]); ok {
		filters.SizeMax = &v
	}
	if ft, ok := params["feature_type"].(string); ok {
		filters.FeatureType = ft
	}

	results, err := t.store.Search(ctx, query, filters)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	rows := make([]any, 0, len(results))
	for _, r := range results {
		rows = append(rows, map[string]any{
			"sid":         r.Sequence.ID,
			"name":        r.Sequence.Name,
			"topology":    r.Sequence.Topology,
			"size_bp":     r.Sequence.SizeBP,
			"description": r.Sequence.Description,
			"tags":        r.Tags,
			"file_path":   r.FilePath,
			"score":       r.Score,
		})
	}
	return Result{"results": rows, "count": len(rows)}, nil
}

func (t *SearchTool) FormatResult(result Result) string {
	count, _ := result["count"].(int)
	return fmt.Sprintf("%d matching sequence(s).", count)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
