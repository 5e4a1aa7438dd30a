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
	"strconv"
	"strings"

	"github.com/aleutian-labs/sequencehive/internal/seqbio"
	"github.com/aleutian-labs/sequencehive/internal/store"
)

// ExtractTool pulls a subsequence out of a stored sequence, by feature
// name, primer name, or an explicit region — §4.9's
// `extract(sequence_name, feature_name? | primer_name? | region?)`. With
// none of the three given it returns the whole sequence, per the original
// implementation's fallback.
type ExtractTool struct {
	resolver *Resolver
}

func NewExtractTool(r *Resolver) *ExtractTool { return &ExtractTool{resolver: r} }

func (t *ExtractTool) Name() string        { return "extract" }
func (t *ExtractTool) Description() string { return "Extract a subsequence by feature name, primer name, or region from a sequence." }
func (t *ExtractTool) Widget() string      { return "text" }
func (t *ExtractTool) Tags() []string      { return []string{TagLLM} }
func (t *ExtractTool) Guidelines() string {
	return "Give at most one of feature_name, primer_name, or region. region is 1-based " +
		"inclusive coordinates as \"start:end\". Omit all three to get the whole sequence. " +
		"A feature on the reverse strand is returned reverse-complemented."
}

func (t *ExtractTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence_name": map[string]any{"type": "string", "description": "Name of the sequence/plasmid"},
			"feature_name":  map[string]any{"type": "string", "description": "Feature name to extract"},
			"primer_name":   map[string]any{"type": "string", "description": "Primer name to extract"},
			"region":        map[string]any{"type": "string", "description": "Region as start:end (1-based, inclusive)"},
		},
		"required": []string{"sequence_name"},
	}
}

func (t *ExtractTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	ref, _ := params["sequence_name"].(string)
	featureName, _ := params["feature_name"].(string)
	primerName, _ := params["primer_name"].(string)
	region, _ := params["region"].(string)
	if ref == "" {
		return nil, fmt.Errorf("extract: sequence_name is required")
	}
	seq, err := t.resolver.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true, WithFeatures: true, WithPrimers: true})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	switch {
	case primerName != "":
		_, p, ok := t.resolver.ResolveForExtract(seq, "", primerName)
		if !ok {
			return nil, fmt.Errorf("extract: no primer named %q on %s", primerName, seq.Name)
		}
		return Result{
			"sequence": p.Sequence, "name": p.Name, "source": seq.Name,
			"start": p.Start, "end": p.End, "strand": p.Strand, "length": len(p.Sequence),
		}, nil

	case featureName != "":
		f, _, ok := t.resolver.ResolveForExtract(seq, featureName, "")
		if !ok {
			return nil, fmt.Errorf("extract: no feature named %q on %s", featureName, seq.Name)
		}
		sub, err := extractRegion(seq, f.Start, f.End)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		if f.Strand < 0 {
			sub = seqbio.ReverseComplement(sub)
		}
		return Result{
			"sequence": sub, "name": f.Name, "source": seq.Name,
			"start": f.Start, "end": f.End, "strand": f.Strand, "length": len(sub),
		}, nil

	case region != "":
		start, end, err := parseRegion(region)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		sub, err := extractRegion(seq, start, end)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		return Result{
			"sequence": sub, "name": fmt.Sprintf("%d:%d", start+1, end), "source": seq.Name,
			"start": start + 1, "end": end, "strand": 1, "length": len(sub),
		}, nil

	default:
		return Result{
			"sequence": seq.Sequence, "name": seq.Name, "source": seq.Name,
			"start": 1, "end": len(seq.Sequence), "strand": 1, "length": len(seq.Sequence),
		}, nil
	}
}

func (t *ExtractTool) FormatResult(result Result) string {
	name, _ := result["name"].(string)
	source, _ := result["source"].(string)
	length, _ := result["length"].(int)
	return fmt.Sprintf("Extracted %s from %s: %d bp", name, source, length)
}

// parseRegion parses "start:end" (1-based inclusive, per spec.md §4.9's
// literal example) into 0-based, end-exclusive coordinates.
func parseRegion(region string) (start, end int, err error) {
	parts := strings.SplitN(strings.TrimSpace(region), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid region format: %s. Use start:end (1-based)", region)
	}
	startOneBased, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	endOneBased, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("invalid region format: %s. Use start:end (1-based)", region)
	}
	return startOneBased - 1, endOneBased, nil
}

// extractRegion slices [start, end) (0-based, end-exclusive) out of seq,
// clamped to the sequence's bounds the way Python's tolerant slicing
// would. When start > end it's a circular wrap-around request (the
// origin-crossing region a feature or `region=` string can name): on a
// circular molecule that yields seq[start:] + seq[:end]; on a linear one
// it's empty, matching _slice_sequence in the original implementation.
func extractRegion(seq store.Sequence, start, end int) (string, error) {
	n := len(seq.Sequence)
	if n == 0 {
		return "", fmt.Errorf("empty sequence")
	}
	start, end = clampIndex(start, n), clampIndex(end, n)
	if start <= end {
		return seq.Sequence[start:end], nil
	}
	if seq.Topology == store.TopologyCircular {
		return seq.Sequence[start:] + seq.Sequence[:end], nil
	}
	return "", nil
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
