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

// DigestTool computes restriction-digest cut sites and fragment sizes for a
// sequence against a list of named enzymes.
type DigestTool struct {
	resolver *Resolver
}

func NewDigestTool(r *Resolver) *DigestTool { return &DigestTool{resolver: r} }

func (t *DigestTool) Name() string        { return "digest" }
func (t *DigestTool) Description() string { return "Compute restriction-enzyme cut sites and fragment sizes." }
func (t *DigestTool) Widget() string      { return "table" }
func (t *DigestTool) Tags() []string      { return []string{TagLLM} }
func (t *DigestTool) Guidelines() string  { return "" }

func (t *DigestTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence": map[string]any{"type": "string"},
			"enzymes":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"circular": map[string]any{"type": "boolean"},
		},
		"required": []string{"sequence", "enzymes"},
	}
}

func (t *DigestTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	ref, _ := params["sequence"].(string)
	if ref == "" {
		return nil, fmt.Errorf("digest: sequence is required")
	}

	var raw string
	circular := false
	if asBool(params["circular"]) {
		circular = true
	}
	if seqbio.LooksLikeSequence(ref) {
		raw = ref
	} else {
		seq, err := t.resolver.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true})
		if err != nil {
			return nil, fmt.Errorf("digest: %w", err)
		}
		raw = seq.Sequence
		if _, explicit := params["circular"]; !explicit {
			circular = seq.Topology == "circular"
		}
	}

	enzymes, err := stringList(params["enzymes"])
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	if len(enzymes) == 0 {
		return nil, fmt.Errorf("digest: at least one enzyme is required")
	}
	for _, e := range enzymes {
		if !seqbio.KnownEnzyme(e) {
			return nil, fmt.Errorf("digest: unknown restriction enzyme %q", e)
		}
	}

	sites, fragments, err := seqbio.Digest(raw, enzymes, circular)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	cuts := make([]any, 0, len(sites))
	for _, s := range sites {
		cuts = append(cuts, map[string]any{"enzyme": s.Enzyme, "position": s.Position + 1})
	}
	return Result{"cuts": cuts, "fragment_sizes": fragments, "fragment_count": len(fragments)}, nil
}

func (t *DigestTool) FormatResult(result Result) string {
	frags, _ := result["fragment_sizes"].([]int)
	return fmt.Sprintf("%d fragment(s).", len(frags))
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string in list, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
}
