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

	"github.com/aleutian-labs/sequencehive/internal/store"
)

// ResolveOptions controls how Resolver.Resolve looks a sequence up and how
// much of it gets eager-loaded.
type ResolveOptions struct {
	// Ref is either a numeric SID or a sequence name; SID takes precedence
	// when Ref parses as an integer.
	Ref string
	// ActiveOnly restricts the lookup to sequences whose file is active
	// (true for essentially every tool; false only for admin/debug paths).
	ActiveOnly bool
	WithFeatures bool
	WithPrimers  bool
	WithFile     bool
}

// ErrAmbiguous is returned when Ref is a name shared by more than one
// sequence and the resolver cannot disambiguate further; callers surface
// this to the LLM/user as a request for a SID instead.
var ErrAmbiguous = fmt.Errorf("tools: ambiguous sequence reference")

// Resolver is the shared lookup layer (C10) every sequence-consuming tool
// goes through, so that SID precedence, the active-files restriction, and
// eager-loading stay in one place instead of being reimplemented per tool.
type Resolver struct {
	store *store.Store
}

// NewResolver builds a Resolver over st.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve looks up a sequence by SID (numeric Ref) or case-insensitive exact
// name, then eager-loads whichever associations were requested.
func (r *Resolver) Resolve(ctx context.Context, opts ResolveOptions) (store.Sequence, error) {
	var seq store.Sequence
	var err error

	if id, convErr := strconv.ParseInt(opts.Ref, 10, 64); convErr == nil {
		seq, err = r.store.GetSequence(ctx, id, opts.ActiveOnly)
	} else {
		n, countErr := r.store.CountSequencesByName(ctx, opts.Ref, opts.ActiveOnly)
		if countErr != nil {
			return store.Sequence{}, countErr
		}
		if n > 1 {
			return store.Sequence{}, ErrAmbiguous
		}
		seq, err = r.store.GetSequenceByName(ctx, opts.Ref, opts.ActiveOnly)
	}
	if err != nil {
		return store.Sequence{}, err
	}

	if opts.WithFeatures {
		feats, err := r.store.LoadFeatures(ctx, seq.ID)
		if err != nil {
			return store.Sequence{}, fmt.Errorf("tools: load features: %w", err)
		}
		seq.Features = feats
	}
	if opts.WithPrimers {
		primers, err := r.store.LoadPrimers(ctx, seq.ID)
		if err != nil {
			return store.Sequence{}, fmt.Errorf("tools: load primers: %w", err)
		}
		seq.Primers = primers
	}
	if opts.WithFile {
		f, err := r.store.GetFile(ctx, seq.FileID)
		if err != nil {
			return store.Sequence{}, fmt.Errorf("tools: load file: %w", err)
		}
		seq.File = &f
	}
	return seq, nil
}

// ResolveForExtract finds the named feature or primer on seq, per §4.9's
// extract tool: "exact preferred, then fuzziest by ILIKE; among features
// prefer the longest". Exactly one of featureName/primerName should be
// non-empty; if both are given, the primer side wins, mirroring the
// original implementation's check order. ILIKE here means the same thing
// it means in extract.py's `name.ilike(f"%{query}%")`: a case-insensitive
// substring match, not a trigram/edit-distance score.
func (r *Resolver) ResolveForExtract(seq store.Sequence, featureName, primerName string) (*store.Feature, *store.Primer, bool) {
	if primerName != "" {
		if p := bestPrimerMatch(seq.Primers, primerName); p != nil {
			return nil, p, true
		}
		return nil, nil, false
	}
	if featureName != "" {
		if f := bestFeatureMatch(seq.Features, featureName); f != nil {
			return f, nil, true
		}
		return nil, nil, false
	}
	return nil, nil, false
}

// bestFeatureMatch ranks ILIKE candidates (name contains query) by
// exactness first, then by span length.
func bestFeatureMatch(feats []store.Feature, name string) *store.Feature {
	var best *store.Feature
	bestExact := false
	for i := range feats {
		f := &feats[i]
		if !ilikeMatch(f.Name, name) {
			continue
		}
		exact := strings.EqualFold(f.Name, name)
		switch {
		case best == nil:
			best, bestExact = f, exact
		case exact && !bestExact:
			best, bestExact = f, exact
		case exact == bestExact && (f.End-f.Start) > (best.End-best.Start):
			best = f
		}
	}
	return best
}

// bestPrimerMatch ranks ILIKE candidates by exactness only — primers don't
// carry a meaningful "longest span" tiebreaker the way features do.
func bestPrimerMatch(primers []store.Primer, name string) *store.Primer {
	var best *store.Primer
	bestExact := false
	for i := range primers {
		p := &primers[i]
		if !ilikeMatch(p.Name, name) {
			continue
		}
		exact := strings.EqualFold(p.Name, name)
		if best == nil || (exact && !bestExact) {
			best, bestExact = p, exact
		}
	}
	return best
}

func ilikeMatch(candidate, query string) bool {
	return strings.Contains(strings.ToLower(candidate), strings.ToLower(query))
}
