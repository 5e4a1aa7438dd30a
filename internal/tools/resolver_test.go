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
	"database/sql"
	"testing"
	"time"

	"github.com/aleutian-labs/sequencehive/internal/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func insertFileAndSeq(t *testing.T, st *store.Store, path, name string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		fileID, err := st.UpsertFileActive(ctx, tx, path, "h", "fasta", 10, time.Now())
		if err != nil {
			return err
		}
		return st.ReplaceSequences(ctx, tx, fileID, []store.NewSequence{
			{Name: name, SizeBP: 10, Topology: store.TopologyLinear, Sequence: "ACGTACGTAC"},
		})
	}))
}

func TestResolveBySID(t *testing.T) {
	st := openTestStore(t)
	insertFileAndSeq(t, st, "/lib/a.fasta", "pUC19")
	r := NewResolver(st)

	seq, err := r.Resolve(context.Background(), ResolveOptions{Ref: "1", ActiveOnly: true})
	require.NoError(t, err)
	require.Equal(t, "pUC19", seq.Name)
}

func TestResolveByNameCaseInsensitive(t *testing.T) {
	st := openTestStore(t)
	insertFileAndSeq(t, st, "/lib/a.fasta", "pUC19")
	r := NewResolver(st)

	seq, err := r.Resolve(context.Background(), ResolveOptions{Ref: "puc19", ActiveOnly: true})
	require.NoError(t, err)
	require.Equal(t, "pUC19", seq.Name)
}

func TestResolveAmbiguousName(t *testing.T) {
	st := openTestStore(t)
	insertFileAndSeq(t, st, "/lib/a.fasta", "insertX")
	insertFileAndSeq(t, st, "/lib/b.fasta", "insertX")
	r := NewResolver(st)

	_, err := r.Resolve(context.Background(), ResolveOptions{Ref: "insertX", ActiveOnly: true})
	require.ErrorIs(t, err, ErrAmbiguous)
}

func TestResolveForExtractPrefersLongestFeature(t *testing.T) {
	seq := store.Sequence{
		Features: []store.Feature{
			{Name: "CDS", Start: 0, End: 30},
			{Name: "CDS", Start: 0, End: 90},
		},
	}
	r := &Resolver{}
	f, p, ok := r.ResolveForExtract(seq, "cds", "")
	require.True(t, ok)
	require.Nil(t, p)
	require.Equal(t, 90, f.End)
}

func TestResolveForExtractByPrimerName(t *testing.T) {
	seq := store.Sequence{
		Primers: []store.Primer{{Name: "fwd"}},
	}
	r := &Resolver{}
	f, p, ok := r.ResolveForExtract(seq, "", "FWD")
	require.True(t, ok)
	require.Nil(t, f)
	require.Equal(t, "fwd", p.Name)
}

func TestResolveForExtractFuzzyFeatureMatch(t *testing.T) {
	seq := store.Sequence{
		Features: []store.Feature{{Name: "T7 promoter", Start: 0, End: 20}},
	}
	r := &Resolver{}
	f, _, ok := r.ResolveForExtract(seq, "promoter", "")
	require.True(t, ok)
	require.Equal(t, "T7 promoter", f.Name)
}

func TestResolveForExtractExactBeatsFuzzyFeatureMatch(t *testing.T) {
	seq := store.Sequence{
		Features: []store.Feature{
			{Name: "CDS extended region", Start: 0, End: 500},
			{Name: "CDS", Start: 0, End: 30},
		},
	}
	r := &Resolver{}
	f, _, ok := r.ResolveForExtract(seq, "CDS", "")
	require.True(t, ok)
	require.Equal(t, 30, f.End)
}

func TestResolveForExtractNoMatch(t *testing.T) {
	r := &Resolver{}
	_, _, ok := r.ResolveForExtract(store.Sequence{}, "missing", "")
	require.False(t, ok)
}
