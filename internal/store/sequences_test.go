// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func insertFile(t *testing.T, st *Store, path string) int64 {
	t.Helper()
	var id int64
	err := st.WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		id, err = st.UpsertFileActive(context.Background(), tx, path, "hash", "fasta", 10, time.Now())
		return err
	})
	require.NoError(t, err)
	return id
}

func TestReplaceSequencesAndLookup(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	fileID := insertFile(t, st, "/lib/a.fasta")

	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		return st.ReplaceSequences(ctx, tx, fileID, []NewSequence{
			{Name: "pUC19", SizeBP: 2686, Topology: TopologyCircular, Sequence: "ACGT", Description: "cloning vector"},
		})
	})
	require.NoError(t, err)

	seq, err := st.GetSequenceByName(ctx, "puc19", true)
	require.NoError(t, err)
	require.Equal(t, "pUC19", seq.Name)

	n, err := st.CountSequencesByName(ctx, "puc19", true)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	count, err := st.CountActiveSequences(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCountSequencesByNameDetectsAmbiguity(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	fileA := insertFile(t, st, "/lib/a.fasta")
	fileB := insertFile(t, st, "/lib/b.fasta")

	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		return st.ReplaceSequences(ctx, tx, fileA, []NewSequence{{Name: "insertX", SizeBP: 100, Topology: TopologyLinear, Sequence: "ACGT"}})
	}))
	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		return st.ReplaceSequences(ctx, tx, fileB, []NewSequence{{Name: "insertX", SizeBP: 200, Topology: TopologyLinear, Sequence: "TTTT"}})
	}))

	n, err := st.CountSequencesByName(ctx, "insertX", true)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestReplaceSequencesDeletesPrevious(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	fileID := insertFile(t, st, "/lib/a.fasta")

	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		return st.ReplaceSequences(ctx, tx, fileID, []NewSequence{{Name: "old", SizeBP: 5, Topology: TopologyLinear, Sequence: "ACGTA"}})
	}))
	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		return st.ReplaceSequences(ctx, tx, fileID, []NewSequence{{Name: "new", SizeBP: 5, Topology: TopologyLinear, Sequence: "TTTTT"}})
	}))

	_, err := st.GetSequenceByName(ctx, "old", true)
	require.ErrorIs(t, err, ErrNotFound)

	seq, err := st.GetSequenceByName(ctx, "new", true)
	require.NoError(t, err)
	require.Equal(t, "new", seq.Name)
}

func TestMarkFileDeletedExcludesSequencesFromActiveCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	fileID := insertFile(t, st, "/lib/a.fasta")
	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		return st.ReplaceSequences(ctx, tx, fileID, []NewSequence{{Name: "gone", SizeBP: 5, Topology: TopologyLinear, Sequence: "ACGTA"}})
	}))

	require.NoError(t, st.MarkFileDeleted(ctx, "/lib/a.fasta"))

	count, err := st.CountActiveSequences(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
