// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package seqbio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReverseComplementIsInvolution(t *testing.T) {
	seqs := []string{"ACGT", "GATTACA", "NNNRYSWKM", "acgtACGT"}
	for _, s := range seqs {
		require.Equal(t, s, ReverseComplement(ReverseComplement(s)))
	}
}

func TestReverseComplementBasic(t *testing.T) {
	require.Equal(t, "ACGT", ReverseComplement("ACGT"))
	require.Equal(t, "TTTT", ReverseComplement("AAAA"))
}

func TestGCPercentages(t *testing.T) {
	comp := GC("ACGT")
	require.Equal(t, 50.0, comp.GCPercent)
	require.Equal(t, 50.0, comp.ATPercent)
	require.InDelta(t, 100.0, comp.GCPercent+comp.ATPercent, 1e-9)
}

func TestGCIgnoresWhitespace(t *testing.T) {
	comp := GC("AC GT\nAC GT")
	require.Equal(t, 8, comp.Length)
}

func TestTranscribe(t *testing.T) {
	require.Equal(t, "ACGU", Transcribe("ACGT"))
	require.Equal(t, "acgu", Transcribe("acgt"))
}

func TestTranslateStandardCode(t *testing.T) {
	require.Equal(t, "M*", Translate("ATGTAA", 1))
	require.Equal(t, "MAIS*", Translate("ATGGCCATCAGTTAG", 1))
}

func TestTranslateTruncatesPartialCodon(t *testing.T) {
	require.Equal(t, "M", Translate("ATGA", 1))
}

func TestIsCompleteORF(t *testing.T) {
	require.True(t, IsCompleteORF("MAIS*"))
	require.False(t, IsCompleteORF("AIS*"))
	require.False(t, IsCompleteORF("MAIS"))
	require.False(t, IsCompleteORF(""))
}

func TestKnownEnzyme(t *testing.T) {
	require.True(t, KnownEnzyme("EcoRI"))
	require.False(t, KnownEnzyme("NotARealEnzyme"))
}

func TestDigestLinearFragmentsSumToLength(t *testing.T) {
	seq := "AAAAAGAATTCAAAAAGAATTCAAAAA"
	sites, fragments, err := Digest(seq, []string{"EcoRI"}, false)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	total := 0
	for _, f := range fragments {
		total += f
	}
	require.Equal(t, len(seq), total)
}

func TestDigestCircularFragmentsSumToLength(t *testing.T) {
	seq := "AAAAAGAATTCAAAAAGAATTCAAAAA"
	_, fragments, err := Digest(seq, []string{"EcoRI"}, true)
	require.NoError(t, err)
	total := 0
	for _, f := range fragments {
		total += f
	}
	require.Equal(t, len(seq), total)
}

func TestDigestUncutCircularHasNoFragments(t *testing.T) {
	_, fragments, err := Digest("AAAAAAAAAA", []string{"EcoRI"}, true)
	require.NoError(t, err)
	require.Nil(t, fragments)
}

func TestDigestUnknownEnzyme(t *testing.T) {
	_, _, err := Digest("ACGT", []string{"NotAnEnzyme"}, false)
	require.Error(t, err)
}

func TestLooksLikeSequence(t *testing.T) {
	require.True(t, LooksLikeSequence("ACGTACGT"))
	require.False(t, LooksLikeSequence("ACG"))
	require.False(t, LooksLikeSequence("pUC19"))
}
