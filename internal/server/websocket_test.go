// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"testing"

	"github.com/aleutian-labs/sequencehive/internal/agent"
	"github.com/stretchr/testify/require"
)

func TestParseContentDirect(t *testing.T) {
	mode, name, args, text := parseContent("//search puc19")
	require.Equal(t, "direct", mode)
	require.Equal(t, "search", name)
	require.Equal(t, "puc19", args)
	require.Equal(t, "//search puc19", text)
}

func TestParseContentGuided(t *testing.T) {
	mode, name, args, _ := parseContent("/gc puc19")
	require.Equal(t, "guided", mode)
	require.Equal(t, "gc", name)
	require.Equal(t, "puc19", args)
}

func TestParseContentNatural(t *testing.T) {
	mode, name, args, text := parseContent("what plasmids do we have?")
	require.Equal(t, "natural", mode)
	require.Equal(t, "", name)
	require.Equal(t, "", args)
	require.Equal(t, "what plasmids do we have?", text)
}

func TestSplitFirstWord(t *testing.T) {
	first, rest := splitFirstWord("gc  puc19 extra")
	require.Equal(t, "gc", first)
	require.Equal(t, "puc19 extra", rest)
}

func TestSplitFirstWordNoRest(t *testing.T) {
	first, rest := splitFirstWord("search")
	require.Equal(t, "search", first)
	require.Equal(t, "", rest)
}

func TestChainParamsUsesLastStep(t *testing.T) {
	chain := []agent.ChainStep{
		{Tool: "search", Params: map[string]any{"query": "a"}},
		{Tool: "gc", Params: map[string]any{"sid": "1"}},
	}
	require.Equal(t, map[string]any{"sid": "1"}, chainParams(chain))
}

func TestChainParamsEmpty(t *testing.T) {
	require.Nil(t, chainParams(nil))
}
