// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadFromDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sequencehive.yaml")
	data, err := yaml.Marshal(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 8420, cfg.Server.Port)
	require.Equal(t, 1e-5, cfg.Blast.DefaultEvalue)
}

func TestLoadFromEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sequencehive.yaml")
	data, err := yaml.Marshal(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	t.Setenv("SEQHIVE_SERVER_PORT", "9999")
	t.Setenv("SEQHIVE_BLAST_DEFAULT_EVALUE", "10")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 10.0, cfg.Blast.DefaultEvalue)
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, home, ExpandPath("~"))
	require.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
}

func TestExpandPathLeavesOtherPaths(t *testing.T) {
	require.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	require.Equal(t, "relative", ExpandPath("relative"))
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sequencehive.yaml")
	require.NoError(t, createDefault(path))

	_, err := os.Stat(path)
	require.NoError(t, err)
}
