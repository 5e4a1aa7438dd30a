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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// Global is the process-wide configuration singleton.
	Global Config
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable exactly once.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

// LoadFrom loads and returns a config from an explicit path, bypassing the
// singleton — used by the singleton's own first load and by tests.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyEnvOverlay(&cfg)
	return cfg, nil
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not find the user's home directory: %w", err)
	}
	configPath := filepath.Join(home, ".sequencehive", "sequencehive.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}
	cfg, err := LoadFrom(configPath)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

// ExpandPath expands a leading "~" to the user's home directory. Every
// path-shaped config field (DataRoot, Database.URL, Watcher.Root) is
// written with "~/..." in DefaultConfig and must pass through here before
// use.
func ExpandPath(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverlay overrides config fields from SEQHIVE_* environment
// variables, per spec.md §6's "YAML file overlaid with environment
// variables". The teacher's loader has no equivalent of this step for any
// of its config types, so this follows plain os.Getenv checks in its idiom
// rather than reaching for a third-party env-binding library (see
// DESIGN.md).
func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("SEQHIVE_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("SEQHIVE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SEQHIVE_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SEQHIVE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SEQHIVE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SEQHIVE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SEQHIVE_LLM_AGENT_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.AgentMaxTurns = n
		}
	}
	if v := os.Getenv("SEQHIVE_LLM_SUMMARY_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.SummaryTokenLimit = n
		}
	}
	if v := os.Getenv("SEQHIVE_LLM_PIPE_MIN_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.PipeMinLength = n
		}
	}
	if v := os.Getenv("SEQHIVE_BLAST_BIN_DIR"); v != "" {
		cfg.Blast.BinDir = v
	}
	if v := os.Getenv("SEQHIVE_BLAST_DEFAULT_EVALUE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Blast.DefaultEvalue = f
		}
	}
	if v := os.Getenv("SEQHIVE_BLAST_DEFAULT_MAX_HITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Blast.DefaultMaxHits = n
		}
	}
	if v := os.Getenv("SEQHIVE_WATCHER_ROOT"); v != "" {
		cfg.Watcher.Root = v
	}
	if v := os.Getenv("SEQHIVE_WATCHER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watcher.PollInterval = d
		}
	}
	if v := os.Getenv("SEQHIVE_CHAT_MAX_HISTORY_PAIRS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.MaxHistoryPairs = n
		}
	}
	if v := os.Getenv("SEQHIVE_CHAT_AUTO_SAVE_AFTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.AutoSaveAfter = n
		}
	}
}
