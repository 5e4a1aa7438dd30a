// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package config defines the configuration schema for sequencehive and loads
it from a YAML file overlaid with environment variables.

The file lives at ~/.sequencehive/sequencehive.yaml and is created
automatically, with defaults, on first run.
*/
package config

import "time"

// WatcherRule maps a filename glob to an ingestion action.
type WatcherRule struct {
	Match   string   `yaml:"match"`
	Action  string   `yaml:"action"` // parse | ignore | log
	Parser  string   `yaml:"parser,omitempty"`
	Extract []string `yaml:"extract,omitempty"`
	Message string   `yaml:"message,omitempty"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LLMConfig struct {
	Models            []string `yaml:"models"`
	AutoDiscover      bool     `yaml:"auto_discover"`
	SummaryTokenLimit int      `yaml:"summary_token_limit"`
	AgentMaxTurns     int      `yaml:"agent_max_turns"`
	PipeMinLength     int      `yaml:"pipe_min_length"`
	APIKey            string   `yaml:"api_key,omitempty"`
	BaseURL           string   `yaml:"base_url,omitempty"`
}

type BlastConfig struct {
	BinDir          string  `yaml:"bin_dir"`
	DefaultEvalue   float64 `yaml:"default_evalue"`
	DefaultMaxHits  int     `yaml:"default_max_hits"`
}

type ChatConfig struct {
	MaxHistoryPairs     int `yaml:"max_history_pairs"`
	AutoSaveAfter       int `yaml:"auto_save_after"`
	WidgetDataThreshold int `yaml:"widget_data_threshold"`
}

type WatcherConfig struct {
	Root         string        `yaml:"root"`
	Recursive    bool          `yaml:"recursive"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Rules        []WatcherRule `yaml:"rules"`
}

// Config is the root configuration record. Fields mirror spec.md §6.
type Config struct {
	DataRoot string         `yaml:"data_root"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Blast    BlastConfig    `yaml:"blast"`
	Chat     ChatConfig     `yaml:"chat"`
	Watcher  WatcherConfig  `yaml:"watcher"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		DataRoot: "~/.sequencehive/data",
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8420},
		Database: DatabaseConfig{URL: "~/.sequencehive/data/index.db"},
		LLM: LLMConfig{
			Models:            []string{"gpt-4o-mini"},
			AutoDiscover:      false,
			SummaryTokenLimit: 1000,
			AgentMaxTurns:     8,
			PipeMinLength:     200,
		},
		Blast: BlastConfig{
			BinDir:         "",
			DefaultEvalue:  1e-5,
			DefaultMaxHits: 50,
		},
		Chat: ChatConfig{
			MaxHistoryPairs:     20,
			AutoSaveAfter:       2,
			WidgetDataThreshold: 64 * 1024,
		},
		Watcher: WatcherConfig{
			Root:         "~/sequences",
			Recursive:    true,
			PollInterval: 2 * time.Second,
			Rules: []WatcherRule{
				{Match: "*.gb", Action: "parse", Parser: "biopython"},
				{Match: "*.gbk", Action: "parse", Parser: "biopython"},
				{Match: "*.fa", Action: "parse", Parser: "fasta"},
				{Match: "*.fasta", Action: "parse", Parser: "fasta"},
				{Match: "*.dna", Action: "parse", Parser: "snapgene"},
				{Match: "*.rna", Action: "parse", Parser: "snapgene"},
				{Match: "*.prot", Action: "parse", Parser: "snapgene"},
				{Match: ".*", Action: "ignore"},
			},
		},
	}
}
