// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sequencehive runs the local sequence library assistant: the
// filesystem watcher, the tool runtime, and the client channel.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "sequencehive",
		Short: "A local biology-lab sequence library assistant",
		Long:  `sequencehive watches a directory of sequence files, indexes them, and exposes a chat assistant backed by a pluggable tool runtime.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the watcher and the client channel",
		Run:   runServe,
	}

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Run a single ingestion scan over the watched root and exit",
		Run:   runScan,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect the loaded configuration",
	}
	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Run:   runConfigShow,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
