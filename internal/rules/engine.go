// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules implements the filename-to-action mapping (C2): a
// top-down, first-match glob rule list loaded from config.
package rules

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aleutian-labs/sequencehive/internal/config"
)

// Actions a rule can resolve to.
const (
	ActionParse  = "parse"
	ActionIgnore = "ignore"
	ActionLog    = "log"
)

// MatchResult is what the engine resolves a filename to.
type MatchResult struct {
	Action  string
	Parser  string
	Extract []string
	Message string
}

// Engine evaluates config.WatcherRule entries top-down, first match wins.
type Engine struct {
	rules []config.WatcherRule
}

// New builds an Engine from the configured rule list.
func New(watcherRules []config.WatcherRule) *Engine {
	return &Engine{rules: watcherRules}
}

// Match resolves path against the rule list. A filename matching no rule
// produces a log-only result rather than an error.
func (e *Engine) Match(path string) (MatchResult, error) {
	base := filepath.Base(path)
	for _, r := range e.rules {
		ok, err := doublestar.Match(r.Match, base)
		if err != nil {
			return MatchResult{}, fmt.Errorf("rules: invalid glob %q: %w", r.Match, err)
		}
		if !ok {
			// Also try matching against the full path for rules that
			// encode directory structure (e.g. "**/plasmids/*.gb").
			ok, err = doublestar.Match(r.Match, filepath.ToSlash(path))
			if err != nil {
				return MatchResult{}, fmt.Errorf("rules: invalid glob %q: %w", r.Match, err)
			}
		}
		if !ok {
			continue
		}
		switch r.Action {
		case ActionParse:
			return MatchResult{Action: ActionParse, Parser: r.Parser, Extract: r.Extract}, nil
		case ActionLog:
			return MatchResult{Action: ActionLog, Message: r.Message}, nil
		default:
			return MatchResult{Action: ActionIgnore}, nil
		}
	}
	return MatchResult{Action: ActionLog, Message: "no rule matched"}, nil
}
