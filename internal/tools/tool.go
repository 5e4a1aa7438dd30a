// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the pluggable tool runtime (C7-C11): the
// abstract tool contract and registry, internal/external tool discovery
// and the quarantine gate, the sequence resolver, and the individual
// tools exposed to the agentic router.
package tools

import "context"

// Mode is the invocation mode a tool executes under (§4.11 + the
// supplemented rerun mode from SPEC_FULL.md).
type Mode string

const (
	ModeDirect  Mode = "direct"
	ModeGuided  Mode = "guided"
	ModeNatural Mode = "natural"
	ModeRerun   Mode = "rerun"
)

// Well-known tags.
const (
	TagLLM    = "llm"
	TagHidden = "hidden"
)

// Params is the parsed argument bag passed to Execute.
type Params map[string]any

// Result is the free-form result mapping a tool produces.
type Result map[string]any

// Tool is the uniform contract every tool (internal or external) must
// satisfy (§4.6).
type Tool interface {
	Name() string
	Description() string
	Widget() string
	Tags() []string
	// Guidelines, if non-empty, is the LLM-visible description, used in
	// place of Description when richer.
	Guidelines() string
	// InputSchema is the JSON Schema for Params, in the hand-declared or
	// derived shape described by §4.6.
	InputSchema() map[string]any
	// Execute runs the tool. It must never panic; panics are contained by
	// the registry wrapper, but a well-behaved tool returns an error
	// instead.
	Execute(ctx context.Context, params Params, mode Mode) (Result, error)
	FormatResult(result Result) string
}

// Metadata is the UI-bootstrap shape for one tool (§4.6's registry
// metadata() list).
type Metadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Widget      string         `json:"widget"`
	Tags        []string       `json:"tags"`
	InputSchema map[string]any `json:"input_schema"`
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// describe returns the LLM-facing description: Guidelines if set, else
// Description.
func describe(t Tool) string {
	if g := t.Guidelines(); g != "" {
		return g
	}
	return t.Description()
}
