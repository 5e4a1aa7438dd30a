// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store is the typed relational index (C3): files, sequences,
// features, primers, users, and tool approvals, plus a fuzzy search index
// over sequence/feature names and JSON metadata.
package store

import "time"

// File statuses.
const (
	FileStatusActive  = "active"
	FileStatusDeleted = "deleted"
	FileStatusError   = "error"
)

// Topologies.
const (
	TopologyCircular = "circular"
	TopologyLinear   = "linear"
)

// Tool approval statuses.
const (
	ApprovalQuarantined = "quarantined"
	ApprovalApproved    = "approved"
	ApprovalRejected    = "rejected"
)

// File is the IndexedFile row of spec.md §3.
type File struct {
	ID        int64
	FilePath  string
	FileHash  string
	Format    string
	Status    string
	ErrorMsg  *string
	FileSize  int64
	FileMtime time.Time
	IndexedAt time.Time
}

// Sequence is the Sequence row of spec.md §3.
type Sequence struct {
	ID          int64
	FileID      int64
	Name        string
	SizeBP      int
	Topology    string
	Sequence    string
	Description string
	Meta        map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Eager-loaded associations, populated on demand by the resolver (C10).
	Features []Feature
	Primers  []Primer
	File     *File
}

// Tags returns the ordered directory-segment tags derived at ingest time.
func (s Sequence) Tags() []string {
	raw, ok := s.Meta["tags"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		if ss, ok := raw.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MoleculeType returns the meta.molecule_type field (DNA, RNA, protein).
func (s Sequence) MoleculeType() string {
	if mt, ok := s.Meta["molecule_type"].(string); ok {
		return mt
	}
	return ""
}

// Feature is the Feature row of spec.md §3. Coordinates are 0-based,
// end-exclusive.
type Feature struct {
	ID         int64
	SeqID      int64
	Name       string
	Type       string
	Start      int
	End        int
	Strand     int
	Qualifiers map[string]string
}

// Primer is the Primer row of spec.md §3.
type Primer struct {
	ID       int64
	SeqID    int64
	Name     string
	Sequence string
	Tm       *float64
	Start    *int
	End      *int
	Strand   *int
}

// User is the User row of spec.md §3.
type User struct {
	ID          int64
	Username    string
	Slug        string
	Token       string
	Preferences map[string]any
	CreatedAt   time.Time
}

// ToolApproval is the approval-gate row for external tools (C9).
type ToolApproval struct {
	Filename   string
	FileHash   string
	ToolName   *string
	Status     string
	CreatedAt  time.Time
	ReviewedAt *time.Time
}
