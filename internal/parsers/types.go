// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parsers produces ParseResult records from sequence files. Parsers
// are pure functions: given a path and an extract selector, they return a
// ParseResult or an error. They never touch the database.
package parsers

// Feature is a parsed annotation on a sequence. Coordinates are 0-based,
// end-exclusive.
type Feature struct {
	Name       string
	Type       string
	Start      int
	End        int
	Strand     int // +1, -1, or 0
	Qualifiers map[string]string
}

// Primer is a parsed primer annotation.
type Primer struct {
	Name     string
	Sequence string
	Tm       *float64
	Start    *int
	End      *int
	Strand   *int
}

// ParseResult is what every parser produces for one sequence record.
type ParseResult struct {
	Name        string
	Sequence    string
	SizeBP      int
	Topology    string // circular | linear
	Description string
	Features    []Feature
	Primers     []Primer
	Meta        map[string]any
}

// MoleculeType classifies a parsed sequence for the similarity-index
// builder (C6).
func (r ParseResult) MoleculeType() string {
	if mt, ok := r.Meta["molecule_type"].(string); ok && mt != "" {
		return mt
	}
	return DetectMoleculeType(r.Sequence)
}

// DetectMoleculeType classifies a raw sequence string as DNA, RNA, or
// protein by alphabet.
func DetectMoleculeType(seq string) string {
	hasU, hasT, other := false, false, false
	for _, c := range seq {
		switch c {
		case 'U', 'u':
			hasU = true
		case 'T', 't':
			hasT = true
		case 'A', 'a', 'C', 'c', 'G', 'g', 'N', 'n':
			// nucleic, ambiguous between DNA/RNA
		default:
			other = true
		}
	}
	if other {
		return "protein"
	}
	if hasU && !hasT {
		return "RNA"
	}
	return "DNA"
}

// A Parser turns the file at path into one ParseResult record.
// `extract` is an optional selector list from the matched watcher rule:
// FASTA uses it to pick a record by header name, SnapGene to keep only the
// named features, and GenBank ignores it.
type Parser func(path string, extract []string) (ParseResult, error)
