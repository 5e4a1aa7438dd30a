// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchFilters compose by conjunction with the fuzzy query (§4.2).
type SearchFilters struct {
	Topology    string // "" | circular | linear
	SizeMin     *int
	SizeMax     *int
	FeatureType string // "" means no filter
}

// SearchResult is one scored row of a search, shaped for C11's search tool.
type SearchResult struct {
	Sequence Sequence
	FilePath string
	Tags     []string
	Score    float64
}

// scoreFloor is the minimum per-record fuzzy score for inclusion, per
// spec.md §4.2 ("at least one score >= 0.1").
const scoreFloor = 0.1

// Search runs the boolean + fuzzy query of §4.2 over active sequences.
// Boolean composition: "&&" (AND, score = min over terms), "||" (OR,
// score = max over terms). A bare term's score is max(name, description,
// best feature name, tags). A term that equals a topology literal also
// passes even with a low text score, since it's meant as a structural
// filter riding along in the query string.
//
// The sequences_fts/features_fts trigram tables narrow the candidate set
// to rows the query could plausibly match before the exact per-field
// score (fieldScore, in similarity.go) runs in Go: each query term is
// MATCHed against both tables and the per-clause/per-query id sets are
// combined the same way the boolean query itself combines (AND ->
// intersect, OR -> union). A term too short for the trigram tokenizer to
// index (<3 runes) or equal to a topology literal can't be narrowed by
// FTS and falls back to "matches everything", which degrades that one
// clause (or the whole query, if it's the bare query) to a full scan —
// exactness, never false negatives, is preserved either way.
func (s *Store) Search(ctx context.Context, query string, filters SearchFilters) ([]SearchResult, error) {
	clauses := parseBooleanQuery(query)
	candidateIDs, narrowed, err := s.ftsNarrowedIDs(ctx, clauses)
	if err != nil {
		return nil, err
	}
	if narrowed && len(candidateIDs) == 0 {
		return nil, nil
	}

	q := `
		SELECT sq.id, sq.file_id, sq.name, sq.size_bp, sq.topology, sq.sequence, sq.description, sq.meta,
		       sq.created_at, sq.updated_at, f.file_path
		FROM sequences sq JOIN files f ON f.id = sq.file_id
		WHERE f.status = 'active'`
	args := []any{}
	if narrowed {
		placeholders := make([]string, 0, len(candidateIDs))
		for id := range candidateIDs {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		q += fmt.Sprintf(" AND sq.id IN (%s)", strings.Join(placeholders, ","))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		seq      Sequence
		filePath string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var metaJSON string
		var created, updated int64
		if err := rows.Scan(&c.seq.ID, &c.seq.FileID, &c.seq.Name, &c.seq.SizeBP, &c.seq.Topology,
			&c.seq.Sequence, &c.seq.Description, &metaJSON, &created, &updated, &c.filePath); err != nil {
			return nil, fmt.Errorf("store: scan search row: %w", err)
		}
		c.seq.Meta = map[string]any{}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &c.seq.Meta)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, c := range candidates {
		if !filterMatches(c.seq, filters) {
			continue
		}
		feats, err := s.LoadFeatures(ctx, c.seq.ID)
		if err != nil {
			return nil, err
		}
		if filters.FeatureType != "" {
			hasType := false
			for _, f := range feats {
				if f.Type == filters.FeatureType {
					hasType = true
					break
				}
			}
			if !hasType {
				continue
			}
		}
		score, ok := scoreClauses(c.seq, feats, clauses)
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			Sequence: c.seq,
			FilePath: c.filePath,
			Tags:     tagsOf(c.seq.Meta),
			Score:    score,
		})
	}
	return results, nil
}

func filterMatches(seq Sequence, f SearchFilters) bool {
	if f.Topology != "" && seq.Topology != f.Topology {
		return false
	}
	if f.SizeMin != nil && seq.SizeBP < *f.SizeMin {
		return false
	}
	if f.SizeMax != nil && seq.SizeBP > *f.SizeMax {
		return false
	}
	return true
}

// booleanClause is a disjunct of conjuncts: OR-of-ANDs.
type booleanClause [][]string

func parseBooleanQuery(query string) booleanClause {
	query = strings.TrimSpace(query)
	if query == "" {
		return booleanClause{{""}}
	}
	ors := strings.Split(query, "||")
	clauses := make(booleanClause, 0, len(ors))
	for _, or := range ors {
		ands := strings.Split(or, "&&")
		terms := make([]string, 0, len(ands))
		for _, t := range ands {
			t = strings.TrimSpace(t)
			if t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) == 0 {
			continue
		}
		clauses = append(clauses, terms)
	}
	if len(clauses) == 0 {
		return booleanClause{{""}}
	}
	return clauses
}

// scoreClauses evaluates an OR-of-ANDs query against one sequence record,
// returning the best matching clause's score, or ok=false if no clause
// clears the floor.
func scoreClauses(seq Sequence, feats []Feature, clauses booleanClause) (float64, bool) {
	best := -1.0
	for _, terms := range clauses {
		score := 1.0 // identity for min-reduction
		anyTerm := false
		for _, term := range terms {
			anyTerm = true
			ts := termScore(seq, feats, term)
			if ts < score {
				score = ts
			}
		}
		if !anyTerm {
			score = 0
		}
		if score > best {
			best = score
		}
	}
	if best < scoreFloor {
		return 0, false
	}
	return best, true
}

func termScore(seq Sequence, feats []Feature, term string) float64 {
	if term == "" {
		return 1 // empty query matches everything
	}
	lower := strings.ToLower(strings.TrimSpace(term))
	if lower == strings.ToLower(seq.Topology) && (lower == TopologyCircular || lower == TopologyLinear) {
		return 1
	}

	best := fieldScore(seq.Name, term)
	if d := fieldScore(seq.Description, term); d > best {
		best = d
	}
	for _, feat := range feats {
		if fs := fieldScore(feat.Name, term); fs > best {
			best = fs
		}
	}
	for _, tag := range tagsOf(seq.Meta) {
		if ts := fieldScore(tag, term); ts > best {
			best = ts
		}
	}
	return best
}

// ftsMinTermRunes is the shortest term the trigram tokenizer can narrow
// on; fts5's trigram index is built from overlapping 3-character windows,
// so a MATCH against a 1- or 2-rune query can't be trusted to find every
// substring hit.
const ftsMinTermRunes = 3

// ftsNarrowedIDs computes the candidate sequence id set for an OR-of-ANDs
// query by intersecting each AND-clause's per-term id sets and unioning
// the clauses, mirroring scoreClauses' own min/max composition. narrowed
// is false when no clause could be narrowed at all (e.g. an empty query),
// meaning the caller must fall back to scanning every active sequence.
func (s *Store) ftsNarrowedIDs(ctx context.Context, clauses booleanClause) (map[int64]bool, bool, error) {
	union := map[int64]bool{}
	for _, terms := range clauses {
		ids, ok, err := s.ftsClauseIDs(ctx, terms)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		for id := range ids {
			union[id] = true
		}
	}
	return union, true, nil
}

// ftsClauseIDs intersects the per-term candidate sets of one AND-clause.
// A term that can't be narrowed (too short, or a topology literal) is
// skipped rather than treated as an empty set, since it doesn't restrict
// the clause at all; if every term in the clause is like that, the whole
// clause is reported unnarrowable.
func (s *Store) ftsClauseIDs(ctx context.Context, terms []string) (map[int64]bool, bool, error) {
	var ids map[int64]bool
	narrowed := false
	for _, term := range terms {
		termIDs, ok, err := s.ftsTermIDs(ctx, term)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		if !narrowed {
			ids = termIDs
			narrowed = true
			continue
		}
		for id := range ids {
			if !termIDs[id] {
				delete(ids, id)
			}
		}
	}
	return ids, narrowed, nil
}

// ftsTermIDs runs term against both trigram tables and returns the union
// of matching sequence ids (features_fts hits are mapped to their owning
// sequence). ok is false when term can't meaningfully narrow anything.
func (s *Store) ftsTermIDs(ctx context.Context, term string) (map[int64]bool, bool, error) {
	trimmed := strings.TrimSpace(term)
	lower := strings.ToLower(trimmed)
	if trimmed == "" || lower == TopologyCircular || lower == TopologyLinear || len([]rune(trimmed)) < ftsMinTermRunes {
		return nil, false, nil
	}
	phrase := ftsMatchPhrase(trimmed)
	ids := map[int64]bool{}

	seqRows, err := s.db.QueryContext(ctx, `SELECT rowid FROM sequences_fts WHERE sequences_fts MATCH ?`, phrase)
	if err != nil {
		return nil, false, fmt.Errorf("store: fts match sequences: %w", err)
	}
	for seqRows.Next() {
		var id int64
		if err := seqRows.Scan(&id); err != nil {
			seqRows.Close()
			return nil, false, fmt.Errorf("store: scan fts sequence id: %w", err)
		}
		ids[id] = true
	}
	if err := seqRows.Err(); err != nil {
		seqRows.Close()
		return nil, false, err
	}
	seqRows.Close()

	featRows, err := s.db.QueryContext(ctx, `
		SELECT ft.seq_id FROM features ft
		JOIN features_fts ON features_fts.rowid = ft.id
		WHERE features_fts MATCH ?`, phrase)
	if err != nil {
		return nil, false, fmt.Errorf("store: fts match features: %w", err)
	}
	for featRows.Next() {
		var id int64
		if err := featRows.Scan(&id); err != nil {
			featRows.Close()
			return nil, false, fmt.Errorf("store: scan fts feature seq id: %w", err)
		}
		ids[id] = true
	}
	if err := featRows.Err(); err != nil {
		featRows.Close()
		return nil, false, err
	}
	featRows.Close()

	return ids, true, nil
}

// ftsMatchPhrase quotes term as an fts5 string literal so MATCH treats it
// as a literal phrase rather than parsing it for query syntax (AND/OR/NOT,
// column filters, etc.).
func ftsMatchPhrase(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}
