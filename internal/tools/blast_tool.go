// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aleutian-labs/sequencehive/internal/config"
	"github.com/aleutian-labs/sequencehive/internal/seqbio"
	"github.com/aleutian-labs/sequencehive/internal/store"
)

// forbiddenBlastFlags would redirect I/O or leak data externally; extra{}
// keys matching one of these are rejected outright, per §4.9.
var forbiddenBlastFlags = map[string]bool{
	"outfmt": true, "out": true, "query": true, "db": true, "remote": true, "html": true,
	"import_search_strategy": true, "export_search_strategy": true,
	"gilist": true, "negative_gilist": true, "seqidlist": true, "negative_seqidlist": true,
	"entrez_query": true, "blastdb_version": true,
}

const blastOutfmt = "6 sseqid pident length mismatch gapopen qstart qend sstart send evalue bitscore"

// BlastTool runs a similarity search against the local BLAST-style database
// built by C6, shelling out to blastn/blastp on PATH (or a configured
// directory).
type BlastTool struct {
	resolver *Resolver
	store    *store.Store
	dbDir    string
	binDir   string
	cfg      config.BlastConfig
}

func NewBlastTool(r *Resolver, st *store.Store, dbDir string, cfg config.BlastConfig) *BlastTool {
	return &BlastTool{resolver: r, store: st, dbDir: dbDir, binDir: cfg.BinDir, cfg: cfg}
}

func (t *BlastTool) Name() string        { return "blast" }
func (t *BlastTool) Description() string { return "Search the local similarity index for sequences resembling a query." }
func (t *BlastTool) Widget() string      { return "table" }
func (t *BlastTool) Tags() []string      { return []string{TagLLM} }
func (t *BlastTool) Guidelines() string {
	return "sequence may be a numeric SID, a stored sequence name, or a raw residue string. " +
		"program auto-detects from the query's alphabet unless given explicitly. extra{} keys that " +
		"redirect I/O (outfmt, out, query, db, remote, ...) are rejected."
}

func (t *BlastTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sequence":   map[string]any{"type": "string"},
			"program":    map[string]any{"type": "string", "enum": []string{"auto", "blastn", "blastp", "blastx", "tblastn", "tblastx"}},
			"evalue":     map[string]any{"type": "number"},
			"max_hits":   map[string]any{"type": "integer"},
			"word_size":  map[string]any{"type": "integer"},
			"matrix":     map[string]any{"type": "string"},
			"gap_open":   map[string]any{"type": "integer"},
			"gap_extend": map[string]any{"type": "integer"},
			"task":       map[string]any{"type": "string"},
			"extra":      map[string]any{"type": "object"},
		},
		"required": []string{"sequence"},
	}
}

// BlastHit is one tabular result row of outfmt 6.
type BlastHit struct {
	Subject    string
	Identity   float64
	Length     int
	Mismatch   int
	GapOpen    int
	QStart     int
	QEnd       int
	SStart     int
	SEnd       int
	Evalue     float64
	Bitscore   float64
	FilePath   string
}

func (t *BlastTool) Execute(ctx context.Context, params Params, mode Mode) (Result, error) {
	ref, _ := params["sequence"].(string)
	if ref == "" {
		return nil, fmt.Errorf("blast: sequence is required")
	}
	query, err := t.resolveQuery(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("blast: %w", err)
	}

	program, _ := params["program"].(string)
	nucleotide := seqbio.LooksLikeSequence(query) && !looksLikeProtein(query)
	if program == "" || program == "auto" {
		if nucleotide {
			program = "blastn"
		} else {
			program = "blastp"
		}
	}
	switch program {
	case "blastn", "blastp", "blastx", "tblastn", "tblastx":
	default:
		return nil, fmt.Errorf("blast: unknown program %q", program)
	}

	args, err := t.buildArgs(program, query, params)
	if err != nil {
		return nil, fmt.Errorf("blast: %w", err)
	}

	bin := program
	if t.binDir != "" {
		bin = filepath.Join(t.binDir, program)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(">query\n" + query + "\n")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("blast: %s: %w", program, err)
	}

	hits := parseBlastOutput(string(output))
	t.resolveFilePaths(ctx, hits)

	hitRows := make([]any, 0, len(hits))
	for _, h := range hits {
		hitRows = append(hitRows, map[string]any{
			"subject": h.Subject, "identity": h.Identity, "length": h.Length,
			"mismatch": h.Mismatch, "gap_open": h.GapOpen,
			"q_start": h.QStart, "q_end": h.QEnd, "s_start": h.SStart, "s_end": h.SEnd,
			"evalue": h.Evalue, "bitscore": h.Bitscore, "file_path": h.FilePath,
		})
	}
	return Result{"hits": hitRows, "total": len(hitRows), "query_length": len(query), "program": program}, nil
}

func (t *BlastTool) FormatResult(result Result) string {
	total, _ := result["total"].(int)
	return fmt.Sprintf("%d BLAST hit(s).", total)
}

func (t *BlastTool) resolveQuery(ctx context.Context, ref string) (string, error) {
	if seqbio.LooksLikeSequence(ref) {
		return ref, nil
	}
	seq, err := t.resolver.Resolve(ctx, ResolveOptions{Ref: ref, ActiveOnly: true})
	if err != nil {
		return "", err
	}
	return seq.Sequence, nil
}

func looksLikeProtein(s string) bool {
	up := strings.ToUpper(s)
	for _, c := range up {
		if strings.ContainsRune("EFILPQZ*", c) {
			return true
		}
	}
	return false
}

// buildArgs assembles the blast command line, applying the short-query
// heuristics of §4.9 (word_size/task/dust/evalue adjustments below 20/30/50
// nt for blastn) and rejecting forbidden extra{} flags.
func (t *BlastTool) buildArgs(program, query string, params Params) ([]string, error) {
	evalue := t.cfg.DefaultEvalue
	if v, ok := params["evalue"].(float64); ok {
		evalue = v
	}
	maxHits := t.cfg.DefaultMaxHits
	if v, ok := asInt(params["max_hits"]); ok {
		maxHits = v
	}

	dbPrefix := filepath.Join(t.dbDir, "nucleotide")
	if program == "blastp" || program == "blastx" {
		dbPrefix = filepath.Join(t.dbDir, "protein")
	}

	args := []string{
		"-db", dbPrefix,
		"-outfmt", blastOutfmt,
		"-max_target_seqs", strconv.Itoa(maxHits),
	}

	var wordSize, gapOpen, gapExtend int
	var hasWordSize, hasGapOpen, hasGapExtend bool
	var task, matrix string
	if v, ok := asInt(params["word_size"]); ok {
		wordSize, hasWordSize = v, true
	}
	if v, ok := asInt(params["gap_open"]); ok {
		gapOpen, hasGapOpen = v, true
	}
	if v, ok := asInt(params["gap_extend"]); ok {
		gapExtend, hasGapExtend = v, true
	}
	if v, ok := params["task"].(string); ok {
		task = v
	}
	if v, ok := params["matrix"].(string); ok {
		matrix = v
	}

	dustOff := false
	if program == "blastn" {
		n := len(query)
		switch {
		case n < 20:
			evalue = 1000
		case n < 50:
			evalue = 10
		}
		if n < 30 {
			if task == "" {
				task = "blastn-short"
			}
			if !hasWordSize {
				wordSize, hasWordSize = 7, true
			}
			dustOff = true
		}
	}

	args = append(args, "-evalue", strconv.FormatFloat(evalue, 'g', -1, 64))
	if hasWordSize {
		args = append(args, "-word_size", strconv.Itoa(wordSize))
	}
	if hasGapOpen {
		args = append(args, "-gapopen", strconv.Itoa(gapOpen))
	}
	if hasGapExtend {
		args = append(args, "-gapextend", strconv.Itoa(gapExtend))
	}
	if task != "" {
		args = append(args, "-task", task)
	}
	if matrix != "" {
		args = append(args, "-matrix", matrix)
	}
	if dustOff {
		args = append(args, "-dust", "no")
	}

	if extra, ok := params["extra"].(map[string]any); ok {
		for k, v := range extra {
			if forbiddenBlastFlags[k] {
				return nil, fmt.Errorf("extra flag %q is not permitted", k)
			}
			args = append(args, "-"+k, fmt.Sprintf("%v", v))
		}
	}
	return args, nil
}

// parseBlastOutput reads tabular outfmt-6 rows matching blastOutfmt's column
// order.
func parseBlastOutput(output string) []BlastHit {
	var hits []BlastHit
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 11 {
			continue
		}
		h := BlastHit{Subject: cols[0]}
		h.Identity, _ = strconv.ParseFloat(cols[1], 64)
		h.Length, _ = strconv.Atoi(cols[2])
		h.Mismatch, _ = strconv.Atoi(cols[3])
		h.GapOpen, _ = strconv.Atoi(cols[4])
		h.QStart, _ = strconv.Atoi(cols[5])
		h.QEnd, _ = strconv.Atoi(cols[6])
		h.SStart, _ = strconv.Atoi(cols[7])
		h.SEnd, _ = strconv.Atoi(cols[8])
		h.Evalue, _ = strconv.ParseFloat(cols[9], 64)
		h.Bitscore, _ = strconv.ParseFloat(cols[10], 64)
		hits = append(hits, h)
	}
	return hits
}

// resolveFilePaths annotates each hit with its source file's display path,
// matching the FASTA-exported subject name (spaces replaced with
// underscores at export time, per blastindex.sanitizeName) back to
// IndexedFile.file_path through the Sequence join.
func (t *BlastTool) resolveFilePaths(ctx context.Context, hits []BlastHit) {
	for i := range hits {
		name := strings.ReplaceAll(hits[i].Subject, "_", " ")
		seq, err := t.store.GetSequenceByName(ctx, name, true)
		if err != nil {
			continue
		}
		f, err := t.store.GetFile(ctx, seq.FileID)
		if err != nil {
			continue
		}
		hits[i].FilePath = f.FilePath
	}
}
