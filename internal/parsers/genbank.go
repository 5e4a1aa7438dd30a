// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parsers

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// locusLine matches the GenBank LOCUS header, e.g.:
// LOCUS       pUC19                   2686 bp    DNA     circular SYN 1993
var locusLine = regexp.MustCompile(`^LOCUS\s+(\S+)\s+(\d+)\s+bp\s+(\S+)\s+(circular|linear)`)

// featureLoc matches a simple (non-joined) location like "123..456" or
// "complement(123..456)".
var featureLoc = regexp.MustCompile(`^(complement\()?(\d+)\.\.(\d+)\)?$`)

// GenBank parses a .gb/.gbk flat-file record: LOCUS header, FEATURES table,
// and the ORIGIN sequence block. Only the first record in a multi-record
// file is parsed (watcher rules rarely point biopython-style parsers at
// multi-record GenBank files for this library).
func GenBank(path string, extract []string) (ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParseResult{}, fmt.Errorf("open genbank: %w", err)
	}
	defer f.Close()

	result := ParseResult{Meta: map[string]any{}}
	var inFeatures, inOrigin bool
	var curFeat *Feature
	var seqBuilder strings.Builder
	var descLines []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := locusLine.FindStringSubmatch(line); m != nil {
			result.Name = m[1]
			result.Topology = m[4]
			continue
		}
		if strings.HasPrefix(line, "DEFINITION") {
			descLines = append(descLines, strings.TrimSpace(strings.TrimPrefix(line, "DEFINITION")))
			continue
		}
		if strings.HasPrefix(line, "FEATURES") {
			inFeatures = true
			continue
		}
		if strings.HasPrefix(line, "ORIGIN") {
			inFeatures = false
			inOrigin = true
			if curFeat != nil {
				result.Features = append(result.Features, *curFeat)
				curFeat = nil
			}
			continue
		}
		if line == "//" {
			break
		}

		if inOrigin {
			for _, tok := range strings.Fields(line) {
				if _, err := strconv.Atoi(tok); err == nil {
					continue // leading position number
				}
				seqBuilder.WriteString(strings.ToUpper(tok))
			}
			continue
		}

		if inFeatures {
			if len(line) > 5 && line[5] != ' ' {
				// new feature key + location, e.g. "     gene            123..456"
				if curFeat != nil {
					result.Features = append(result.Features, *curFeat)
				}
				fields := strings.Fields(line)
				if len(fields) < 2 {
					curFeat = nil
					continue
				}
				typ := fields[0]
				loc := fields[1]
				start, end, strand := parseLocation(loc)
				curFeat = &Feature{Type: typ, Start: start, End: end, Strand: strand, Qualifiers: map[string]string{}}
				continue
			}
			trimmed := strings.TrimSpace(line)
			if curFeat != nil && strings.HasPrefix(trimmed, "/") {
				kv := strings.TrimPrefix(trimmed, "/")
				parts := strings.SplitN(kv, "=", 2)
				key := parts[0]
				val := ""
				if len(parts) > 1 {
					val = strings.Trim(parts[1], `"`)
				}
				curFeat.Qualifiers[key] = val
				if key == "label" || (key == "gene" && curFeat.Name == "") {
					curFeat.Name = val
				}
				if curFeat.Name == "" {
					if note, ok := curFeat.Qualifiers["note"]; ok {
						curFeat.Name = note
					}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ParseResult{}, fmt.Errorf("read genbank: %w", err)
	}

	seq := seqBuilder.String()
	result.Sequence = seq
	result.SizeBP = len(seq)
	if result.Topology == "" {
		result.Topology = "linear"
	}
	result.Description = strings.Join(descLines, " ")
	result.Meta["molecule_type"] = DetectMoleculeType(seq)

	for i := range result.Features {
		if result.Features[i].Name == "" {
			result.Features[i].Name = result.Features[i].Type
		}
	}

	if result.Name == "" {
		return ParseResult{}, fmt.Errorf("no LOCUS line found in %s", path)
	}
	return result, nil
}

func parseLocation(loc string) (start, end, strand int) {
	strand = 1
	if strings.HasPrefix(loc, "complement(") {
		strand = -1
	}
	m := featureLoc.FindStringSubmatch(loc)
	if m == nil {
		return 0, 0, strand
	}
	s, _ := strconv.Atoi(m[2])
	e, _ := strconv.Atoi(m[3])
	// GenBank locations are 1-based inclusive; store 0-based, end-exclusive.
	return s - 1, e, strand
}
