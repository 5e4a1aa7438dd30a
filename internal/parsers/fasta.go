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
	"strings"
)

// FASTA parses a .fa/.fasta file. Only the first record is indexed as the
// library's canonical representation of the file; a watcher rule naming
// extract selectors restricts by header name.
func FASTA(path string, extract []string) (ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParseResult{}, fmt.Errorf("open fasta: %w", err)
	}
	defer f.Close()

	want := map[string]bool{}
	for _, e := range extract {
		want[e] = true
	}

	var (
		curName string
		curDesc string
		curSeq  strings.Builder
		chosen  *ParseResult
	)

	flush := func() {
		if curName == "" {
			return
		}
		if len(want) > 0 && !want[curName] {
			return
		}
		if chosen != nil {
			return // first matching record wins
		}
		seq := curSeq.String()
		chosen = &ParseResult{
			Name:        curName,
			Sequence:    seq,
			SizeBP:      len(seq),
			Topology:    "linear",
			Description: curDesc,
			Meta:        map[string]any{"molecule_type": DetectMoleculeType(seq)},
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimPrefix(line, ">")
			parts := strings.SplitN(header, " ", 2)
			curName = strings.TrimSpace(parts[0])
			curDesc = ""
			if len(parts) > 1 {
				curDesc = strings.TrimSpace(parts[1])
			}
			curSeq.Reset()
			continue
		}
		curSeq.WriteString(strings.TrimSpace(line))
	}
	flush()
	if err := scanner.Err(); err != nil {
		return ParseResult{}, fmt.Errorf("read fasta: %w", err)
	}
	if chosen == nil {
		return ParseResult{}, fmt.Errorf("no FASTA record found in %s", path)
	}
	return *chosen, nil
}
