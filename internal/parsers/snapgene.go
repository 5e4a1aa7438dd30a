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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SnapGene parses the .dna/.rna/.prot binary container format: a sequence
// of blocks, each a 1-byte type tag followed by a big-endian uint32 length
// and that many payload bytes. Block type 0 carries the sequence (first
// payload byte is a topology flag, bit 0 set means circular); block type 10
// carries a features XML document, parsed here with targeted regexes
// rather than a full XML decoder since only a handful of attributes matter
// to the index.
func SnapGene(path string, extract []string) (ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParseResult{}, fmt.Errorf("open snapgene: %w", err)
	}

	r := bytes.NewReader(data)
	result := ParseResult{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Topology: "linear",
		Meta:     map[string]any{},
	}

	for {
		var blockType uint8
		if err := binary.Read(r, binary.BigEndian, &blockType); err != nil {
			if err == io.EOF {
				break
			}
			return ParseResult{}, fmt.Errorf("read block type: %w", err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return ParseResult{}, fmt.Errorf("read block length: %w", err)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return ParseResult{}, fmt.Errorf("read block payload: %w", err)
		}

		switch blockType {
		case 0: // sequence
			if len(payload) == 0 {
				continue
			}
			flags := payload[0]
			if flags&0x01 != 0 {
				result.Topology = "circular"
			}
			result.Sequence = strings.ToUpper(string(payload[1:]))
			result.SizeBP = len(result.Sequence)
		case 10: // features XML
			result.Features = append(result.Features, parseSnapGeneFeatures(string(payload))...)
		case 6: // notes/description XML
			if m := snapgeneDescRe.FindStringSubmatch(string(payload)); m != nil {
				result.Description = m[1]
			}
		}
	}

	if result.Sequence == "" {
		return ParseResult{}, fmt.Errorf("no sequence block found in %s", path)
	}
	result.Meta["molecule_type"] = DetectMoleculeType(result.Sequence)

	if len(extract) > 0 {
		filtered := result.Features[:0]
		want := map[string]bool{}
		for _, e := range extract {
			want[e] = true
		}
		for _, f := range result.Features {
			if want[f.Name] {
				filtered = append(filtered, f)
			}
		}
		result.Features = filtered
	}
	return result, nil
}

var (
	snapgeneFeatureRe = regexp.MustCompile(`<Feature[^>]*type="([^"]*)"[^>]*name="([^"]*)"[^>]*>(.*?)</Feature>`)
	snapgeneSegmentRe = regexp.MustCompile(`<Segment[^>]*range="(\d+)-(\d+)"[^>]*(?:direction="(\w+)")?`)
	snapgeneDescRe    = regexp.MustCompile(`<Description>([^<]*)</Description>`)
)

func parseSnapGeneFeatures(xml string) []Feature {
	var feats []Feature
	for _, m := range snapgeneFeatureRe.FindAllStringSubmatch(xml, -1) {
		typ, name, body := m[1], m[2], m[3]
		seg := snapgeneSegmentRe.FindStringSubmatch(body)
		if seg == nil {
			continue
		}
		start, _ := strconv.Atoi(seg[1])
		end, _ := strconv.Atoi(seg[2])
		strand := 1
		if len(seg) > 3 && seg[3] == "reverse" {
			strand = -1
		}
		feats = append(feats, Feature{
			Name:   name,
			Type:   typ,
			Start:  start - 1, // SnapGene ranges are 1-based inclusive
			End:    end,
			Strand: strand,
		})
	}
	return feats
}
