// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package seqbio holds the pure sequence-math functions shared by several
// tools (C11): reverse-complement, GC composition, transcription,
// translation, and restriction digestion.
package seqbio

import (
	"fmt"
	"strings"
)

var iupacComplement = map[byte]byte{
	'A': 'T', 'T': 'A', 'G': 'C', 'C': 'G',
	'U': 'A', 'R': 'Y', 'Y': 'R', 'S': 'S', 'W': 'W',
	'K': 'M', 'M': 'K', 'B': 'V', 'V': 'B', 'D': 'H', 'H': 'D',
	'N': 'N',
	'a': 't', 't': 'a', 'g': 'c', 'c': 'g',
	'u': 'a', 'r': 'y', 'y': 'r', 's': 's', 'w': 'w',
	'k': 'm', 'm': 'k', 'b': 'v', 'v': 'b', 'd': 'h', 'h': 'd',
	'n': 'n',
}

// ReverseComplement reverse-complements a IUPAC nucleotide string (P4:
// ReverseComplement(ReverseComplement(x)) == x).
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		c, ok := iupacComplement[seq[i]]
		if !ok {
			c = seq[i]
		}
		out[len(seq)-1-i] = c
	}
	return string(out)
}

// Composition is the base-count result of the gc tool.
type Composition struct {
	A, C, G, T, N int
	Length        int
	GCPercent     float64
	ATPercent     float64
}

// GC trims whitespace and counts A/C/G/T/N composition, per §4.9's gc tool
// (P5: GCPercent + ATPercent == 100 for nonempty ACGT-only input).
func GC(seq string) Composition {
	seq = strings.Join(strings.Fields(seq), "")
	var comp Composition
	for _, c := range strings.ToUpper(seq) {
		switch c {
		case 'A':
			comp.A++
		case 'C':
			comp.C++
		case 'G':
			comp.G++
		case 'T':
			comp.T++
		case 'N':
			comp.N++
		}
	}
	comp.Length = len(seq)
	counted := comp.A + comp.C + comp.G + comp.T
	if counted > 0 {
		comp.GCPercent = 100 * float64(comp.C+comp.G) / float64(counted)
		comp.ATPercent = 100 * float64(comp.A+comp.T) / float64(counted)
	}
	return comp
}

// Transcribe converts DNA to RNA (T -> U).
func Transcribe(seq string) string {
	r := strings.NewReplacer("T", "U", "t", "u")
	return r.Replace(seq)
}

// codonTable1 is NCBI translation table 1 (the standard code).
var codonTable1 = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"TAT": 'Y', "TAC": 'Y', "TAA": '*', "TAG": '*',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"TGT": 'C', "TGC": 'C', "TGA": '*', "TGG": 'W',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// Translate maps codons to amino acids using NCBI table `table` (only 1,
// the standard code, is implemented; others fall back to table 1). The
// input is trimmed to a multiple of 3 implicitly by stopping at len/3*3.
func Translate(seq string, table int) string {
	seq = strings.ToUpper(strings.Join(strings.Fields(seq), ""))
	n := (len(seq) / 3) * 3
	var out strings.Builder
	for i := 0; i+3 <= n; i += 3 {
		aa, ok := codonTable1[seq[i:i+3]]
		if !ok {
			aa = 'X'
		}
		out.WriteByte(aa)
	}
	return out.String()
}

// IsCompleteORF reports whether a translated protein starts with M and
// ends with a stop codon (*), per §4.9's translate tool.
func IsCompleteORF(protein string) bool {
	return len(protein) > 0 && protein[0] == 'M' && strings.HasSuffix(protein, "*")
}

// RestrictionSite is a minimal enzyme recognition-site table for the
// digest tool. Cut is the 0-based offset from the start of the site to
// the cut position on the top strand.
type RestrictionSite struct {
	Name string
	Site string // IUPAC recognition sequence, may contain N
	Cut  int
}

var restrictionSites = map[string]RestrictionSite{
	"EcoRI":   {Name: "EcoRI", Site: "GAATTC", Cut: 1},
	"BamHI":   {Name: "BamHI", Site: "GGATCC", Cut: 1},
	"HindIII": {Name: "HindIII", Site: "AAGCTT", Cut: 1},
	"NotI":    {Name: "NotI", Site: "GCGGCCGC", Cut: 2},
	"XhoI":    {Name: "XhoI", Site: "CTCGAG", Cut: 1},
	"SalI":    {Name: "SalI", Site: "GTCGAC", Cut: 1},
	"PstI":    {Name: "PstI", Site: "CTGCAG", Cut: 5},
	"NdeI":    {Name: "NdeI", Site: "CATATG", Cut: 2},
	"SmaI":    {Name: "SmaI", Site: "CCCGGG", Cut: 3},
	"KpnI":    {Name: "KpnI", Site: "GGTACC", Cut: 5},
	"SacI":    {Name: "SacI", Site: "GAGCTC", Cut: 5},
	"XbaI":    {Name: "XbaI", Site: "TCTAGA", Cut: 1},
	"NcoI":    {Name: "NcoI", Site: "CCATGG", Cut: 1},
	"SpeI":    {Name: "SpeI", Site: "ACTAGT", Cut: 1},
	"ApaI":    {Name: "ApaI", Site: "GGGCCC", Cut: 5},
}

// KnownEnzyme reports whether name is a recognized enzyme.
func KnownEnzyme(name string) bool {
	_, ok := restrictionSites[name]
	return ok
}

// CutSite is one occurrence of an enzyme's recognition site in a sequence.
type CutSite struct {
	Enzyme   string
	Position int // 0-based cut position
}

// Digest finds every occurrence of each named enzyme's site in seq and
// returns the ordered list of cut positions plus fragment sizes.
// Circular topology wraps fragment math around the origin; linear
// topology treats the ends as fixed boundaries.
func Digest(seq string, enzymes []string, circular bool) ([]CutSite, []int, error) {
	var sites []CutSite
	upper := strings.ToUpper(seq)
	for _, name := range enzymes {
		site, ok := restrictionSites[name]
		if !ok {
			return nil, nil, fmt.Errorf("seqbio: unknown restriction enzyme %q", name)
		}
		for _, pos := range findAllIUPAC(upper, site.Site) {
			sites = append(sites, CutSite{Enzyme: name, Position: (pos + site.Cut) % len(seq)})
		}
	}
	sortCutSites(sites)
	return sites, fragmentSizes(sites, len(seq), circular), nil
}

func sortCutSites(sites []CutSite) {
	for i := 1; i < len(sites); i++ {
		for j := i; j > 0 && sites[j-1].Position > sites[j].Position; j-- {
			sites[j-1], sites[j] = sites[j], sites[j-1]
		}
	}
}

func fragmentSizes(sites []CutSite, length int, circular bool) []int {
	if len(sites) == 0 {
		if circular {
			return nil // uncut circular molecule: no fragments
		}
		return []int{length}
	}
	var sizes []int
	for i := 1; i < len(sites); i++ {
		sizes = append(sizes, sites[i].Position-sites[i-1].Position)
	}
	if circular {
		wrap := (length - sites[len(sites)-1].Position) + sites[0].Position
		sizes = append(sizes, wrap)
	} else {
		sizes = append([]int{sites[0].Position}, sizes...)
		sizes = append(sizes, length-sites[len(sites)-1].Position)
	}
	return sizes
}

func iupacMatchesBase(pattern, base byte) bool {
	if pattern == base {
		return true
	}
	switch pattern {
	case 'N':
		return true
	case 'R':
		return base == 'A' || base == 'G'
	case 'Y':
		return base == 'C' || base == 'T'
	case 'W':
		return base == 'A' || base == 'T'
	case 'S':
		return base == 'C' || base == 'G'
	case 'K':
		return base == 'G' || base == 'T'
	case 'M':
		return base == 'A' || base == 'C'
	}
	return false
}

func findAllIUPAC(haystack, pattern string) []int {
	var positions []int
	for i := 0; i+len(pattern) <= len(haystack); i++ {
		match := true
		for j := 0; j < len(pattern); j++ {
			if !iupacMatchesBase(pattern[j], haystack[i+j]) {
				match = false
				break
			}
		}
		if match {
			positions = append(positions, i)
		}
	}
	return positions
}

// ExtendedNucleotideAlphabet is the alphabet blast.go's _is_sequence
// heuristic uses to tell a raw residue string from a bare name (§SPEC_FULL
// "BLAST program auto-detection").
const ExtendedNucleotideAlphabet = "ATGCNRYSWKMBDHV"

// LooksLikeSequence reports whether s is long enough and drawn entirely
// from the extended nucleotide or amino-acid alphabet to be treated as a
// raw residue string rather than a name/SID to resolve.
func LooksLikeSequence(s string) bool {
	if len(s) < 4 {
		return false
	}
	up := strings.ToUpper(s)
	for _, c := range up {
		if !strings.ContainsRune(ExtendedNucleotideAlphabet, c) && !strings.ContainsRune("EFILPQZ*", c) {
			return false
		}
	}
	return true
}
