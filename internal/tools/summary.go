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
	"encoding/json"
	"reflect"
)

// SummaryForLLM runs the auto-summary algorithm of §4.6.1 against a
// result, bounding it to a token budget T. It is not part of the Tool
// interface's required methods — tools may opt into a custom summarizer,
// but the router calls this default whenever a tool doesn't implement it
// (see Summarizer below).
func SummaryForLLM(result Result, tokenLimit int) string {
	digest := summarizeValue(map[string]any(result), tokenLimit)
	data, err := json.Marshal(digest)
	if err != nil {
		return "{}"
	}
	s := string(data)
	cap := 4 * tokenLimit
	if cap > 0 && len(s) > cap {
		s = s[:cap]
	}
	return s
}

// Summarizer is implemented by tools that need a bespoke digest instead
// of the generic auto-summary (most tools don't).
type Summarizer interface {
	SummaryForLLM(result Result, tokenLimit int) string
}

// summarizeAny picks the tool's own summarizer if present, else the
// generic algorithm.
func summarizeAny(t Tool, result Result, tokenLimit int) string {
	if s, ok := t.(Summarizer); ok {
		return s.SummaryForLLM(result, tokenLimit)
	}
	return SummaryForLLM(result, tokenLimit)
}

const shortStringLimit = 200
const truncatedLength = 100

func summarizeValue(v any, tokenLimit int) any {
	switch val := v.(type) {
	case map[string]any:
		return summarizeDict(val, tokenLimit)
	case []any:
		return summarizeTopLevelList(val, tokenLimit)
	case string:
		return summarizeString(val)
	case nil, bool, float64, int, int64:
		return val
	default:
		return val
	}
}

// summarizeDict applies the algorithm per-field: list fields become
// {key}_count/{key}_sample, scalars pass through, strings are
// truncated, nested dicts keep shallow scalar fields.
func summarizeDict(d map[string]any, tokenLimit int) map[string]any {
	out := map[string]any{}
	for key, val := range d {
		switch v := val.(type) {
		case []any:
			out[key+"_count"] = len(v)
			out[key+"_sample"] = sampleList(v, tokenLimit)
		case map[string]any:
			out[key] = shallowScalars(v)
		case string:
			out[key] = summarizeString(v)
		default:
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
				items := make([]any, rv.Len())
				for i := range items {
					items[i] = rv.Index(i).Interface()
				}
				out[key+"_count"] = len(items)
				out[key+"_sample"] = sampleList(items, tokenLimit)
				continue
			}
			out[key] = v
		}
	}
	return out
}

// summarizeTopLevelList handles the (rarer) case where the whole result
// is itself a list rather than a dict.
func summarizeTopLevelList(list []any, tokenLimit int) map[string]any {
	return map[string]any{
		"count":  len(list),
		"sample": sampleList(list, tokenLimit),
	}
}

func sampleSize(tokenLimit int) int {
	n := tokenLimit / 50
	if n < 5 {
		n = 5
	}
	return n
}

func sampleList(list []any, tokenLimit int) []any {
	n := sampleSize(tokenLimit)
	if n > len(list) {
		n = len(list)
	}
	out := make([]any, 0, n)
	for _, item := range list[:n] {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, shallowScalars(v))
		case string:
			out = append(out, summarizeString(v))
		default:
			out = append(out, v)
		}
	}
	return out
}

// shallowScalars keeps only scalar fields of a dict item, dropping
// strings >= shortStringLimit chars per the sample-item rule of §4.6.1.
func shallowScalars(d map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range d {
		switch val := v.(type) {
		case string:
			if len(val) < shortStringLimit {
				out[k] = val
			}
		case map[string]any, []any:
			// nested structures are dropped from sample items; the
			// top-level summarizeDict call handles one level of nesting.
		default:
			if kind := reflect.ValueOf(val).Kind(); kind == reflect.Slice || kind == reflect.Map {
				continue
			}
			out[k] = val
		}
	}
	return out
}

func summarizeString(s string) string {
	if len(s) < shortStringLimit {
		return s
	}
	return s[:truncatedLength] + "..."
}
