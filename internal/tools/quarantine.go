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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleutian-labs/sequencehive/internal/store"
)

// externalScriptExt is the file extension the quarantine service scans for
// in the external tools directory. External tools are small Python-style
// scripts run as subprocesses (see ScriptTool); the AST import check in
// factory.go still parses them with the Python grammar, matching how they
// were authored.
const externalScriptExt = ".py"

// Quarantine hashes the external tools directory and classifies each
// script against its stored approval row, per §4.7(a)'s transition table.
type Quarantine struct {
	store *store.Store
}

func NewQuarantine(st *store.Store) *Quarantine { return &Quarantine{store: st} }

// Sweep walks dir, hashes every script that doesn't start with "_", and
// applies the transition table:
//
//	absent                    -> create, status=quarantined
//	approved & same hash      -> stays approved
//	approved & different hash -> quarantined (re-review required)
//	anything else             -> left untouched (skipped)
//
// It returns the filenames that resolved to approved after the sweep.
func (q *Quarantine) Sweep(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("quarantine: read %s: %w", dir, err)
	}

	var approved []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || filepath.Ext(name) != externalScriptExt {
			continue
		}
		hash, err := hashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("quarantine: hash %s: %w", name, err)
		}

		existing, err := q.store.GetToolApproval(ctx, name)
		switch {
		case err == store.ErrNotFound:
			if err := q.store.UpsertToolApproval(ctx, store.ToolApproval{
				Filename: name, FileHash: hash, Status: store.ApprovalQuarantined, CreatedAt: time.Now().UTC(),
			}); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("quarantine: lookup %s: %w", name, err)
		case existing.Status == store.ApprovalApproved && existing.FileHash == hash:
			approved = append(approved, name)
		case existing.Status == store.ApprovalApproved && existing.FileHash != hash:
			if err := q.store.UpsertToolApproval(ctx, store.ToolApproval{
				Filename: name, FileHash: hash, ToolName: existing.ToolName,
				Status: store.ApprovalQuarantined, CreatedAt: existing.CreatedAt,
			}); err != nil {
				return nil, err
			}
		default:
			// quarantined or rejected: left as-is, skipped this sweep.
		}
	}
	return approved, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
