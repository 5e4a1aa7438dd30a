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
	"database/sql"
	"fmt"
	"time"
)

// GetToolApproval returns the approval row for filename, or ErrNotFound.
func (s *Store) GetToolApproval(ctx context.Context, filename string) (ToolApproval, error) {
	return scanApprovalRow(s.db.QueryRowContext(ctx, approvalSelectColumns+` WHERE filename = ?`, filename))
}

// ListToolApprovals returns every approval row.
func (s *Store) ListToolApprovals(ctx context.Context) ([]ToolApproval, error) {
	rows, err := s.db.QueryContext(ctx, approvalSelectColumns)
	if err != nil {
		return nil, fmt.Errorf("store: list tool approvals: %w", err)
	}
	defer rows.Close()
	var out []ToolApproval
	for rows.Next() {
		a, err := scanApprovalCols(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertToolApproval creates a fresh quarantine row, or updates an existing
// one, per the transition table of §4.7(a). reviewedAt is cleared whenever
// status transitions to quarantined.
func (s *Store) UpsertToolApproval(ctx context.Context, a ToolApproval) error {
	var reviewedAt any
	if a.ReviewedAt != nil {
		reviewedAt = a.ReviewedAt.UTC().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_approvals (filename, file_hash, tool_name, status, created_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			file_hash=excluded.file_hash, tool_name=excluded.tool_name,
			status=excluded.status, reviewed_at=excluded.reviewed_at`,
		a.Filename, a.FileHash, a.ToolName, a.Status, a.CreatedAt.UTC().Unix(), reviewedAt)
	if err != nil {
		return fmt.Errorf("store: upsert tool approval: %w", err)
	}
	return nil
}

// ApproveTool marks filename approved at its current hash, stamping
// reviewed_at.
func (s *Store) ApproveTool(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tool_approvals SET status='approved', reviewed_at=? WHERE filename=?`,
		time.Now().UTC().Unix(), filename)
	if err != nil {
		return fmt.Errorf("store: approve tool: %w", err)
	}
	return nil
}

// RejectTool marks filename rejected, stamping reviewed_at.
func (s *Store) RejectTool(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tool_approvals SET status='rejected', reviewed_at=? WHERE filename=?`,
		time.Now().UTC().Unix(), filename)
	if err != nil {
		return fmt.Errorf("store: reject tool: %w", err)
	}
	return nil
}

const approvalSelectColumns = `SELECT filename, file_hash, tool_name, status, created_at, reviewed_at FROM tool_approvals`

func scanApprovalRow(row *sql.Row) (ToolApproval, error) {
	var a ToolApproval
	var toolName sql.NullString
	var created int64
	var reviewed sql.NullInt64
	err := row.Scan(&a.Filename, &a.FileHash, &toolName, &a.Status, &created, &reviewed)
	if err == sql.ErrNoRows {
		return ToolApproval{}, ErrNotFound
	}
	if err != nil {
		return ToolApproval{}, fmt.Errorf("store: scan tool approval: %w", err)
	}
	if toolName.Valid {
		a.ToolName = &toolName.String
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	if reviewed.Valid {
		t := time.Unix(reviewed.Int64, 0).UTC()
		a.ReviewedAt = &t
	}
	return a, nil
}

func scanApprovalCols(rows *sql.Rows) (ToolApproval, error) {
	var a ToolApproval
	var toolName sql.NullString
	var created int64
	var reviewed sql.NullInt64
	if err := rows.Scan(&a.Filename, &a.FileHash, &toolName, &a.Status, &created, &reviewed); err != nil {
		return ToolApproval{}, fmt.Errorf("store: scan tool approval: %w", err)
	}
	if toolName.Valid {
		a.ToolName = &toolName.String
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	if reviewed.Valid {
		t := time.Unix(reviewed.Int64, 0).UTC()
		a.ReviewedAt = &t
	}
	return a, nil
}
