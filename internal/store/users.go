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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var slugStrip = regexp.MustCompile(`[-_\s]+`)

// Slugify lowercases a username and strips hyphens/underscores/spaces, per
// spec.md §3's User.slug derivation.
func Slugify(username string) string {
	return slugStrip.ReplaceAllString(strings.ToLower(username), "")
}

// GetUserByToken returns the user owning token, or ErrNotFound.
func (s *Store) GetUserByToken(ctx context.Context, token string) (User, error) {
	return scanUserRow(s.db.QueryRowContext(ctx, userSelectColumns+` WHERE token = ?`, token))
}

// GetUserBySlug returns the user with the given slug, or ErrNotFound.
func (s *Store) GetUserBySlug(ctx context.Context, slug string) (User, error) {
	return scanUserRow(s.db.QueryRowContext(ctx, userSelectColumns+` WHERE slug = ?`, slug))
}

// UpdatePreferences merges prefs into the user's stored preferences JSON.
func (s *Store) UpdatePreferences(ctx context.Context, userID int64, prefs map[string]any) error {
	u, err := scanUserRow(s.db.QueryRowContext(ctx, userSelectColumns+` WHERE id = ?`, userID))
	if err != nil {
		return err
	}
	if u.Preferences == nil {
		u.Preferences = map[string]any{}
	}
	for k, v := range prefs {
		u.Preferences[k] = v
	}
	data, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("store: marshal preferences: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET preferences = ? WHERE id = ?`, string(data), userID); err != nil {
		return fmt.Errorf("store: update preferences: %w", err)
	}
	return nil
}

const userSelectColumns = `SELECT id, username, slug, token, preferences, created_at FROM users`

func scanUserRow(row *sql.Row) (User, error) {
	var u User
	var prefsJSON string
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.Slug, &u.Token, &prefsJSON, &created)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("store: scan user: %w", err)
	}
	u.Preferences = map[string]any{}
	if prefsJSON != "" {
		_ = json.Unmarshal([]byte(prefsJSON), &u.Preferences)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}
