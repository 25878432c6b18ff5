// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/triangulum/internal/models"
)

// UserID returns the id of the user with nickname, creating the user when
// it does not exist yet.
func (t *Tx) UserID(ctx context.Context, nickname string, now time.Time) (id int64, err error) {
	start := time.Now()
	defer func() { t.db.observe("upsert", "users", start, err) }()

	err = t.tx.QueryRowContext(ctx, "SELECT id FROM users WHERE nickname = ?", nickname).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query users: %w", err)
	}

	err = t.tx.QueryRowContext(ctx,
		"INSERT INTO users (nickname, created) VALUES (?, ?) RETURNING id", nickname, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// AddScores adds the score deltas for one user and day. Zero deltas are
// skipped.
func (t *Tx) AddScores(ctx context.Context, userID int64, day time.Time, deltas map[models.ScoreKey]int64) (err error) {
	start := time.Now()
	defer func() { t.db.observe("upsert", "score", start, err) }()

	day = models.DateOf(day)
	for key, delta := range deltas {
		if delta == 0 {
			continue
		}
		res, err := t.tx.ExecContext(ctx,
			"UPDATE score SET amount = amount + ? WHERE userid = ? AND score_key = ? AND day = ?",
			delta, userID, int(key), day)
		if err != nil {
			return fmt.Errorf("failed to update score: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n > 0 {
			continue
		}
		if _, err := t.tx.ExecContext(ctx,
			"INSERT INTO score (userid, score_key, day, amount) VALUES (?, ?, ?, ?)",
			userID, int(key), day, delta); err != nil {
			return fmt.Errorf("failed to insert score: %w", err)
		}
	}
	return nil
}

// Scores returns the scores of a user, keyed by score key and summed over
// all days.
func (db *DB) Scores(ctx context.Context, nickname string) (map[models.ScoreKey]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT s.score_key, CAST(SUM(s.amount) AS BIGINT)
		FROM score s JOIN users u ON u.id = s.userid
		WHERE u.nickname = ?
		GROUP BY s.score_key`, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer closeQuietly(rows)

	out := make(map[models.ScoreKey]int64)
	for rows.Next() {
		var (
			key   int
			total int64
		)
		if err := rows.Scan(&key, &total); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		out[models.ScoreKey(key)] = total
	}
	return out, rows.Err()
}
