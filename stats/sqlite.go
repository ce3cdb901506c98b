/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package stats

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS round_results (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL,
	session     TEXT NOT NULL,
	round       INTEGER NOT NULL,
	name        TEXT NOT NULL,
	points      INTEGER NOT NULL,
	wins        INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS round_results_name ON round_results (name);
`

// SQLiteStore keeps one row per player per round and aggregates on read.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	for _, stmt := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare sqlite db: %w", err)
		}
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) RecordRound(ctx context.Context, session string, round int, standings []Standing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	recordID := uuid.NewString()
	at := s.now().UTC().UnixMilli()

	for _, st := range standings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO round_results (id, record_id, session, round, name, points, wins, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), recordID, session, round, st.Name, st.Points, st.Wins, at,
		)
		if err != nil {
			return fmt.Errorf("insert result for %q: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round %d of %s: %w", round, session, err)
	}

	return nil
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, SUM(points), SUM(wins), COUNT(*)
		 FROM round_results
		 GROUP BY name
		 ORDER BY SUM(points) DESC, name ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Points, &e.Wins, &e.Rounds); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *SQLiteStore) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, session, round, name, points, wins, recorded_at
		 FROM round_results
		 WHERE record_id IN (
			SELECT record_id FROM round_results
			GROUP BY record_id
			ORDER BY MAX(rowid) DESC
			LIMIT ?
		 )
		 ORDER BY rowid ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query round history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	index := map[string]int{}
	for rows.Next() {
		var (
			rec Record
			st  Standing
			at  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Round, &st.Name, &st.Points, &st.Wins, &at); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		i, ok := index[rec.ID]
		if !ok {
			rec.RecordedAt = time.UnixMilli(at).UTC()
			records = append(records, rec)
			i = len(records) - 1
			index[rec.ID] = i
		}
		records[i].Standings = append(records[i].Standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(records)

	return records, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
