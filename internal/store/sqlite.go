package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the default single-file backend.
type SQLite struct{ sql *sql.DB }

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &SQLite{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *SQLite) Close() error { return d.sql.Close() }

func (d *SQLite) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS counters (
	  name TEXT PRIMARY KEY,
	  value INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS cards (
	  id TEXT PRIMARY KEY,
	  user_id TEXT NOT NULL,
	  username TEXT,
	  aura_score INTEGER NOT NULL,
	  tier_name TEXT NOT NULL,
	  summary TEXT,
	  analysis TEXT NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cards_created ON cards(created_at);
	`)
	return err
}

func (d *SQLite) VisitorCount(ctx context.Context) (int64, error) {
	var n int64
	err := d.sql.QueryRowContext(ctx, `SELECT value FROM counters WHERE name=?`, visitorsKey).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (d *SQLite) IncrementVisitors(ctx context.Context) (int64, error) {
	var n int64
	err := d.sql.QueryRowContext(ctx, `INSERT INTO counters(name, value) VALUES(?, 1)
	ON CONFLICT(name) DO UPDATE SET value = value + 1
	RETURNING value`, visitorsKey).Scan(&n)
	return n, err
}

func (d *SQLite) PutCard(ctx context.Context, c Card) error {
	ab, err := json.Marshal(c.Analysis)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT OR REPLACE INTO cards(id, user_id, username, aura_score, tier_name, summary, analysis, created_at)
	VALUES(?,?,?,?,?,?,?,?)`, c.ID, c.UserID, c.Username, c.AuraScore, c.TierName, c.Summary, string(ab), c.CreatedAt.UTC().Unix())
	return err
}

func (d *SQLite) GetCard(ctx context.Context, id string) (Card, error) {
	var c Card
	var analysis string
	var created int64
	err := d.sql.QueryRowContext(ctx, `SELECT id, user_id, COALESCE(username, ''), aura_score, tier_name, COALESCE(summary, ''), analysis, created_at
	FROM cards WHERE id=?`, id).Scan(&c.ID, &c.UserID, &c.Username, &c.AuraScore, &c.TierName, &c.Summary, &analysis, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	if err != nil {
		return Card{}, err
	}
	if err := json.Unmarshal([]byte(analysis), &c.Analysis); err != nil {
		return Card{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (d *SQLite) DeleteCardsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM cards WHERE created_at < ?`, t.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
