package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the shared backend used when DATABASE_URL is set.
type Postgres struct {
	Pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	s := &Postgres{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS counters (name TEXT PRIMARY KEY, value BIGINT NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT,
			aura_score INT NOT NULL,
			tier_name TEXT NOT NULL,
			summary TEXT,
			analysis JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_created ON cards(created_at)`,
	}
	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Postgres) VisitorCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx, `SELECT value FROM counters WHERE name = $1`, visitorsKey).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (s *Postgres) IncrementVisitors(ctx context.Context) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx, `INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`, visitorsKey).Scan(&n)
	return n, err
}

func (s *Postgres) PutCard(ctx context.Context, c Card) error {
	ab, err := json.Marshal(c.Analysis)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO cards (id, user_id, username, aura_score, tier_name, summary, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET aura_score = $4, tier_name = $5, summary = $6, analysis = $7`,
		c.ID, c.UserID, c.Username, c.AuraScore, c.TierName, c.Summary, string(ab), c.CreatedAt.UTC())
	return err
}

func (s *Postgres) GetCard(ctx context.Context, id string) (Card, error) {
	var c Card
	var analysis []byte
	err := s.Pool.QueryRow(ctx, `SELECT id, user_id, COALESCE(username, ''), aura_score, tier_name, COALESCE(summary, ''), analysis, created_at
		FROM cards WHERE id = $1`, id).Scan(&c.ID, &c.UserID, &c.Username, &c.AuraScore, &c.TierName, &c.Summary, &analysis, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	if err != nil {
		return Card{}, err
	}
	if err := json.Unmarshal(analysis, &c.Analysis); err != nil {
		return Card{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *Postgres) DeleteCardsBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM cards WHERE created_at < $1`, t.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
