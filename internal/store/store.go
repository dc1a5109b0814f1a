// Package store persists the small amount of state that outlives a process:
// the visitor counter and share cards.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auralytics/internal/config"
	"auralytics/internal/model"
)

// ErrNotFound is returned when a card id is unknown.
var ErrNotFound = errors.New("store: not found")

// Card is a shareable snapshot of an analysis.
type Card struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Username  string         `json:"username,omitempty"`
	AuraScore int            `json:"auraScore"`
	TierName  string         `json:"tierName"`
	Summary   string         `json:"summary"`
	Analysis  model.Analysis `json:"analysis"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Store is implemented by the SQLite and Postgres backends.
type Store interface {
	VisitorCount(ctx context.Context) (int64, error)
	IncrementVisitors(ctx context.Context) (int64, error)
	PutCard(ctx context.Context, c Card) error
	GetCard(ctx context.Context, id string) (Card, error)
	DeleteCardsBefore(ctx context.Context, t time.Time) (int64, error)
	Close() error
}

const visitorsKey = "visitors"

// Open picks the backend from cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(cfg.DBPath)
	case "postgres", "pg":
		if cfg.DSN == "" {
			return nil, errors.New("store: postgres driver requires a dsn")
		}
		return OpenPostgres(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
}
