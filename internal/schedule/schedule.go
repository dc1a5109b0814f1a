// Package schedule runs periodic maintenance: expiring cached analyses and
// deleting share cards past their retention window.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"auralytics/internal/cache"
	"auralytics/internal/cmdlog"
	"auralytics/internal/config"
	"auralytics/internal/logging"
	"auralytics/internal/store"
)

// Janitor owns the cron runner. Cache and Store may be nil.
type Janitor struct {
	cron      *cron.Cron
	cache     cache.Cache
	store     store.Store
	retention time.Duration
	now       func() time.Time
}

// NewJanitor registers the prune jobs. An empty schedule disables its job.
func NewJanitor(cfg config.ScheduleConfig, retentionDays int, c cache.Cache, s store.Store) (*Janitor, error) {
	j := &Janitor{
		cron:      cron.New(),
		cache:     c,
		store:     s,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
	if cfg.PruneSpec != "" && c != nil {
		if _, err := j.cron.AddFunc(cfg.PruneSpec, func() { j.PruneCache() }); err != nil {
			return nil, fmt.Errorf("add prune job: %w", err)
		}
	}
	if cfg.CardsSpec != "" && s != nil && j.retention > 0 {
		if _, err := j.cron.AddFunc(cfg.CardsSpec, func() {
			_, _ = j.PruneCards(context.Background())
		}); err != nil {
			return nil, fmt.Errorf("add cards job: %w", err)
		}
	}
	return j, nil
}

// Jobs reports how many jobs are registered.
func (j *Janitor) Jobs() int { return len(j.cron.Entries()) }

func (j *Janitor) Start() { j.cron.Start() }

// Stop waits for running jobs.
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }

// PruneCache drops expired analyses and returns how many went.
func (j *Janitor) PruneCache() int {
	if j.cache == nil {
		return 0
	}
	var n int
	_ = cmdlog.Run("prune_cache", func() error {
		n = j.cache.Prune(j.now())
		logging.Info("cache_pruned", map[string]any{"removed": n, "remaining": j.cache.Len()})
		return nil
	})
	return n
}

// PruneCards deletes cards created before now minus the retention window.
func (j *Janitor) PruneCards(ctx context.Context) (int64, error) {
	if j.store == nil || j.retention <= 0 {
		return 0, nil
	}
	var n int64
	err := cmdlog.Run("prune_cards", func() error {
		var err error
		n, err = j.store.DeleteCardsBefore(ctx, j.now().Add(-j.retention))
		if err == nil {
			logging.Info("cards_pruned", map[string]any{"removed": n})
		}
		return err
	})
	return n, err
}
