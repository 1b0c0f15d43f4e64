// Package scheduler drives periodic sync passes for every enabled
// source.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/realmsync/realmsync/internal/logger"
	"github.com/realmsync/realmsync/pkg/lock"
	"github.com/realmsync/realmsync/pkg/metrics"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
	"github.com/realmsync/realmsync/pkg/store"
)

// Syncer runs one sync pass for a source.
type Syncer interface {
	Sync(ctx context.Context, src *models.Source) (*kerberos.SyncResult, error)
}

// Exclusive runs a function under the source's cross-process sync lock.
type Exclusive interface {
	RunExclusive(ctx context.Context, src *models.Source, fn func(ctx context.Context) error) error
}

// Scheduler periodically enumerates enabled sources and runs a locked
// sync pass for each.
type Scheduler struct {
	store    store.Store
	syncer   Syncer
	coord    Exclusive
	interval time.Duration
	metrics  metrics.SyncMetrics
}

// New returns a scheduler ticking at the given interval.
func New(st store.Store, syncer Syncer, coord Exclusive, interval time.Duration, m metrics.SyncMetrics) *Scheduler {
	return &Scheduler{
		store:    st,
		syncer:   syncer,
		coord:    coord,
		interval: interval,
		metrics:  m,
	}
}

// Run blocks, running one round immediately and another every interval,
// until the context is cancelled. Always returns nil after a clean
// shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("sync scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runRound(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync scheduler stopped")
			return nil
		case <-ticker.C:
			s.runRound(ctx)
		}
	}
}

// runRound syncs every enabled source once. A failure on one source
// does not block the others.
func (s *Scheduler) runRound(ctx context.Context) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		logger.Error("failed to list sources", "error", err)
		return
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return
		}
		if !src.SyncEnabled() {
			continue
		}
		s.syncSource(ctx, src)
	}
}

func (s *Scheduler) syncSource(ctx context.Context, src *models.Source) {
	err := s.coord.RunExclusive(ctx, src, func(ctx context.Context) error {
		_, err := s.syncer.Sync(ctx, src)
		return err
	})

	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		// Another process is already syncing this source.
		logger.Debug("sync pass already running elsewhere", "source", src.Slug)
		if s.metrics != nil {
			s.metrics.RecordPass(src.Slug, "locked", 0)
		}
	case errors.Is(err, kerberos.ErrSyncDisabled):
		// Raced a concurrent config change; nothing to do.
	case err != nil:
		logger.Error("sync pass failed", "source", src.Slug, "error", err)
	}
}
