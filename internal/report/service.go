// Package report computes date-range reports over the live repository.
package report

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/live"
	applog "budget/internal/log"
	"budget/internal/storage"
)

// Source is the part of the repository a report reads.
type Source interface {
	TransactionsBetween(r core.DateRange) live.Stream[[]core.Transaction]
	Categories() live.Stream[[]core.Category]
}

// Service builds reports and caches them per range until the next write to
// transactions or categories.
type Service struct {
	src      Source
	cache    *cache.LRUCache[string, core.Report]
	gen      atomic.Uint64
	unlisten func()
	logger   *applog.Logger
}

func NewService(src Source, n *live.Notifier, cacheSize int, ttl time.Duration) *Service {
	s := &Service{
		src:    src,
		cache:  cache.NewLRUCache[string, core.Report](cacheSize, ttl),
		logger: applog.ForComponent(applog.ComponentReport),
	}
	s.unlisten = n.Listen(s.invalidate, storage.TableTransactions, storage.TableCategories)
	return s
}

// Cache exposes the report cache for periodic cleanup.
func (s *Service) Cache() cache.Cleaner {
	return s.cache
}

func (s *Service) invalidate() {
	s.gen.Add(1)
	s.cache.Purge()
}

// Close stops listening for writes.
func (s *Service) Close() {
	s.unlisten()
}

// Load returns the report for r, from cache when possible.
func (s *Service) Load(ctx context.Context, r core.DateRange) (core.Report, error) {
	if err := r.Validate(); err != nil {
		return core.Report{}, err
	}
	if rep, ok := s.cache.Get(r.String()); ok {
		s.logger.DebugContext(ctx, "Report served from cache", applog.FieldRange, r.String())
		return rep, nil
	}
	return s.compute(ctx, r)
}

// Reload recomputes the report for r, bypassing the cache.
func (s *Service) Reload(ctx context.Context, r core.DateRange) (core.Report, error) {
	if err := r.Validate(); err != nil {
		return core.Report{}, err
	}
	s.cache.Delete(r.String())
	return s.compute(ctx, r)
}

func (s *Service) compute(ctx context.Context, r core.DateRange) (core.Report, error) {
	gen := s.gen.Load()
	start := time.Now()

	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = live.First(gctx, s.src.TransactionsBetween(r))
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = live.First(gctx, s.src.Categories())
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, err
	}

	rep := core.BuildReport(r, txs, cats)
	// a write during the computation may have made rep stale
	if s.gen.Load() == gen {
		s.cache.Set(r.String(), rep)
	}

	s.logger.DebugContext(ctx, "Report computed",
		applog.FieldRange, r.String(),
		"transactions", len(txs),
		"duration", time.Since(start))
	return rep, nil
}
