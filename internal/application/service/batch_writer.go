package service

import (
	"context"
	"granulemigration/internal/port/outbound"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RecordMigrateFunc migrates one source record. A returned error is fatal to
// the page being written.
type RecordMigrateFunc func(ctx context.Context, raw outbound.RawRecord) error

// BatchWriter migrates the records of one page with bounded concurrency.
type BatchWriter struct {
	concurrency int
	migrate     RecordMigrateFunc
}

// NewBatchWriter creates a writer running at most concurrency migrations at once.
func NewBatchWriter(concurrency int, migrate RecordMigrateFunc) *BatchWriter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchWriter{
		concurrency: concurrency,
		migrate:     migrate,
	}
}

// WritePage migrates every record of page and waits for all of them. After the
// first failure no further records are dispatched, but migrations already in
// flight run to completion before the error is returned.
func (w *BatchWriter) WritePage(ctx context.Context, page []outbound.RawRecord) error {
	var (
		g       errgroup.Group
		stopped atomic.Bool
	)
	g.SetLimit(w.concurrency)

	for _, raw := range page {
		if stopped.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if stopped.Load() {
				return nil
			}
			if err := w.migrate(ctx, raw); err != nil {
				stopped.Store(true)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// PageHandler adapts the writer to a scan page callback.
func (w *BatchWriter) PageHandler() outbound.PageHandler {
	return w.WritePage
}
