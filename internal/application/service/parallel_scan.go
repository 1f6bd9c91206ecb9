package service

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/application/common/logging"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/port/outbound"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ParallelScanCoordinator drives N independent scan segments over a table.
type ParallelScanCoordinator struct {
	source   outbound.GranuleSource
	segments int
	pageSize int
	limiter  *rate.Limiter
	metrics  *MigrationMetrics
}

// NewParallelScanCoordinator creates a coordinator. A nil limiter leaves page
// reads unthrottled.
func NewParallelScanCoordinator(
	source outbound.GranuleSource,
	segments, pageSize int,
	limiter *rate.Limiter,
	metrics *MigrationMetrics,
) *ParallelScanCoordinator {
	if segments <= 0 {
		segments = 1
	}
	return &ParallelScanCoordinator{
		source:   source,
		segments: segments,
		pageSize: pageSize,
		limiter:  limiter,
		metrics:  metrics,
	}
}

// Run scans every segment concurrently, handing each page to handle. A failing
// segment does not stop the others; all segment errors are joined.
func (c *ParallelScanCoordinator) Run(ctx context.Context, table string, handle outbound.PageHandler) error {
	logger := slogger.WithComponent("parallel-scan")
	errs := make([]error, c.segments)

	var g errgroup.Group
	for segment := range c.segments {
		g.Go(func() error {
			errs[segment] = c.runSegment(ctx, logger, table, segment, handle)
			return nil
		})
	}
	_ = g.Wait() // segment errors are collected in errs

	return errors.Join(errs...)
}

func (c *ParallelScanCoordinator) runSegment(
	ctx context.Context,
	logger logging.ApplicationLogger,
	table string,
	segment int,
	handle outbound.PageHandler,
) error {
	start := time.Now()
	pages, records := 0, 0
	logger.LogSegmentEvent(ctx, logging.SegmentEvent{
		Type:          "STARTED",
		Segment:       segment,
		TotalSegments: c.segments,
	})

	err := c.source.ScanSegment(ctx, table, outbound.ScanSegment{
		Segment:       segment,
		TotalSegments: c.segments,
		PageSize:      c.pageSize,
	}, func(ctx context.Context, page []outbound.RawRecord) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		pages++
		records += len(page)

		pageStart := time.Now()
		err := handle(ctx, page)
		c.metrics.RecordPageDuration(ctx, time.Since(pageStart))
		return err
	})

	c.metrics.RecordSegment(ctx, err)
	event := logging.SegmentEvent{
		Type:          "COMPLETED",
		Segment:       segment,
		TotalSegments: c.segments,
		Pages:         pages,
		Records:       records,
		Duration:      time.Since(start),
	}
	if err != nil {
		event.Type = "FAILED"
		event.Error = err
		logger.LogSegmentEvent(ctx, event)
		return fmt.Errorf("scan segment %d: %w", segment, err)
	}
	logger.LogSegmentEvent(ctx, event)
	return nil
}
