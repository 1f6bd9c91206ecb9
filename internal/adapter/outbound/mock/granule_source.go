package mock

import (
	"context"
	"fmt"
	"granulemigration/internal/port/outbound"
	"iter"
	"maps"
	"sync"
	"sync/atomic"
)

// InMemoryGranuleSource is an in-memory source store. Records are assigned to
// scan segments by insertion order modulo the segment count.
type InMemoryGranuleSource struct {
	mu       sync.Mutex
	tables   map[string][]outbound.RawRecord
	queryErr error
	// segment -> page index at which reads start failing
	failAt  map[int]int
	failErr map[int]error

	pagesRead atomic.Int64
}

// NewInMemoryGranuleSource creates an empty source store.
func NewInMemoryGranuleSource() *InMemoryGranuleSource {
	return &InMemoryGranuleSource{
		tables:  make(map[string][]outbound.RawRecord),
		failAt:  make(map[int]int),
		failErr: make(map[int]error),
	}
}

var _ outbound.GranuleSource = (*InMemoryGranuleSource)(nil)

// Put appends records to a table.
func (s *InMemoryGranuleSource) Put(table string, records ...outbound.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], records...)
}

// FailQueries makes targeted queries yield err. A nil err clears it.
func (s *InMemoryGranuleSource) FailQueries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

// FailSegmentRead makes reading page number afterPages of a segment fail with
// err wrapped in domain.ErrStoreUnavailable.
func (s *InMemoryGranuleSource) FailSegmentRead(segment, afterPages int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[segment] = afterPages
	s.failErr[segment] = err
}

// PagesRead returns the number of pages delivered by scans.
func (s *InMemoryGranuleSource) PagesRead() int {
	return int(s.pagesRead.Load())
}

func (s *InMemoryGranuleSource) snapshot(table string) ([]outbound.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]outbound.RawRecord, len(s.tables[table]))
	for i, r := range s.tables[table] {
		records[i] = maps.Clone(r)
	}
	return records, s.queryErr
}

func (s *InMemoryGranuleSource) query(table, field, value string) iter.Seq2[outbound.RawRecord, error] {
	return func(yield func(outbound.RawRecord, error) bool) {
		records, err := s.snapshot(table)
		if err != nil {
			yield(nil, wrapUnavailable(err))
			return
		}
		for _, r := range records {
			if v, _ := r[field].(string); v != value {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// QueryByGranuleID implements outbound.GranuleSource.
func (s *InMemoryGranuleSource) QueryByGranuleID(_ context.Context, table, granuleID string) iter.Seq2[outbound.RawRecord, error] {
	return s.query(table, "granuleId", granuleID)
}

// QueryByCollectionID implements outbound.GranuleSource.
func (s *InMemoryGranuleSource) QueryByCollectionID(_ context.Context, table, collectionID string) iter.Seq2[outbound.RawRecord, error] {
	return s.query(table, "collectionId", collectionID)
}

// ScanSegment implements outbound.GranuleSource.
func (s *InMemoryGranuleSource) ScanSegment(
	ctx context.Context,
	table string,
	segment outbound.ScanSegment,
	fn outbound.PageHandler,
) error {
	if segment.TotalSegments <= 0 || segment.Segment < 0 || segment.Segment >= segment.TotalSegments {
		return fmt.Errorf("invalid scan segment %d of %d", segment.Segment, segment.TotalSegments)
	}
	pageSize := segment.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	records, _ := s.snapshot(table)
	var owned []outbound.RawRecord
	for i, r := range records {
		if i%segment.TotalSegments == segment.Segment {
			owned = append(owned, r)
		}
	}

	s.mu.Lock()
	failAt, failing := s.failAt[segment.Segment]
	failErr := s.failErr[segment.Segment]
	s.mu.Unlock()

	for page := 0; page*pageSize < len(owned) || (failing && page == failAt); page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if failing && page == failAt {
			return fmt.Errorf("scan segment %d page %d: %w", segment.Segment, page, wrapUnavailable(failErr))
		}
		end := min((page+1)*pageSize, len(owned))
		s.pagesRead.Add(1)
		if err := fn(ctx, owned[page*pageSize:end]); err != nil {
			return err
		}
	}
	return nil
}
