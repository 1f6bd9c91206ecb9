package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/port/outbound"
	"iter"
	"slices"
	"sync"

	"github.com/nats-io/nats.go"
)

const defaultPageSize = 100

// Bucket is the subset of nats.KeyValue the source reads through.
type Bucket interface {
	Get(key string) (nats.KeyValueEntry, error)
	Watch(keys string, opts ...nats.WatchOpt) (nats.KeyWatcher, error)
	ListKeys(opts ...nats.WatchOpt) (nats.KeyLister, error)
}

// BucketOpener binds a table name to its key-value bucket.
type BucketOpener func(bucket string) (Bucket, error)

// JetStreamBuckets opens existing buckets through a JetStream context.
func JetStreamBuckets(js nats.KeyValueManager) BucketOpener {
	return func(bucket string) (Bucket, error) {
		return js.KeyValue(bucket)
	}
}

// NATSGranuleSource implements outbound.GranuleSource on a JetStream
// key-value bucket. Each table is a bucket whose values are the JSON encoded
// granule records, keyed by GranuleKey.
//
// The segments of one scan share a single key listing. The listed keys are
// held in memory until every segment has taken its share, so memory grows
// with the number of keys in the table.
type NATSGranuleSource struct {
	open BucketOpener

	mu         sync.Mutex
	buckets    map[string]Bucket
	partitions map[partitionID]*keyPartition
}

type partitionID struct {
	table string
	total int
}

// keyPartition is one listing of a table split into segments.
type keyPartition struct {
	once     sync.Once
	segments [][]string
	err      error
	pending  int
}

// NewNATSGranuleSource creates a source reading buckets through open.
func NewNATSGranuleSource(open BucketOpener) *NATSGranuleSource {
	return &NATSGranuleSource{
		open:       open,
		buckets:    make(map[string]Bucket),
		partitions: make(map[partitionID]*keyPartition),
	}
}

var _ outbound.GranuleSource = (*NATSGranuleSource)(nil)

func (s *NATSGranuleSource) bucket(table string) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.buckets[table]; ok {
		return kv, nil
	}
	kv, err := s.open(table)
	if err != nil {
		if errors.Is(err, nats.ErrBucketNotFound) {
			return nil, fmt.Errorf("source table %q does not exist: %w", table, err)
		}
		return nil, unavailable(fmt.Errorf("open bucket %q: %w", table, err))
	}
	s.buckets[table] = kv
	return kv, nil
}

// QueryByGranuleID implements outbound.GranuleSource.
func (s *NATSGranuleSource) QueryByGranuleID(
	ctx context.Context,
	table, granuleID string,
) iter.Seq2[outbound.RawRecord, error] {
	return s.watchQuery(ctx, table, "*."+encodeToken(granuleID))
}

// QueryByCollectionID implements outbound.GranuleSource.
func (s *NATSGranuleSource) QueryByCollectionID(
	ctx context.Context,
	table, collectionID string,
) iter.Seq2[outbound.RawRecord, error] {
	return s.watchQuery(ctx, table, encodeToken(collectionID)+".*")
}

// watchQuery replays the current values matching pattern and stops at the
// end-of-initial-values marker.
func (s *NATSGranuleSource) watchQuery(ctx context.Context, table, pattern string) iter.Seq2[outbound.RawRecord, error] {
	return func(yield func(outbound.RawRecord, error) bool) {
		kv, err := s.bucket(table)
		if err != nil {
			yield(nil, err)
			return
		}
		watcher, err := kv.Watch(pattern, nats.IgnoreDeletes(), nats.Context(ctx))
		if err != nil {
			yield(nil, unavailable(fmt.Errorf("watch %s: %w", pattern, err)))
			return
		}
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case entry, ok := <-watcher.Updates():
				if !ok || entry == nil {
					return
				}
				if !yield(decodeEntry(entry.Key(), entry.Value()), nil) {
					return
				}
			}
		}
	}
}

// ScanSegment implements outbound.GranuleSource. Keys are assigned to
// segments by hash, so every key belongs to exactly one segment.
func (s *NATSGranuleSource) ScanSegment(
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
		pageSize = defaultPageSize
	}

	kv, err := s.bucket(table)
	if err != nil {
		return err
	}
	keys, err := s.segmentKeys(ctx, table, kv, segment)
	if err != nil {
		return fmt.Errorf("scan segment %d: %w", segment.Segment, err)
	}

	for start := 0; start < len(keys); start += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+pageSize, len(keys))
		page := make([]outbound.RawRecord, 0, end-start)
		for _, key := range keys[start:end] {
			entry, err := kv.Get(key)
			if errors.Is(err, nats.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("scan segment %d: %w", segment.Segment, unavailable(fmt.Errorf("get %s: %w", key, err)))
			}
			page = append(page, decodeEntry(key, entry.Value()))
		}
		if len(page) == 0 {
			continue
		}
		if err := fn(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// segmentKeys returns the sorted keys owned by segment. The first segment of
// a scan lists the bucket for all of them; the listing is dropped once every
// segment has asked for its keys.
func (s *NATSGranuleSource) segmentKeys(
	ctx context.Context,
	table string,
	kv Bucket,
	segment outbound.ScanSegment,
) ([]string, error) {
	id := partitionID{table: table, total: segment.TotalSegments}

	s.mu.Lock()
	p, ok := s.partitions[id]
	if !ok {
		p = &keyPartition{pending: segment.TotalSegments}
		s.partitions[id] = p
	}
	s.mu.Unlock()

	p.once.Do(func() {
		p.segments, p.err = listPartitioned(ctx, kv, segment.TotalSegments)
	})

	s.mu.Lock()
	p.pending--
	if p.pending <= 0 && s.partitions[id] == p {
		delete(s.partitions, id)
	}
	s.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return p.segments[segment.Segment], nil
}

func listPartitioned(ctx context.Context, kv Bucket, total int) ([][]string, error) {
	segments := make([][]string, total)
	lister, err := kv.ListKeys(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoKeysFound) {
		return segments, nil
	}
	if err != nil {
		return nil, unavailable(fmt.Errorf("list keys: %w", err))
	}
	defer func() { _ = lister.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case key, ok := <-lister.Keys():
			if !ok {
				for _, keys := range segments {
					slices.Sort(keys)
				}
				return segments, nil
			}
			n := segmentOf(key, total)
			segments[n] = append(segments[n], key)
		}
	}
}

// decodeEntry turns a stored value into a raw record. A value that is not a
// JSON object still yields the identifiers recovered from the key, so the
// record reaches the migrator and is counted as failed there.
func decodeEntry(key string, value []byte) outbound.RawRecord {
	var record outbound.RawRecord
	if err := json.Unmarshal(value, &record); err == nil && record != nil {
		return record
	}
	slogger.WarnNoCtx("Undecodable source record", slogger.Field("key", key))
	record = outbound.RawRecord{}
	if collectionID, granuleID, ok := parseKey(key); ok {
		record["collectionId"] = collectionID
		record["granuleId"] = granuleID
	}
	return record
}

func unavailable(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
