package kvstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

type fakeEntry struct {
	key   string
	value []byte
}

func (e fakeEntry) Bucket() string { return "granules" }
func (e fakeEntry) Key() string { return e.key }
func (e fakeEntry) Value() []byte { return e.value }
func (e fakeEntry) Revision() uint64 { return 1 }
func (e fakeEntry) Created() time.Time { return time.Time{} }
func (e fakeEntry) Delta() uint64 { return 0 }
func (e fakeEntry) Operation() nats.KeyValueOp { return nats.KeyValuePut }

type fakeWatcher struct {
	updates chan nats.KeyValueEntry
	stopped bool
}

func (w *fakeWatcher) Context() context.Context { return context.Background() }
func (w *fakeWatcher) Updates() <-chan nats.KeyValueEntry { return w.updates }
func (w *fakeWatcher) Stop() error {
	w.stopped = true
	return nil
}
func (w *fakeWatcher) Error() <-chan error { return nil }

type fakeLister struct {
	keys chan string
}

func (l *fakeLister) Keys() <-chan string { return l.keys }
func (l *fakeLister) Stop() error { return nil }
func (l *fakeLister) Error() <-chan error { return nil }

// fakeBucket is an in-memory Bucket with injectable failures.
type fakeBucket struct {
	mu       sync.Mutex
	values   map[string][]byte
	getErr   error
	listErr  error
	watchErr error
	watchers []*fakeWatcher
	gets     int
	lists    int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{values: make(map[string][]byte)}
}

func (b *fakeBucket) Get(key string) (nats.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.getErr != nil {
		return nil, b.getErr
	}
	v, ok := b.values[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return fakeEntry{key: key, value: v}, nil
}

func (b *fakeBucket) Put(key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return uint64(len(b.values)), nil
}

func (b *fakeBucket) Watch(keys string, _ ...nats.WatchOpt) (nats.KeyWatcher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watchErr != nil {
		return nil, b.watchErr
	}
	var matched []string
	for key := range b.values {
		if matchSubject(keys, key) {
			matched = append(matched, key)
		}
	}
	slices.Sort(matched)
	w := &fakeWatcher{updates: make(chan nats.KeyValueEntry, len(matched)+1)}
	for _, key := range matched {
		w.updates <- fakeEntry{key: key, value: b.values[key]}
	}
	w.updates <- nil
	b.watchers = append(b.watchers, w)
	return w, nil
}

func (b *fakeBucket) ListKeys(_ ...nats.WatchOpt) (nats.KeyLister, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++
	if b.listErr != nil {
		return nil, b.listErr
	}
	keys := slices.Sorted(maps.Keys(b.values))
	l := &fakeLister{keys: make(chan string, len(keys))}
	for _, key := range keys {
		l.keys <- key
	}
	close(l.keys)
	return l, nil
}

func (b *fakeBucket) remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
}

// matchSubject supports the single-token wildcard used by the source.
func matchSubject(pattern, key string) bool {
	pt := strings.Split(pattern, ".")
	kt := strings.Split(key, ".")
	if len(pt) != len(kt) {
		return false
	}
	for i := range pt {
		if pt[i] != "*" && pt[i] != kt[i] {
			return false
		}
	}
	return true
}

func openerFor(buckets map[string]*fakeBucket) BucketOpener {
	return func(name string) (Bucket, error) {
		b, ok := buckets[name]
		if !ok {
			return nil, nats.ErrBucketNotFound
		}
		return b, nil
	}
}

var errConnectionLost = errors.New("nats: connection closed")
