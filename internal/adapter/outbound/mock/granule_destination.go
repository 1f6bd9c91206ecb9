package mock

import (
	"context"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/port/outbound"
	"sync"
	"sync/atomic"
	"time"
)

type granuleKey struct {
	granuleID           string
	collectionCumulusID int64
}

type fileKey struct {
	bucket string
	key    string
}

type executionLink struct {
	granuleCumulusID   int64
	executionCumulusID int64
}

// memTx stages writes until commit.
type memTx struct {
	granules map[granuleKey]*entity.Granule
	files    map[fileKey]*entity.File
	links    map[executionLink]struct{}
}

type txContextKey struct{}

// InMemoryGranuleDestination is a transactional in-memory destination store.
// Writes inside WithTransaction are staged and only become visible on commit.
type InMemoryGranuleDestination struct {
	mu          sync.Mutex
	nextID      int64
	collections map[string]int64
	executions  map[string]int64
	providers   map[string]int64
	pdrs        map[string]int64
	granules    map[granuleKey]*entity.Granule
	files       map[fileKey]*entity.File
	links       map[executionLink]struct{}

	unavailable error

	// RejectUpsert, when set, makes the granule upsert affect zero rows.
	RejectUpsert func(granule *entity.Granule) bool
	// FailFileUpsert, when set, returns an error for matching files.
	FailFileUpsert func(file *entity.File) error
	// TxDelay holds every transaction open for the given duration.
	TxDelay time.Duration

	active       atomic.Int64
	maxActive    atomic.Int64
	commits      atomic.Int64
	rollbacks    atomic.Int64
	granulesRepo *memGranuleRepository
	filesRepo    *memFileRepository
}

// NewInMemoryGranuleDestination creates an empty destination.
func NewInMemoryGranuleDestination() *InMemoryGranuleDestination {
	d := &InMemoryGranuleDestination{
		collections: make(map[string]int64),
		executions:  make(map[string]int64),
		providers:   make(map[string]int64),
		pdrs:        make(map[string]int64),
		granules:    make(map[granuleKey]*entity.Granule),
		files:       make(map[fileKey]*entity.File),
		links:       make(map[executionLink]struct{}),
	}
	d.granulesRepo = &memGranuleRepository{d: d}
	d.filesRepo = &memFileRepository{d: d}
	return d
}

var _ outbound.GranuleDestination = (*InMemoryGranuleDestination)(nil)

// SetUnavailable makes every subsequent operation fail with err wrapped in
// domain.ErrStoreUnavailable. A nil err restores the store.
func (d *InMemoryGranuleDestination) SetUnavailable(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unavailable = err
}

func (d *InMemoryGranuleDestination) checkAvailable() error {
	if d.unavailable != nil {
		return wrapUnavailable(d.unavailable)
	}
	return nil
}

func (d *InMemoryGranuleDestination) allocateID() int64 {
	d.nextID++
	return d.nextID
}

// WithTransaction implements outbound.TransactionManager.
func (d *InMemoryGranuleDestination) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*memTx); ok {
		return fn(ctx)
	}

	d.mu.Lock()
	err := d.checkAvailable()
	d.mu.Unlock()
	if err != nil {
		return err
	}

	active := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		current := d.maxActive.Load()
		if active <= current || d.maxActive.CompareAndSwap(current, active) {
			break
		}
	}
	if d.TxDelay > 0 {
		time.Sleep(d.TxDelay)
	}

	tx := &memTx{
		granules: make(map[granuleKey]*entity.Granule),
		files:    make(map[fileKey]*entity.File),
		links:    make(map[executionLink]struct{}),
	}
	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		d.rollbacks.Add(1)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for k, g := range tx.granules {
		if existing, ok := d.granules[k]; ok && !existing.UpdatedAt.Before(g.UpdatedAt) {
			continue
		}
		d.granules[k] = g
	}
	for k, f := range tx.files {
		d.files[k] = f
	}
	for l := range tx.links {
		d.links[l] = struct{}{}
	}
	d.commits.Add(1)
	return nil
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txContextKey{}).(*memTx)
	return tx
}

func (d *InMemoryGranuleDestination) lookup(table map[string]int64, key string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAvailable(); err != nil {
		return 0, err
	}
	id, ok := table[key]
	if !ok {
		return 0, domain.ErrRecordNotFound
	}
	return id, nil
}

// CollectionCumulusID implements outbound.CollectionLookup.
func (d *InMemoryGranuleDestination) CollectionCumulusID(_ context.Context, name, version string) (int64, error) {
	return d.lookup(d.collections, name+"___"+version)
}

// ExecutionCumulusID implements outbound.ExecutionLookup.
func (d *InMemoryGranuleDestination) ExecutionCumulusID(_ context.Context, url string) (int64, error) {
	return d.lookup(d.executions, url)
}

// ProviderCumulusID implements outbound.ProviderLookup.
func (d *InMemoryGranuleDestination) ProviderCumulusID(_ context.Context, name string) (int64, error) {
	return d.lookup(d.providers, name)
}

// PDRCumulusID implements outbound.PDRLookup.
func (d *InMemoryGranuleDestination) PDRCumulusID(_ context.Context, name string) (int64, error) {
	return d.lookup(d.pdrs, name)
}

// Granules implements outbound.GranuleDestination.
func (d *InMemoryGranuleDestination) Granules() outbound.GranuleRepository {
	return d.granulesRepo
}

// Files implements outbound.GranuleDestination.
func (d *InMemoryGranuleDestination) Files() outbound.FileRepository {
	return d.filesRepo
}

type memGranuleRepository struct {
	d *InMemoryGranuleDestination
}

func (r *memGranuleRepository) Get(ctx context.Context, granuleID string, collectionCumulusID int64) (*entity.Granule, error) {
	d := r.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAvailable(); err != nil {
		return nil, err
	}

	k := granuleKey{granuleID, collectionCumulusID}
	if tx := txFrom(ctx); tx != nil {
		if g, ok := tx.granules[k]; ok {
			return copyGranule(g), nil
		}
	}
	if g, ok := d.granules[k]; ok {
		return copyGranule(g), nil
	}
	return nil, nil //nolint:nilnil // absent granule is not an error
}

func (r *memGranuleRepository) Upsert(ctx context.Context, granule *entity.Granule) (entity.UpsertResult, error) {
	d := r.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAvailable(); err != nil {
		return entity.UpsertResult{}, err
	}

	k := granuleKey{granule.GranuleID, granule.CollectionCumulusID}
	tx := txFrom(ctx)
	existing := d.granules[k]
	if tx != nil {
		if staged, ok := tx.granules[k]; ok {
			existing = staged
		}
	}

	if existing != nil && !existing.UpdatedAt.Before(granule.UpdatedAt) {
		return entity.UpsertResult{}, nil
	}
	if r.d.RejectUpsert != nil && r.d.RejectUpsert(granule) {
		return entity.UpsertResult{}, nil
	}

	stored := copyGranule(granule)
	if existing != nil {
		stored.CumulusID = existing.CumulusID
	} else {
		stored.CumulusID = d.allocateID()
	}

	if tx != nil {
		tx.granules[k] = stored
	} else {
		d.granules[k] = stored
	}
	return entity.UpsertResult{CumulusID: stored.CumulusID, RowsAffected: 1}, nil
}

func (r *memGranuleRepository) UpsertExecutionLink(ctx context.Context, granuleCumulusID, executionCumulusID int64) error {
	d := r.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAvailable(); err != nil {
		return err
	}

	l := executionLink{granuleCumulusID, executionCumulusID}
	if tx := txFrom(ctx); tx != nil {
		tx.links[l] = struct{}{}
	} else {
		d.links[l] = struct{}{}
	}
	return nil
}

type memFileRepository struct {
	d *InMemoryGranuleDestination
}

func (r *memFileRepository) Upsert(ctx context.Context, file *entity.File) (entity.UpsertResult, error) {
	d := r.d
	if d.FailFileUpsert != nil {
		if err := d.FailFileUpsert(file); err != nil {
			return entity.UpsertResult{}, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAvailable(); err != nil {
		return entity.UpsertResult{}, err
	}

	k := fileKey{file.Bucket, file.Key}
	tx := txFrom(ctx)
	existing := d.files[k]
	if tx != nil {
		if staged, ok := tx.files[k]; ok {
			existing = staged
		}
	}

	stored := *file
	if existing != nil {
		stored.CumulusID = existing.CumulusID
	} else {
		stored.CumulusID = d.allocateID()
	}

	if tx != nil {
		tx.files[k] = &stored
	} else {
		d.files[k] = &stored
	}
	return entity.UpsertResult{CumulusID: stored.CumulusID, RowsAffected: 1}, nil
}

func copyGranule(g *entity.Granule) *entity.Granule {
	c := *g
	return &c
}
