package mock

import (
	"errors"
	"fmt"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"sort"
)

func wrapUnavailable(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

// AddCollection seeds a collection and returns its cumulus id.
func (d *InMemoryGranuleDestination) AddCollection(name, version string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocateID()
	d.collections[name+"___"+version] = id
	return id
}

// AddExecution seeds an execution and returns its cumulus id.
func (d *InMemoryGranuleDestination) AddExecution(url string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocateID()
	d.executions[url] = id
	return id
}

// AddProvider seeds a provider and returns its cumulus id.
func (d *InMemoryGranuleDestination) AddProvider(name string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocateID()
	d.providers[name] = id
	return id
}

// AddPDR seeds a PDR and returns its cumulus id.
func (d *InMemoryGranuleDestination) AddPDR(name string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocateID()
	d.pdrs[name] = id
	return id
}

// PutGranule seeds a committed granule, assigning a cumulus id when unset.
func (d *InMemoryGranuleDestination) PutGranule(granule *entity.Granule) *entity.Granule {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored := copyGranule(granule)
	if stored.CumulusID == 0 {
		stored.CumulusID = d.allocateID()
	}
	d.granules[granuleKey{stored.GranuleID, stored.CollectionCumulusID}] = stored
	return copyGranule(stored)
}

// Granule returns the committed granule, if any.
func (d *InMemoryGranuleDestination) Granule(granuleID string, collectionCumulusID int64) (*entity.Granule, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.granules[granuleKey{granuleID, collectionCumulusID}]
	if !ok {
		return nil, false
	}
	return copyGranule(g), true
}

// GranuleCount returns the number of committed granules.
func (d *InMemoryGranuleDestination) GranuleCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.granules)
}

// FileCount returns the number of committed files.
func (d *InMemoryGranuleDestination) FileCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files)
}

// FilesForGranule returns the committed files of a granule ordered by key.
func (d *InMemoryGranuleDestination) FilesForGranule(granuleCumulusID int64) []entity.File {
	d.mu.Lock()
	defer d.mu.Unlock()
	var files []entity.File
	for _, f := range d.files {
		if f.GranuleCumulusID == granuleCumulusID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files
}

// ExecutionLinks returns the execution ids linked to a granule.
func (d *InMemoryGranuleDestination) ExecutionLinks(granuleCumulusID int64) []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []int64
	for l := range d.links {
		if l.granuleCumulusID == granuleCumulusID {
			ids = append(ids, l.executionCumulusID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MaxConcurrentTransactions returns the highest number of simultaneously open transactions.
func (d *InMemoryGranuleDestination) MaxConcurrentTransactions() int {
	return int(d.maxActive.Load())
}

// Commits returns the number of committed transactions.
func (d *InMemoryGranuleDestination) Commits() int {
	return int(d.commits.Load())
}

// Rollbacks returns the number of rolled back transactions.
func (d *InMemoryGranuleDestination) Rollbacks() int {
	return int(d.rollbacks.Load())
}
