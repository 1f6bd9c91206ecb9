package service

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/domain/service"
	"granulemigration/internal/domain/valueobject"
	"granulemigration/internal/port/outbound"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultLookupCacheTTL bounds how long a resolved collection, provider or PDR
// identifier is reused.
const DefaultLookupCacheTTL = 5 * time.Minute

// ForeignKeyResolver resolves the destination identifiers a source granule
// references. Collections, providers and PDRs are cached; executions are not,
// since most granules reference a distinct execution.
type ForeignKeyResolver struct {
	dest  outbound.GranuleDestination
	cache *cache.Cache
}

// NewForeignKeyResolver creates a resolver over dest. A non-positive ttl uses
// DefaultLookupCacheTTL.
func NewForeignKeyResolver(dest outbound.GranuleDestination, ttl time.Duration) *ForeignKeyResolver {
	if ttl <= 0 {
		ttl = DefaultLookupCacheTTL
	}
	return &ForeignKeyResolver{
		dest: dest,
		// No janitor goroutine: expired entries are replaced on the next lookup.
		cache: cache.New(ttl, 0),
	}
}

// ResolveGranuleCollection resolves the collection of src, wrapping a missing
// collection as a MissingDependency.
func (r *ForeignKeyResolver) ResolveGranuleCollection(ctx context.Context, src *entity.SourceGranule) (int64, error) {
	collectionCumulusID, err := r.ResolveCollection(ctx, src.CollectionID)
	if err != nil {
		return 0, r.wrap(err, "collection "+src.CollectionID, src)
	}
	return collectionCumulusID, nil
}

// ResolveProviderAndPDR fills the provider and PDR identifiers of refs when
// src names them.
func (r *ForeignKeyResolver) ResolveProviderAndPDR(
	ctx context.Context,
	src *entity.SourceGranule,
	refs *service.GranuleReferences,
) error {
	if src.Provider != "" {
		id, err := r.cached(ctx, "provider:"+src.Provider, func(ctx context.Context) (int64, error) {
			return r.dest.ProviderCumulusID(ctx, src.Provider)
		})
		if err != nil {
			return r.wrap(err, "provider "+src.Provider, src)
		}
		refs.ProviderCumulusID = &id
	}

	if src.PDRName != "" {
		id, err := r.cached(ctx, "pdr:"+src.PDRName, func(ctx context.Context) (int64, error) {
			return r.dest.PDRCumulusID(ctx, src.PDRName)
		})
		if err != nil {
			return r.wrap(err, "pdr "+src.PDRName, src)
		}
		refs.PDRCumulusID = &id
	}
	return nil
}

// ResolveCollection resolves a "<name>___<version>" collection identifier.
func (r *ForeignKeyResolver) ResolveCollection(ctx context.Context, collectionID string) (int64, error) {
	parsed, err := valueobject.ParseCollectionID(collectionID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrRecordNotFound, err)
	}
	return r.cached(ctx, "collection:"+parsed.String(), func(ctx context.Context) (int64, error) {
		return r.dest.CollectionCumulusID(ctx, parsed.Name(), parsed.Version())
	})
}

// ResolveExecution resolves an execution URL. A missing execution is not an
// error: the returned pointer is nil.
func (r *ForeignKeyResolver) ResolveExecution(ctx context.Context, executionURL string) (*int64, error) {
	if executionURL == "" {
		return nil, nil //nolint:nilnil // no execution referenced
	}
	id, err := r.dest.ExecutionCumulusID(ctx, executionURL)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, nil //nolint:nilnil // executions may be absent from the destination
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *ForeignKeyResolver) cached(
	ctx context.Context,
	key string,
	lookup func(ctx context.Context) (int64, error),
) (int64, error) {
	if v, ok := r.cache.Get(key); ok {
		return v.(int64), nil
	}
	id, err := lookup(ctx)
	if err != nil {
		return 0, err
	}
	r.cache.SetDefault(key, id)
	return id, nil
}

func (r *ForeignKeyResolver) wrap(err error, what string, src *entity.SourceGranule) error {
	if errors.Is(err, domain.ErrRecordNotFound) {
		return NewMigrationErrorWithCause(
			ErrorTypeMissingDependency,
			what+" does not exist in the destination",
			src.GranuleID, src.CollectionID, err,
		)
	}
	return classifyStoreError("failed to resolve "+what, src.GranuleID, src.CollectionID, err)
}
