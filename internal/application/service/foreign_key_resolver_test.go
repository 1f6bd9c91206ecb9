package service

import (
	"context"
	"errors"
	"granulemigration/internal/adapter/outbound/mock"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/domain/service"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyResolver_ResolveCollection(t *testing.T) {
	dest := mock.NewInMemoryGranuleDestination()
	want := dest.AddCollection("MOD09GQ", "006")
	resolver := NewForeignKeyResolver(dest, time.Minute)

	got, err := resolver.ResolveCollection(context.Background(), "MOD09GQ___006")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = resolver.ResolveCollection(context.Background(), "MOD09GQ___007")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = resolver.ResolveCollection(context.Background(), "malformed")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestForeignKeyResolver_CachesCollections(t *testing.T) {
	dest := mock.NewInMemoryGranuleDestination()
	want := dest.AddCollection("MOD09GQ", "006")
	resolver := NewForeignKeyResolver(dest, time.Minute)

	_, err := resolver.ResolveCollection(context.Background(), "MOD09GQ___006")
	require.NoError(t, err)

	dest.SetUnavailable(errors.New("down"))
	got, err := resolver.ResolveCollection(context.Background(), "MOD09GQ___006")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestForeignKeyResolver_ResolveExecution(t *testing.T) {
	dest := mock.NewInMemoryGranuleDestination()
	want := dest.AddExecution("arn:exec")
	resolver := NewForeignKeyResolver(dest, 0)

	got, err := resolver.ResolveExecution(context.Background(), "arn:exec")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	got, err = resolver.ResolveExecution(context.Background(), "arn:missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = resolver.ResolveExecution(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)

	dest.SetUnavailable(errors.New("down"))
	_, err = resolver.ResolveExecution(context.Background(), "arn:exec")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestForeignKeyResolver_ResolveProviderAndPDR(t *testing.T) {
	dest := mock.NewInMemoryGranuleDestination()
	collectionID := dest.AddCollection("C", "1")
	providerID := dest.AddProvider("prov")
	resolver := NewForeignKeyResolver(dest, time.Minute)

	src := &entity.SourceGranule{GranuleID: "G", CollectionID: "C___1", Provider: "prov"}
	got, err := resolver.ResolveGranuleCollection(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, collectionID, got)

	refs := service.GranuleReferences{CollectionCumulusID: got}
	require.NoError(t, resolver.ResolveProviderAndPDR(context.Background(), src, &refs))
	assert.Equal(t, &providerID, refs.ProviderCumulusID)
	assert.Nil(t, refs.PDRCumulusID)

	refs = service.GranuleReferences{CollectionCumulusID: got}
	err = resolver.ResolveProviderAndPDR(context.Background(), &entity.SourceGranule{
		GranuleID:    "G",
		CollectionID: "C___1",
		PDRName:      "missing.PDR",
	}, &refs)
	assert.ErrorIs(t, err, domain.ErrMissingDependency)

	_, err = resolver.ResolveGranuleCollection(context.Background(), &entity.SourceGranule{
		GranuleID:    "G",
		CollectionID: "D___2",
	})
	assert.ErrorIs(t, err, domain.ErrMissingDependency)

	dest.SetUnavailable(errors.New("down"))
	_, err = resolver.ResolveGranuleCollection(context.Background(), &entity.SourceGranule{
		GranuleID:    "G",
		CollectionID: "E___3",
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrMissingDependency)
}
