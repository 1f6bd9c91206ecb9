package service

import (
	"context"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/port/outbound"
	"iter"

	"github.com/stretchr/testify/mock"
)

// MockGranuleDestination is a testify double for outbound.GranuleDestination.
// WithTransaction runs fn unless an error is configured for it.
type MockGranuleDestination struct {
	mock.Mock
}

func (m *MockGranuleDestination) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

func (m *MockGranuleDestination) CollectionCumulusID(ctx context.Context, name, version string) (int64, error) {
	args := m.Called(ctx, name, version)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGranuleDestination) ExecutionCumulusID(ctx context.Context, url string) (int64, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGranuleDestination) ProviderCumulusID(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGranuleDestination) PDRCumulusID(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGranuleDestination) Granules() outbound.GranuleRepository {
	args := m.Called()
	return args.Get(0).(outbound.GranuleRepository)
}

func (m *MockGranuleDestination) Files() outbound.FileRepository {
	args := m.Called()
	return args.Get(0).(outbound.FileRepository)
}

// MockGranuleRepository is a testify double for outbound.GranuleRepository.
type MockGranuleRepository struct {
	mock.Mock
}

func (m *MockGranuleRepository) Get(
	ctx context.Context,
	granuleID string,
	collectionCumulusID int64,
) (*entity.Granule, error) {
	args := m.Called(ctx, granuleID, collectionCumulusID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Granule), args.Error(1)
}

func (m *MockGranuleRepository) Upsert(ctx context.Context, granule *entity.Granule) (entity.UpsertResult, error) {
	args := m.Called(ctx, granule)
	return args.Get(0).(entity.UpsertResult), args.Error(1)
}

func (m *MockGranuleRepository) UpsertExecutionLink(ctx context.Context, granuleCumulusID, executionCumulusID int64) error {
	args := m.Called(ctx, granuleCumulusID, executionCumulusID)
	return args.Error(0)
}

// MockFileRepository is a testify double for outbound.FileRepository.
type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Upsert(ctx context.Context, file *entity.File) (entity.UpsertResult, error) {
	args := m.Called(ctx, file)
	return args.Get(0).(entity.UpsertResult), args.Error(1)
}

// MockGranuleSource is a testify double for outbound.GranuleSource.
type MockGranuleSource struct {
	mock.Mock
}

func (m *MockGranuleSource) QueryByGranuleID(
	ctx context.Context,
	table, granuleID string,
) iter.Seq2[outbound.RawRecord, error] {
	args := m.Called(ctx, table, granuleID)
	return args.Get(0).(iter.Seq2[outbound.RawRecord, error])
}

func (m *MockGranuleSource) QueryByCollectionID(
	ctx context.Context,
	table, collectionID string,
) iter.Seq2[outbound.RawRecord, error] {
	args := m.Called(ctx, table, collectionID)
	return args.Get(0).(iter.Seq2[outbound.RawRecord, error])
}

func (m *MockGranuleSource) ScanSegment(
	ctx context.Context,
	table string,
	segment outbound.ScanSegment,
	fn outbound.PageHandler,
) error {
	args := m.Called(ctx, table, segment, fn)
	return args.Error(0)
}

// recordsOf returns a sequence yielding records in order, then err when non-nil.
func recordsOf(err error, records ...outbound.RawRecord) iter.Seq2[outbound.RawRecord, error] {
	return func(yield func(outbound.RawRecord, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

var (
	_ outbound.GranuleDestination = (*MockGranuleDestination)(nil)
	_ outbound.GranuleSource      = (*MockGranuleSource)(nil)
)
