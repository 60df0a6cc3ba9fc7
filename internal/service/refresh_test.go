package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"shortage-service/internal/models"
	"shortage-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExceptionStore struct {
	schemaErr    error
	reconcileErr error
	batches      map[models.Source][]json.RawMessage
	results      map[models.Source]*store.ReconcileResult
}

func newFakeExceptionStore() *fakeExceptionStore {
	return &fakeExceptionStore{
		batches: make(map[models.Source][]json.RawMessage),
		results: make(map[models.Source]*store.ReconcileResult),
	}
}

func (f *fakeExceptionStore) EnsureSchema(ctx context.Context) error {
	return f.schemaErr
}

func (f *fakeExceptionStore) Reconcile(ctx context.Context, source models.Source, batch []json.RawMessage, now time.Time) (*store.ReconcileResult, error) {
	if f.reconcileErr != nil {
		return nil, f.reconcileErr
	}
	f.batches[source] = batch
	result := f.results[source]
	if result == nil {
		result = &store.ReconcileResult{BatchSize: len(batch), Inserted: len(batch)}
	}
	return result, nil
}

type fakeFetcher struct {
	orders []json.RawMessage
	err    error
	calls  int
}

func (f *fakeFetcher) FetchExceptionOrders(ctx context.Context) ([]json.RawMessage, error) {
	f.calls++
	return f.orders, f.err
}

type fakeLocker struct {
	acquired bool
	err      error
	releases int
}

func (f *fakeLocker) AcquireRefreshLock(ctx context.Context, source models.Source, ttl time.Duration) (bool, error) {
	return f.acquired, f.err
}

func (f *fakeLocker) ReleaseRefreshLock(ctx context.Context, source models.Source) error {
	f.releases++
	return nil
}

type fakePublisher struct {
	completed []*models.ReconcileCompletedEvent
	failed    []models.Source
}

func (f *fakePublisher) PublishReconcileCompleted(ctx context.Context, event *models.ReconcileCompletedEvent) error {
	f.completed = append(f.completed, event)
	return nil
}

func (f *fakePublisher) PublishRefreshFailed(ctx context.Context, source models.Source, reason string) error {
	f.failed = append(f.failed, source)
	return nil
}

func TestRefreshSourceFiltersStordToOOS(t *testing.T) {
	st := newFakeExceptionStore()
	stord := &fakeFetcher{orders: []json.RawMessage{
		// genuinely OOS
		json.RawMessage(`{"order_number": "SO-1", "sales_order_lines": [{"status": "backordered", "order_line_items": [{"item_sku": "A"}]}]}`),
		// exception but nothing backordered
		json.RawMessage(`{"order_number": "SO-2", "sales_order_lines": [{"status": "shipped", "order_line_items": [{"item_sku": "B"}]}]}`),
	}}
	pub := &fakePublisher{}

	svc := NewRefreshService(st, stord, &fakeFetcher{}, nil, pub, time.Minute)
	require.NoError(t, svc.RefreshSource(context.Background(), models.SourceStord))

	require.Len(t, st.batches[models.SourceStord], 1)
	assert.Contains(t, string(st.batches[models.SourceStord][0]), "SO-1")

	require.Len(t, pub.completed, 1)
	assert.Equal(t, models.SourceStord, pub.completed[0].Source)
	assert.Equal(t, 1, pub.completed[0].BatchSize)
}

func TestRefreshSourceEmptyFetchStillReconciles(t *testing.T) {
	st := newFakeExceptionStore()
	svc := NewRefreshService(st, &fakeFetcher{}, &fakeFetcher{}, nil, nil, time.Minute)

	require.NoError(t, svc.RefreshSource(context.Background(), models.SourceShipbob))

	batch, reconciled := st.batches[models.SourceShipbob]
	assert.True(t, reconciled)
	assert.Empty(t, batch)
}

func TestRefreshSourceSkipsWhenLockHeld(t *testing.T) {
	st := newFakeExceptionStore()
	stord := &fakeFetcher{}
	locker := &fakeLocker{acquired: false}

	svc := NewRefreshService(st, stord, &fakeFetcher{}, locker, nil, time.Minute)
	require.NoError(t, svc.RefreshSource(context.Background(), models.SourceStord))

	assert.Zero(t, stord.calls)
	assert.Zero(t, locker.releases)
}

func TestRefreshSourceReleasesLock(t *testing.T) {
	locker := &fakeLocker{acquired: true}
	svc := NewRefreshService(newFakeExceptionStore(), &fakeFetcher{}, &fakeFetcher{}, locker, nil, time.Minute)

	require.NoError(t, svc.RefreshSource(context.Background(), models.SourceStord))
	assert.Equal(t, 1, locker.releases)
}

func TestRefreshSourceFetchFailurePublishesFailed(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRefreshService(newFakeExceptionStore(),
		&fakeFetcher{err: assert.AnError}, &fakeFetcher{}, nil, pub, time.Minute)

	err := svc.RefreshSource(context.Background(), models.SourceStord)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []models.Source{models.SourceStord}, pub.failed)
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	st := newFakeExceptionStore()
	stord := &fakeFetcher{err: assert.AnError}
	shipbob := &fakeFetcher{orders: []json.RawMessage{json.RawMessage(`{"id": 9001}`)}}

	svc := NewRefreshService(st, stord, shipbob, nil, nil, time.Minute)
	err := svc.RefreshAll(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, shipbob.calls)
	assert.Len(t, st.batches[models.SourceShipbob], 1)
}

func TestRefreshScope(t *testing.T) {
	st := newFakeExceptionStore()
	stord := &fakeFetcher{}
	shipbob := &fakeFetcher{}
	svc := NewRefreshService(st, stord, shipbob, nil, nil, time.Minute)

	require.NoError(t, svc.RefreshScope(context.Background(), "all"))
	assert.Equal(t, 1, stord.calls)
	assert.Equal(t, 1, shipbob.calls)

	require.NoError(t, svc.RefreshScope(context.Background(), "shipbob"))
	assert.Equal(t, 2, shipbob.calls)

	err := svc.RefreshScope(context.Background(), "amazon")
	assert.ErrorIs(t, err, models.ErrInvalidSource)
}
