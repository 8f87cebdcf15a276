package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MomPansy/seasense-ingest/pkg/database"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/fetcher"
	"github.com/MomPansy/seasense-ingest/pkg/locations"
	"github.com/MomPansy/seasense-ingest/pkg/models"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) IsOpen() bool { return !f.committed && !f.rolledBack }

func (f *fakeTx) Commit(_ context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(_ context.Context) error {
	if f.committed {
		return nil
	}
	f.rolledBack = true
	return nil
}

func (f *fakeTx) ExecContext(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeTx) GetContext(_ context.Context, _ any, _ string, _ ...any) error { return nil }

func (f *fakeTx) SelectContext(_ context.Context, _ any, _ string, _ ...any) error { return nil }

func (f *fakeTx) QueryRowxContext(_ context.Context, _ string, _ ...any) *sqlx.Row { return nil }

type fakeTxStarter struct {
	tx    *fakeTx
	txErr error
}

func (f *fakeTxStarter) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	if f.txErr != nil {
		return ctx, nil, f.txErr
	}
	return ctx, f.tx, nil
}

type fakeFetcher struct {
	result   fetcher.Result
	err      error
	endpoint string
}

func (f *fakeFetcher) Fetch(_ context.Context, endpoint string) (fetcher.Result, error) {
	f.endpoint = endpoint
	return f.result, f.err
}

type fakeRawAppender struct {
	appended []models.RawRecord
	err      error
}

func (f *fakeRawAppender) Append(_ context.Context, _ datasets.Dataset, rec models.RawRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.appended = append(f.appended, rec)
	return int64(len(f.appended)), nil
}

type fakeTransformer struct {
	staged int
	err    error
	called bool
}

func (f *fakeTransformer) Run(_ context.Context, _ datasets.Dataset, _ locations.Dictionary) (int, error) {
	f.called = true
	return f.staged, f.err
}

type fakeMerger struct {
	inserted int64
	err      error
	called   bool
}

func (f *fakeMerger) Merge(_ context.Context, _ datasets.Dataset) (int64, error) {
	f.called = true
	return f.inserted, f.err
}

type emittedEvent struct {
	eventType string
	dataset   string
}

type fakeEmitter struct {
	events []emittedEvent
}

func (f *fakeEmitter) EmitIngestionCompleted(_ context.Context, _, dataset string, _, _ int, _ int64) {
	f.events = append(f.events, emittedEvent{"ingestion.completed", dataset})
}

func (f *fakeEmitter) EmitIngestionFailed(_ context.Context, _, dataset string, _ int, _ error) {
	f.events = append(f.events, emittedEvent{"ingestion.failed", dataset})
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type pipelineFixture struct {
	pipeline    *Pipeline
	tx          *fakeTx
	fetcher     *fakeFetcher
	raw         *fakeRawAppender
	transformer *fakeTransformer
	merger      *fakeMerger
	emitter     *fakeEmitter
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	fx := &pipelineFixture{
		tx: &fakeTx{},
		fetcher: &fakeFetcher{result: fetcher.Result{
			StatusCode:  200,
			Payload:     json.RawMessage(`[]`),
			RequestedAt: time.Now().UTC(),
		}},
		raw:         &fakeRawAppender{},
		transformer: &fakeTransformer{},
		merger:      &fakeMerger{},
		emitter:     &fakeEmitter{},
	}
	fx.pipeline = New(
		&fakeTxStarter{tx: fx.tx},
		fx.fetcher,
		fx.raw,
		fx.transformer,
		fx.merger,
		fx.emitter,
		"https://upstream.example.com",
		loc,
		testLogger(),
	)
	return fx
}

func arrivals(t *testing.T) datasets.Dataset {
	t.Helper()
	d, ok := datasets.Get(datasets.VesselArrivals)
	require.True(t, ok)
	return d
}

func TestRunDataset_Success(t *testing.T) {
	fx := newFixture(t)
	fx.transformer.staged = 5
	fx.merger.inserted = 3

	result := fx.pipeline.RunDataset(context.Background(), arrivals(t), 24, nil)

	require.NoError(t, result.Err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, datasets.VesselArrivals, result.Dataset)
	assert.Equal(t, 24, result.WindowHours)
	assert.Equal(t, 5, result.RowsStaged)
	assert.Equal(t, int64(3), result.RowsInserted)

	assert.True(t, fx.tx.committed)
	assert.False(t, fx.tx.rolledBack)
	require.Len(t, fx.raw.appended, 1)
	assert.Equal(t, 200, fx.raw.appended[0].StatusCode)
	assert.Contains(t, fx.fetcher.endpoint, "/v1/vessel/arrivals/date/")
	assert.Contains(t, fx.fetcher.endpoint, "/hours/24")
	assert.Equal(t, []emittedEvent{{"ingestion.completed", datasets.VesselArrivals}}, fx.emitter.events)
}

func TestRunDataset_FetchFailureCommitsAuditRow(t *testing.T) {
	fx := newFixture(t)
	detail := "connection refused"
	fx.fetcher.result = fetcher.Result{StatusCode: 0, ErrDetail: &detail, RequestedAt: time.Now().UTC()}

	result := fx.pipeline.RunDataset(context.Background(), arrivals(t), 24, nil)

	require.Error(t, result.Err)
	assert.True(t, IsFetchError(result.Err))
	assert.Contains(t, result.Err.Error(), "connection refused")

	// the audit row commits even though the run fails
	require.Len(t, fx.raw.appended, 1)
	assert.Equal(t, 0, fx.raw.appended[0].StatusCode)
	assert.True(t, fx.tx.committed)

	assert.False(t, fx.transformer.called)
	assert.False(t, fx.merger.called)
	assert.Equal(t, []emittedEvent{{"ingestion.failed", datasets.VesselArrivals}}, fx.emitter.events)
}

func TestRunDataset_TransformFailureRollsBackEverything(t *testing.T) {
	fx := newFixture(t)
	fx.transformer.err = errors.New("missing vesselParticulars")

	result := fx.pipeline.RunDataset(context.Background(), arrivals(t), 24, nil)

	require.Error(t, result.Err)
	assert.True(t, IsTransformError(result.Err))
	assert.False(t, fx.tx.committed)
	assert.True(t, fx.tx.rolledBack, "raw insert and staging writes roll back together")
	assert.False(t, fx.merger.called)
}

func TestRunDataset_MergeFailureRollsBackEverything(t *testing.T) {
	fx := newFixture(t)
	fx.merger.err = errors.New("unique violation")

	result := fx.pipeline.RunDataset(context.Background(), arrivals(t), 24, nil)

	require.Error(t, result.Err)
	assert.True(t, IsMergeError(result.Err))
	assert.False(t, fx.tx.committed)
	assert.True(t, fx.tx.rolledBack)
}

func TestRunDataset_FetcherErrorIsFetchError(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.err = errors.New("invalid endpoint")

	result := fx.pipeline.RunDataset(context.Background(), arrivals(t), 24, nil)

	require.Error(t, result.Err)
	assert.True(t, IsFetchError(result.Err))
	assert.Empty(t, fx.raw.appended)
}

func TestRunMany_IndependentResults(t *testing.T) {
	fx := newFixture(t)
	fx.transformer.staged = 2
	fx.merger.inserted = 2

	selections := make([]Selection, 0, len(datasets.Names()))
	for _, name := range datasets.Names() {
		d, ok := datasets.Get(name)
		require.True(t, ok)
		selections = append(selections, Selection{Dataset: d, WindowHours: d.DefaultWindowHours})
	}

	results := fx.pipeline.RunMany(context.Background(), selections, nil)

	require.Len(t, results, 3)
	for _, name := range datasets.Names() {
		result, ok := results[name]
		require.True(t, ok)
		assert.NoError(t, result.Err)
		assert.Equal(t, name, result.Dataset)
	}
}
