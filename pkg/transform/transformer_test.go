package transform

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/locations"
	"github.com/MomPansy/seasense-ingest/pkg/models"
)

type fakeRawSource struct {
	records      []models.RawRecord
	fetchErr     error
	processedIDs []int64
}

func (f *fakeRawSource) FetchUnprocessed(_ context.Context, _ datasets.Dataset) ([]models.RawRecord, error) {
	return f.records, f.fetchErr
}

func (f *fakeRawSource) MarkProcessed(_ context.Context, _ datasets.Dataset, ids []int64) error {
	f.processedIDs = append(f.processedIDs, ids...)
	return nil
}

type fakeStagingStore struct {
	resetCalls int
	rows       []models.CanonicalRow
}

func (f *fakeStagingStore) Reset(_ context.Context, _ datasets.Dataset) error {
	f.resetCalls++
	return nil
}

func (f *fakeStagingStore) InsertRows(_ context.Context, _ datasets.Dataset, rows []models.CanonicalRow) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTransformer(t *testing.T, raw RawSource, staging StagingStore) *Transformer {
	t.Helper()
	tr, err := New(raw, staging, testLogger())
	require.NoError(t, err)
	return tr
}

func arrivalsDataset(t *testing.T) datasets.Dataset {
	t.Helper()
	d, ok := datasets.Get(datasets.VesselArrivals)
	require.True(t, ok)
	return d
}

func TestRun_NoUnprocessedRowsIsNoop(t *testing.T) {
	raw := &fakeRawSource{}
	staging := &fakeStagingStore{}
	tr := newTransformer(t, raw, staging)

	staged, err := tr.Run(context.Background(), arrivalsDataset(t), nil)

	require.NoError(t, err)
	assert.Zero(t, staged)
	assert.Zero(t, staging.resetCalls, "staging must stay untouched when there is no work")
	assert.Empty(t, raw.processedIDs)
}

func TestRun_StagesAndMarksProcessed(t *testing.T) {
	fetchedAt := time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC)
	payload := `[
		{
			"vesselParticulars": {"vesselName": "EVER ACE", "callSign": "9V1234", "imoNumber": "9893890", "flag": "SG"},
			"arrivedTime": "2025-03-14 09:00:00",
			"locationFrom": "PORT KLANG",
			"locationTo": "SINGAPORE"
		},
		{
			"vesselParticulars": {"vesselName": "MSC OSCAR", "callSign": "3EUY8", "imoNumber": "9703291", "flag": "PA"},
			"arrivedTime": "",
			"locationFrom": "UNCHARTED HARBOR"
		}
	]`
	raw := &fakeRawSource{records: []models.RawRecord{
		{ID: 7, FetchedAt: fetchedAt, StatusCode: 200, Payload: json.RawMessage(payload)},
	}}
	staging := &fakeStagingStore{}
	tr := newTransformer(t, raw, staging)

	dict := locations.Dictionary{"PORT KLANG": "MYPKG", "SINGAPORE": "SGSIN"}
	staged, err := tr.Run(context.Background(), arrivalsDataset(t), dict)

	require.NoError(t, err)
	assert.Equal(t, 2, staged)
	assert.Equal(t, 1, staging.resetCalls)
	assert.Equal(t, []int64{7}, raw.processedIDs)
	require.Len(t, staging.rows, 2)

	first := staging.rows[0]
	assert.Equal(t, "EVER ACE", first.VesselName)
	assert.Equal(t, "9893890", first.IMO)
	// 09:00 civil Singapore time is 01:00 UTC
	require.NotNil(t, first.EventTime)
	assert.Equal(t, time.Date(2025, 3, 14, 1, 0, 0, 0, time.UTC), first.EventTime.UTC())
	require.NotNil(t, first.LocationFrom)
	assert.Equal(t, "MYPKG", *first.LocationFrom)
	require.NotNil(t, first.LocationTo)
	assert.Equal(t, "SGSIN", *first.LocationTo)
	assert.Equal(t, fetchedAt, first.FetchedAt)

	second := staging.rows[1]
	assert.Nil(t, second.EventTime, "missing optional timestamp stays NULL")
	require.NotNil(t, second.LocationFrom)
	assert.Equal(t, "UNCHARTED HARBOR", *second.LocationFrom, "unmapped values pass through unchanged")
	assert.Nil(t, second.LocationTo)
}

func TestRun_DeparturesIgnoreLocations(t *testing.T) {
	payload := `[{
		"vesselParticulars": {"vesselName": "EVER ACE", "callSign": "9V1234", "imoNumber": "9893890", "flag": "SG"},
		"departedTime": "2025-03-14 10:30:00",
		"locationFrom": "SINGAPORE"
	}]`
	raw := &fakeRawSource{records: []models.RawRecord{
		{ID: 1, FetchedAt: time.Now().UTC(), StatusCode: 200, Payload: json.RawMessage(payload)},
	}}
	staging := &fakeStagingStore{}
	tr := newTransformer(t, raw, staging)

	d, ok := datasets.Get(datasets.VesselDepartures)
	require.True(t, ok)

	staged, err := tr.Run(context.Background(), d, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, staged)
	require.Len(t, staging.rows, 1)
	require.NotNil(t, staging.rows[0].EventTime)
	assert.Equal(t, time.Date(2025, 3, 14, 2, 30, 0, 0, time.UTC), staging.rows[0].EventTime.UTC())
	assert.Nil(t, staging.rows[0].LocationFrom)
}

func TestRun_MissingParticularsAbortsPass(t *testing.T) {
	payload := `[{"arrivedTime": "2025-03-14 09:00:00"}]`
	raw := &fakeRawSource{records: []models.RawRecord{
		{ID: 3, FetchedAt: time.Now().UTC(), StatusCode: 200, Payload: json.RawMessage(payload)},
	}}
	staging := &fakeStagingStore{}
	tr := newTransformer(t, raw, staging)

	_, err := tr.Run(context.Background(), arrivalsDataset(t), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vesselParticulars")
	assert.Empty(t, raw.processedIDs, "nothing is marked processed on a failed pass")
}

func TestRun_MalformedTimestampAbortsPass(t *testing.T) {
	payload := `[{
		"vesselParticulars": {"vesselName": "X", "callSign": "C", "imoNumber": "1", "flag": "SG"},
		"arrivedTime": "14/03/2025 09:00"
	}]`
	raw := &fakeRawSource{records: []models.RawRecord{
		{ID: 4, FetchedAt: time.Now().UTC(), StatusCode: 200, Payload: json.RawMessage(payload)},
	}}
	tr := newTransformer(t, raw, &fakeStagingStore{})

	_, err := tr.Run(context.Background(), arrivalsDataset(t), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing timestamp")
}

func TestRun_EmptyPayloadRecordStillMarkedProcessed(t *testing.T) {
	raw := &fakeRawSource{records: []models.RawRecord{
		{ID: 9, FetchedAt: time.Now().UTC(), StatusCode: 200, Payload: json.RawMessage(`[]`)},
	}}
	staging := &fakeStagingStore{}
	tr := newTransformer(t, raw, staging)

	staged, err := tr.Run(context.Background(), arrivalsDataset(t), nil)

	require.NoError(t, err)
	assert.Zero(t, staged)
	assert.Equal(t, 1, staging.resetCalls)
	assert.Equal(t, []int64{9}, raw.processedIDs)
}
