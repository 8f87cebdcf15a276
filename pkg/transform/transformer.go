package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/locations"
	"github.com/MomPansy/seasense-ingest/pkg/models"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// RawSource provides unprocessed fetch payloads and consumes them.
type RawSource interface {
	FetchUnprocessed(ctx context.Context, dataset datasets.Dataset) ([]models.RawRecord, error)
	MarkProcessed(ctx context.Context, dataset datasets.Dataset, ids []int64) error
}

// StagingStore receives the canonical rows of one pass.
type StagingStore interface {
	Reset(ctx context.Context, dataset datasets.Dataset) error
	InsertRows(ctx context.Context, dataset datasets.Dataset, rows []models.CanonicalRow) error
}

// Transformer runs the transform phase: drain unprocessed raw payloads into
// freshly reset staging, then mark the raw rows consumed.
type Transformer struct {
	raw      RawSource
	staging  StagingStore
	civilLoc *time.Location
	logger   ectologger.Logger
}

// New builds a transformer. Upstream timestamps are naive civil time in
// Asia/Singapore; the location is loaded once here.
func New(raw RawSource, staging StagingStore, logger ectologger.Logger) (*Transformer, error) {
	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		return nil, fmt.Errorf("loading civil timezone: %w", err)
	}
	return &Transformer{
		raw:      raw,
		staging:  staging,
		civilLoc: loc,
		logger:   logger,
	}, nil
}

// Run executes one transform pass for a dataset and returns the staged row
// count. With nothing unprocessed it returns 0 without touching staging.
// Any mapping failure aborts the whole pass; nothing is marked processed.
func (t *Transformer) Run(ctx context.Context, dataset datasets.Dataset, dict locations.Dictionary) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "transform.Transformer.Run")
	defer span.End()

	rawRows, err := t.raw.FetchUnprocessed(ctx, dataset)
	if err != nil {
		return 0, err
	}
	if len(rawRows) == 0 {
		t.logger.WithContext(ctx).WithField("dataset", dataset.Name).Debug("No unprocessed fetches to transform")
		return 0, nil
	}

	if err := t.staging.Reset(ctx, dataset); err != nil {
		return 0, err
	}

	staged := 0
	ids := make([]int64, 0, len(rawRows))
	for _, rawRow := range rawRows {
		ids = append(ids, rawRow.ID)

		rows, err := t.mapPayload(dataset, rawRow, dict)
		if err != nil {
			t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"dataset":       dataset.Name,
				"raw_record_id": rawRow.ID,
			}).Error("Failed to map raw payload")
			return 0, err
		}
		if len(rows) == 0 {
			continue
		}

		if err := t.staging.InsertRows(ctx, dataset, rows); err != nil {
			return 0, err
		}
		staged += len(rows)
	}

	if err := t.raw.MarkProcessed(ctx, dataset, ids); err != nil {
		return 0, err
	}

	t.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset":     dataset.Name,
		"raw_records": len(rawRows),
		"staged_rows": staged,
	}).Info("Transform pass complete")
	return staged, nil
}

func (t *Transformer) mapPayload(dataset datasets.Dataset, rawRow models.RawRecord, dict locations.Dictionary) ([]models.CanonicalRow, error) {
	if len(rawRow.Payload) == 0 {
		return nil, nil
	}

	var movements []models.VesselMovement
	if err := json.Unmarshal(rawRow.Payload, &movements); err != nil {
		return nil, fmt.Errorf("raw record %d: decoding payload: %w", rawRow.ID, err)
	}

	rows := make([]models.CanonicalRow, 0, len(movements))
	for i, m := range movements {
		if m.VesselParticulars == nil {
			return nil, fmt.Errorf("raw record %d: movement %d is missing vesselParticulars", rawRow.ID, i)
		}

		eventTime, err := t.toUTC(dataset.EventTimeOf(m))
		if err != nil {
			return nil, fmt.Errorf("raw record %d: movement %d: %w", rawRow.ID, i, err)
		}

		row := models.CanonicalRow{
			VesselName: m.VesselParticulars.VesselName,
			Callsign:   m.VesselParticulars.CallSign,
			IMO:        m.VesselParticulars.IMONumber,
			Flag:       m.VesselParticulars.Flag,
			EventTime:  eventTime,
			FetchedAt:  rawRow.FetchedAt,
		}
		if dataset.HasLocations {
			row.LocationFrom = substitute(m.LocationFrom, dict)
			row.LocationTo = substitute(m.LocationTo, dict)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// toUTC localizes a naive civil timestamp and converts it to the UTC instant.
// Empty input stays NULL.
func (t *Transformer) toUTC(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(datasets.TimeLayout, value, t.civilLoc)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	utc := parsed.UTC()
	return &utc, nil
}

// substitute swaps a location description for its code when the dictionary
// knows it; unmapped values pass through unchanged.
func substitute(value string, dict locations.Dictionary) *string {
	if value == "" {
		return nil
	}
	if code, ok := dict[value]; ok {
		return &code
	}
	return &value
}
