// Package events handles event emission for pipeline run outcomes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/MomPansy/seasense-ingest/pkg/kafka"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes dataset run outcomes. Emission is best effort: a broker
// failure is logged and swallowed so it never fails a committed run.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitIngestionCompleted emits an ingestion.completed event for a run
func (e *Emitter) EmitIngestionCompleted(ctx context.Context, runID, dataset string, windowHours, rowsStaged int, rowsInserted int64) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitIngestionCompleted")
	defer span.End()

	event := &kafka.IngestionEvent{
		EventType:    string(EventTypeIngestionCompleted),
		RunID:        runID,
		Dataset:      dataset,
		WindowHours:  windowHours,
		RowsStaged:   rowsStaged,
		RowsInserted: rowsInserted,
	}

	if err := e.producer.PublishIngestionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit ingestion.completed event")
	}
}

// EmitIngestionFailed emits an ingestion.failed event for a run
func (e *Emitter) EmitIngestionFailed(ctx context.Context, runID, dataset string, windowHours int, runErr error) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitIngestionFailed")
	defer span.End()

	event := &kafka.IngestionEvent{
		EventType:   string(EventTypeIngestionFailed),
		RunID:       runID,
		Dataset:     dataset,
		WindowHours: windowHours,
		Error:       runErr.Error(),
	}

	if err := e.producer.PublishIngestionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit ingestion.failed event")
	}
}
