package pipeline

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appcontext "github.com/MomPansy/seasense-ingest/pkg/context"
	"github.com/MomPansy/seasense-ingest/pkg/database"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/fetcher"
	"github.com/MomPansy/seasense-ingest/pkg/locations"
	"github.com/MomPansy/seasense-ingest/pkg/models"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// TxStarter hands out the run-scoped transaction. Satisfied by database.DB.
type TxStarter interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// Fetcher performs the single upstream attempt for a run.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (fetcher.Result, error)
}

// RawAppender persists one fetch attempt in the raw audit table.
type RawAppender interface {
	Append(ctx context.Context, dataset datasets.Dataset, rec models.RawRecord) (int64, error)
}

// Transformer runs the transform pass and reports staged row count.
type Transformer interface {
	Run(ctx context.Context, dataset datasets.Dataset, dict locations.Dictionary) (int, error)
}

// Merger moves staged rows into the permanent table.
type Merger interface {
	Merge(ctx context.Context, dataset datasets.Dataset) (int64, error)
}

// EventEmitter reports run outcomes; emission never affects the run result.
type EventEmitter interface {
	EmitIngestionCompleted(ctx context.Context, runID, dataset string, windowHours, rowsStaged int, rowsInserted int64)
	EmitIngestionFailed(ctx context.Context, runID, dataset string, windowHours int, runErr error)
}

// RunResult is the outcome of one dataset pipeline run.
type RunResult struct {
	RunID        string
	Dataset      string
	WindowHours  int
	RowsStaged   int
	RowsInserted int64
	Err          error
}

// Selection names a dataset to run with its fetch window.
type Selection struct {
	Dataset     datasets.Dataset
	WindowHours int
}

// Pipeline orchestrates a dataset run: fetch, store raw, transform, merge,
// commit. Every run owns exactly one transaction; independent datasets never
// share one.
type Pipeline struct {
	db          TxStarter
	fetcher     Fetcher
	transformer Transformer
	merger      Merger
	raw         RawAppender
	emitter     EventEmitter // optional
	baseURL     string
	civilLoc    *time.Location
	logger      ectologger.Logger

	now func() time.Time
}

func New(db TxStarter, f Fetcher, raw RawAppender, t Transformer, m Merger, emitter EventEmitter, baseURL string, civilLoc *time.Location, logger ectologger.Logger) *Pipeline {
	return &Pipeline{
		db:          db,
		fetcher:     f,
		raw:         raw,
		transformer: t,
		merger:      m,
		emitter:     emitter,
		baseURL:     baseURL,
		civilLoc:    civilLoc,
		logger:      logger,
		now:         time.Now,
	}
}

// RunMany executes the selected dataset runs concurrently, each with its own
// transaction, and returns results keyed by dataset name.
func (p *Pipeline) RunMany(ctx context.Context, selections []Selection, dict locations.Dictionary) map[string]RunResult {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.RunMany")
	defer span.End()

	results := make(map[string]RunResult, len(selections))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, sel := range selections {
		wg.Add(1)
		go func(sel Selection) {
			defer wg.Done()
			result := p.RunDataset(ctx, sel.Dataset, sel.WindowHours, dict)
			mu.Lock()
			results[sel.Dataset.Name] = result
			mu.Unlock()
		}(sel)
	}
	wg.Wait()

	return results
}

// RunDataset executes one full pipeline run for a dataset. A fetch failure
// commits the raw audit row and fails the run; a transform or merge failure
// rolls back everything including the raw insert.
func (p *Pipeline) RunDataset(ctx context.Context, dataset datasets.Dataset, windowHours int, dict locations.Dictionary) RunResult {
	runID := uuid.NewString()
	ctx = appcontext.SetDataset(ctx, dataset.Name)
	ctx = appcontext.SetRunID(ctx, runID)

	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.RunDataset")
	defer span.End()

	result := RunResult{RunID: runID, Dataset: dataset.Name, WindowHours: windowHours}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset":      dataset.Name,
		"run_id":       runID,
		"window_hours": windowHours,
	}).Info("Starting ingestion run")

	result.Err = p.run(ctx, dataset, windowHours, dict, &result)

	if result.Err != nil {
		p.logger.WithContext(ctx).WithError(result.Err).WithField("dataset", dataset.Name).Error("Ingestion run failed")
		if p.emitter != nil {
			p.emitter.EmitIngestionFailed(ctx, runID, dataset.Name, windowHours, result.Err)
		}
		return result
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset":       dataset.Name,
		"rows_staged":   result.RowsStaged,
		"rows_inserted": result.RowsInserted,
	}).Info("Ingestion run complete")
	if p.emitter != nil {
		p.emitter.EmitIngestionCompleted(ctx, runID, dataset.Name, windowHours, result.RowsStaged, result.RowsInserted)
	}
	return result
}

func (p *Pipeline) run(ctx context.Context, dataset datasets.Dataset, windowHours int, dict locations.Dictionary, result *RunResult) error {
	// Fetch happens outside the transaction; the attempt is recorded either way.
	endpoint := dataset.FetchURL(p.baseURL, p.now().In(p.civilLoc), windowHours)
	fetchResult, err := p.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return &FetchError{Dataset: dataset.Name, Detail: err.Error()}
	}

	txCtx, tx, err := p.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	// Rollback with the pre-transaction context so it actually fires; it
	// no-ops once the run has committed.
	defer tx.Rollback(ctx)

	rec := models.RawRecord{
		Endpoint:    endpoint,
		FetchedAt:   fetchResult.RequestedAt,
		StatusCode:  fetchResult.StatusCode,
		Payload:     fetchResult.Payload,
		ErrorDetail: fetchResult.ErrDetail,
	}
	if _, err := p.raw.Append(txCtx, dataset, rec); err != nil {
		return err
	}

	if !fetchResult.Success() {
		// Commit the audit row, then report the failed attempt.
		if err := tx.Commit(txCtx); err != nil {
			return err
		}
		return &FetchError{Dataset: dataset.Name, StatusCode: fetchResult.StatusCode, Detail: derefDetail(fetchResult.ErrDetail)}
	}

	staged, err := p.transformer.Run(txCtx, dataset, dict)
	if err != nil {
		return &TransformError{Dataset: dataset.Name, Err: err}
	}
	result.RowsStaged = staged

	inserted, err := p.merger.Merge(txCtx, dataset)
	if err != nil {
		return &MergeError{Dataset: dataset.Name, Err: err}
	}
	result.RowsInserted = inserted

	return tx.Commit(txCtx)
}

func derefDetail(detail *string) string {
	if detail == nil {
		return "unknown error"
	}
	return *detail
}
