package staging

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/MomPansy/seasense-ingest/pkg/database"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/models"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// Repository manages the per-run scratch tables. Staging holds exactly one
// transform pass worth of rows; Reset wipes it before each pass that has work.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Reset truncates the dataset's staging table and restarts its id sequence so
// staged ids always reflect insertion order within the pass.
func (r *Repository) Reset(ctx context.Context, dataset datasets.Dataset) error {
	ctx, span := tracing.StartSpan(ctx, "staging.Repository.Reset")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY`, dataset.StagingTable())
	if _, err := tx.ExecContext(ctx, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("dataset", dataset.Name).Error("Failed to reset staging table")
		return fmt.Errorf("failed to reset staging table for %s: %w", dataset.Name, err)
	}
	return nil
}

// InsertRows stages canonical rows in the order given.
func (r *Repository) InsertRows(ctx context.Context, dataset datasets.Dataset, rows []models.CanonicalRow) error {
	ctx, span := tracing.StartSpan(ctx, "staging.Repository.InsertRows")
	defer span.End()

	if len(rows) == 0 {
		return nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query, args := BuildInsert(dataset, rows)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"dataset": dataset.Name, "count": len(rows)}).Error("Failed to insert staged rows")
		return fmt.Errorf("failed to insert staged rows for %s: %w", dataset.Name, err)
	}
	return nil
}

// BuildInsert builds the multi-row staging insert for a dataset's column set.
func BuildInsert(dataset datasets.Dataset, rows []models.CanonicalRow) (string, []any) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(dataset.StagingTable())
	ib.Cols(dataset.StagingColumns()...)

	for _, row := range rows {
		values := []any{row.VesselName, row.Callsign, row.IMO, row.Flag, row.EventTime}
		if dataset.HasLocations {
			values = append(values, row.LocationFrom, row.LocationTo)
		}
		values = append(values, row.FetchedAt)
		ib.Values(values...)
	}

	return ib.Build()
}
