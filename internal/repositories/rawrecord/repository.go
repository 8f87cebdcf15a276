package rawrecord

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"

	"github.com/MomPansy/seasense-ingest/pkg/database"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/models"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// Repository handles the raw fetch-audit tables. Rows are append-only except
// for the processed flag.
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

// Append records one fetch attempt, successful or not, and returns its id.
func (r *Repository) Append(ctx context.Context, dataset datasets.Dataset, rec models.RawRecord) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.Append")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (endpoint, fetched_at, status_code, payload, error_detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, dataset.RawTable())

	var payload any
	if len(rec.Payload) > 0 {
		payload = []byte(rec.Payload)
	}

	var id int64
	row := tx.QueryRowxContext(ctx, query, rec.Endpoint, rec.FetchedAt, rec.StatusCode, payload, rec.ErrorDetail)
	if err := row.Scan(&id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("dataset", dataset.Name).Error("Failed to append raw record")
		return 0, fmt.Errorf("failed to append raw record for %s: %w", dataset.Name, err)
	}
	return id, nil
}

// FetchUnprocessed returns successful raw rows not yet consumed by a
// transform pass, newest fetch first so that staging keeps the freshest
// version of a duplicated movement at the lowest staged id.
func (r *Repository) FetchUnprocessed(ctx context.Context, dataset datasets.Dataset) ([]models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.FetchUnprocessed")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT id, endpoint, fetched_at, status_code, payload, error_detail, processed
		FROM %s
		WHERE status_code = 200 AND processed = false
		ORDER BY fetched_at DESC
	`, dataset.RawTable())

	var records []models.RawRecord
	if err := tx.SelectContext(ctx, &records, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("dataset", dataset.Name).Error("Failed to fetch unprocessed raw records")
		return nil, fmt.Errorf("failed to fetch unprocessed raw records for %s: %w", dataset.Name, err)
	}
	return records, nil
}

// MarkProcessed flips the processed flag for the given rows in one batch.
func (r *Repository) MarkProcessed(ctx context.Context, dataset datasets.Dataset, ids []int64) error {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.MarkProcessed")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE %s SET processed = true WHERE id = ANY($1)`, dataset.RawTable())

	result, err := tx.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"dataset": dataset.Name, "count": len(ids)}).Error("Failed to mark raw records processed")
		return fmt.Errorf("failed to mark raw records processed for %s: %w", dataset.Name, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected != int64(len(ids)) {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"dataset":  dataset.Name,
			"expected": len(ids),
			"updated":  affected,
		}).Warn("Processed-flag update touched an unexpected number of rows")
	}
	return nil
}
