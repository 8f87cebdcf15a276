package vesselevent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/MomPansy/seasense-ingest/pkg/database"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// Repository merges staged movement rows into the permanent dataset tables.
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

// Merge inserts staged rows absent from the permanent table and returns the
// inserted count. Duplicate natural keys within staging collapse to the
// lowest staged id (the freshest fetch, given unprocessed rows are staged
// newest first). Existing permanent rows are never modified.
func (r *Repository) Merge(ctx context.Context, dataset datasets.Dataset) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "vesselevent.Repository.Merge")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.ExecContext(ctx, BuildMergeSQL(dataset))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("dataset", dataset.Name).Error("Failed to merge staged rows into permanent table")
		return 0, fmt.Errorf("failed to merge staged rows for %s: %w", dataset.Name, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read merge rowcount for %s: %w", dataset.Name, err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset":  dataset.Name,
		"inserted": inserted,
	}).Info("Merged staged rows into permanent table")
	return inserted, nil
}

// BuildMergeSQL renders the set-based merge statement for a dataset. The
// DISTINCT ON subquery orders by natural key then id ASC, so within a pass
// the first-staged duplicate wins; the outer NOT EXISTS keeps already-loaded
// natural keys untouched; insertion is ordered by the defining timestamp.
// Rows missing that timestamp have no complete natural key, so neither the
// NOT EXISTS match nor the unique index can dedupe them on replay; they are
// filtered out before the merge.
func BuildMergeSQL(dataset datasets.Dataset) string {
	insertCols := strings.Join(dataset.InsertColumns(), ", ")
	nk := dataset.NaturalKey()
	nkCols := strings.Join(nk, ", ")

	matches := make([]string, 0, len(nk))
	for _, col := range nk {
		matches = append(matches, fmt.Sprintf("t1.%s = t2.%s", col, col))
	}

	return fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s)
		SELECT %[2]s FROM (
			SELECT DISTINCT ON (%[3]s) * FROM %[4]s
			WHERE %[6]s IS NOT NULL
			ORDER BY %[3]s, id ASC
		) t2
		WHERE NOT EXISTS (
			SELECT 1
			FROM %[1]s t1
			WHERE %[5]s
		)
		ORDER BY %[6]s ASC
	`, dataset.PermanentTable(), insertCols, nkCols, dataset.StagingTable(), strings.Join(matches, " AND "), dataset.TimeColumn)
}
