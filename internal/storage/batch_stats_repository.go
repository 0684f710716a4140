package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/types"
)

// BatchStatsRepository persists the per-run summary rows.
type BatchStatsRepository struct {
	db *PostgresDB
}

// NewBatchStatsRepository creates a new batch stats repository
func NewBatchStatsRepository(db *PostgresDB) *BatchStatsRepository {
	return &BatchStatsRepository{db: db}
}

// Upsert creates or updates the stats row keyed by batch ID. A run emits
// intermediate snapshots under the same batch ID, so the row converges on
// the final stats.
func (r *BatchStatsRepository) Upsert(ctx context.Context, stats *types.BatchStats) error {
	if stats.Timestamp.IsZero() {
		stats.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO batch_stats (batch_id, app_id, total, indexed, submitted, crawled, error, unknown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (batch_id) DO UPDATE SET
			total = EXCLUDED.total,
			indexed = EXCLUDED.indexed,
			submitted = EXCLUDED.submitted,
			crawled = EXCLUDED.crawled,
			error = EXCLUDED.error,
			unknown = EXCLUDED.unknown,
			created_at = EXCLUDED.created_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		stats.BatchID,
		stats.AppID,
		stats.Stats.Total,
		stats.Stats.Indexed,
		stats.Stats.Submitted,
		stats.Stats.Crawled,
		stats.Stats.Error,
		stats.Stats.Unknown,
		stats.Timestamp,
	)
	if err != nil {
		return apperrors.NewLocalFailure("batch stats upsert", err)
	}
	return nil
}

// GetByBatchID retrieves one stats row
func (r *BatchStatsRepository) GetByBatchID(ctx context.Context, batchID string) (*types.BatchStats, error) {
	query := `
		SELECT batch_id, app_id, total, indexed, submitted, crawled, error, unknown, created_at
		FROM batch_stats
		WHERE batch_id = $1
	`

	var stats types.BatchStats
	err := r.db.Pool().QueryRow(ctx, query, batchID).Scan(
		&stats.BatchID,
		&stats.AppID,
		&stats.Stats.Total,
		&stats.Stats.Indexed,
		&stats.Stats.Submitted,
		&stats.Stats.Crawled,
		&stats.Stats.Error,
		&stats.Stats.Unknown,
		&stats.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("batch", batchID)
		}
		return nil, apperrors.NewLocalFailure("batch stats lookup", err)
	}
	return &stats, nil
}

// ListByApp returns the batch history for an app, newest first
func (r *BatchStatsRepository) ListByApp(ctx context.Context, appID string, limit int) ([]*types.BatchStats, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT batch_id, app_id, total, indexed, submitted, crawled, error, unknown, created_at
		FROM batch_stats
		WHERE app_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, appID, limit)
	if err != nil {
		return nil, apperrors.NewLocalFailure("batch stats list", err)
	}
	defer rows.Close()

	var out []*types.BatchStats
	for rows.Next() {
		var stats types.BatchStats
		if err := rows.Scan(
			&stats.BatchID,
			&stats.AppID,
			&stats.Stats.Total,
			&stats.Stats.Indexed,
			&stats.Stats.Submitted,
			&stats.Stats.Crawled,
			&stats.Stats.Error,
			&stats.Stats.Unknown,
			&stats.Timestamp,
		); err != nil {
			return nil, apperrors.NewLocalFailure("batch stats scan", err)
		}
		out = append(out, &stats)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewLocalFailure("batch stats list", err)
	}
	return out, nil
}
