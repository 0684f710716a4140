package storage

import (
	"context"
	"time"

	"github.com/url-indexer/internal/circuitbreaker"
	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/types"
)

// LogRepository stores per-URL run log lines in ClickHouse. Writes are
// best-effort: a failure is logged and swallowed, and a circuit breaker
// stops write attempts while the store is unavailable so a ClickHouse
// outage cannot slow a run down.
type LogRepository struct {
	db      *ClickHouseDB
	breaker *circuitbreaker.CircuitBreaker
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *ClickHouseDB) *LogRepository {
	return &LogRepository{
		db:      db,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("clickhouse-logs")),
	}
}

// Append writes one log line. Failures never abort the run.
func (r *LogRepository) Append(ctx context.Context, line *types.LogLine) {
	if line.Timestamp.IsZero() {
		line.Timestamp = time.Now().UTC()
	}

	err := r.breaker.Execute(ctx, func() error {
		return r.db.Exec(ctx, `
			INSERT INTO run_logs (batch_id, app_id, type, message, url, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.BatchID,
			line.AppID,
			line.Type,
			line.Message,
			line.URL,
			string(line.Status),
			line.Timestamp,
		)
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"batchId": line.BatchID,
			"appId":   line.AppID,
		}).Warn("Failed to persist log line")
	}
}

// ListByApp returns log lines for an app, newest first, optionally filtered
// by batch, with offset pagination.
func (r *LogRepository) ListByApp(ctx context.Context, appID, batchID string, page, pageSize int) ([]*types.LogLine, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	query := `
		SELECT batch_id, app_id, type, message, url, status, created_at
		FROM run_logs
		WHERE app_id = ?
	`
	args := []interface{}{appID}
	if batchID != "" {
		query += " AND batch_id = ?"
		args = append(args, batchID)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, pageSize, offset)

	rows, err := r.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewLocalFailure("log list", err)
	}
	defer rows.Close()

	var out []*types.LogLine
	for rows.Next() {
		var line types.LogLine
		var status string
		if err := rows.Scan(
			&line.BatchID,
			&line.AppID,
			&line.Type,
			&line.Message,
			&line.URL,
			&status,
			&line.Timestamp,
		); err != nil {
			return nil, apperrors.NewLocalFailure("log scan", err)
		}
		line.Status = types.IndexStatus(status)
		out = append(out, &line)
	}
	return out, nil
}

// EnsureSchema creates the run_logs table when missing. ClickHouse is outside
// golang-migrate's Postgres migration path, so the schema rides with the code.
func (r *LogRepository) EnsureSchema(ctx context.Context) error {
	return r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS run_logs (
			batch_id   String,
			app_id     String,
			type       String,
			message    String,
			url        String,
			status     String,
			created_at DateTime64(3)
		)
		ENGINE = MergeTree()
		ORDER BY (app_id, created_at)
	`)
}
