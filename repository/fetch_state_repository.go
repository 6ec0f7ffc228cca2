package repository

import (
	"context"
	"database/sql"
	"time"

	"fmsync/model"
)

// FetchStateRepository defines the per-item sync state store. One row per
// (item_id, item_type); no row means the item is synced.
type FetchStateRepository interface {
	// GetIdlePastDue returns rows eligible for pickup: Idle rows plus
	// Error rows whose try_next_at has elapsed. The elapsed-check policy
	// lives here, not in the synchronizer.
	GetIdlePastDue(ctx context.Context, now time.Time) ([]model.FetchState, error)

	// GetLoadingCount returns the number of rows currently in Loading status.
	GetLoadingCount(ctx context.Context) (int, error)

	// Upsert inserts or replaces the state for (ItemID, ItemType).
	Upsert(ctx context.Context, state *model.FetchState) error

	// Delete removes the row for (itemID, itemType).
	Delete(ctx context.Context, itemID string, itemType model.ItemType) error

	// ResetStuckLoadingToIdle flips Loading rows back to Idle. Run at
	// startup so rows left Loading by a crashed run are retried.
	ResetStuckLoadingToIdle(ctx context.Context) (int64, error)

	// CountByStatus returns row counts per status, for the status endpoint.
	CountByStatus(ctx context.Context) (map[model.FetchStatus]int, error)
}

// MySQLFetchStateRepository is the MySQL implementation of FetchStateRepository.
type MySQLFetchStateRepository struct {
	db *sql.DB
}

// NewMySQLFetchStateRepository creates a new MySQL fetch state repository.
func NewMySQLFetchStateRepository(db *sql.DB) *MySQLFetchStateRepository {
	return &MySQLFetchStateRepository{db: db}
}

func (r *MySQLFetchStateRepository) GetIdlePastDue(ctx context.Context, now time.Time) ([]model.FetchState, error) {
	query := `
		SELECT item_id, item_type, status, last_attempt_at, try_next_at, error_reason, created_at, updated_at
		FROM fetch_states
		WHERE status = ? OR (status = ? AND try_next_at IS NOT NULL AND try_next_at <= ?)
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, model.FetchStatusIdle, model.FetchStatusError, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []model.FetchState
	for rows.Next() {
		state, err := scanFetchState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}

	return states, rows.Err()
}

func (r *MySQLFetchStateRepository) GetLoadingCount(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM fetch_states WHERE status = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, model.FetchStatusLoading).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *MySQLFetchStateRepository) Upsert(ctx context.Context, state *model.FetchState) error {
	query := `
		INSERT INTO fetch_states (item_id, item_type, status, last_attempt_at, try_next_at, error_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			last_attempt_at = VALUES(last_attempt_at),
			try_next_at = VALUES(try_next_at),
			error_reason = VALUES(error_reason),
			updated_at = VALUES(updated_at)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		state.ItemID,
		state.ItemType,
		state.Status,
		state.LastAttemptAt,
		state.TryNextAt,
		nullableReason(state.ErrorReason),
		now,
		now,
	)
	return err
}

func (r *MySQLFetchStateRepository) Delete(ctx context.Context, itemID string, itemType model.ItemType) error {
	query := `DELETE FROM fetch_states WHERE item_id = ? AND item_type = ?`
	_, err := r.db.ExecContext(ctx, query, itemID, itemType)
	return err
}

func (r *MySQLFetchStateRepository) ResetStuckLoadingToIdle(ctx context.Context) (int64, error) {
	query := `
		UPDATE fetch_states
		SET status = ?, try_next_at = NULL, error_reason = NULL, updated_at = ?
		WHERE status = ?
	`

	result, err := r.db.ExecContext(ctx, query, model.FetchStatusIdle, time.Now(), model.FetchStatusLoading)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *MySQLFetchStateRepository) CountByStatus(ctx context.Context) (map[model.FetchStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM fetch_states GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.FetchStatus]int)
	for rows.Next() {
		var status model.FetchStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

func scanFetchState(rows *sql.Rows) (*model.FetchState, error) {
	state := &model.FetchState{}
	var lastAttemptAt, tryNextAt sql.NullTime
	var errorReason sql.NullString

	err := rows.Scan(
		&state.ItemID,
		&state.ItemType,
		&state.Status,
		&lastAttemptAt,
		&tryNextAt,
		&errorReason,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastAttemptAt.Valid {
		state.LastAttemptAt = &lastAttemptAt.Time
	}
	if tryNextAt.Valid {
		state.TryNextAt = &tryNextAt.Time
	}
	if errorReason.Valid {
		state.ErrorReason = model.ErrorReason(errorReason.String)
	}

	return state, nil
}

func nullableReason(reason model.ErrorReason) interface{} {
	if reason == "" {
		return nil
	}
	return string(reason)
}
