package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/dbx"
	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, e *model.OutboxEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = model.OutboxStatusPending
	}
	query := `INSERT INTO outbox (local_id, op, payload, attempts, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.LocalID, string(e.Op), e.Payload, e.Attempts, string(e.Status), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) NextPending(ctx context.Context) (*model.OutboxEntry, error) {
	query := `SELECT local_id, op, payload, attempts, status, created_at
			FROM outbox WHERE status = ? ORDER BY rowid LIMIT 1`
	e := &model.OutboxEntry{}
	err := r.db.QueryRowContext(ctx, query, string(model.OutboxStatusPending)).
		Scan(&e.LocalID, &e.Op, &e.Payload, &e.Attempts, &e.Status, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) Ack(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to ack outbox entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, localID string) (int, error) {
	query := `UPDATE outbox SET attempts = attempts + 1 WHERE local_id = ? RETURNING attempts`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, localID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, localID string) error {
	return r.setStatus(ctx, localID, model.OutboxStatusFailed, false)
}

func (r *SQLiteRepository) Retry(ctx context.Context, localID string) error {
	return r.setStatus(ctx, localID, model.OutboxStatusPending, true)
}

func (r *SQLiteRepository) setStatus(ctx context.Context, localID string, status model.OutboxStatus, resetAttempts bool) error {
	query := `UPDATE outbox SET status = ? WHERE local_id = ?`
	if resetAttempts {
		query = `UPDATE outbox SET status = ?, attempts = 0 WHERE local_id = ?`
	}
	res, err := r.db.ExecContext(ctx, query, string(status), localID)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Failed(ctx context.Context) ([]*model.OutboxEntry, error) {
	query := `SELECT local_id, op, payload, attempts, status, created_at
			FROM outbox WHERE status = ? ORDER BY rowid`
	rows, err := r.db.QueryContext(ctx, query, string(model.OutboxStatusFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to list failed entries: %w", err)
	}
	defer rows.Close()

	var result []*model.OutboxEntry
	for rows.Next() {
		e := &model.OutboxEntry{}
		if err := rows.Scan(&e.LocalID, &e.Op, &e.Payload, &e.Attempts, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, localID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE status = ?`, string(model.OutboxStatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
