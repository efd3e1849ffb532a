// Package clips provides clip persistence for the server: a PostgreSQL
// repository plus an in-memory one used by service and hub tests.
package clips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/dbx"
	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// PostgresRepository implements clip storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts keyed on (owner_id, local_id). The conflict arm is a no-op
// assignment so RETURNING fires for the existing row too, which is how a
// duplicate submission gets the same id back instead of an error. The
// xmax = 0 check distinguishes a fresh insert from a conflict hit.
func (r *PostgresRepository) Save(ctx context.Context, clip *model.Clip, storageKey string) (*model.Clip, bool, error) {
	query := `
		INSERT INTO clips (local_id, owner_id, device_origin, team_id, content, type,
			pinned, encrypted, cipher_envelope, storage_key)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, local_id)
		DO UPDATE SET local_id = EXCLUDED.local_id
		RETURNING id, local_id, owner_id, device_origin, COALESCE(team_id::text, ''),
			content, type, pinned, encrypted, cipher_envelope, password_protected,
			created_at, updated_at, (xmax = 0)
	`
	saved := &model.Clip{}
	var created bool
	err := r.db.QueryRowContext(ctx, query,
		clip.LocalID, clip.OwnerID, clip.DeviceOrigin, clip.TeamID,
		clip.Content, clip.Type, clip.Pinned, clip.Encrypted, clip.CipherEnvelope, storageKey,
	).Scan(
		&saved.ID, &saved.LocalID, &saved.OwnerID, &saved.DeviceOrigin, &saved.TeamID,
		&saved.Content, &saved.Type, &saved.Pinned, &saved.Encrypted, &saved.CipherEnvelope,
		&saved.PasswordProtected, &saved.CreatedAt, &saved.UpdatedAt,
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	return saved, created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*model.Clip, error) {
	query := `
		SELECT id, local_id, owner_id, device_origin, COALESCE(team_id::text, ''),
			content, type, pinned, encrypted, cipher_envelope, password_protected,
			created_at, updated_at
		FROM clips
		WHERE id = $1
	`
	clip := &model.Clip{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&clip.ID, &clip.LocalID, &clip.OwnerID, &clip.DeviceOrigin, &clip.TeamID,
		&clip.Content, &clip.Type, &clip.Pinned, &clip.Encrypted, &clip.CipherEnvelope,
		&clip.PasswordProtected, &clip.CreatedAt, &clip.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return clip, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, opts ListOptions) ([]*model.Clip, error) {
	query := `
		SELECT id, local_id, owner_id, device_origin, COALESCE(team_id::text, ''),
			content, type, pinned, encrypted, cipher_envelope, password_protected,
			created_at, updated_at
		FROM clips
		WHERE (owner_id = $1 OR team_id IN (SELECT team_id FROM team_members WHERE user_id = $1))
	`
	args := []any{userID}

	if opts.Pinned != nil {
		args = append(args, *opts.Pinned)
		query += fmt.Sprintf(" AND pinned = $%d", len(args))
	}
	if opts.Type != "" {
		args = append(args, opts.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		query += fmt.Sprintf(" AND NOT password_protected AND NOT encrypted AND content ILIKE $%d", len(args))
	}

	query += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*model.Clip
	for rows.Next() {
		clip := &model.Clip{}
		if err := rows.Scan(
			&clip.ID, &clip.LocalID, &clip.OwnerID, &clip.DeviceOrigin, &clip.TeamID,
			&clip.Content, &clip.Type, &clip.Pinned, &clip.Encrypted,
			&clip.CipherEnvelope, &clip.PasswordProtected, &clip.CreatedAt, &clip.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	query := `
		UPDATE clips SET pinned = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, pinned)
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id string, hash string) error {
	query := `
		UPDATE clips SET password_protected = TRUE, password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hash)
}

func (r *PostgresRepository) RemovePassword(ctx context.Context, id string) error {
	query := `
		UPDATE clips SET password_protected = FALSE, password_hash = '', updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) GetPasswordHash(ctx context.Context, id string) (string, error) {
	query := `SELECT password_hash FROM clips WHERE id = $1`
	var hash string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash, nil
}

func (r *PostgresRepository) GetStorageKey(ctx context.Context, id string) (string, error) {
	query := `SELECT storage_key FROM clips WHERE id = $1`
	var key string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM clips WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
