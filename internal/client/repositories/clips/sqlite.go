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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const clipColumns = `id, local_id, content, type, owner_id, device_origin, team_id,
	pinned, encrypted, cipher_envelope, content_url, password_protected, created_at, updated_at`

func (r *SQLiteRepository) Upsert(ctx context.Context, c *model.Clip) error {
	query := `INSERT INTO clips (` + clipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			id = excluded.id,
			content = excluded.content,
			type = excluded.type,
			pinned = excluded.pinned,
			encrypted = excluded.encrypted,
			cipher_envelope = excluded.cipher_envelope,
			content_url = excluded.content_url,
			password_protected = excluded.password_protected,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.LocalID, c.Content, string(c.Type), c.OwnerID, c.DeviceOrigin, c.TeamID,
		c.Pinned, c.Encrypted, c.CipherEnvelope, c.ContentURL, c.PasswordProtected,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert clip: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID string) (*model.Clip, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE local_id = ?`, localID)
	return scanClip(row)
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*model.Clip, error) {
	query := `SELECT ` + clipColumns + ` FROM clips ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	defer rows.Close()

	var result []*model.Clip
	for rows.Next() {
		c, err := scanClipRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) SetServerID(ctx context.Context, localID, serverID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clips SET id = ? WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to set server id: %w", err)
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

func (r *SQLiteRepository) DeleteByServerID(ctx context.Context, serverID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, serverID)
	if err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClip(row *sql.Row) (*model.Clip, error) {
	c, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return c, err
}

func scanClipRows(rows *sql.Rows) (*model.Clip, error) {
	return scan(rows)
}

func scan(s scanner) (*model.Clip, error) {
	c := &model.Clip{}
	err := s.Scan(&c.ID, &c.LocalID, &c.Content, &c.Type, &c.OwnerID, &c.DeviceOrigin,
		&c.TeamID, &c.Pinned, &c.Encrypted, &c.CipherEnvelope, &c.ContentURL,
		&c.PasswordProtected, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
