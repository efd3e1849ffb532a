// Package teams provides the PostgreSQL-backed repository for team rooms
// and their membership.
package teams

import (
	"context"
	"fmt"

	"github.com/Aphrodine-wq/clipsync/internal/dbx"
	"github.com/Aphrodine-wq/clipsync/internal/server/models"
)

// PostgresRepository implements team storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, team *models.Team) (*models.Team, error) {
	query := `
		INSERT INTO teams (name)
		VALUES ($1)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, team.Name).Scan(&team.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return team, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, teamID, userID string) error {
	query := `
		INSERT INTO team_members (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2
		)
	`
	var member bool
	if err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return member, nil
}

func (r *PostgresRepository) MemberTeams(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT team_id FROM team_members WHERE user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
