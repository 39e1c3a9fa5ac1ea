package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
)

// SnapshotRepository persists uploaded hierarchies so they can be queried again.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *domain.HierarchySnapshot, teams []domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.HierarchySnapshot, error)
	ListTeams(ctx context.Context, snapshotID string) ([]domain.Team, error)
}

type snapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository constructs repository. It returns nil when no pool is
// configured so callers can treat persistence as disabled.
func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotRepository {
	if pool == nil {
		return nil
	}
	return &snapshotRepository{pool: pool}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot *domain.HierarchySnapshot, teams []domain.Team) error {
	id, err := uuid.Parse(snapshot.ID)
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO hierarchy_snapshots (id, checksum, root_name, team_count)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at`
	if err := tx.QueryRow(ctx, query,
		id,
		snapshot.Checksum,
		snapshot.RootName,
		snapshot.TeamCount,
	).Scan(&snapshot.CreatedAt); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	rows := make([][]any, 0, len(teams))
	for i, team := range teams {
		rows = append(rows, []any{id, int32(i), team.TeamName, team.ParentTeam, team.ManagerName, team.BusinessUnit})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"hierarchy_snapshot_teams"},
		[]string{"snapshot_id", "position", "team_name", "parent_team", "manager_name", "business_unit"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy snapshot teams: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *snapshotRepository) GetByID(ctx context.Context, id string) (*domain.HierarchySnapshot, error) {
	const query = `
        SELECT id::text, checksum, root_name, team_count, created_at
        FROM hierarchy_snapshots WHERE id=$1`
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrSnapshotNotFound
	}

	var snapshot domain.HierarchySnapshot
	if err := r.pool.QueryRow(ctx, query, uid).Scan(
		&snapshot.ID,
		&snapshot.Checksum,
		&snapshot.RootName,
		&snapshot.TeamCount,
		&snapshot.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *snapshotRepository) ListTeams(ctx context.Context, snapshotID string) ([]domain.Team, error) {
	const query = `
        SELECT team_name, parent_team, manager_name, business_unit
        FROM hierarchy_snapshot_teams WHERE snapshot_id=$1 ORDER BY position`
	uid, err := uuid.Parse(snapshotID)
	if err != nil {
		return nil, domain.ErrSnapshotNotFound
	}

	rows, err := r.pool.Query(ctx, query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.TeamName, &team.ParentTeam, &team.ManagerName, &team.BusinessUnit); err != nil {
			return nil, err
		}
		result = append(result, team)
	}
	return result, rows.Err()
}
