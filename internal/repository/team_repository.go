package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// TeamRepository is a read-only view of team membership.
type TeamRepository interface {
	ListBySupervisor(ctx context.Context, supervisorID uuid.UUID) ([]domain.Team, error)
}

type teamRepository struct {
	db DBTX
}

// NewTeamRepository constructs repository.
func NewTeamRepository(db DBTX) TeamRepository {
	return &teamRepository{db: db}
}

const teamSelect = `
        SELECT t.id, t.name, t.supervisor_id, t.is_active, t.created_at, t.updated_at,
               COALESCE(array_agg(m.user_id::text) FILTER (WHERE m.user_id IS NOT NULL), '{}') AS members
        FROM crm_teams t
        LEFT JOIN crm_team_members m ON m.team_id = t.id`

func (r *teamRepository) ListBySupervisor(ctx context.Context, supervisorID uuid.UUID) ([]domain.Team, error) {
	query := teamSelect + ` WHERE t.supervisor_id=$1 AND t.is_active=TRUE GROUP BY t.id ORDER BY t.name`
	return r.list(ctx, query, supervisorID)
}

func (r *teamRepository) list(ctx context.Context, query string, args ...any) ([]domain.Team, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Team
	for rows.Next() {
		var (
			team    domain.Team
			members []string
		)
		if err := rows.Scan(&team.ID, &team.Name, &team.SupervisorID, &team.IsActive, &team.CreatedAt, &team.UpdatedAt, &members); err != nil {
			return nil, err
		}
		for _, raw := range members {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("team %s member %q: %w", team.ID, raw, err)
			}
			team.MemberUserIDs = append(team.MemberUserIDs, id)
		}
		result = append(result, team)
	}
	return result, rows.Err()
}
