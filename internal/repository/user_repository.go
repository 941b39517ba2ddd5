package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// UserRepository is a read-only view of the CRM user directory.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	ListReportsTo(ctx context.Context, managerID uuid.UUID, role domain.Role) ([]domain.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, role, team_id, reports_to_id, active_flag, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM crm_users WHERE id=$1`
	var user domain.User
	if err := r.db.QueryRow(ctx, query, id).Scan(userDest(&user)...); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM crm_users WHERE role=$1 AND active_flag=TRUE ORDER BY name`
	return r.list(ctx, query, role)
}

func (r *userRepository) ListReportsTo(ctx context.Context, managerID uuid.UUID, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM crm_users
        WHERE reports_to_id=$1 AND role=$2 AND active_flag=TRUE ORDER BY name`
	return r.list(ctx, query, managerID, role)
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM crm_users WHERE id = ANY($1::uuid[]) ORDER BY name`
	return r.list(ctx, query, uuidStrings(ids))
}

func (r *userRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(userDest(&user)...); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func userDest(user *domain.User) []any {
	return []any{
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.TeamID,
		&user.ReportsToID,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
