package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// EntityRepository resolves references against the CRM entity directory.
type EntityRepository interface {
	// Resolve maps a normalized reference to its canonical entity, or domain.ErrEntityNotFound.
	Resolve(ctx context.Context, ref domain.EntityRef) (*domain.Entity, error)
}

type entityRepository struct {
	db DBTX
}

// NewEntityRepository builds the directory lookup.
func NewEntityRepository(db DBTX) EntityRepository {
	return &entityRepository{db: db}
}

func (r *entityRepository) Resolve(ctx context.Context, ref domain.EntityRef) (*domain.Entity, error) {
	var (
		query string
		arg   any
	)
	switch {
	case ref.IsInternal():
		query = `SELECT id, tax_id, business_name, trade_name FROM crm_entities WHERE id=$1`
		arg = ref.EntityID
	case ref.TaxID != "":
		query = `SELECT id, tax_id, business_name, trade_name FROM crm_entities WHERE tax_id=$1`
		arg = ref.TaxID
	default:
		return nil, domain.ErrEntityNotFound
	}

	var entity domain.Entity
	err := r.db.QueryRow(ctx, query, arg).Scan(&entity.ID, &entity.TaxID, &entity.BusinessName, &entity.TradeName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}
