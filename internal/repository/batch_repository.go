package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// BatchFilter pages batch listings, optionally restricted to one submitter.
type BatchFilter struct {
	RequestedByID *uuid.UUID
	Skip          int
	Limit         int
}

// BatchRepository stores the write-once audit trail of bulk assignments.
type BatchRepository interface {
	Create(ctx context.Context, summary *domain.BatchSummary, entries []domain.AuditLogEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchSummary, error)
	List(ctx context.Context, filter BatchFilter) ([]domain.BatchSummary, error)
	ListEntries(ctx context.Context, batchID uuid.UUID) ([]domain.AuditLogEntry, error)
}

type batchRepository struct {
	db DBTX
}

// NewBatchRepository builds repository.
func NewBatchRepository(db DBTX) BatchRepository {
	return &batchRepository{db: db}
}

const batchColumns = `id, requested_by_id, destination_user_id, requested, matched, modified, overwritten,
        missing, conflicted, options, created_at`

func (r *batchRepository) Create(ctx context.Context, summary *domain.BatchSummary, entries []domain.AuditLogEntry) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		const insertBatch = `
            INSERT INTO assignment_batches (id, requested_by_id, destination_user_id, requested, matched, modified,
                overwritten, missing, conflicted, options, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
		if _, err := tx.Exec(ctx, insertBatch,
			summary.ID,
			summary.RequestedByID,
			summary.DestinationUserID,
			summary.Requested,
			summary.Matched,
			summary.Modified,
			summary.Overwritten,
			nonNil(summary.Missing),
			nonNil(summary.Conflicted),
			summary.Options,
			summary.CreatedAt,
		); err != nil {
			return err
		}

		if len(entries) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		const insertEntry = `
            INSERT INTO batch_audit_entries (id, batch_id, entity_ref, entity_id, action, prev_owner_id, new_owner_id,
                assigned_by_id, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		for _, entry := range entries {
			batch.Queue(insertEntry,
				entry.ID,
				entry.BatchID,
				entry.EntityRef,
				entry.EntityID,
				entry.Action,
				entry.PrevOwnerID,
				entry.NewOwnerID,
				entry.AssignedByID,
				entry.CreatedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *batchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchSummary, error) {
	query := `SELECT ` + batchColumns + ` FROM assignment_batches WHERE id=$1`
	summary, err := scanBatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *batchRepository) List(ctx context.Context, filter BatchFilter) ([]domain.BatchSummary, error) {
	query := `SELECT ` + batchColumns + ` FROM assignment_batches
        WHERE ($1::uuid IS NULL OR requested_by_id = $1)
        ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`
	rows, err := r.db.Query(ctx, query, filter.RequestedByID, filter.Skip, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.BatchSummary{}
	for rows.Next() {
		summary, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *summary)
	}
	return result, rows.Err()
}

func (r *batchRepository) ListEntries(ctx context.Context, batchID uuid.UUID) ([]domain.AuditLogEntry, error) {
	const query = `
        SELECT id, batch_id, entity_ref, entity_id, action, prev_owner_id, new_owner_id, assigned_by_id, created_at
        FROM batch_audit_entries WHERE batch_id=$1 ORDER BY created_at ASC, entity_ref ASC`
	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		var entry domain.AuditLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.BatchID,
			&entry.EntityRef,
			&entry.EntityID,
			&entry.Action,
			&entry.PrevOwnerID,
			&entry.NewOwnerID,
			&entry.AssignedByID,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanBatch(row pgx.Row) (*domain.BatchSummary, error) {
	var summary domain.BatchSummary
	if err := row.Scan(
		&summary.ID,
		&summary.RequestedByID,
		&summary.DestinationUserID,
		&summary.Requested,
		&summary.Matched,
		&summary.Modified,
		&summary.Overwritten,
		&summary.Missing,
		&summary.Conflicted,
		&summary.Options,
		&summary.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
