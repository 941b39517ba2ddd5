package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// PortfolioFilter selects the current records of one owner.
type PortfolioFilter struct {
	OwnerID          uuid.UUID
	UnclassifiedOnly bool
	SearchTerm       *string
	Limit            int
	Offset           int
}

// AssignmentRepository is the append-only ownership ledger.
type AssignmentRepository interface {
	// Current returns the latest record by (assigned_at, id) or domain.ErrNotAssigned.
	Current(ctx context.Context, entityID uuid.UUID) (*domain.AssignmentRecord, error)
	// History returns every record oldest first. ReleasedAt is the successor's AssignedAt.
	History(ctx context.Context, entityID uuid.UUID) ([]domain.AssignmentRecord, error)
	// Append inserts record as the successor of record.PrevRecordID (nil for the first
	// record) and closes the predecessor in the same transaction. Returns
	// domain.ErrLedgerConflict if the predecessor is already closed or the slot is taken.
	Append(ctx context.Context, record *domain.AssignmentRecord) error
	// Classify sets the classification of recordID while it is still current, unclassified
	// and owned by ownerID. Returns domain.ErrLedgerConflict otherwise.
	Classify(ctx context.Context, recordID int64, ownerID uuid.UUID, c domain.Classification) (*domain.AssignmentRecord, error)
	// ListCurrentByOwner returns one page of an owner's portfolio and the total match count.
	ListCurrentByOwner(ctx context.Context, filter PortfolioFilter) ([]domain.OwnedEntity, int, error)
}

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository builds the Postgres ledger.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const recordColumns = `id, entity_id, owner_id, assigned_by_id, assigned_at, prev_record_id, batch_id,
        classification_id, subclassification_id, classification_note, classified_at, classified_by_id,
        released_at`

func (r *assignmentRepository) Current(ctx context.Context, entityID uuid.UUID) (*domain.AssignmentRecord, error) {
	query := `SELECT ` + recordColumns + `
        FROM assignment_records WHERE entity_id=$1
        ORDER BY assigned_at DESC, id DESC LIMIT 1`
	record, err := scanRecord(r.db.QueryRow(ctx, query, entityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotAssigned
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *assignmentRepository) History(ctx context.Context, entityID uuid.UUID) ([]domain.AssignmentRecord, error) {
	query := `SELECT ` + recordColumns + `
        FROM assignment_records WHERE entity_id=$1
        ORDER BY assigned_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

// Append closes the predecessor before inserting. Stamping released_at takes the row lock
// that a concurrent Classify also needs, so a classification either lands before the record
// is closed or is rejected by its released_at IS NULL guard.
func (r *assignmentRepository) Append(ctx context.Context, record *domain.AssignmentRecord) error {
	const closePrev = `
        UPDATE assignment_records SET released_at=$3
        WHERE id=$1 AND entity_id=$2 AND released_at IS NULL`
	const insert = `
        INSERT INTO assignment_records (entity_id, owner_id, assigned_by_id, assigned_at, prev_record_id, batch_id,
            classification_id, subclassification_id, classification_note, classified_at, classified_by_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id`

	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if record.PrevRecordID != nil {
			tag, err := tx.Exec(ctx, closePrev, *record.PrevRecordID, record.EntityID, record.AssignedAt)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrLedgerConflict
			}
		}
		err := tx.QueryRow(ctx, insert,
			record.EntityID,
			record.OwnerID,
			record.AssignedByID,
			record.AssignedAt,
			record.PrevRecordID,
			record.BatchID,
			record.ClassificationID,
			record.SubclassificationID,
			record.ClassificationNote,
			record.ClassifiedAt,
			record.ClassifiedByID,
		).Scan(&record.ID)
		if isUniqueViolation(err) {
			return domain.ErrLedgerConflict
		}
		return err
	})
}

func (r *assignmentRepository) Classify(ctx context.Context, recordID int64, ownerID uuid.UUID, c domain.Classification) (*domain.AssignmentRecord, error) {
	query := `
        UPDATE assignment_records AS a
        SET classification_id=$3, subclassification_id=$4, classification_note=$5,
            classified_at=$6, classified_by_id=$7
        WHERE a.id=$1 AND a.owner_id=$2 AND a.classification_id IS NULL
          AND a.released_at IS NULL
        RETURNING ` + prefixColumns("a.", recordColumns)
	record, err := scanRecord(r.db.QueryRow(ctx, query,
		recordID,
		ownerID,
		c.ClassificationID,
		c.SubclassificationID,
		c.Note,
		c.ClassifiedAt,
		c.ClassifiedByID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLedgerConflict
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *assignmentRepository) ListCurrentByOwner(ctx context.Context, filter PortfolioFilter) ([]domain.OwnedEntity, int, error) {
	args := []any{filter.OwnerID}
	clauses := []string{"c.owner_id=$1"}

	if filter.UnclassifiedOnly {
		clauses = append(clauses, "c.classification_id IS NULL")
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		term := escapeLike(strings.ToLower(strings.TrimSpace(*filter.SearchTerm)))
		args = append(args, term+"%")
		taxPlaceholder := fmt.Sprintf("$%d", len(args))
		args = append(args, "%"+term+"%")
		namePlaceholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			`(e.tax_id LIKE %s ESCAPE '\' OR LOWER(e.business_name) LIKE %s ESCAPE '\' OR LOWER(e.trade_name) LIKE %s ESCAPE '\')`,
			taxPlaceholder, namePlaceholder, namePlaceholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        WITH c AS (
            SELECT DISTINCT ON (entity_id) %s
            FROM assignment_records
            ORDER BY entity_id, assigned_at DESC, id DESC
        )
        SELECT e.id, e.tax_id, e.business_name, e.trade_name,
               %s, COUNT(*) OVER() AS total
        FROM c JOIN crm_entities e ON e.id = c.entity_id
        WHERE %s
        ORDER BY c.assigned_at DESC, c.id DESC
        LIMIT %d OFFSET %d`,
		recordColumns, prefixColumns("c.", recordColumns), strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.OwnedEntity
		total  int
	)
	for rows.Next() {
		var item domain.OwnedEntity
		dest := append([]any{
			&item.Entity.ID,
			&item.Entity.TaxID,
			&item.Entity.BusinessName,
			&item.Entity.TradeName,
		}, recordDest(&item.Record)...)
		dest = append(dest, &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, err
		}
		result = append(result, item)
	}
	return result, total, rows.Err()
}

func recordDest(record *domain.AssignmentRecord) []any {
	return []any{
		&record.ID,
		&record.EntityID,
		&record.OwnerID,
		&record.AssignedByID,
		&record.AssignedAt,
		&record.PrevRecordID,
		&record.BatchID,
		&record.ClassificationID,
		&record.SubclassificationID,
		&record.ClassificationNote,
		&record.ClassifiedAt,
		&record.ClassifiedByID,
		&record.ReleasedAt,
	}
}

func scanRecord(row pgx.Row) (*domain.AssignmentRecord, error) {
	var record domain.AssignmentRecord
	if err := row.Scan(recordDest(&record)...); err != nil {
		return nil, err
	}
	return &record, nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
