package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portfolio-service/internal/domain"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

func TestRecordBatch_RejectsForeignEntries(t *testing.T) {
	svc := NewAuditService(newMemBatches())
	summary := &domain.BatchSummary{ID: uuid.New()}

	err := svc.RecordBatch(context.Background(), summary, []domain.AuditLogEntry{{BatchID: uuid.New(), EntityRef: taxE1}})
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	err = svc.RecordBatch(context.Background(), &domain.BatchSummary{}, nil)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

func TestBatchAudit_Visibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	adminBatch, err := f.assignments.Assign(ctx, &f.admin, AssignRequest{Identifiers: []string{taxE1, "x"}, DestinationUserID: f.c3.ID.String()})
	require.NoError(t, err)
	supervisorBatch, err := f.assignments.Assign(ctx, &f.supervisor, AssignRequest{Identifiers: []string{taxE2}, DestinationUserID: f.c1.ID.String()})
	require.NoError(t, err)

	all, err := f.audit.ListBatches(ctx, &f.admin, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, supervisorBatch.ID, all[0].ID)

	own, err := f.audit.ListBatches(ctx, &f.supervisor, 0, 10)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, supervisorBatch.ID, own[0].ID)

	paged, err := f.audit.ListBatches(ctx, &f.admin, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, adminBatch.ID, paged[0].ID)

	_, err = f.audit.ListBatches(ctx, &f.c1, 0, 10)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))

	detail, err := f.audit.BatchDetail(ctx, &f.admin, adminBatch.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Entries[domain.AuditActionAssign], 1)
	assert.Len(t, detail.Entries[domain.AuditActionNotFound], 1)
	assert.Empty(t, detail.Entries[domain.AuditActionReassign])
	assert.Empty(t, detail.Entries[domain.AuditActionSkipConflict])

	_, err = f.audit.BatchDetail(ctx, &f.supervisor, adminBatch.ID)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))

	_, err = f.audit.BatchDetail(ctx, &f.admin, uuid.New())
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}
