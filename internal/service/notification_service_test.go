package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/observability"
)

func TestNotificationService_CountsOutcomes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	metrics := observability.NewMetrics("test")
	subscribed := NewNotificationService(dispatcher, zap.NewNop(), metrics).RegisterHandlers()
	assert.Len(t, subscribed, 3)
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type: events.EventBatchCompleted,
		Payload: events.BatchCompletedPayload{
			BatchID: uuid.New(),
			Actions: map[string]int{"assign": 3, "not_found": 1},
			NoOps:   2,
		},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:    events.EventEntityClassified,
		Payload: events.EntityClassifiedPayload{RecordID: 7, ClassificationID: uuid.New()},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:    events.EventOwnershipChanged,
		Payload: events.OwnershipChangedPayload{RecordID: 7, Action: "assign", NewOwnerID: uuid.New()},
	}))

	count, err := testutil.GatherAndCount(metrics.Registry(), "test_assignment_items_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	expected := `
# HELP test_classifications_total Classifications applied by current owners.
# TYPE test_classifications_total counter
test_classifications_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "test_classifications_total"))
}

func TestNotificationService_RejectsUnexpectedPayload(t *testing.T) {
	n := NewNotificationService(nil, nil, nil)
	assert.Nil(t, n.RegisterHandlers())
	err := n.handleOwnershipChanged(context.Background(), events.Event{Type: events.EventOwnershipChanged, Payload: "oops"})
	assert.Error(t, err)
}
