package observability_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/observability"
)

func TestMetrics_CountsEventsByType(t *testing.T) {
	m := observability.NewMetrics()
	ctx := context.Background()

	m.Publish(ctx, domain.NewEvent(domain.EventPlanCreated, "s-1", domain.PlanCreated{Goal: "g", ItemCount: 3}))
	m.Publish(ctx, domain.NewEvent(domain.EventStepCompleted, "s-1", domain.StepCompleted{ItemID: "a", Status: domain.ItemCompleted}))
	m.Publish(ctx, domain.NewEvent(domain.EventStepCompleted, "s-1", domain.StepCompleted{ItemID: "b", Status: domain.ItemFailed}))
	m.Publish(ctx, domain.NewEvent(domain.EventStepCompleted, "s-1", domain.StepCompleted{ItemID: "c", Status: domain.ItemCompleted}))

	body := scrape(t, m)
	assert.Contains(t, body, `goi_events_total{type="plan_created"} 1`)
	assert.Contains(t, body, `goi_events_total{type="step_completed"} 3`)
	assert.Contains(t, body, `goi_steps_total{status="completed"} 2`)
	assert.Contains(t, body, `goi_steps_total{status="failed"} 1`)
}

func TestMetrics_SessionGaugeFollowsStatusChanges(t *testing.T) {
	m := observability.NewMetrics()
	ctx := context.Background()

	m.Publish(ctx, domain.NewEvent(domain.EventStatusChanged, "s-1",
		domain.StatusChange{From: domain.LoopIdle, To: domain.LoopPlanning}))
	m.Publish(ctx, domain.NewEvent(domain.EventStatusChanged, "s-1",
		domain.StatusChange{From: domain.LoopPlanning, To: domain.LoopExecuting}))
	m.Publish(ctx, domain.NewEvent(domain.EventStatusChanged, "s-2",
		domain.StatusChange{From: domain.LoopIdle, To: domain.LoopPlanning}))

	body := scrape(t, m)
	assert.Contains(t, body, `goi_sessions{status="planning"} 1`)
	assert.Contains(t, body, `goi_sessions{status="executing"} 1`)
	assert.Contains(t, body, `goi_sessions{status="idle"} -2`)
}

func TestMetrics_CheckpointOutcomes(t *testing.T) {
	m := observability.NewMetrics()
	ctx := context.Background()

	m.Publish(ctx, domain.NewEvent(domain.EventCheckpointCreated, "s-1",
		domain.CheckpointCreated{Action: domain.RuleRequireConfirm}))
	m.Publish(ctx, domain.NewEvent(domain.EventCheckpointResolved, "s-1",
		domain.CheckpointResolved{CheckpointID: "cp-1", Approved: true}))
	m.Publish(ctx, domain.NewEvent(domain.EventCheckpointCreated, "s-1",
		domain.CheckpointCreated{Action: domain.RuleRequireConfirm}))
	m.Publish(ctx, domain.NewEvent(domain.EventCheckpointResolved, "s-1",
		domain.CheckpointResolved{CheckpointID: "cp-2", Approved: false, Reason: "用户不同意"}))

	body := scrape(t, m)
	assert.Contains(t, body, `goi_checkpoints_total{outcome="created"} 2`)
	assert.Contains(t, body, `goi_checkpoints_total{outcome="approved"} 1`)
	assert.Contains(t, body, `goi_checkpoints_total{outcome="rejected"} 1`)
}

func TestMetrics_IntentLabelsAndConfidence(t *testing.T) {
	m := observability.NewMetrics()
	ctx := context.Background()

	m.Publish(ctx, domain.NewEvent(domain.EventIntentParsed, "s-1", domain.IntentParsed{
		Category:   domain.IntentDelete,
		Confidence: 0.93,
		Source:     domain.IntentSourceRules,
		Action:     domain.ConfidenceAutoExecute,
	}))

	body := scrape(t, m)
	assert.Contains(t, body, `goi_intents_total{action="auto_execute",category="delete"} 1`)
	assert.Equal(t, 1, strings.Count(body, "goi_intent_confidence_count 1"))
}

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
