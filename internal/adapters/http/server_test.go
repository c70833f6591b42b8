package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/Jamplesmise/prompt-tool-sub006/internal/adapters/http"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/executor"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/planner"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/adapters/memory"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/events"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/observability"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

type fixture struct {
	handler http.Handler
	bus     *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := executor.NewRegistry()
	for _, at := range []domain.ActionType{
		domain.ActionCreate, domain.ActionQuery, domain.ActionUpdate,
		domain.ActionDelete, domain.ActionExecute, domain.ActionNavigate,
	} {
		at := at
		reg.Register(at, func(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error) {
			return &ports.ExecuteResult{Payload: string(at) + " ok"}, nil
		})
	}

	bus := events.NewBus()
	tracker := events.NewTracker(bus)
	metrics := observability.NewMetrics()

	manager := session.NewManager(memory.NewStore(), planner.NewScripted(), reg,
		session.WithPublisher(ports.MultiPublisher{tracker, metrics}))

	srv := httpadapter.NewServer(manager,
		httpadapter.WithBus(bus),
		httpadapter.WithTracker(tracker),
		httpadapter.WithMetricsHandler(metrics.Handler()),
		httpadapter.WithVersion("test"),
	)
	return &fixture{handler: srv.Handler(), bus: bus}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/info", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var info map[string]string
	decodeInto(t, rec, &info)
	assert.Equal(t, "goi-http", info["app"])
	assert.Equal(t, "test", info["version"])
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/sessions", map[string]string{"id": "s-1", "mode": "manual"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var view struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Mode   string `json:"mode"`
	}
	decodeInto(t, rec, &view)
	assert.Equal(t, "s-1", view.ID)
	assert.Equal(t, "idle", view.Status)
	assert.Equal(t, "manual", view.Mode)

	rec = f.do(t, "POST", "/sessions", map[string]string{"mode": "turbo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSessionIs404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type startResponse struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	Checkpoint *struct {
		ID     string `json:"id"`
		ItemID string `json:"item_id"`
	} `json:"checkpoint"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type stepResponse struct {
	Status     string `json:"status"`
	Done       bool   `json:"done"`
	Waiting    bool   `json:"waiting"`
	Checkpoint *struct {
		ID     string `json:"id"`
		ItemID string `json:"item_id"`
	} `json:"checkpoint"`
}

func TestManualSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/sessions", map[string]string{"id": "life", "mode": "manual"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, "POST", "/sessions/life/start", map[string]string{"goal": "创建一个测试任务"})
	require.Equal(t, http.StatusOK, rec.Code)
	var started startResponse
	decodeInto(t, rec, &started)
	require.True(t, started.Success)
	assert.Equal(t, "waiting", started.Status)
	require.NotNil(t, started.Checkpoint)

	// Approve the first step; manual mode checkpoints the next one too.
	rec = f.do(t, "POST", "/sessions/life/approve", map[string]string{"id": started.Checkpoint.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var step stepResponse
	decodeInto(t, rec, &step)
	require.True(t, step.Waiting)
	require.NotNil(t, step.Checkpoint)

	rec = f.do(t, "POST", "/sessions/life/approve", map[string]string{"id": step.Checkpoint.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &step)
	assert.True(t, step.Done)
	assert.Equal(t, "completed", step.Status)

	rec = f.do(t, "GET", "/sessions/life", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Status string `json:"status"`
		Goal   string `json:"goal"`
	}
	decodeInto(t, rec, &view)
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, "创建一个测试任务", view.Goal)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "rej", "mode": "manual"})
	rec := f.do(t, "POST", "/sessions/rej/start", map[string]string{"goal": "创建一个测试任务"})
	var started startResponse
	decodeInto(t, rec, &started)
	require.NotNil(t, started.Checkpoint)

	rec = f.do(t, "POST", "/sessions/rej/reject", map[string]string{"id": started.Checkpoint.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/sessions/rej/reject", map[string]string{
		"id": started.Checkpoint.ID, "reason": "用户不同意",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApproveWithoutCheckpointConflicts(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "idle-s"})
	rec := f.do(t, "POST", "/sessions/idle-s/approve", map[string]string{"id": "whatever"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeInto(t, rec, &body)
	assert.Equal(t, domain.CodeStateConflict, body.Error.Code)
}

func TestSetModeAndRules(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "cfg", "mode": "auto"})

	rec := f.do(t, "PUT", "/sessions/cfg/mode", map[string]string{"mode": "manual"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Mode string `json:"mode"`
	}
	decodeInto(t, rec, &view)
	assert.Equal(t, "manual", view.Mode)

	rec = f.do(t, "POST", "/sessions/cfg/rules", map[string]any{
		"rules": []map[string]any{{
			"id":      "guard-datasets",
			"name":    "Guard dataset deletions",
			"action":  "require_detailed_confirm",
			"trigger": map[string]any{"resource_types": []string{"dataset"}},
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var rules struct {
		Rules []domain.CheckpointRule `json:"rules"`
	}
	decodeInto(t, rec, &rules)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, domain.RuleSourceUser, rules.Rules[0].Source)
}

func TestUtteranceEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "nl", "mode": "manual"})

	rec := f.do(t, "POST", "/sessions/nl/utterance", map[string]any{
		"text":    "创建一个测试任务",
		"context": map[string]any{"page": "/tasks"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Action  string         `json:"action"`
		Started *startResponse `json:"started"`
	}
	decodeInto(t, rec, &result)
	assert.Equal(t, "auto_execute", result.Action)
	require.NotNil(t, result.Started)
	assert.Equal(t, "waiting", result.Started.Status)
}

func TestUnderstandingEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "und", "mode": "manual"})
	f.do(t, "POST", "/sessions/und/start", map[string]string{"goal": "创建一个测试任务"})

	rec := f.do(t, "GET", "/sessions/und/understanding", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view domain.Understanding
	decodeInto(t, rec, &view)
	assert.Equal(t, "创建一个测试任务", view.CurrentGoal)
	assert.NotEmpty(t, view.CurrentPhase)

	rec = f.do(t, "GET", "/sessions/never-started/understanding", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "gone"})
	rec := f.do(t, "DELETE", "/sessions/gone", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "GET", "/sessions/gone", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "met", "mode": "auto"})
	f.do(t, "POST", "/sessions/met/start", map[string]string{"goal": "查看任务 nightly"})

	rec := f.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goi_events_total")
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)

	f.do(t, "POST", "/sessions", map[string]string{"id": "sse", "mode": "auto"})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/sessions/sse/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.handler.ServeHTTP(rec, req)
	}()

	// Give the subscriber time to register, then emit through the bus.
	require.Eventually(t, func() bool {
		return f.bus.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	f.bus.Publish(context.Background(),
		domain.NewEvent(domain.EventPlanCreated, "sse", domain.PlanCreated{Goal: "g", ItemCount: 2}))

	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body.String(), "plan_created")
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	body := rec.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, fmt.Sprintf("event: %s", domain.EventPlanCreated))
}
