package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBus_SessionScopedDelivery(t *testing.T) {
	bus := events.NewBus()
	ch1, cancel1 := bus.Subscribe("s-1")
	defer cancel1()
	ch2, cancel2 := bus.Subscribe("s-2")
	defer cancel2()

	bus.Publish(context.Background(), domain.NewEvent(domain.EventPlanCreated, "s-1", nil))

	select {
	case evt := <-ch1:
		assert.Equal(t, "s-1", evt.SessionID)
	case <-time.After(time.Second):
		t.Fatal("subscriber for s-1 received nothing")
	}
	select {
	case <-ch2:
		t.Fatal("subscriber for s-2 must not see s-1 events")
	default:
	}
}

func TestBus_WildcardSeesEverything(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(events.Wildcard)
	defer cancel()

	bus.Publish(context.Background(), domain.NewEvent(domain.EventStatusChanged, "s-1", nil))
	bus.Publish(context.Background(), domain.NewEvent(domain.EventStatusChanged, "s-2", nil))

	var got []string
	for range 2 {
		select {
		case evt := <-ch:
			got = append(got, evt.SessionID)
		case <-time.After(time.Second):
			t.Fatal("wildcard subscriber starved")
		}
	}
	assert.ElementsMatch(t, []string{"s-1", "s-2"}, got)
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := events.NewBus(events.WithBuffer(2))
	_, cancel := bus.Subscribe("s-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish(context.Background(), domain.NewEvent(domain.EventStepCompleted, "s-1", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, int64(8), bus.Dropped())
}

func TestBus_CancelClosesChannelIdempotently(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe("s-1")

	cancel()
	cancel() // second cancel is a no-op

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Publishing after cancel goes nowhere, quietly.
	bus.Publish(context.Background(), domain.NewEvent(domain.EventPlanCreated, "s-1", nil))
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := events.NewBus()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := bus.Subscribe(events.Wildcard)
			for j := 0; j < 20; j++ {
				bus.Publish(context.Background(), domain.NewEvent(domain.EventStepCompleted, "s", nil))
				select {
				case <-ch:
				default:
				}
			}
			cancel()
		}()
	}
	wg.Wait()
}

func TestTracker_ProjectsUnderstanding(t *testing.T) {
	bus := events.NewBus()
	tracker := events.NewTracker(bus)
	ch, cancel := bus.Subscribe("s-1")
	defer cancel()
	ctx := context.Background()

	tracker.Publish(ctx, domain.NewEvent(domain.EventPlanCreated, "s-1",
		domain.PlanCreated{Goal: "创建一个测试任务", ItemCount: 2, Analysis: "two steps"}))
	tracker.Publish(ctx, domain.NewEvent(domain.EventStatusChanged, "s-1",
		domain.StatusChange{From: domain.LoopPlanning, To: domain.LoopExecuting}))
	tracker.Publish(ctx, domain.NewEvent(domain.EventStepCompleted, "s-1",
		domain.StepCompleted{ItemID: "a", Status: domain.ItemCompleted}))

	view, ok := tracker.Understanding("s-1")
	require.True(t, ok)
	assert.Equal(t, "创建一个测试任务", view.CurrentGoal)
	assert.Equal(t, string(domain.LoopExecuting), view.CurrentPhase)
	assert.Equal(t, "1/2 steps settled", view.Summary)

	// Pass-through plus derived events reached the bus subscriber.
	var types []domain.EventType
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Contains(t, types, domain.EventPlanCreated)
	assert.Contains(t, types, domain.EventUnderstandingUpdate)
}

func TestTracker_UnknownSessionAndForget(t *testing.T) {
	tracker := events.NewTracker(nil)
	_, ok := tracker.Understanding("nope")
	assert.False(t, ok)

	tracker.Publish(context.Background(), domain.NewEvent(domain.EventIntentParsed, "s-1",
		domain.IntentParsed{Confidence: 0.8}))
	view, ok := tracker.Understanding("s-1")
	require.True(t, ok)
	assert.InDelta(t, 0.8, view.Confidence, 1e-9)

	tracker.Forget("s-1")
	_, ok = tracker.Understanding("s-1")
	assert.False(t, ok)
}
