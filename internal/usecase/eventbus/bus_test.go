package eventbus

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"food-router/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventSubTaskCompleted, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventSubTaskCompleted {
			got.Add(1)
		}
	})
	bus.Subscribe(domain.EventSessionEvicted, func(context.Context, domain.Event) {
		t.Error("handler for another type should not fire")
	})

	bus.Emit(context.Background(), domain.EventSubTaskCompleted, "s-1", domain.SubTaskEventPayload{TaskID: "t1"})
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })

	bus.Emit(context.Background(), domain.EventUtteranceReceived, "s-1", nil)
	bus.Emit(context.Background(), domain.EventAnswerComposed, "s-1", nil)
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var typed, all atomic.Int32
	unsubTyped := bus.Subscribe(domain.EventSessionCreated, func(context.Context, domain.Event) { typed.Add(1) })
	unsubAll := bus.SubscribeAll(func(context.Context, domain.Event) { all.Add(1) })

	unsubTyped()
	unsubAll()
	bus.Emit(context.Background(), domain.EventSessionCreated, "s-1", nil)
	bus.Close()

	if typed.Load() != 0 || all.Load() != 0 {
		t.Errorf("unsubscribed handlers fired: typed=%d all=%d", typed.Load(), all.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), domain.EventSubTaskDispatched, "s", nil)
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 50 {
		t.Fatalf("expected 50, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { panic("boom") })
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })

	bus.Emit(context.Background(), domain.EventAnswerComposed, "", nil)
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("healthy handler should still run, got %d", got.Load())
	}
}

func TestCloseRejectsNew(t *testing.T) {
	bus := newTestBus()
	var got atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })

	bus.Close()
	bus.Close()
	bus.Emit(context.Background(), domain.EventAnswerComposed, "", nil)

	if got.Load() != 0 {
		t.Fatalf("publish after close delivered %d events", got.Load())
	}
}

func TestHandlerSurvivesCancelledPublisher(t *testing.T) {
	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	bus.SubscribeAll(func(hctx context.Context, _ domain.Event) { errs <- hctx.Err() })

	bus.Emit(ctx, domain.EventAnswerComposed, "", nil)
	cancel()
	bus.Close()

	if err := <-errs; err != nil {
		t.Errorf("handler context err = %v, want nil", err)
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogHandler(log)(context.Background(), domain.NewEvent(domain.EventSessionEvicted, "s-9", map[string]int{"idle_s": 60}))

	out := buf.String()
	if !strings.Contains(out, "session.evicted") || !strings.Contains(out, "s-9") {
		t.Errorf("log = %q", out)
	}
}
