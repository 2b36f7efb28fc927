package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

func TestFanoutDeliversPublishedFrames(t *testing.T) {
	client := newTestRedis(t)
	logger, _ := test.NewNullLogger()

	hub := NewHub(logger)
	m := newMember("peer", "u1")
	hub.Register(m)
	hub.Join(m, "p1")

	dedup := NewRedisDeduper(client, "inst-1", time.Minute)
	fanout := NewFanout(client, "board:events", hub, dedup, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	// Give the subscriber a moment to attach before publishing.
	waitForSubscriber(t, client)

	env := board.Envelope{
		Event:     board.EventTaskUpdate,
		ID:        "ev-1",
		ProjectID: "p1",
		Origin:    "someone-else",
		Data:      []byte(`{"id":"t1","status":"done"}`),
	}
	if err := fanout.Publish(ctx, env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-m.send:
		if got.Event != board.EventTaskUpdate || got.ID != "ev-1" {
			t.Fatalf("unexpected frame: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never delivered")
	}

	// The same id published again is suppressed by the deduper.
	if err := fanout.Publish(ctx, env); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-m.send:
		t.Fatal("duplicate frame delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFanoutSkipsOriginConnection(t *testing.T) {
	client := newTestRedis(t)
	logger, _ := test.NewNullLogger()

	hub := NewHub(logger)
	origin := newMember("c1", "u1")
	peer := newMember("c2", "u2")
	hub.Register(origin)
	hub.Register(peer)
	hub.Join(origin, "p1")
	hub.Join(peer, "p1")

	fanout := NewFanout(client, "board:events", hub, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)
	waitForSubscriber(t, client)

	err := fanout.Publish(ctx, board.Envelope{
		Event:     board.EventTaskUpdate,
		ID:        "ev-1",
		ProjectID: "p1",
		Origin:    "c1",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-peer.send:
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the frame")
	}
	select {
	case <-origin.send:
		t.Fatal("origin received its own frame back")
	default:
	}
}

func TestFanoutMetricsAndSpan(t *testing.T) {
	client := newTestRedis(t)
	logger, hook := test.NewNullLogger()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	hub := NewHub(logger)
	m := newMember("peer", "u1")
	hub.Register(m)
	hub.Join(m, "p1")

	fanout := NewFanout(client, "board:events", hub, nil, logger)
	fanout.handle(context.Background(), []byte(`{"event":"task:update","id":"ev-1","projectId":"p1","origin":"x","data":{"id":"t1","status":"done"}}`))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a metrics log entry")
	}
	if entry.Message != "gateway.broadcast.metrics" {
		t.Fatalf("unexpected log message %q", entry.Message)
	}
	if entry.Data["event"] != "task:update" || entry.Data["project"] != "p1" {
		t.Fatalf("unexpected fields: %#v", entry.Data)
	}
	if entry.Data["delivered"] != 1 {
		t.Fatalf("delivered = %v, want 1", entry.Data["delivered"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name != "gateway.broadcast" {
		t.Fatalf("unexpected span name %q", spans[0].Name)
	}
	attrs := make(map[string]any, len(spans[0].Attributes))
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["sync.event"] != "task:update" || attrs["sync.delivered"] != int64(1) {
		t.Fatalf("unexpected span attributes: %#v", attrs)
	}
}

func TestFanoutIgnoresMalformedPayload(t *testing.T) {
	client := newTestRedis(t)
	logger, hook := test.NewNullLogger()

	hub := NewHub(logger)
	fanout := NewFanout(client, "board:events", hub, nil, logger)
	fanout.handle(context.Background(), []byte(`{not json`))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a metrics log entry")
	}
	if entry.Data["error_stage"] != "decode" {
		t.Fatalf("expected decode error stage, got %#v", entry.Data)
	}
}

// waitForSubscriber blocks until the fanout's pub/sub subscription is
// attached, so a following publish cannot race it.
func waitForSubscriber(t *testing.T, client *redis.Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	ctx := context.Background()
	for time.Now().Before(deadline) {
		counts, err := client.PubSubNumSub(ctx, "board:events").Result()
		if err == nil && counts["board:events"] > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscriber never attached")
}
