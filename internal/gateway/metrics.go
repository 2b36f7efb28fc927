package gateway

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rauf-alluviam/taskm-sync/internal/gateway"

type broadcastMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	event      string
	projectID  string
	decodeDur  time.Duration
	dedupDur   time.Duration
	fanoutDur  time.Duration
	delivered  int
	duplicate  bool
	errorStage string
}

func newBroadcastMetrics(ctx context.Context, logger *log.Logger) (*broadcastMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "gateway.broadcast")
	return &broadcastMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *broadcastMetrics) SetEvent(event, projectID string) {
	m.event = event
	m.projectID = projectID
}

func (m *broadcastMetrics) ObserveDecode(d time.Duration) {
	if d > 0 {
		m.decodeDur = d
	}
}

func (m *broadcastMetrics) ObserveDedup(d time.Duration) {
	if d > 0 {
		m.dedupDur = d
	}
}

func (m *broadcastMetrics) ObserveFanout(d time.Duration) {
	if d > 0 {
		m.fanoutDur = d
	}
}

func (m *broadcastMetrics) SetDelivered(n int) {
	if n < 0 {
		n = 0
	}
	m.delivered = n
}

func (m *broadcastMetrics) SetDuplicate() { m.duplicate = true }

func (m *broadcastMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finishes the span and emits one structured line for the frame.
func (m *broadcastMetrics) Log(err error) {
	if m == nil {
		return
	}

	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("sync.event", m.event),
			attribute.String("sync.project_id", m.projectID),
			attribute.Int("sync.delivered", m.delivered),
			attribute.Bool("sync.duplicate", m.duplicate),
		)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event":     m.event,
		"project":   m.projectID,
		"delivered": m.delivered,
		"duplicate": m.duplicate,
		"total_ms":  durationToMillis(time.Since(m.start)),
	}
	if m.decodeDur > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDur)
	}
	if m.dedupDur > 0 {
		fields["dedup_ms"] = durationToMillis(m.dedupDur)
	}
	if m.fanoutDur > 0 {
		fields["fanout_ms"] = durationToMillis(m.fanoutDur)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("gateway.broadcast.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
