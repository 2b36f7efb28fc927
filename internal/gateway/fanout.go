package gateway

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

// Fanout bridges gateway instances over a redis pub/sub channel. Client
// emissions and CRUD-service broadcasts are published to the channel;
// every instance subscribes and delivers each frame to its local room
// members, so rooms span instances.
type Fanout struct {
	rc      *redis.Client
	channel string
	hub     *Hub
	dedup   Deduper
	logger  *log.Logger
}

// NewFanout creates a fanout over the given redis client and channel.
func NewFanout(rc *redis.Client, channel string, hub *Hub, dedup Deduper, logger *log.Logger) *Fanout {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Fanout{rc: rc, channel: channel, hub: hub, dedup: dedup, logger: logger}
}

// Publish puts a broadcast frame on the events channel. The envelope
// must already carry its event id, project scope and origin.
func (f *Fanout) Publish(ctx context.Context, env board.Envelope) error {
	data, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	return f.rc.Publish(ctx, f.channel, data).Err()
}

// Run subscribes to the events channel and fans frames out to local room
// members until ctx is cancelled. A closed subscription channel is
// reopened after a short sleep.
func (f *Fanout) Run(ctx context.Context) {
	for {
		sub := f.rc.Subscribe(ctx, f.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				f.handle(ctx, []byte(msg.Payload))
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		f.logger.Error("gateway: pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func (f *Fanout) handle(ctx context.Context, payload []byte) {
	metrics, spanCtx := newBroadcastMetrics(ctx, f.logger)
	var err error
	defer func() {
		metrics.Log(err)
	}()

	decodeStart := time.Now()
	var env board.Envelope
	if err = sonic.Unmarshal(payload, &env); err != nil {
		metrics.ObserveDecode(time.Since(decodeStart))
		metrics.SetErrorStage("decode")
		return
	}
	metrics.ObserveDecode(time.Since(decodeStart))
	metrics.SetEvent(env.Event, env.ProjectID)

	if f.dedup != nil && env.ID != "" {
		dedupStart := time.Now()
		seen, dedupErr := f.dedup.Seen(spanCtx, env.ID)
		metrics.ObserveDedup(time.Since(dedupStart))
		if dedupErr != nil {
			// Dedup is advisory; deliver rather than drop on redis trouble.
			f.logger.Errorf("gateway: dedup check failed: %v", dedupErr)
		} else if seen {
			metrics.SetDuplicate()
			return
		}
	}

	fanoutStart := time.Now()
	delivered := f.hub.Broadcast(env)
	metrics.ObserveFanout(time.Since(fanoutStart))
	metrics.SetDelivered(delivered)
}
