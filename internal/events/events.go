// Package events delivers case events to the notification service after a
// transition is committed. Delivery failures never undo a transition.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/internal/metrics"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// DefaultChannel is the Redis channel case events are published on.
const DefaultChannel = "caseflow:case-events"

type Publisher interface {
	Publish(ctx context.Context, ev models.CaseEvent) error
}

/* ================================= Log ================================== */

// LogPublisher writes events to the application log.
type LogPublisher struct {
	log logger.AppLogger
}

func NewLogPublisher(log logger.AppLogger) *LogPublisher {
	return &LogPublisher{log: log.With(slog.String("service", "events"))}
}

func (p *LogPublisher) Publish(_ context.Context, ev models.CaseEvent) error {
	from := ""
	if ev.PreviousStatus != nil {
		from = string(*ev.PreviousStatus)
	}
	p.log.Info("case event",
		slog.String("case_id", ev.CaseID.String()),
		slog.String("from", from),
		slog.String("to", string(ev.NewStatus)),
		slog.String("actor", string(ev.Actor)),
		slog.Time("at", ev.Timestamp),
	)
	return nil
}

/* ================================ Redis ================================= */

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev models.CaseEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode case event")
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return errors.Wrapf(err, "publish case event %s", ev.CaseID)
	}
	return nil
}

/* ============================== Composition ============================== */

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev models.CaseEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retrying retries a publisher a bounded number of times and then gives up,
// logging the lost event.
type Retrying struct {
	next     Publisher
	log      logger.AppLogger
	attempts uint
	delay    time.Duration
}

func NewRetrying(next Publisher, log logger.AppLogger) *Retrying {
	return &Retrying{
		next:     next,
		log:      log.With(slog.String("service", "events")),
		attempts: 3,
		delay:    100 * time.Millisecond,
	}
}

func (r *Retrying) Publish(ctx context.Context, ev models.CaseEvent) error {
	err := retry.Do(
		func() error { return r.next.Publish(ctx, ev) },
		retry.Attempts(r.attempts),
		retry.LastErrorOnly(true),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn("retrying case event", slog.String("case_id", ev.CaseID.String()),
				slog.Int("attempt", int(n)+1), slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		metrics.MetricEventPublishFailures.Inc()
		r.log.Error("case event lost", err,
			slog.String("case_id", ev.CaseID.String()),
			slog.String("to", string(ev.NewStatus)))
	}
	return err
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.CaseEvent
}

func (r *Recorder) Publish(_ context.Context, ev models.CaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []models.CaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CaseEvent(nil), r.events...)
}
