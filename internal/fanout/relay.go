package fanout

import (
	"context"
	"time"

	"backend-prolink/internal/domain"
	"backend-prolink/internal/logging"
	"backend-prolink/internal/metrics"
	"backend-prolink/internal/presence"
	"backend-prolink/internal/store"
)

// Pusher is the part of the presence directory the relay needs.
type Pusher interface {
	PushTo(ctx context.Context, userID string, frame []byte) (presence.Result, error)
	PushToAudience(ctx context.Context, postID, authorID string, frame []byte) (int, error)
}

type Config struct {
	Interval time.Duration
	Batch    int
	// Retention is how long delivered rows are kept before purging.
	Retention time.Duration
}

// Relay drains the outbox. It wakes on Notify or every Interval, pushes
// pending events in id order and acknowledges them. A push error stops the
// pass so the remaining events are retried on the next one.
type Relay struct {
	store  store.Store
	pusher Pusher
	cfg    Config
	wake   chan struct{}
}

func NewRelay(s store.Store, pusher Pusher, cfg Config) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &Relay{store: s, pusher: pusher, cfg: cfg, wake: make(chan struct{}, 1)}
}

func (r *Relay) String() string {
	return "outbox-relay"
}

// Notify asks for a pass as soon as possible. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) Serve(ctx context.Context) error {
	log := logging.With("outbox-relay")
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	purge := time.NewTicker(time.Hour)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		case <-ticker.C:
		case <-purge.C:
			n, err := r.store.PurgeDeliveredEvents(ctx, time.Now().Add(-r.cfg.Retention))
			if err != nil {
				log.Warn().Err(err).Msg("purge delivered events failed")
			} else if n > 0 {
				log.Debug().Int64("purged", n).Msg("purged delivered events")
			}
			continue
		}
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("outbox pass stopped")
		}
	}
}

// Drain runs passes until the outbox is empty or a pass fails, returning
// the number of events acknowledged.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.pass(ctx)
		total += n
		if err != nil {
			metrics.OutboxFailures.Inc()
			return total, err
		}
		if n < r.cfg.Batch {
			return total, nil
		}
	}
}

func (r *Relay) pass(ctx context.Context) (int, error) {
	var acked int
	err := r.store.InTx(ctx, func(tx store.Store) error {
		events, err := tx.PendingEvents(ctx, r.cfg.Batch)
		if err != nil {
			return err
		}
		var done []int64
		var pushErr error
		for _, e := range events {
			if pushErr = r.push(ctx, e); pushErr != nil {
				break
			}
			done = append(done, e.ID)
		}
		if err := tx.MarkEventsDelivered(ctx, done); err != nil {
			return err
		}
		acked = len(done)
		if pushErr != nil {
			logging.Ctx(ctx).Warn().Err(pushErr).Int("acked", acked).Msg("push failed, remaining events retried later")
		}
		if pushErr != nil && acked == 0 {
			return pushErr
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.OutboxDelivered.Add(float64(acked))
	return acked, nil
}

func (r *Relay) push(ctx context.Context, e domain.Event) error {
	frame, err := presence.EncodeFrame(e.Name, e.Payload)
	if err != nil {
		return err
	}
	if e.PostID != "" {
		n, err := r.pusher.PushToAudience(ctx, e.PostID, e.RecipientID, frame)
		if err != nil {
			metrics.RealtimePushes.WithLabelValues(e.Name, "error").Inc()
			return err
		}
		result := presence.Delivered
		if n == 0 {
			result = presence.Offline
		}
		metrics.RealtimePushes.WithLabelValues(e.Name, string(result)).Inc()
		return nil
	}
	res, err := r.pusher.PushTo(ctx, e.RecipientID, frame)
	if err != nil {
		metrics.RealtimePushes.WithLabelValues(e.Name, "error").Inc()
		return err
	}
	metrics.RealtimePushes.WithLabelValues(e.Name, string(res)).Inc()
	return nil
}
