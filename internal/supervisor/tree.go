// Package supervisor runs the long-lived background services (presence
// directory, Redis bridge, outbox relay) under a suture tree so a crashed
// service is restarted with backoff instead of taking the process down.
package supervisor

import (
	"context"
	"time"

	"backend-prolink/internal/logging"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree has two layers. realtime holds the presence directory and its Redis
// bridge; delivery holds the outbox relay, which depends on the former but
// is restarted independently.
type Tree struct {
	root     *suture.Supervisor
	realtime *suture.Supervisor
	delivery *suture.Supervisor
}

func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = EventHook(logging.With("supervisor"))

	t := &Tree{
		root:     suture.New("prolink", rootSpec),
		realtime: suture.New("realtime-layer", spec),
		delivery: suture.New("delivery-layer", spec),
	}
	t.root.Add(t.realtime)
	t.root.Add(t.delivery)
	return t
}

func (t *Tree) AddRealtime(svc suture.Service) suture.ServiceToken {
	return t.realtime.Add(svc)
}

func (t *Tree) AddDelivery(svc suture.Service) suture.ServiceToken {
	return t.delivery.Add(svc)
}

func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// EventHook writes supervisor events to log. Panics are errors, restarts
// and stop timeouts are warnings.
func EventHook(log zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		var ev *zerolog.Event
		switch e.Type() {
		case suture.EventTypeServicePanic:
			ev = log.Error()
		case suture.EventTypeServiceTerminate, suture.EventTypeStopTimeout, suture.EventTypeBackoff:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev.Fields(e.Map()).Msg(e.String())
	}
}
