package relay

import (
	"context"
	"log/slog"
	"time"
)

// Source is what an Actuator follows.
type Source interface {
	Status() Status
	Subscribe(buf int) (<-chan Transition, func())
}

// Actuator mirrors a controller's relay state onto a Switch. It writes on
// every relay edge and re-asserts the desired state on a timer so a failed
// write or a power-cycled board converges.
type Actuator struct {
	source    Source
	sw        Switch
	reconcile time.Duration
	logger    *slog.Logger

	applied bool
	current State
}

// NewActuator creates an actuator. reconcile <= 0 disables the periodic pass.
func NewActuator(source Source, sw Switch, reconcile time.Duration, logger *slog.Logger) *Actuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actuator{source: source, sw: sw, reconcile: reconcile, logger: logger}
}

// Run drives the switch until ctx is done, then closes it.
func (a *Actuator) Run(ctx context.Context) error {
	transitions, cancel := a.source.Subscribe(16)
	defer cancel()
	defer func() {
		if err := a.sw.Close(); err != nil {
			a.logger.Warn("relay switch close failed", "error", err)
		}
	}()

	a.apply(a.source.Status().Relay)

	var tick <-chan time.Time
	if a.reconcile > 0 {
		ticker := time.NewTicker(a.reconcile)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-transitions:
			if !ok {
				return nil
			}
			if t.RelayChanged() || !a.applied || a.current != t.RelayTo {
				a.apply(t.RelayTo)
			}
		case <-tick:
			a.apply(a.source.Status().Relay)
		}
	}
}

func (a *Actuator) apply(s State) {
	if err := a.sw.Set(s == On); err != nil {
		a.applied = false
		a.logger.Error("relay switch write failed", "relay", s.String(), "error", err)
		return
	}
	if !a.applied || a.current != s {
		a.logger.Info("relay switched", "relay", s.String())
	}
	a.applied = true
	a.current = s
}
