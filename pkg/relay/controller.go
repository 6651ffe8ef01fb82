package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-roomwatch/internal/clock"
)

// Controller is the relay timer state machine.
//
// All state lives behind one mutex: Apply, Tick, Reset and Toggle are
// serialized, and Status never observes a half-applied update.
type Controller struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	mu            sync.Mutex
	occupancy     Occupancy
	relay         State
	lastDetection time.Time
	lastApply     time.Time
	lastTook      time.Duration
	reading       Reading
	updatedAt     time.Time

	subs    map[int]chan Transition
	nextSub int
}

// New creates a controller in the empty, counting-down state with the relay
// on and a fresh timestamp.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	now := clk.Now()
	return &Controller{
		cfg:           cfg,
		clock:         clk,
		logger:        logger,
		occupancy:     Empty,
		relay:         On,
		lastDetection: now,
		lastApply:     now,
		updatedAt:     now,
		subs:          make(map[int]chan Transition),
	}
}

// Config returns the timer configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Apply feeds one detection cycle into the state machine.
func (c *Controller) Apply(r Reading) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.lastApply = now
	c.lastTook = max(r.Took, 0)
	c.reading = r
	c.updatedAt = now

	if r.Detected {
		prevOcc, prevRelay := c.occupancy, c.relay
		c.occupancy = Occupied
		c.relay = On
		c.lastDetection = now
		if prevOcc != Occupied || prevRelay != On {
			c.emit(KindDetected, prevOcc, prevRelay, now)
		}
	} else {
		c.decay(now)
	}

	return c.status(now)
}

// Tick evaluates timer decay without a new reading, so a stalled detector
// still lets the timer run out. An occupied room is only considered vacated
// once no reading has arrived for StaleAfter plus twice the last cycle's
// duration.
func (c *Controller) Tick() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.occupancy != Occupied || now.Sub(c.lastApply) >= c.cfg.StaleAfter+2*c.lastTook {
		c.decay(now)
	}
	return c.status(now)
}

// Reset reseeds the timer at now. An expired room goes back to counting
// down with the relay on; an occupied room stays occupied. Reset never
// switches the relay off.
func (c *Controller) Reset() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	prevOcc, prevRelay := c.occupancy, c.relay
	c.lastDetection = now
	c.updatedAt = now
	if c.occupancy == Expired {
		c.occupancy = Empty
		c.relay = On
	}
	c.emit(KindReset, prevOcc, prevRelay, now)
	return c.status(now)
}

// Toggle flips the relay without touching occupancy or the timer. The next
// detection forces it back on; the next expiry forces it off.
func (c *Controller) Toggle() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	prevRelay := c.relay
	if c.relay == On {
		c.relay = Off
	} else {
		c.relay = On
	}
	c.updatedAt = now
	c.emit(KindToggled, c.occupancy, prevRelay, now)
	return c.status(now)
}

// Status returns the current state with remaining time computed at now.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status(c.clock.Now())
}

// Subscribe returns a channel receiving every transition and a function
// that cancels the subscription and closes the channel. Sends never block:
// a subscriber that falls more than buf transitions behind misses some.
func (c *Controller) Subscribe(buf int) (<-chan Transition, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Transition, buf)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Run calls Tick every interval until ctx is done.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// decay applies the "no person" rule. Callers hold mu.
func (c *Controller) decay(now time.Time) {
	if c.occupancy == Expired {
		return
	}

	prevOcc, prevRelay := c.occupancy, c.relay
	if c.remaining(now) > 0 {
		if c.occupancy == Occupied {
			c.occupancy = Empty
			c.emit(KindVacated, prevOcc, prevRelay, now)
		}
		return
	}

	c.occupancy = Expired
	c.relay = Off
	c.updatedAt = now
	c.emit(KindExpired, prevOcc, prevRelay, now)
}

func (c *Controller) remaining(now time.Time) time.Duration {
	r := c.cfg.Duration - now.Sub(c.lastDetection)
	if r < 0 {
		return 0
	}
	return r
}

func (c *Controller) status(now time.Time) Status {
	s := Status{
		Occupancy:     c.occupancy,
		Relay:         c.relay,
		Duration:      c.cfg.Duration,
		PersonPercent: c.reading.Confidence * 100,
		EmptyPercent:  (1 - c.reading.Confidence) * 100,
		Detected:      c.reading.Detected,
		LastDetection: c.lastDetection,
		UpdatedAt:     c.updatedAt,
	}
	switch c.occupancy {
	case Occupied:
		s.Remaining = c.cfg.Duration
	case Empty:
		s.Remaining = c.remaining(now)
	}
	s.RemainingSeconds = int(s.Remaining / time.Second)
	return s
}

// emit logs the edge and fans it out to subscribers. Callers hold mu.
func (c *Controller) emit(kind Kind, from Occupancy, relayFrom State, now time.Time) {
	st := c.status(now)
	t := Transition{
		Kind:      kind,
		From:      from,
		To:        c.occupancy,
		RelayFrom: relayFrom,
		RelayTo:   c.relay,
		Remaining: st.Remaining,
		At:        now,
		Status:    st,
	}

	attrs := []any{
		"from", t.From.String(),
		"to", t.To.String(),
		"relay", t.RelayTo.String(),
		"remaining_s", st.RemainingSeconds,
	}
	switch kind {
	case KindDetected:
		c.logger.Info("person detected", append(attrs, "confidence", c.reading.Confidence)...)
	case KindVacated:
		c.logger.Info("room empty, countdown started", attrs...)
	case KindExpired:
		c.logger.Info("timer expired, relay off", attrs...)
	case KindReset:
		c.logger.Info("timer reset", attrs...)
	case KindToggled:
		c.logger.Info("relay toggled", attrs...)
	}

	for _, ch := range c.subs {
		select {
		case ch <- t:
		default:
			c.logger.Warn("transition subscriber behind, dropping", "kind", kind)
		}
	}
}
