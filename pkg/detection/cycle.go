package detection

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-roomwatch/internal/clock"
	"gocv.io/x/gocv"
)

// Snapshot is the aggregated result of one scan cycle.
type Snapshot struct {
	Detected      bool
	MaxConfidence float64         // highest person confidence seen this cycle (0-1)
	Hit           image.Rectangle // region that triggered the detection, if HasHit
	HasHit        bool
	At            time.Time
	Took          time.Duration // wall time the scan took
}

// PersonPercent returns MaxConfidence as a percentage.
func (s Snapshot) PersonPercent() float64 {
	return s.MaxConfidence * 100
}

// EmptyPercent returns the inverse of PersonPercent.
func (s Snapshot) EmptyPercent() float64 {
	return (1 - s.MaxConfidence) * 100
}

// CycleStats counts detection work since startup.
type CycleStats struct {
	Cycles            int64         `json:"cycles"`
	RegionsClassified int64         `json:"regions_classified"`
	RegionsDark       int64         `json:"regions_dark"`
	Failures          int64         `json:"failures"`
	Detections        int64         `json:"detections"`
	LastDuration      time.Duration `json:"last_duration"`
}

// Cycle rate-limits scanning and reduces each scan to a Snapshot.
//
// Evaluate is meant to be called from a single frame loop; Last and Stats
// may be called from any goroutine.
type Cycle struct {
	cfg        Config
	scanner    *Scanner
	extractor  *Extractor
	classifier Classifier
	clock      clock.Clock
	logger     *slog.Logger

	lastRun time.Time
	started bool

	mu    sync.RWMutex
	last  Snapshot
	stats CycleStats
}

// NewCycle wires the scan pipeline together.
func NewCycle(cfg Config, classifier Classifier, clk clock.Clock, logger *slog.Logger) *Cycle {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cycle{
		cfg:        cfg,
		scanner:    NewScanner(Grid{Window: cfg.Window, Step: cfg.Step}, cfg.DarkThreshold),
		extractor:  NewExtractor(cfg.CanonicalSize),
		classifier: classifier,
		clock:      clk,
		logger:     logger,
	}
}

// Evaluate runs a scan of frame if at least one interval has passed since
// the previous scan started, and returns the new snapshot with ran=true.
// Otherwise it returns the previous snapshot unchanged with ran=false.
// Missed intervals are skipped, never replayed.
func (c *Cycle) Evaluate(frame gocv.Mat) (snap Snapshot, ran bool) {
	now := c.clock.Now()
	if c.started && now.Sub(c.lastRun) < c.cfg.Interval {
		return c.Last(), false
	}
	c.started = true
	c.lastRun = now

	snap, scan, classified, failures := c.scan(frame, now)
	elapsed := c.clock.Since(now)
	snap.Took = elapsed

	c.mu.Lock()
	c.last = snap
	c.stats.Cycles++
	c.stats.RegionsClassified += int64(classified)
	c.stats.RegionsDark += int64(scan.Dark)
	c.stats.Failures += int64(failures)
	if snap.Detected {
		c.stats.Detections++
	}
	c.stats.LastDuration = elapsed
	c.mu.Unlock()

	if elapsed > c.cfg.Interval {
		c.logger.Warn("detection cycle overran interval",
			"elapsed", elapsed, "interval", c.cfg.Interval)
	}
	c.logger.Debug("detection cycle",
		"detected", snap.Detected,
		"max_confidence", snap.MaxConfidence,
		"visited", scan.Visited,
		"dark", scan.Dark,
		"classified", classified,
		"failures", failures)

	return snap, true
}

func (c *Cycle) scan(frame gocv.Mat, now time.Time) (snap Snapshot, stats ScanStats, classified, failures int) {
	snap.At = now

	for r := range c.scanner.Scan(frame, &stats) {
		vec, err := c.extractor.Extract(r.Mat)
		if err != nil {
			failures++
			c.logger.Debug("feature extraction failed", "x", r.X, "y", r.Y, "error", err)
			continue
		}

		res, err := c.classifier.Classify(vec)
		if err != nil {
			failures++
			if !errors.Is(err, ErrMalformedVector) {
				c.logger.Warn("classification failed", "x", r.X, "y", r.Y, "error", err)
			}
			continue
		}
		classified++

		if res.Confidence > snap.MaxConfidence {
			snap.MaxConfidence = res.Confidence
		}
		if res.Label == Person && res.Confidence > c.cfg.ProbThreshold {
			snap.Detected = true
			snap.Hit = r.Rect
			snap.HasHit = true
			break
		}
	}

	return snap, stats, classified, failures
}

// Last returns the most recent snapshot.
func (c *Cycle) Last() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Stats returns cumulative counters.
func (c *Cycle) Stats() CycleStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Config returns the cycle configuration.
func (c *Cycle) Config() Config {
	return c.cfg
}
