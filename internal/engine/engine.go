// Package engine owns the track store, gallery, history and people counter
// of one camera, and drives them from a single scheduling loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/your-org/attention/internal/attention"
	"github.com/your-org/attention/internal/config"
	"github.com/your-org/attention/internal/counter"
	"github.com/your-org/attention/internal/gallery"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
	"github.com/your-org/attention/internal/storage"
	"github.com/your-org/attention/internal/timeutil"
	"github.com/your-org/attention/internal/tracking"
)

// Detector yields the faces visible in the current frame. An empty result is
// the normal "nobody there" case, not an error.
type Detector interface {
	Detect(ctx context.Context) ([]models.FaceObservation, error)
}

// Snapshot is the read-only view of the active tracks published after each
// detection tick.
type Snapshot struct {
	At     time.Time      `json:"at"`
	Tracks []models.Track `json:"tracks"`
}

// Options wires an engine.
type Options struct {
	Tracking   config.TrackingConfig
	Counter    config.CounterConfig
	Detector   Detector
	Store      storage.KV
	GalleryKey string
	HistoryKey string
	// Indexer, when set, mirrors the gallery for identity search.
	Indexer gallery.Indexer
	// Clock defaults to the wall clock.
	Clock timeutil.Clock
}

// Engine is the attention engine of one camera.
type Engine struct {
	cfg        config.TrackingConfig
	counterCfg config.CounterConfig
	clock      timeutil.Clock
	loc        *time.Location
	detector   Detector

	tracker  *tracking.Tracker
	gallery  *gallery.Gallery
	history  *attention.History
	recorder *attention.Recorder
	counter  *counter.Counter

	// tickMu keeps detection, sweep and housekeeping from interleaving.
	tickMu    sync.Mutex
	announced map[string]time.Time

	// epoch changes on every Stop; a detection started under an older epoch
	// is discarded.
	epoch atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	listenersMu sync.RWMutex
	onSnapshot  []func(Snapshot)
	onPresence  []func(models.Track)
}

// New builds an engine. It performs no I/O; call Load to restore state.
func New(opts Options) (*Engine, error) {
	if opts.Detector == nil {
		return nil, fmt.Errorf("new engine: detector is required")
	}
	loc, err := opts.Tracking.Location()
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	matcher, err := tracking.NewMatcher(opts.Tracking.Matcher, opts.Tracking.TrackMatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	g := gallery.New(gallery.Config{
		ResolveThreshold:   opts.Tracking.IdentityMatchThreshold,
		DuplicateThreshold: opts.Tracking.TrackMatchThreshold,
		Key:                opts.GalleryKey,
	}, opts.Store)
	if opts.Indexer != nil {
		g.SetIndexer(opts.Indexer)
	}

	return &Engine{
		cfg:        opts.Tracking,
		counterCfg: opts.Counter,
		clock:      clock,
		loc:        loc,
		detector:   opts.Detector,
		tracker:    tracking.NewTracker(tracking.Config{Timeout: opts.Tracking.TrackTimeout}, matcher),
		gallery:    g,
		history:    attention.NewHistory(opts.Tracking.MaxRecords, opts.Store, opts.HistoryKey),
		recorder:   attention.NewRecorder(opts.Tracking.MinAttention, loc),
		counter: counter.New(counter.Config{
			DedupWindow: opts.Counter.DedupWindow,
			Retention:   opts.Counter.Retention,
			Location:    loc,
		}, clock.Now()),
		announced: make(map[string]time.Time),
	}, nil
}

// Load restores the gallery and history from storage. A failure leaves the
// affected part empty; the engine keeps working in memory.
func (e *Engine) Load(ctx context.Context) error {
	var errs []error
	if err := e.gallery.Load(ctx); err != nil {
		observability.PersistenceFailures.WithLabelValues("gallery").Inc()
		errs = append(errs, err)
	}
	if err := e.history.Load(ctx); err != nil {
		observability.PersistenceFailures.WithLabelValues("history").Inc()
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("load state: %w", errors.Join(errs...))
	}
	return nil
}

// Start launches the scheduling loop. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	detect := e.clock.NewTicker(e.cfg.DetectInterval)
	sweep := e.clock.NewTicker(e.cfg.SweepInterval)
	housekeep := e.clock.NewTicker(e.counterCfg.HousekeepInterval)
	go e.run(loopCtx, detect, sweep, housekeep, e.done)

	slog.Info("engine started",
		"detect_interval", e.cfg.DetectInterval,
		"sweep_interval", e.cfg.SweepInterval,
		"matcher", e.cfg.Matcher,
	)
}

// run is the single loop all ticks execute on, so they never overlap.
func (e *Engine) run(ctx context.Context, detect, sweep, housekeep timeutil.Ticker, done chan struct{}) {
	defer close(done)
	defer detect.Stop()
	defer sweep.Stop()
	defer housekeep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-detect.C():
			e.Tick(ctx)
		case <-sweep.C():
			e.Sweep(ctx)
		case <-housekeep.C():
			e.Housekeep()
		}
	}
}

// Stop halts the loop, discards any detection still in flight and flushes
// the gallery. It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.epoch.Add(1)
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.gallery.Flush(context.Background())
	slog.Info("engine stopped")
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Tick runs one detection cycle: detect, match, resolve, count, publish.
// Failures are logged and never returned.
func (e *Engine) Tick(ctx context.Context) {
	epoch := e.epoch.Load()
	start := time.Now()

	observations, err := e.detector.Detect(ctx)
	if e.epoch.Load() != epoch {
		observability.DiscardedDetections.Inc()
		slog.Debug("discarding detection from a stopped engine")
		return
	}
	if err != nil {
		observability.DetectionFailures.Inc()
		slog.Warn("detection failed", "error", err)
		observations = nil
	}

	e.tickMu.Lock()
	if e.epoch.Load() != epoch {
		e.tickMu.Unlock()
		observability.DiscardedDetections.Inc()
		return
	}
	now := e.clock.Now()
	updates := e.tracker.Update(now, observations, e.gallery)

	var present []models.Track
	for _, u := range updates {
		e.counter.Observe(u.Track.TrackID, now)
		if u.Track.IsIdentified && e.announce(u.Track, now) {
			present = append(present, u.Track)
		}
	}
	snap := Snapshot{At: now, Tracks: e.tracker.Snapshot()}
	e.tickMu.Unlock()

	e.publish(snap, present)
	observability.TickDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
}

// announce reports an identified presence at most once per cooldown window
// per identity. Caller holds tickMu.
func (e *Engine) announce(tr models.Track, now time.Time) bool {
	if last, ok := e.announced[tr.IdentityID]; ok && now.Sub(last) < e.cfg.PresenceCooldown {
		return false
	}
	e.announced[tr.IdentityID] = now
	e.gallery.Touch(tr.IdentityID, now)
	slog.Info("identity present",
		"identity", tr.IdentityID,
		"name", tr.IdentityName,
		"confidence", tr.Confidence,
	)
	return true
}

// Sweep evicts stale tracks and records their attention.
func (e *Engine) Sweep(ctx context.Context) {
	start := time.Now()
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	evicted := e.tracker.Sweep(e.clock.Now())
	if len(evicted) == 0 {
		return
	}
	records := e.recorder.Record(evicted)
	e.history.Add(ctx, records...)
	slog.Debug("sweep", "evicted", len(evicted), "records", len(records))
	observability.TickDuration.WithLabelValues("sweep").Observe(time.Since(start).Seconds())
}

// Housekeep rolls the people counter over at midnight, bounds its memory and
// forgets expired presence announcements.
func (e *Engine) Housekeep() {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	now := e.clock.Now()
	e.counter.Housekeep(now)
	for id, at := range e.announced {
		if now.Sub(at) >= e.cfg.PresenceCooldown {
			delete(e.announced, id)
		}
	}
}

// OnSnapshot registers fn to receive the active tracks after every
// detection tick. fn must not block or modify the snapshot.
func (e *Engine) OnSnapshot(fn func(Snapshot)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.onSnapshot = append(e.onSnapshot, fn)
}

// OnPresence registers fn to receive announced identity presences.
func (e *Engine) OnPresence(fn func(models.Track)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.onPresence = append(e.onPresence, fn)
}

func (e *Engine) publish(snap Snapshot, present []models.Track) {
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	for _, fn := range e.onSnapshot {
		fn(snap)
	}
	for _, tr := range present {
		for _, fn := range e.onPresence {
			fn(tr)
		}
	}
}
