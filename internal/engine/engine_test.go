package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/attention/internal/config"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/storage"
	"github.com/your-org/attention/internal/timeutil"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// scriptedDetector returns queued frames in order, then empty results.
type scriptedDetector struct {
	mu      sync.Mutex
	frames  [][]models.FaceObservation
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (d *scriptedDetector) push(faces ...models.FaceObservation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, faces)
}

func (d *scriptedDetector) Detect(context.Context) ([]models.FaceObservation, error) {
	if d.block != nil {
		d.entered <- struct{}{}
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if len(d.frames) == 0 {
		return nil, nil
	}
	f := d.frames[0]
	d.frames = d.frames[1:]
	return f, nil
}

func face(v ...float32) models.FaceObservation {
	return models.FaceObservation{
		Embedding:      v,
		AgeEstimate:    27,
		GenderEstimate: models.GenderEstimate{Label: "male", Probability: 0.8},
	}
}

func testOptions(det Detector, clock timeutil.Clock, store storage.KV) Options {
	return Options{
		Tracking: config.TrackingConfig{
			Matcher:                "greedy",
			TrackMatchThreshold:    0.5,
			IdentityMatchThreshold: 0.6,
			TrackTimeout:           3 * time.Second,
			DetectInterval:         time.Second,
			SweepInterval:          time.Second,
			MinAttention:           time.Second,
			PresenceCooldown:       5 * time.Second,
			MaxRecords:             500,
			Timezone:               "UTC",
		},
		Counter: config.CounterConfig{
			DedupWindow:       10 * time.Second,
			Retention:         time.Minute,
			HousekeepInterval: time.Minute,
		},
		Detector:   det,
		Store:      store,
		GalleryKey: "people_registry",
		HistoryKey: "attention_history",
		Clock:      clock,
	}
}

func newTestEngine(t *testing.T, store storage.KV) (*Engine, *scriptedDetector, *timeutil.MockClock) {
	t.Helper()
	det := &scriptedDetector{}
	clock := timeutil.NewMockClock(t0)
	e, err := New(testOptions(det, clock, store))
	require.NoError(t, err)
	return e, det, clock
}

func TestTickAndSweepRecordAttention(t *testing.T) {
	e, det, clock := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		clock.Set(t0.Add(time.Duration(i) * time.Second))
		det.push(face(1, 1))
		e.Tick(ctx)
	}
	require.Len(t, e.Snapshot(), 1)

	clock.Set(t0.Add(5 * time.Second))
	e.Sweep(ctx)
	assert.Len(t, e.Snapshot(), 1, "a track unseen for exactly the timeout is kept")

	clock.Set(t0.Add(5*time.Second + time.Millisecond))
	e.Sweep(ctx)
	assert.Empty(t, e.Snapshot())

	records := e.RecentRecords(0)
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].DurationSeconds)
	assert.Equal(t, t0, records[0].StartTime)
	assert.Equal(t, "2026-05-04", records[0].Date)
	assert.Equal(t, "young_adult", records[0].AgeGroup)

	summary := e.DailySummary("")
	assert.Equal(t, 1, summary.RecordCount)
	assert.Equal(t, 1, summary.UnidentifiedCount)
	assert.Equal(t, []string{"2026-05-04"}, e.Dates())
	assert.Equal(t, 1, e.CounterStats().Total)
}

func TestShortPresenceLeavesNoRecord(t *testing.T) {
	e, det, clock := newTestEngine(t, nil)
	det.push(face(1, 1))
	e.Tick(context.Background())

	clock.Set(t0.Add(4 * time.Second))
	e.Sweep(context.Background())

	assert.Empty(t, e.Snapshot())
	assert.Empty(t, e.RecentRecords(0))
	assert.Equal(t, 1, e.CounterStats().Total)
}

func TestDetectionFailureIsContained(t *testing.T) {
	e, det, clock := newTestEngine(t, nil)
	det.err = errors.New("camera unplugged")

	var snaps []Snapshot
	e.OnSnapshot(func(s Snapshot) { snaps = append(snaps, s) })

	e.Tick(context.Background())
	assert.Empty(t, e.Snapshot())
	require.Len(t, snaps, 1)

	det.err = nil
	det.push(face(1, 1))
	clock.Advance(time.Second)
	e.Tick(context.Background())
	assert.Len(t, e.Snapshot(), 1)
}

func TestIdentifiedPresenceIsDebounced(t *testing.T) {
	e, det, clock := newTestEngine(t, storage.NewMemoryStore())
	ctx := context.Background()
	ana, err := e.Enroll(ctx, "Ana", "EMP-1", []models.Capture{{Embedding: []float32{0, 0}, Quality: 1}})
	require.NoError(t, err)

	var present []models.Track
	e.OnPresence(func(tr models.Track) { present = append(present, tr) })

	for i := 0; i <= 6; i++ {
		clock.Set(t0.Add(time.Duration(i) * time.Second))
		det.push(face(0.1, 0))
		e.Tick(ctx)
	}

	snap := e.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, ana.ID, snap[0].TrackID)
	assert.True(t, snap[0].IsIdentified)
	assert.Equal(t, "Ana", snap[0].IdentityName)

	require.Len(t, present, 2)
	assert.Equal(t, t0, present[0].LastSeenAt)
	assert.Equal(t, t0.Add(5*time.Second), present[1].LastSeenAt)

	got, ok := e.Identity(ana.ID)
	require.True(t, ok)
	require.NotNil(t, got.LastSeenAt)
	assert.Equal(t, t0.Add(5*time.Second), *got.LastSeenAt)
	assert.Equal(t, 1, e.CounterStats().Total)
}

func TestSnapshotListenersGetCopies(t *testing.T) {
	e, det, _ := newTestEngine(t, nil)

	var got Snapshot
	e.OnSnapshot(func(s Snapshot) { got = s })
	det.push(face(1, 1), face(9, 9))
	e.Tick(context.Background())

	require.Len(t, got.Tracks, 2)
	assert.Equal(t, t0, got.At)
	got.Tracks[0].Embedding[0] = 42
	assert.Equal(t, float32(1), e.Snapshot()[0].Embedding[0])
}

func TestStopDiscardsInFlightDetection(t *testing.T) {
	det := &scriptedDetector{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	clock := timeutil.NewMockClock(t0)
	e, err := New(testOptions(det, clock, nil))
	require.NoError(t, err)

	e.Start(context.Background())
	require.True(t, e.Running())

	det.push(face(1, 1))
	done := make(chan struct{})
	go func() {
		e.Tick(context.Background())
		close(done)
	}()
	<-det.entered

	e.Stop()
	close(det.block)
	<-done

	assert.False(t, e.Running())
	assert.Empty(t, e.Snapshot())
	assert.Zero(t, e.CounterStats().Total)

	e.Stop()
}

func TestLoopDrivesTicks(t *testing.T) {
	e, det, clock := newTestEngine(t, nil)
	e.Start(context.Background())
	defer e.Stop()
	e.Start(context.Background())

	det.push(face(1, 1))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(e.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestStateSurvivesRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	first, det, clock := newTestEngine(t, store)
	_, err := first.Enroll(ctx, "Ana", "EMP-1", []models.Capture{{Embedding: []float32{0, 0}, Quality: 1}})
	require.NoError(t, err)
	det.push(face(5, 5))
	first.Tick(ctx)
	clock.Set(t0.Add(2 * time.Second))
	det.push(face(5, 5))
	first.Tick(ctx)
	clock.Set(t0.Add(6 * time.Second))
	first.Sweep(ctx)
	require.Len(t, first.RecentRecords(0), 1)

	second, _, _ := newTestEngine(t, store)
	require.NoError(t, second.Load(ctx))
	assert.Len(t, second.Identities(), 1)
	restored := second.RecentRecords(0)
	require.Len(t, restored, 1)
	assert.Equal(t, first.RecentRecords(0)[0].ID, restored[0].ID)
	assert.Equal(t, 2.0, restored[0].DurationSeconds)
}

func TestEnrollmentSurface(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	ana, err := e.Enroll(ctx, "Ana", "EMP-1", []models.Capture{{Embedding: []float32{0, 0}, Quality: 1}})
	require.NoError(t, err)

	n, err := e.Augment(ctx, ana.ID, []models.Capture{{Embedding: []float32{0.2, 0}, Quality: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	matches := e.NearestIdentities([]float32{3, 0}, 5)
	require.Len(t, matches, 1)
	assert.Equal(t, ana.ID, matches[0].IdentityID)

	require.NoError(t, e.RemoveIdentity(ctx, ana.ID))
	assert.Empty(t, e.Identities())

	_, err = e.Enroll(ctx, "Bo", "EMP-2", []models.Capture{{Embedding: []float32{1, 1}, Quality: 1}})
	require.NoError(t, err)
	e.ClearGallery(ctx)
	assert.Empty(t, e.Identities())
}

func TestNewValidatesOptions(t *testing.T) {
	clock := timeutil.NewMockClock(t0)

	_, err := New(testOptions(nil, clock, nil))
	assert.Error(t, err)

	opts := testOptions(&scriptedDetector{}, clock, nil)
	opts.Tracking.Matcher = "psychic"
	_, err = New(opts)
	assert.Error(t, err)
}
