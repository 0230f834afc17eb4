package tracking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
)

// Resolver looks up an enrolled identity for a probe embedding.
type Resolver interface {
	Resolve(probe []float32) (models.IdentityMatch, bool)
}

// Config holds the track store tunables.
type Config struct {
	// Timeout is how long a track may go unseen before the sweep evicts it.
	Timeout time.Duration
}

// TrackUpdate reports a track touched by one observation.
type TrackUpdate struct {
	Track models.Track
	IsNew bool
}

// Tracker owns the active tracks. Tracks are kept in insertion order, which
// is the order the matcher scans them in.
type Tracker struct {
	mu      sync.Mutex
	tracks  map[string]*models.Track
	order   []string
	matcher Matcher
	timeout time.Duration
	newID   func() string
}

// NewTracker creates an empty track store.
func NewTracker(cfg Config, matcher Matcher) *Tracker {
	return &Tracker{
		tracks:  make(map[string]*models.Track),
		matcher: matcher,
		timeout: cfg.Timeout,
		newID:   func() string { return uuid.NewString() },
	}
}

// Update applies one tick of observations, in the order given, and returns
// a copy of every track they touched. resolver may be nil.
func (t *Tracker) Update(now time.Time, observations []models.FaceObservation, resolver Resolver) []TrackUpdate {
	if len(observations) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := make([]*models.Track, 0, len(t.order))
	trackEmbs := make([][]float32, 0, len(t.order))
	for _, id := range t.order {
		tr := t.tracks[id]
		current = append(current, tr)
		trackEmbs = append(trackEmbs, tr.Embedding)
	}
	obsEmbs := make([][]float32, len(observations))
	for i, obs := range observations {
		obsEmbs[i] = obs.Embedding
	}

	assign := t.matcher.Assign(obsEmbs, trackEmbs)

	// landed[i] is the track observation i ended up on.
	landed := make([]*models.Track, len(observations))
	updates := make([]TrackUpdate, 0, len(observations))

	for i, obs := range observations {
		var tr *models.Track
		if i < len(assign) {
			switch r := assign[i]; {
			case r >= 0 && r < len(current):
				tr = current[r]
			case r >= len(current) && r-len(current) < i:
				tr = landed[r-len(current)]
			}
		}

		isNew := false
		if tr != nil {
			refresh(tr, now, obs)
		} else {
			tr, isNew = t.open(now, obs, resolver)
		}
		landed[i] = tr
		updates = append(updates, TrackUpdate{Track: tr.Clone(), IsNew: isNew})
	}

	observability.ObservationsProcessed.Add(float64(len(observations)))
	observability.ActiveTracks.Set(float64(len(t.tracks)))
	return updates
}

// open starts a track for an unmatched observation. When the face resolves to
// an identity that already has an active track, that track is continued instead.
func (t *Tracker) open(now time.Time, obs models.FaceObservation, resolver Resolver) (*models.Track, bool) {
	var match models.IdentityMatch
	identified := false
	if resolver != nil {
		match, identified = resolver.Resolve(obs.Embedding)
	}

	if identified {
		if existing, ok := t.tracks[match.IdentityID]; ok {
			refresh(existing, now, obs)
			existing.Confidence = float32(match.Confidence)
			return existing, false
		}
	}

	tr := &models.Track{
		FirstSeenAt: now,
	}
	refresh(tr, now, obs)
	if identified {
		tr.TrackID = match.IdentityID
		tr.IdentityID = match.IdentityID
		tr.IdentityName = match.DisplayName
		tr.IsIdentified = true
		tr.Confidence = float32(match.Confidence)
	} else {
		tr.TrackID = t.newID()
	}

	t.tracks[tr.TrackID] = tr
	t.order = append(t.order, tr.TrackID)
	observability.TracksCreated.WithLabelValues(boolLabel(identified)).Inc()
	return tr, true
}

// refresh replaces the embedding with the latest one; there is no smoothing.
func refresh(tr *models.Track, now time.Time, obs models.FaceObservation) {
	tr.Embedding = append(tr.Embedding[:0:0], obs.Embedding...)
	tr.LastSeenAt = now
	tr.BoundingBox = obs.BoundingBox
	tr.Gender = obs.GenderEstimate.Label
	tr.Age = obs.AgeEstimate
	tr.AgeGroup = models.AgeGroup(obs.AgeEstimate)
}

// Sweep evicts every track unseen for longer than the timeout and returns
// them in store order.
func (t *Tracker) Sweep(now time.Time) []models.Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []models.Track
	kept := t.order[:0]
	for _, id := range t.order {
		tr := t.tracks[id]
		if now.Sub(tr.LastSeenAt) > t.timeout {
			evicted = append(evicted, *tr)
			delete(t.tracks, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept

	if len(evicted) > 0 {
		observability.TracksEvicted.Add(float64(len(evicted)))
	}
	observability.ActiveTracks.Set(float64(len(t.tracks)))
	return evicted
}

// Snapshot returns copies of the active tracks in store order.
func (t *Tracker) Snapshot() []models.Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Track, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.tracks[id].Clone())
	}
	return out
}

// Len returns the number of active tracks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}

// Reset drops every active track without recording them.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = make(map[string]*models.Track)
	t.order = nil
	observability.ActiveTracks.Set(0)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
