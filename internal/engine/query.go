package engine

import (
	"context"

	"github.com/your-org/attention/internal/attention"
	"github.com/your-org/attention/internal/counter"
	"github.com/your-org/attention/internal/models"
)

// Snapshot returns copies of the active tracks.
func (e *Engine) Snapshot() []models.Track {
	return e.tracker.Snapshot()
}

func (e *Engine) CounterStats() counter.Stats {
	return e.counter.Stats()
}

// ResetCounter zeroes the people counter.
func (e *Engine) ResetCounter() {
	e.counter.Reset()
}

// Today is the current calendar day in the engine's timezone.
func (e *Engine) Today() string {
	return e.clock.Now().In(e.loc).Format(models.DateLayout)
}

// DailySummary summarises one day; an empty date means today.
func (e *Engine) DailySummary(date string) models.DailySummary {
	return attention.DailySummary(e.history.Records(), e.dateOrToday(date))
}

// TopAttentionGetters ranks the subjects of one day; an empty date means today.
func (e *Engine) TopAttentionGetters(date string, limit int) []models.AttentionGetter {
	return attention.TopAttentionGetters(e.history.Records(), e.dateOrToday(date), limit)
}

func (e *Engine) RecordsForIdentity(identityID string) []models.AttentionRecord {
	return attention.RecordsForIdentity(e.history.Records(), identityID)
}

func (e *Engine) RecentRecords(n int) []models.AttentionRecord {
	return e.history.Recent(n)
}

// Dates lists the days with attention records, newest first.
func (e *Engine) Dates() []string {
	return attention.Dates(e.history.Records())
}

func (e *Engine) ClearHistory(ctx context.Context) {
	e.history.Clear(ctx)
}

func (e *Engine) dateOrToday(date string) string {
	if date == "" {
		return e.Today()
	}
	return date
}

// Enroll adds an identity. Rejections are *gallery.EnrollError.
func (e *Engine) Enroll(ctx context.Context, displayName, externalRef string, captures []models.Capture) (models.Identity, error) {
	return e.gallery.Enroll(ctx, displayName, externalRef, captures)
}

// Augment adds captures to an identity and returns its reference count.
func (e *Engine) Augment(ctx context.Context, identityID string, captures []models.Capture) (int, error) {
	return e.gallery.Augment(ctx, identityID, captures)
}

func (e *Engine) RemoveIdentity(ctx context.Context, identityID string) error {
	return e.gallery.Remove(ctx, identityID)
}

func (e *Engine) ClearGallery(ctx context.Context) {
	e.gallery.Clear(ctx)
}

func (e *Engine) Identities() []models.Identity {
	return e.gallery.List()
}

func (e *Engine) Identity(identityID string) (models.Identity, bool) {
	return e.gallery.Get(identityID)
}

// NearestIdentities ranks enrolled identities by distance to probe,
// regardless of the resolve threshold.
func (e *Engine) NearestIdentities(probe []float32, limit int) []models.IdentityMatch {
	return e.gallery.Nearest(probe, limit)
}
