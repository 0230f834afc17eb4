package attention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/storage"
)

func record(n int) models.AttentionRecord {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
	return models.AttentionRecord{
		ID:              fmt.Sprintf("rec-%d", n),
		TrackID:         fmt.Sprintf("track-%d", n),
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		DurationSeconds: 2,
		Date:            start.Format(models.DateLayout),
	}
}

func TestHistoryKeepsNewestFiveHundred(t *testing.T) {
	h := NewHistory(500, nil, "")
	for i := 0; i < 600; i++ {
		h.Add(context.Background(), record(i))
	}

	got := h.Records()
	require.Len(t, got, 500)
	assert.Equal(t, "rec-599", got[0].ID)
	assert.Equal(t, "rec-100", got[499].ID)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].StartTime.After(got[i].StartTime), "not newest first at %d", i)
	}
}

func TestHistoryAddBatchPutsLastFirst(t *testing.T) {
	h := NewHistory(3, nil, "")
	h.Add(context.Background(), record(1))
	h.Add(context.Background(), record(2), record(3), record(4))

	var ids []string
	for _, r := range h.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"rec-4", "rec-3", "rec-2"}, ids)
}

func TestHistoryRecent(t *testing.T) {
	h := NewHistory(0, nil, "")
	for i := 0; i < 5; i++ {
		h.Add(context.Background(), record(i))
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "rec-4", recent[0].ID)
	assert.Equal(t, "rec-3", recent[1].ID)
	assert.Len(t, h.Recent(0), 5)
	assert.Len(t, h.Recent(50), 5)
}

func TestHistoryRecordsAreCopies(t *testing.T) {
	h := NewHistory(10, nil, "")
	h.Add(context.Background(), record(1))

	got := h.Records()
	got[0].ID = "mutated"
	assert.Equal(t, "rec-1", h.Records()[0].ID)
}

func TestHistoryPersistsAndLoads(t *testing.T) {
	store := storage.NewMemoryStore()
	h := NewHistory(10, store, "history")
	h.Add(context.Background(), record(1), record(2))

	raw, err := store.Get(context.Background(), "history")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"start_time":"2026-03-01T12:01:00Z"`)

	reloaded := NewHistory(10, store, "history")
	require.NoError(t, reloaded.Load(context.Background()))
	if diff := cmp.Diff(h.Records(), reloaded.Records()); diff != "" {
		t.Errorf("reloaded history mismatch (-want +got):\n%s", diff)
	}

	h.Clear(context.Background())
	assert.Zero(t, h.Len())
	raw, err = store.Get(context.Background(), "history")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestHistoryLoadTruncatesToCap(t *testing.T) {
	store := storage.NewMemoryStore()
	big := NewHistory(10, store, "history")
	for i := 0; i < 10; i++ {
		big.Add(context.Background(), record(i))
	}

	small := NewHistory(4, store, "history")
	require.NoError(t, small.Load(context.Background()))
	got := small.Records()
	require.Len(t, got, 4)
	assert.Equal(t, "rec-9", got[0].ID)
}

func TestHistoryLoadMissing(t *testing.T) {
	h := NewHistory(10, storage.NewMemoryStore(), "history")
	require.NoError(t, h.Load(context.Background()))
	assert.Zero(t, h.Len())
}
