// Package attention turns evicted tracks into attention records and answers
// reporting queries over them.
package attention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
	"github.com/your-org/attention/internal/storage"
)

// DefaultMaxRecords bounds the history when no limit is configured.
const DefaultMaxRecords = 500

// History is a bounded list of attention records, newest first.
type History struct {
	mu      sync.RWMutex
	records []models.AttentionRecord
	max     int
	store   storage.KV
	key     string
}

// NewHistory creates an empty history holding at most limit records.
// store may be nil for a history that is never persisted.
func NewHistory(limit int, store storage.KV, key string) *History {
	if limit <= 0 {
		limit = DefaultMaxRecords
	}
	return &History{max: limit, store: store, key: key}
}

// Add prepends records in the order given, so the last one ends up first,
// drops the oldest beyond the cap and persists the result.
func (h *History) Add(ctx context.Context, records ...models.AttentionRecord) {
	if len(records) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]models.AttentionRecord, 0, min(len(records)+len(h.records), h.max))
	for i := len(records) - 1; i >= 0 && len(next) < h.max; i-- {
		next = append(next, records[i])
	}
	for _, r := range h.records {
		if len(next) == h.max {
			break
		}
		next = append(next, r)
	}
	h.records = next
	h.persistLocked(ctx)
}

// Records returns a copy of the whole history, newest first.
func (h *History) Records() []models.AttentionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.AttentionRecord(nil), h.records...)
}

// Recent returns up to n of the newest records.
func (h *History) Recent(n int) []models.AttentionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	return append([]models.AttentionRecord(nil), h.records[:n]...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Clear drops every record and persists the empty history.
func (h *History) Clear(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
	h.persistLocked(ctx)
	slog.Info("attention history cleared")
}

// Load replaces the history with the stored one. A missing snapshot leaves
// it empty; a stored list longer than the cap is truncated.
func (h *History) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	data, err := h.store.Get(ctx, h.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var records []models.AttentionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	if len(records) > h.max {
		records = records[:h.max]
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = records
	slog.Info("attention history loaded", "records", len(records))
	return nil
}

func (h *History) persistLocked(ctx context.Context) {
	if h.store == nil {
		return
	}
	records := h.records
	if records == nil {
		records = []models.AttentionRecord{}
	}
	data, err := json.Marshal(records)
	if err == nil {
		err = h.store.Put(ctx, h.key, data)
	}
	if err != nil {
		observability.PersistenceFailures.WithLabelValues("history").Inc()
		slog.Warn("persist history", "error", err)
	}
}
