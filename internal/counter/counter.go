// Package counter counts unique visits from track sightings.
package counter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
)

// Config holds the counter windows.
type Config struct {
	// DedupWindow suppresses recounting a track seen again within it.
	DedupWindow time.Duration
	// Retention bounds how long a counted track is remembered.
	Retention time.Duration
	// Location decides when "today" rolls over. Defaults to UTC.
	Location *time.Location
}

// Stats is a snapshot of the counter.
type Stats struct {
	Total   int    `json:"total"`
	Today   int    `json:"today"`
	Day     string `json:"day"`
	Tracked int    `json:"tracked"`
}

// Counter counts a track once per dedup window. It is independent of the
// attention history.
type Counter struct {
	mu      sync.Mutex
	cfg     Config
	counted map[string]time.Time
	total   int
	today   int
	day     string
}

// New creates a counter whose "today" starts on the day of now.
func New(cfg Config, now time.Time) *Counter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Counter{
		cfg:     cfg,
		counted: make(map[string]time.Time),
		day:     now.In(cfg.Location).Format(models.DateLayout),
	}
}

// Observe registers a sighting and reports whether it counted as a new visit.
func (c *Counter) Observe(trackID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.counted[trackID]; ok && now.Sub(last) < c.cfg.DedupWindow {
		return false
	}
	c.counted[trackID] = now
	c.total++
	c.today++
	c.publishLocked()
	return true
}

// Housekeep resets "today" after a day change and forgets tracks counted
// longer than the retention ago.
func (c *Counter) Housekeep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if day := now.In(c.cfg.Location).Format(models.DateLayout); day != c.day {
		slog.Info("people counter day rollover", "previous", c.day, "visits", c.today, "day", day)
		c.day = day
		c.today = 0
	}
	for id, last := range c.counted {
		if now.Sub(last) > c.cfg.Retention {
			delete(c.counted, id)
		}
	}
	c.publishLocked()
}

func (c *Counter) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Total: c.total, Today: c.today, Day: c.day, Tracked: len(c.counted)}
}

// Reset zeroes both counters and forgets every track.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counted = make(map[string]time.Time)
	c.total = 0
	c.today = 0
	c.publishLocked()
}

func (c *Counter) publishLocked() {
	observability.UniqueVisitors.WithLabelValues("total").Set(float64(c.total))
	observability.UniqueVisitors.WithLabelValues("today").Set(float64(c.today))
}
