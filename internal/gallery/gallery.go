// Package gallery holds the enrolled identities and resolves faces against them.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/attention/internal/embedding"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
	"github.com/your-org/attention/internal/storage"
)

// Store persists the gallery snapshot.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Indexer mirrors the gallery into an external nearest-neighbour index.
type Indexer interface {
	IndexIdentities(ctx context.Context, identities []models.Identity) error
}

// Config holds the gallery thresholds and storage key.
type Config struct {
	// ResolveThreshold is the distance under which a probe resolves to an identity.
	ResolveThreshold float64
	// DuplicateThreshold rejects enrollments this close to an existing reference.
	DuplicateThreshold float64
	// Key is the storage key of the snapshot.
	Key string
}

// Gallery owns the enrolled identities, in enrollment order.
type Gallery struct {
	mu         sync.RWMutex
	identities []*models.Identity
	cfg        Config
	store      Store
	indexer    Indexer
	now        func() time.Time
	newID      func() string
}

// New creates an empty gallery persisted to store. store may be nil.
func New(cfg Config, store Store) *Gallery {
	return &Gallery{
		cfg:   cfg,
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// SetIndexer attaches an index refreshed after every successful persist.
func (g *Gallery) SetIndexer(ix Indexer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.indexer = ix
}

// Load replaces the in-memory gallery with the stored snapshot.
// A missing snapshot leaves the gallery empty.
func (g *Gallery) Load(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	data, err := g.store.Get(ctx, g.cfg.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	identities, err := Decode(data)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.identities = g.identities[:0]
	for i := range identities {
		if identities[i].ID == "" {
			identities[i].ID = g.newID()
		}
		g.identities = append(g.identities, &identities[i])
	}
	observability.GallerySize.Set(float64(len(g.identities)))
	slog.Info("gallery loaded", "identities", len(g.identities))
	return nil
}

// Enroll adds a new identity built from one or more captures.
func (g *Gallery) Enroll(ctx context.Context, displayName, externalRef string, captures []models.Capture) (models.Identity, error) {
	displayName = strings.TrimSpace(displayName)
	externalRef = strings.TrimSpace(externalRef)
	if displayName == "" || externalRef == "" {
		return models.Identity{}, missingFields()
	}
	refs, err := captureEmbeddings(captures, 0)
	if err != nil {
		return models.Identity{}, err
	}
	avg, err := embedding.Mean(refs)
	if err != nil {
		return models.Identity{}, invalidCapture(0, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, existing := range g.identities {
		if existing.ExternalRef == externalRef {
			return models.Identity{}, duplicateRef(externalRef, existing.ID, existing.DisplayName)
		}
	}
	for _, existing := range g.identities {
		if d, ok := minDistance(avg, existing.ReferenceEmbeddings); ok && d < g.cfg.DuplicateThreshold {
			return models.Identity{}, duplicateFace(existing.ID, existing.DisplayName, d)
		}
	}

	best := bestCapture(captures)
	identity := &models.Identity{
		ID:                  g.newID(),
		DisplayName:         displayName,
		ExternalRef:         externalRef,
		ReferenceEmbeddings: refs,
		AverageEmbedding:    avg,
		EnrolledAt:          g.now().UTC(),
		BestPortraitRef:     best.PortraitRef,
		BestQuality:         best.Quality,
	}
	g.identities = append(g.identities, identity)
	observability.GallerySize.Set(float64(len(g.identities)))
	slog.Info("identity enrolled", "id", identity.ID, "name", displayName, "captures", len(refs))

	g.persistLocked(ctx)
	return identity.Clone(), nil
}

// Augment appends reference embeddings to an identity and returns how many
// it now holds.
func (g *Gallery) Augment(ctx context.Context, identityID string, captures []models.Capture) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	identity := g.findLocked(identityID)
	if identity == nil {
		return 0, ErrIdentityNotFound
	}

	dim := len(identity.AverageEmbedding)
	refs, err := captureEmbeddings(captures, dim)
	if err != nil {
		return 0, err
	}

	all := append(append([][]float32(nil), identity.ReferenceEmbeddings...), refs...)
	avg, err := embedding.Mean(all)
	if err != nil {
		return 0, invalidCapture(0, err)
	}
	identity.ReferenceEmbeddings = all
	identity.AverageEmbedding = avg

	if best := bestCapture(captures); best.Quality > identity.BestQuality && best.PortraitRef != "" {
		identity.BestPortraitRef = best.PortraitRef
		identity.BestQuality = best.Quality
	}
	slog.Info("identity augmented", "id", identityID, "added", len(refs), "total", len(all))

	g.persistLocked(ctx)
	return len(all), nil
}

// Remove deletes one identity.
func (g *Gallery) Remove(ctx context.Context, identityID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, identity := range g.identities {
		if identity.ID == identityID {
			g.identities = append(g.identities[:i], g.identities[i+1:]...)
			observability.GallerySize.Set(float64(len(g.identities)))
			slog.Info("identity removed", "id", identityID)
			g.persistLocked(ctx)
			return nil
		}
	}
	return ErrIdentityNotFound
}

// Clear deletes every identity.
func (g *Gallery) Clear(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.identities = nil
	observability.GallerySize.Set(0)
	slog.Info("gallery cleared")
	g.persistLocked(ctx)
}

// Touch records that an identity was just seen. It is written out with the
// next persist.
func (g *Gallery) Touch(identityID string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if identity := g.findLocked(identityID); identity != nil {
		seen := at.UTC()
		identity.LastSeenAt = &seen
	}
}

// Flush writes the current gallery to the store.
func (g *Gallery) Flush(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.persistLocked(ctx)
}

// Get returns a copy of one identity.
func (g *Gallery) Get(identityID string) (models.Identity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if identity := g.findLocked(identityID); identity != nil {
		return identity.Clone(), true
	}
	return models.Identity{}, false
}

// List returns copies of every identity in enrollment order.
func (g *Gallery) List() []models.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked()
}

// Len returns the number of enrolled identities.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.identities)
}

func (g *Gallery) findLocked(id string) *models.Identity {
	for _, identity := range g.identities {
		if identity.ID == id {
			return identity
		}
	}
	return nil
}

func (g *Gallery) snapshotLocked() []models.Identity {
	out := make([]models.Identity, len(g.identities))
	for i, identity := range g.identities {
		out[i] = identity.Clone()
	}
	return out
}

// persistLocked writes the full gallery. Failures are logged; the in-memory
// gallery stays authoritative and the next write carries the whole state.
func (g *Gallery) persistLocked(ctx context.Context) {
	if g.store == nil {
		return
	}
	snapshot := g.snapshotLocked()
	data, err := Encode(snapshot)
	if err == nil {
		err = g.store.Put(ctx, g.cfg.Key, data)
	}
	if err != nil {
		observability.PersistenceFailures.WithLabelValues("gallery").Inc()
		slog.Warn("persist gallery", "error", err)
		return
	}

	if g.indexer != nil {
		if err := g.indexer.IndexIdentities(ctx, snapshot); err != nil {
			slog.Warn("index gallery", "error", err)
		}
	}
}

// captureEmbeddings validates captures and copies their embeddings. A
// non-zero dim requires that length.
func captureEmbeddings(captures []models.Capture, dim int) ([][]float32, error) {
	if len(captures) == 0 {
		return nil, emptyCaptures()
	}
	refs := make([][]float32, 0, len(captures))
	for i, c := range captures {
		if len(c.Embedding) == 0 {
			return nil, invalidCapture(i, embedding.ErrMalformed)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return nil, invalidCapture(i, fmt.Errorf("embedding has %d values, want %d", len(c.Embedding), dim))
		}
		if _, err := embedding.Distance(c.Embedding, c.Embedding); err != nil {
			return nil, invalidCapture(i, err)
		}
		refs = append(refs, append([]float32(nil), c.Embedding...))
	}
	return refs, nil
}

// bestCapture returns the first capture with the highest quality score.
func bestCapture(captures []models.Capture) models.Capture {
	best := captures[0]
	for _, c := range captures[1:] {
		if c.Quality > best.Quality {
			best = c
		}
	}
	return best
}
