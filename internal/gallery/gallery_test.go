package gallery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/storage"
)

var enrolledAt = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func newTestGallery(store Store) *Gallery {
	g := New(Config{ResolveThreshold: 0.6, DuplicateThreshold: 0.5, Key: "gallery"}, store)
	n := 0
	g.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	g.now = func() time.Time { return enrolledAt }
	return g
}

func capture(quality float64, ref string, v ...float32) models.Capture {
	return models.Capture{Embedding: v, Quality: quality, PortraitRef: ref}
}

func TestEnroll(t *testing.T) {
	g := newTestGallery(nil)

	identity, err := g.Enroll(context.Background(), " Ana ", "EMP-1", []models.Capture{
		capture(0.4, "a.jpg", 0, 0),
		capture(0.9, "b.jpg", 2, 4),
		capture(0.7, "c.jpg", 1, 2),
	})

	require.NoError(t, err)
	assert.Equal(t, "id-1", identity.ID)
	assert.Equal(t, "Ana", identity.DisplayName)
	assert.Equal(t, "EMP-1", identity.ExternalRef)
	assert.Len(t, identity.ReferenceEmbeddings, 3)
	assert.Equal(t, []float32{1, 2}, identity.AverageEmbedding)
	assert.Equal(t, "b.jpg", identity.BestPortraitRef)
	assert.Equal(t, enrolledAt, identity.EnrolledAt)
	assert.Equal(t, 1, g.Len())
}

func TestEnrollRejections(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		ref      string
		captures []models.Capture
		reason   Reason
	}{
		{"missing name", "", "EMP-9", []models.Capture{capture(1, "", 9, 9)}, ReasonMissingFields},
		{"missing ref", "Bo", "  ", []models.Capture{capture(1, "", 9, 9)}, ReasonMissingFields},
		{"no captures", "Bo", "EMP-9", nil, ReasonEmptyCaptures},
		{"empty embedding", "Bo", "EMP-9", []models.Capture{capture(1, "")}, ReasonInvalidCapture},
		{"ragged captures", "Bo", "EMP-9", []models.Capture{capture(1, "", 9, 9), capture(1, "", 9)}, ReasonInvalidCapture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGallery(nil)
			_, err := g.Enroll(context.Background(), tt.display, tt.ref, tt.captures)

			var enrollErr *EnrollError
			require.True(t, errors.As(err, &enrollErr))
			assert.Equal(t, tt.reason, enrollErr.Reason)
			assert.NotEmpty(t, enrollErr.Error())
			assert.Zero(t, g.Len())
		})
	}
}

func TestEnrollDuplicateRefLeavesGalleryUnchanged(t *testing.T) {
	g := newTestGallery(nil)
	_, err := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	require.NoError(t, err)
	before := g.List()

	_, err = g.Enroll(context.Background(), "Other", "EMP-1", []models.Capture{capture(1, "", 9, 9)})

	var enrollErr *EnrollError
	require.ErrorAs(t, err, &enrollErr)
	assert.Equal(t, ReasonDuplicateRef, enrollErr.Reason)
	assert.Equal(t, "id-1", enrollErr.ConflictID)
	assert.Equal(t, before, g.List())
}

func TestEnrollDuplicateFaceNamesConflict(t *testing.T) {
	g := newTestGallery(nil)
	_, err := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{
		capture(1, "", 0, 0),
		capture(1, "", 4, 0),
	})
	require.NoError(t, err)

	// Average of the new captures is 0.3 from Ana's first reference.
	_, err = g.Enroll(context.Background(), "Bea", "EMP-2", []models.Capture{capture(1, "", 0.3, 0)})

	var enrollErr *EnrollError
	require.ErrorAs(t, err, &enrollErr)
	assert.Equal(t, ReasonDuplicateFace, enrollErr.Reason)
	assert.Equal(t, "id-1", enrollErr.ConflictID)
	assert.Equal(t, "Ana", enrollErr.ConflictName)
	assert.Contains(t, enrollErr.Error(), "Ana")
	assert.Equal(t, 1, g.Len())
}

func TestAugment(t *testing.T) {
	g := newTestGallery(nil)
	identity, err := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(0.5, "a.jpg", 0, 0)})
	require.NoError(t, err)

	n, err := g.Augment(context.Background(), identity.ID, []models.Capture{
		capture(0.9, "b.jpg", 2, 2),
		capture(0.1, "c.jpg", 4, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, ok := g.Get(identity.ID)
	require.True(t, ok)
	assert.Equal(t, []float32{2, 2}, got.AverageEmbedding)
	assert.Equal(t, "b.jpg", got.BestPortraitRef)

	n, err = g.Augment(context.Background(), identity.ID, []models.Capture{capture(0.2, "d.jpg", 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	got, _ = g.Get(identity.ID)
	assert.Equal(t, "b.jpg", got.BestPortraitRef)
}

func TestAugmentErrors(t *testing.T) {
	g := newTestGallery(nil)
	identity, err := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	require.NoError(t, err)

	_, err = g.Augment(context.Background(), "missing", []models.Capture{capture(1, "", 1, 1)})
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	_, err = g.Augment(context.Background(), identity.ID, nil)
	var enrollErr *EnrollError
	require.ErrorAs(t, err, &enrollErr)
	assert.Equal(t, ReasonEmptyCaptures, enrollErr.Reason)

	_, err = g.Augment(context.Background(), identity.ID, []models.Capture{capture(1, "", 1, 1, 1)})
	require.ErrorAs(t, err, &enrollErr)
	assert.Equal(t, ReasonInvalidCapture, enrollErr.Reason)

	got, _ := g.Get(identity.ID)
	assert.Len(t, got.ReferenceEmbeddings, 1)
}

func TestRemoveAndClear(t *testing.T) {
	g := newTestGallery(nil)
	a, _ := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	_, _ = g.Enroll(context.Background(), "Bea", "EMP-2", []models.Capture{capture(1, "", 9, 9)})

	require.NoError(t, g.Remove(context.Background(), a.ID))
	assert.ErrorIs(t, g.Remove(context.Background(), a.ID), ErrIdentityNotFound)
	assert.Equal(t, 1, g.Len())

	g.Clear(context.Background())
	assert.Zero(t, g.Len())
	assert.Empty(t, g.List())
}

func TestResolveUsesClosestReference(t *testing.T) {
	g := newTestGallery(nil)
	_, _ = g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{
		capture(1, "", 0, 0),
		capture(1, "", 10, 0),
	})
	_, _ = g.Enroll(context.Background(), "Bea", "EMP-2", []models.Capture{capture(1, "", 20, 0)})

	// Far from Ana's average (5,0) but close to her second capture.
	match, ok := g.Resolve([]float32{9.8, 0})
	require.True(t, ok)
	assert.Equal(t, "id-1", match.IdentityID)
	assert.Equal(t, "Ana", match.DisplayName)
	assert.InDelta(t, 0.2, match.Distance, 1e-5)
	assert.InDelta(t, 0.8, match.Confidence, 1e-5)

	match, ok = g.Resolve([]float32{19.5, 0})
	require.True(t, ok)
	assert.Equal(t, "id-2", match.IdentityID)

	_, ok = g.Resolve([]float32{15, 0})
	assert.False(t, ok)

	_, ok = g.Resolve([]float32{1, 2, 3})
	assert.False(t, ok)
}

func TestResolveThresholdIsExclusive(t *testing.T) {
	g := newTestGallery(nil)
	_, _ = g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})

	_, ok := g.Resolve([]float32{0.6, 0})
	assert.False(t, ok)
	_, ok = g.Resolve([]float32{0.59, 0})
	assert.True(t, ok)
}

func TestNearest(t *testing.T) {
	g := newTestGallery(nil)
	_, _ = g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	_, _ = g.Enroll(context.Background(), "Bea", "EMP-2", []models.Capture{capture(1, "", 5, 0)})
	_, _ = g.Enroll(context.Background(), "Cy", "EMP-3", []models.Capture{capture(1, "", 2, 0)})

	got := g.Nearest([]float32{4, 0}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Bea", got[0].DisplayName)
	assert.Equal(t, "Cy", got[1].DisplayName)
}

func TestMutationsPersistAndLoad(t *testing.T) {
	store := storage.NewMemoryStore()
	g := newTestGallery(store)
	a, err := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	require.NoError(t, err)
	_, err = g.Augment(context.Background(), a.ID, []models.Capture{capture(1, "", 0.2, 0.2)})
	require.NoError(t, err)

	reloaded := newTestGallery(store)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, g.List(), reloaded.List())
}

func TestLoadMissingSnapshot(t *testing.T) {
	g := newTestGallery(storage.NewMemoryStore())
	require.NoError(t, g.Load(context.Background()))
	assert.Zero(t, g.Len())
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingStore) Put(context.Context, string, []byte) error  { return errors.New("disk gone") }

func TestPersistenceFailureKeepsMemoryAuthoritative(t *testing.T) {
	g := newTestGallery(failingStore{})

	_, err := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	assert.Error(t, g.Load(context.Background()))
	assert.Equal(t, 1, g.Len())
}

type recordingIndexer struct {
	calls [][]models.Identity
}

func (r *recordingIndexer) IndexIdentities(_ context.Context, identities []models.Identity) error {
	r.calls = append(r.calls, identities)
	return nil
}

func TestIndexerRefreshedAfterPersist(t *testing.T) {
	g := newTestGallery(storage.NewMemoryStore())
	ix := &recordingIndexer{}
	g.SetIndexer(ix)

	_, _ = g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	g.Clear(context.Background())

	require.Len(t, ix.calls, 2)
	assert.Len(t, ix.calls[0], 1)
	assert.Empty(t, ix.calls[1])
}

func TestTouchSetsLastSeen(t *testing.T) {
	g := newTestGallery(nil)
	a, _ := g.Enroll(context.Background(), "Ana", "EMP-1", []models.Capture{capture(1, "", 0, 0)})
	seen := enrolledAt.Add(time.Hour)

	g.Touch(a.ID, seen)

	got, _ := g.Get(a.ID)
	require.NotNil(t, got.LastSeenAt)
	assert.Equal(t, seen, *got.LastSeenAt)
}
