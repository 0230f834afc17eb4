package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/attention/internal/models"
)

// ObservationFeed turns the batches a remote detector publishes into a
// detector the engine can poll. Only the newest batch is kept, and Detect
// hands each batch out at most once.
type ObservationFeed struct {
	consumer *Consumer
	cameraID string

	mu     sync.Mutex
	latest *models.ObservationBatch
}

func NewObservationFeed(consumer *Consumer, cameraID string) *ObservationFeed {
	return &ObservationFeed{consumer: consumer, cameraID: cameraID}
}

// Start subscribes to the camera's batches until ctx is done.
func (f *ObservationFeed) Start(ctx context.Context) error {
	return f.consumer.ConsumeObservations(ctx, f.cameraID, func(_ context.Context, msg jetstream.Msg) error {
		return f.offer(msg.Data())
	})
}

// Detect returns the observations of the newest batch received since the
// previous call, or none.
func (f *ObservationFeed) Detect(ctx context.Context) ([]models.FaceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.latest == nil {
		return nil, nil
	}
	batch := f.latest
	f.latest = nil
	return batch.Observations, nil
}

func (f *ObservationFeed) offer(data []byte) error {
	batch, err := decodeBatch(data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest != nil && batch.CapturedAt.Before(f.latest.CapturedAt) {
		return nil
	}
	f.latest = &batch
	return nil
}

// decodeBatch parses a published batch. Observations without their own
// timestamp take the frame's capture time.
func decodeBatch(data []byte) (models.ObservationBatch, error) {
	var batch models.ObservationBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return models.ObservationBatch{}, fmt.Errorf("decode observations: %w", err)
	}
	for i := range batch.Observations {
		if batch.Observations[i].Timestamp.IsZero() {
			batch.Observations[i].Timestamp = batch.CapturedAt
		}
	}
	return batch, nil
}
