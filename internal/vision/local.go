package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/storage"
)

// FrameSource yields the newest camera frame under a prefix.
type FrameSource interface {
	LatestObject(ctx context.Context, prefix string) (key string, data []byte, err error)
}

// FrameAnalyzer finds faces in a decoded frame.
type FrameAnalyzer interface {
	Analyze(img image.Image, at time.Time) ([]models.FaceObservation, error)
}

// LocalDetector runs the analyzer in-process on the newest frame a capture
// agent uploaded. A frame is analyzed at most once.
type LocalDetector struct {
	source   FrameSource
	analyzer FrameAnalyzer
	prefix   string
	now      func() time.Time

	lastKey string
}

func NewLocalDetector(source FrameSource, analyzer FrameAnalyzer, prefix string) *LocalDetector {
	return &LocalDetector{source: source, analyzer: analyzer, prefix: prefix, now: time.Now}
}

// Detect analyzes the newest frame. No frame, or no new frame since the
// previous call, is an empty result.
func (d *LocalDetector) Detect(ctx context.Context) ([]models.FaceObservation, error) {
	frame, err := d.Next(ctx)
	if err != nil || frame == nil {
		return nil, err
	}
	return d.analyzer.Analyze(frame.Image, frame.CapturedAt)
}

// Frame is one decoded camera frame.
type Frame struct {
	Key        string
	Image      image.Image
	CapturedAt time.Time
}

// Next fetches and decodes the newest unseen frame, or returns nil.
func (d *LocalDetector) Next(ctx context.Context) (*Frame, error) {
	key, data, err := d.source.LatestObject(ctx, d.prefix)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch frame: %w", err)
	}
	if key == d.lastKey {
		return nil, nil
	}
	d.lastKey = key

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", key, err)
	}
	return &Frame{Key: key, Image: img, CapturedAt: d.now()}, nil
}
