package models

import "time"

// BoundingBox is a face rectangle in frame pixel coordinates.
type BoundingBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// GenderEstimate is the detector's gender guess for one face.
type GenderEstimate struct {
	Label       string  `json:"label"` // male, female, or unknown
	Probability float32 `json:"probability"`
}

// FaceObservation is one face reported by the detector for one tick.
// It is produced fresh every detection tick and never persisted.
type FaceObservation struct {
	Embedding      []float32      `json:"embedding"`
	BoundingBox    BoundingBox    `json:"bounding_box"`
	AgeEstimate    int            `json:"age_estimate"`
	GenderEstimate GenderEstimate `json:"gender_estimate"`
	DetectionScore float32        `json:"detection_score"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ObservationBatch is what a remote detector publishes for one frame.
type ObservationBatch struct {
	CameraID     string            `json:"camera_id"`
	FrameRef     string            `json:"frame_ref,omitempty"`
	CapturedAt   time.Time         `json:"captured_at"`
	Observations []FaceObservation `json:"observations"`
}
