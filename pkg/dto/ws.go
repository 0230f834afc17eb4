package dto

import (
	"time"

	"github.com/your-org/attention/internal/models"
)

const (
	WSEventSnapshot = "snapshot"
	WSEventPresence = "presence"
)

// WSEvent is a message pushed to monitoring clients. Snapshot events carry
// Tracks, presence events carry Track.
type WSEvent struct {
	Type   string         `json:"type"`
	At     time.Time      `json:"at"`
	Tracks []models.Track `json:"tracks"`
	Track  *models.Track  `json:"track,omitempty"`
}
