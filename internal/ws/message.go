package ws

import (
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageSnapshotUpdated MessageType = "fleet.snapshot_updated"
	MessageAlertsUpdated   MessageType = "fleet.alerts_updated"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// SnapshotUpdatedData is the payload for fleet.snapshot_updated
// messages. Clients refetch the full tree if the counts interest them;
// the push carries only the headline numbers.
type SnapshotUpdatedData struct {
	Counts      models.RollupCounts    `json:"counts"`
	Activity    models.ActivityWindows `json:"activity"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// AlertsUpdatedData is the payload for fleet.alerts_updated messages.
type AlertsUpdatedData struct {
	Summary *models.AlertSummary `json:"summary"`
}
