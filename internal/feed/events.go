package feed

// Invalidation topics published on the event bus.
const (
	TopicDeviceMetrics = "device.metrics"
	TopicAlertsSummary = "alerts.summary"
)

// Push-channel message types recognized on the wire. Anything else is
// ignored for forward compatibility.
const (
	msgTypeDeviceMetrics = "device-metrics"
	msgTypeAlertsSummary = "alerts-summary"
)

// pushMessage is the backend push-channel envelope.
type pushMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
