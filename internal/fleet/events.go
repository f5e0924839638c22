package fleet

// Topics published after the cache refreshes a key, so downstream
// consumers (websocket push, future notifiers) can react without
// polling the service.
const (
	// TopicSnapshotRefreshed fires after a successful device refresh.
	TopicSnapshotRefreshed = "fleet.snapshot.refreshed"

	// TopicAlertsRefreshed fires after a successful alert-summary refresh.
	TopicAlertsRefreshed = "fleet.alerts.refreshed"
)

// RefreshTopic maps a cache key to the topic announcing its refresh.
// Keys without a downstream audience return "".
func RefreshTopic(key string) string {
	switch key {
	case KeyDevices:
		return TopicSnapshotRefreshed
	case KeyAlerts:
		return TopicAlertsRefreshed
	default:
		return ""
	}
}
