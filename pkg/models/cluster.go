package models

// ClusterMode selects how map markers are derived from the device set.
type ClusterMode string

const (
	ClusterModeIndividual ClusterMode = "individual"
	ClusterModeClustered  ClusterMode = "clustered"
)

// ClusterTier is the severity color tier of a map marker.
type ClusterTier string

const (
	TierCritical ClusterTier = "critical"
	TierHealthy  ClusterTier = "healthy"
	TierWarning  ClusterTier = "warning"
)

// GeoCluster is a derived, non-persistent map marker: either a single
// device pin or a regional cluster with centroid and status mix.
type GeoCluster struct {
	// DeviceID is set for individual markers, empty for regional clusters.
	DeviceID string `json:"device_id,omitempty" example:"RDR-MUM-0042"`
	Region   string `json:"region,omitempty" example:"Mumbai"`

	Centroid  GeoPoint             `json:"centroid"`
	DeviceIDs []string             `json:"device_ids,omitempty"`
	StatusMix map[DeviceStatus]int `json:"status_mix,omitempty"`
	Tier      ClusterTier          `json:"tier" example:"healthy"`
}
