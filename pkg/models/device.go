// Package models defines the shared data types for the EIMS fleet core.
package models

import "time"

// DeviceClass categorizes an RFID reader device.
type DeviceClass string

const (
	DeviceClassFixedReader DeviceClass = "fixed-reader"
	DeviceClassHandheld    DeviceClass = "handheld"
)

// DeviceStatus represents the current operational state of a device.
type DeviceStatus string

const (
	StatusLive        DeviceStatus = "LIVE"
	StatusDown        DeviceStatus = "DOWN"
	StatusMaintenance DeviceStatus = "MAINTENANCE"
	StatusWarning     DeviceStatus = "WARNING"
	StatusShutdown    DeviceStatus = "SHUTDOWN"
)

// KnownStatuses lists every status value in the backend contract.
var KnownStatuses = []DeviceStatus{
	StatusLive, StatusDown, StatusMaintenance, StatusWarning, StatusShutdown,
}

// Valid reports whether the status is part of the backend contract.
func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusLive, StatusDown, StatusMaintenance, StatusWarning, StatusShutdown:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat" example:"19.0760"`
	Lng float64 `json:"lng" example:"72.8777"`
}

// Device represents one monitored RFID reader as reported by the
// collector backend. Instances are treated as immutable value objects
// once they are part of a snapshot.
type Device struct {
	ID           string       `json:"id" example:"RDR-MUM-0042"`
	Name         string       `json:"name,omitempty" example:"Lane 3 Gantry Reader"`
	Class        DeviceClass  `json:"device_class" example:"fixed-reader"`
	Vendor       string       `json:"vendor,omitempty" example:"Kathrein"`
	Model        string       `json:"model,omitempty" example:"RRU4"`
	Status       DeviceStatus `json:"status" example:"LIVE"`
	SubStatus    string       `json:"sub_status,omitempty" example:"antenna-degraded"`
	Coordinates  *GeoPoint    `json:"coordinates,omitempty"`
	LocationID   string       `json:"location_id" example:"LOC-MUM-WEH"`
	LocationName string       `json:"location_name,omitempty" example:"Western Express Highway Plaza"`
	Region       string       `json:"region,omitempty" example:"Mumbai"`
	Zone         string       `json:"zone,omitempty" example:"West"`
	Category     string       `json:"category,omitempty" example:"TOLLPLAZA"`

	LastSeen        time.Time `json:"last_seen"`
	LastTransaction time.Time `json:"last_transaction,omitempty"`

	SuccessCount     int64 `json:"success_count"`
	PendingCount     int64 `json:"pending_count"`
	TransactionCount int64 `json:"transaction_count"`

	// HealthScore is derived from the latest metrics sample, 0-100.
	HealthScore int `json:"health_score" example:"97"`
}

// HasCoordinates reports whether the device carries a usable geo position.
func (d *Device) HasCoordinates() bool {
	return d.Coordinates != nil
}

// HealthScore derives a 0-100 health score from a metrics sample. It is
// a pure function: the same sample always yields the same score, and the
// result is clamped to [0,100].
func HealthScore(success, pending, total int64, lastSeen, now time.Time) int {
	if total <= 0 {
		if now.Sub(lastSeen) > 24*time.Hour {
			return 0
		}
		return 50
	}

	score := float64(success) / float64(total) * 100

	// Pending work and silence both drag the score down.
	if pending > 0 {
		score -= float64(pending) / float64(total) * 20
	}
	switch age := now.Sub(lastSeen); {
	case age > 24*time.Hour:
		score -= 50
	case age > time.Hour:
		score -= 15
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}
