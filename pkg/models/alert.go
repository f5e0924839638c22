package models

import "time"

// AlertSeverity ranks alert summaries from the backend.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityMajor    AlertSeverity = "major"
	SeverityMinor    AlertSeverity = "minor"
	SeverityInfo     AlertSeverity = "info"
)

// AlertSummary is the backend's pre-aggregated alert count by severity,
// consumed as an independent cache key.
type AlertSummary struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Counts      map[AlertSeverity]int `json:"counts"`
	Total       int                   `json:"total" example:"7"`
}
