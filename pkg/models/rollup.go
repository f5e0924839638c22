package models

import "time"

// StatusBucket is the coarse rollup bucket a device status folds into.
type StatusBucket string

const (
	BucketActive  StatusBucket = "ACTIVE"
	BucketDown    StatusBucket = "DOWN"
	BucketStandby StatusBucket = "STANDBY"
)

// RollupCounts holds the derived ACTIVE/DOWN/STANDBY counters for one
// aggregation node. Counts are always recomputed from scratch, never
// incrementally patched.
type RollupCounts struct {
	Active  int `json:"active" example:"42"`
	Down    int `json:"down" example:"3"`
	Standby int `json:"standby" example:"5"`
	Total   int `json:"total" example:"50"`
}

// Add folds one bucket into the counts.
func (c *RollupCounts) Add(b StatusBucket) {
	switch b {
	case BucketActive:
		c.Active++
	case BucketDown:
		c.Down++
	case BucketStandby:
		c.Standby++
	}
	c.Total++
}

// Merge accumulates child counts into a parent rollup.
func (c *RollupCounts) Merge(child RollupCounts) {
	c.Active += child.Active
	c.Down += child.Down
	c.Standby += child.Standby
	c.Total += child.Total
}

// UnknownLocationID is the synthetic bucket for devices referencing a
// location the snapshot does not know about.
const UnknownLocationID = "__unknown__"

// LocationRollup is one physical site with its derived counters and
// member devices, ordered by device ID.
type LocationRollup struct {
	ID      string       `json:"id" example:"LOC-MUM-WEH"`
	Name    string       `json:"name" example:"Western Express Highway Plaza"`
	Region  string       `json:"region,omitempty" example:"Mumbai"`
	Zone    string       `json:"zone,omitempty" example:"West"`
	Counts  RollupCounts `json:"counts"`
	Devices []Device     `json:"devices"`
}

// CategoryRollup groups locations of one device category, ordered by
// location ID, with counts rolled up one level higher.
type CategoryRollup struct {
	Name      string           `json:"name" example:"TOLLPLAZA"`
	Counts    RollupCounts     `json:"counts"`
	Locations []LocationRollup `json:"locations"`
}

// ActivityWindows counts devices whose last-seen timestamp falls inside
// the fixed retention windows.
type ActivityWindows struct {
	Last48Hours int `json:"last_48h" example:"48"`
	LastWeek    int `json:"last_1w" example:"49"`
	Last15Days  int `json:"last_15d" example:"50"`
}

// FleetSnapshot is the root aggregate: whole-fleet totals plus the
// category tree. A snapshot is immutable once constructed; updates
// produce a new snapshot so concurrent readers never observe a torn
// rollup.
type FleetSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Counts      RollupCounts     `json:"counts"`
	Activity    ActivityWindows  `json:"activity"`
	Categories  []CategoryRollup `json:"categories"`
}
