package fleet

import (
	"sync/atomic"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// DeviceSet is one immutable point-in-time copy of the fleet. Consumers
// holding a reference see a consistent view for the lifetime of their
// render, even while a newer set is being installed.
type DeviceSet struct {
	Devices   []models.Device
	FetchedAt time.Time
}

// SetHolder publishes the current DeviceSet by whole-reference atomic
// swap, so readers can never observe a torn mix of old and new records.
type SetHolder struct {
	p atomic.Pointer[DeviceSet]
}

// Store installs a new device set.
func (h *SetHolder) Store(set *DeviceSet) {
	h.p.Store(set)
}

// Load returns the current set, or nil before the first install.
func (h *SetHolder) Load() *DeviceSet {
	return h.p.Load()
}
