// Package fleet implements the device-status aggregation core: the
// rollup builder, geo-cluster builder, snapshot query layer, and the
// service that keeps them current from the collector feed.
package fleet

import (
	"fmt"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// BucketMap maps each device status to the rollup bucket it folds into.
// The mapping is part of the backend contract and can be overridden via
// the fleet.status_buckets config section.
type BucketMap map[models.DeviceStatus]models.StatusBucket

// DefaultBucketMap returns the contract-default mapping.
func DefaultBucketMap() BucketMap {
	m := make(BucketMap, len(models.KnownStatuses))
	for _, s := range models.KnownStatuses {
		m[s] = defaultBucket(s)
	}
	return m
}

// defaultBucket is the exhaustive status mapping. Adding a status to the
// enum without extending this switch folds it into DOWN.
func defaultBucket(s models.DeviceStatus) models.StatusBucket {
	switch s {
	case models.StatusLive:
		return models.BucketActive
	case models.StatusWarning:
		// Degraded but still passing traffic.
		return models.BucketActive
	case models.StatusMaintenance:
		return models.BucketStandby
	case models.StatusDown:
		return models.BucketDown
	case models.StatusShutdown:
		return models.BucketDown
	default:
		// Fail closed: an unreadable status must not inflate ACTIVE.
		return models.BucketDown
	}
}

// BucketFor returns the rollup bucket for a status. Statuses outside the
// map fold into DOWN.
func (m BucketMap) BucketFor(s models.DeviceStatus) models.StatusBucket {
	if b, ok := m[s]; ok {
		return b
	}
	return models.BucketDown
}

// BucketMapFromConfig applies overrides (status name -> bucket name) on
// top of the default mapping. Unknown bucket names are rejected so a
// config typo cannot silently reroute counts.
func BucketMapFromConfig(overrides map[string]string) (BucketMap, error) {
	m := DefaultBucketMap()
	for status, bucket := range overrides {
		b := models.StatusBucket(bucket)
		switch b {
		case models.BucketActive, models.BucketDown, models.BucketStandby:
			m[models.DeviceStatus(status)] = b
		default:
			return nil, fmt.Errorf("status_buckets: unknown bucket %q for status %q", bucket, status)
		}
	}
	return m, nil
}
