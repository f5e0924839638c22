package fleet

import (
	"testing"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

func TestDefaultBucketMapping(t *testing.T) {
	tests := []struct {
		status models.DeviceStatus
		want   models.StatusBucket
	}{
		{models.StatusLive, models.BucketActive},
		{models.StatusWarning, models.BucketActive},
		{models.StatusMaintenance, models.BucketStandby},
		{models.StatusDown, models.BucketDown},
		{models.StatusShutdown, models.BucketDown},
		{models.DeviceStatus("BOGUS"), models.BucketDown},
		{models.DeviceStatus(""), models.BucketDown},
	}

	m := DefaultBucketMap()
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := m.BucketFor(tt.status); got != tt.want {
				t.Errorf("BucketFor(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestBucketMapFromConfig(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		m, err := BucketMapFromConfig(map[string]string{
			"WARNING": string(models.BucketStandby),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.BucketFor(models.StatusWarning); got != models.BucketStandby {
			t.Errorf("WARNING = %v, want STANDBY after override", got)
		}
		// Untouched statuses keep the default.
		if got := m.BucketFor(models.StatusLive); got != models.BucketActive {
			t.Errorf("LIVE = %v, want ACTIVE", got)
		}
	})

	t.Run("unknown bucket rejected", func(t *testing.T) {
		if _, err := BucketMapFromConfig(map[string]string{"LIVE": "GREEN"}); err == nil {
			t.Fatal("expected error for unknown bucket name")
		}
	})

	t.Run("no overrides", func(t *testing.T) {
		m, err := BucketMapFromConfig(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m) != len(models.KnownStatuses) {
			t.Errorf("map has %d entries, want %d", len(m), len(models.KnownStatuses))
		}
	})
}
