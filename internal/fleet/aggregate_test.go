package fleet

import (
	"testing"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
	"go.uber.org/zap"
)

func testDevice(id, locID, locName, category string, status models.DeviceStatus) models.Device {
	return models.Device{
		ID:           id,
		Status:       status,
		LocationID:   locID,
		LocationName: locName,
		Category:     category,
	}
}

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(nil, zap.NewNop())
}

func TestAggregateLocationCounts(t *testing.T) {
	agg := newTestAggregator(t)
	devices := []models.Device{
		testDevice("d1", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
		testDevice("d2", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
		testDevice("d3", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusDown),
	}

	snap := agg.Aggregate(devices)

	if len(snap.Categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(snap.Categories))
	}
	cat := snap.Categories[0]
	if cat.Name != "TOLLPLAZA" {
		t.Errorf("category name = %q, want TOLLPLAZA", cat.Name)
	}
	if len(cat.Locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(cat.Locations))
	}

	loc := cat.Locations[0]
	want := models.RollupCounts{Active: 2, Down: 1, Standby: 0, Total: 3}
	if loc.Counts != want {
		t.Errorf("location counts = %+v, want %+v", loc.Counts, want)
	}
	if snap.Counts != want {
		t.Errorf("fleet counts = %+v, want %+v", snap.Counts, want)
	}
}

func TestAggregateEmptyList(t *testing.T) {
	agg := newTestAggregator(t)
	snap := agg.Aggregate(nil)

	if snap.Counts.Total != 0 {
		t.Errorf("total = %d, want 0", snap.Counts.Total)
	}
	if len(snap.Categories) != 0 {
		t.Errorf("expected no categories, got %d", len(snap.Categories))
	}
	if snap.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set even for an empty snapshot")
	}
}

func TestAggregateUnknownLocation(t *testing.T) {
	agg := newTestAggregator(t)
	devices := []models.Device{
		testDevice("d1", "", "", "TOLLPLAZA", models.StatusLive),
		testDevice("d2", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
	}

	snap := agg.Aggregate(devices)

	if snap.Counts.Total != 2 {
		t.Fatalf("total = %d, want 2: unknown-location devices must still count", snap.Counts.Total)
	}

	var found bool
	for _, loc := range snap.Categories[0].Locations {
		if loc.ID == models.UnknownLocationID {
			found = true
			if loc.Name != "Unknown" {
				t.Errorf("unknown location name = %q, want Unknown", loc.Name)
			}
			if loc.Counts.Total != 1 {
				t.Errorf("unknown location total = %d, want 1", loc.Counts.Total)
			}
		}
	}
	if !found {
		t.Error("expected a synthetic unknown location rollup")
	}
}

func TestAggregateUncategorized(t *testing.T) {
	agg := newTestAggregator(t)
	devices := []models.Device{
		testDevice("d1", "loc-a", "Plaza A", "", models.StatusLive),
	}

	snap := agg.Aggregate(devices)
	if len(snap.Categories) != 1 || snap.Categories[0].Name != uncategorized {
		t.Fatalf("expected single %s category, got %+v", uncategorized, snap.Categories)
	}
}

func TestAggregateMultiCategoryRollup(t *testing.T) {
	agg := newTestAggregator(t)
	devices := []models.Device{
		testDevice("d1", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
		testDevice("d2", "loc-b", "Depot B", "WAREHOUSE", models.StatusMaintenance),
		testDevice("d3", "loc-b", "Depot B", "WAREHOUSE", models.StatusShutdown),
		testDevice("d4", "loc-c", "Plaza C", "TOLLPLAZA", models.StatusWarning),
	}

	snap := agg.Aggregate(devices)

	// Categories come back sorted.
	if snap.Categories[0].Name != "TOLLPLAZA" || snap.Categories[1].Name != "WAREHOUSE" {
		t.Fatalf("unexpected category order: %q, %q", snap.Categories[0].Name, snap.Categories[1].Name)
	}

	// WARNING folds into ACTIVE, MAINTENANCE into STANDBY, SHUTDOWN into DOWN.
	want := models.RollupCounts{Active: 2, Down: 1, Standby: 1, Total: 4}
	if snap.Counts != want {
		t.Errorf("fleet counts = %+v, want %+v", snap.Counts, want)
	}

	// Each category's counts equal the sum of its locations.
	for _, cat := range snap.Categories {
		var sum models.RollupCounts
		for _, loc := range cat.Locations {
			sum.Merge(loc.Counts)
		}
		if sum != cat.Counts {
			t.Errorf("category %s counts %+v != location sum %+v", cat.Name, cat.Counts, sum)
		}
	}
}

func TestAggregateDeterministic(t *testing.T) {
	agg := newTestAggregator(t)
	devices := []models.Device{
		testDevice("d2", "loc-b", "Plaza B", "TOLLPLAZA", models.StatusDown),
		testDevice("d1", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
	}

	first := agg.fold(devices)
	second := agg.fold(devices)

	if first.Counts != second.Counts {
		t.Errorf("counts differ across passes: %+v vs %+v", first.Counts, second.Counts)
	}
	for i := range first.Categories {
		if first.Categories[i].Name != second.Categories[i].Name {
			t.Errorf("category order differs across passes")
		}
	}
	// Devices within a location come back ordered by ID.
	loc := first.Categories[0].Locations[0]
	if loc.Devices[0].ID != "d1" {
		t.Errorf("devices not ordered by ID: first is %s", loc.Devices[0].ID)
	}
}

func TestAggregateMemoizesByIdentity(t *testing.T) {
	agg := newTestAggregator(t)
	devices := []models.Device{
		testDevice("d1", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
	}

	first := agg.Aggregate(devices)
	second := agg.Aggregate(devices)
	if first != second {
		t.Error("same input slice should return the memoized snapshot")
	}

	other := []models.Device{
		testDevice("d1", "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive),
	}
	third := agg.Aggregate(other)
	if third == first {
		t.Error("a different input slice must produce a new snapshot")
	}
}

func TestAggregateActivityWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	agg := newTestAggregator(t)
	agg.now = func() time.Time { return now }

	mk := func(id string, seen time.Time) models.Device {
		d := testDevice(id, "loc-a", "Plaza A", "TOLLPLAZA", models.StatusLive)
		d.LastSeen = seen
		return d
	}
	devices := []models.Device{
		mk("d1", now.Add(-time.Hour)),        // all three windows
		mk("d2", now.Add(-3*24*time.Hour)),   // week + 15 days
		mk("d3", now.Add(-10*24*time.Hour)),  // 15 days only
		mk("d4", now.Add(-30*24*time.Hour)),  // outside all windows
		mk("d5", time.Time{}),                // never seen
		mk("d6", now.Add(2*time.Hour)),       // future timestamp, skipped
	}

	snap := agg.Aggregate(devices)

	if got := snap.Activity.Last48Hours; got != 1 {
		t.Errorf("Last48Hours = %d, want 1", got)
	}
	if got := snap.Activity.LastWeek; got != 2 {
		t.Errorf("LastWeek = %d, want 2", got)
	}
	if got := snap.Activity.Last15Days; got != 3 {
		t.Errorf("Last15Days = %d, want 3", got)
	}
}

func TestAggregateSumInvariant(t *testing.T) {
	agg := newTestAggregator(t)

	statuses := []models.DeviceStatus{
		models.StatusLive, models.StatusDown, models.StatusMaintenance,
		models.StatusWarning, models.StatusShutdown, models.DeviceStatus("GARBAGE"),
	}
	var devices []models.Device
	for i, s := range statuses {
		for j := 0; j <= i; j++ {
			devices = append(devices, testDevice(
				string(rune('a'+i))+string(rune('0'+j)),
				"loc", "Plaza", "CAT", s,
			))
		}
	}

	snap := agg.Aggregate(devices)

	if snap.Counts.Total != len(devices) {
		t.Errorf("total = %d, want %d", snap.Counts.Total, len(devices))
	}
	if sum := snap.Counts.Active + snap.Counts.Down + snap.Counts.Standby; sum != snap.Counts.Total {
		t.Errorf("bucket sum %d != total %d", sum, snap.Counts.Total)
	}
}
