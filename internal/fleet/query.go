package fleet

import (
	"sort"
	"strings"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// DefaultPageSize is used when a surface does not request its own size.
const DefaultPageSize = 50

// MaxPageSize caps per-request page sizes.
const MaxPageSize = 500

// Filter holds the active filter predicates. All non-zero predicates are
// combined with AND. Missing device fields never match a non-empty
// predicate (fail closed).
type Filter struct {
	Search  string
	Status  models.DeviceStatus
	Regions []string
	Vendors []string
	Classes []models.DeviceClass

	MinHealth *int
	MaxHealth *int

	SeenAfter  *time.Time
	SeenBefore *time.Time
}

// Match reports whether the device satisfies every active predicate.
func (f *Filter) Match(d *models.Device) bool {
	if f.Search != "" && !matchSearch(d, f.Search) {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if len(f.Regions) > 0 && !containsFold(f.Regions, d.Region) {
		return false
	}
	if len(f.Vendors) > 0 && !containsFold(f.Vendors, d.Vendor) {
		return false
	}
	if len(f.Classes) > 0 {
		found := false
		for _, c := range f.Classes {
			if d.Class == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinHealth != nil && d.HealthScore < *f.MinHealth {
		return false
	}
	if f.MaxHealth != nil && d.HealthScore > *f.MaxHealth {
		return false
	}
	if f.SeenAfter != nil && (d.LastSeen.IsZero() || d.LastSeen.Before(*f.SeenAfter)) {
		return false
	}
	if f.SeenBefore != nil && (d.LastSeen.IsZero() || d.LastSeen.After(*f.SeenBefore)) {
		return false
	}
	return true
}

// matchSearch does a case-insensitive substring match over the fixed
// searchable field set. Empty fields are skipped, so a device with no
// populated fields never matches.
func matchSearch(d *models.Device, needle string) bool {
	needle = strings.ToLower(needle)
	for _, field := range []string{d.ID, d.Name, d.LocationName, d.Region, d.Vendor, d.Model} {
		if field == "" {
			continue
		}
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// containsFold reports whether set contains v, case-insensitively.
// An empty v never matches a non-empty set.
func containsFold(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// SortField selects the single sort column.
type SortField string

const (
	SortByID       SortField = "id"
	SortByName     SortField = "name"
	SortByStatus   SortField = "status"
	SortByRegion   SortField = "region"
	SortByVendor   SortField = "vendor"
	SortByHealth   SortField = "health"
	SortByLastSeen SortField = "last_seen"
)

// Sort describes the requested ordering.
type Sort struct {
	Field      SortField
	Descending bool
}

// Page describes the requested slice of the result set. Number is
// 1-based.
type Page struct {
	Number int
	Size   int
}

// Result is one consistent page of the filtered device list.
type Result struct {
	Items      []models.Device `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageCount  int             `json:"page_count"`
}

// Query filters, sorts, and paginates the device list. It is pure: the
// input slice is never mutated, and the same inputs always yield the
// same result. Out-of-range pages return an empty item list with the
// correct total count.
func Query(devices []models.Device, f Filter, s Sort, p Page) Result {
	filtered := make([]models.Device, 0, len(devices))
	for i := range devices {
		if f.Match(&devices[i]) {
			filtered = append(filtered, devices[i])
		}
	}

	sortDevices(filtered, s)

	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}

	total := len(filtered)
	pageCount := (total + p.Size - 1) / p.Size

	res := Result{
		TotalCount: total,
		Page:       p.Number,
		PageCount:  pageCount,
		Items:      []models.Device{},
	}

	if p.Number < 1 {
		return res
	}
	start := (p.Number - 1) * p.Size
	if start >= total {
		return res
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	res.Items = filtered[start:end]
	return res
}

// sortDevices stable-sorts in place. String fields compare
// case-normalized; missing values sort as the lowest value ascending.
func sortDevices(devices []models.Device, s Sort) {
	if s.Field == "" {
		s.Field = SortByID
	}

	less := func(a, b *models.Device) bool {
		switch s.Field {
		case SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortByStatus:
			return a.Status < b.Status
		case SortByRegion:
			return strings.ToLower(a.Region) < strings.ToLower(b.Region)
		case SortByVendor:
			return strings.ToLower(a.Vendor) < strings.ToLower(b.Vendor)
		case SortByHealth:
			return a.HealthScore < b.HealthScore
		case SortByLastSeen:
			return a.LastSeen.Before(b.LastSeen)
		default:
			return a.ID < b.ID
		}
	}

	sort.SliceStable(devices, func(i, j int) bool {
		if s.Descending {
			return less(&devices[j], &devices[i])
		}
		return less(&devices[i], &devices[j])
	})
}

// ParseSortField validates a sort query parameter.
func ParseSortField(v string) (SortField, bool) {
	switch SortField(v) {
	case SortByID, SortByName, SortByStatus, SortByRegion, SortByVendor, SortByHealth, SortByLastSeen:
		return SortField(v), true
	case "":
		return SortByID, true
	}
	return "", false
}
