package fleet

import (
	"sort"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// regionUnknown groups mappable devices that report no region.
const regionUnknown = "Unknown"

// BuildClusters derives map markers from the device set. Devices without
// coordinates are excluded, not errored. The result is fully recomputed
// on every call and is deterministic: markers are ordered by device ID
// (individual) or region name (clustered).
func BuildClusters(devices []models.Device, mode models.ClusterMode) []models.GeoCluster {
	clusterBuilds.WithLabelValues(string(mode)).Inc()

	if mode == models.ClusterModeClustered {
		return buildRegional(devices)
	}
	return buildIndividual(devices)
}

func buildIndividual(devices []models.Device) []models.GeoCluster {
	out := make([]models.GeoCluster, 0, len(devices))
	for _, d := range devices {
		if !d.HasCoordinates() {
			continue
		}
		out = append(out, models.GeoCluster{
			DeviceID:  d.ID,
			Region:    d.Region,
			Centroid:  *d.Coordinates,
			StatusMix: map[models.DeviceStatus]int{d.Status: 1},
			Tier:      tierFor(map[models.DeviceStatus]int{d.Status: 1}, 1),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func buildRegional(devices []models.Device) []models.GeoCluster {
	type acc struct {
		sumLat, sumLng float64
		ids            []string
		mix            map[models.DeviceStatus]int
	}
	regions := make(map[string]*acc)

	for _, d := range devices {
		if !d.HasCoordinates() {
			continue
		}
		region := d.Region
		if region == "" {
			region = regionUnknown
		}
		a, ok := regions[region]
		if !ok {
			a = &acc{mix: make(map[models.DeviceStatus]int)}
			regions[region] = a
		}
		a.sumLat += d.Coordinates.Lat
		a.sumLng += d.Coordinates.Lng
		a.ids = append(a.ids, d.ID)
		a.mix[d.Status]++
	}

	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.GeoCluster, 0, len(names))
	for _, name := range names {
		a := regions[name]
		n := len(a.ids)
		sort.Strings(a.ids)
		out = append(out, models.GeoCluster{
			Region: name,
			Centroid: models.GeoPoint{
				Lat: a.sumLat / float64(n),
				Lng: a.sumLng / float64(n),
			},
			DeviceIDs: a.ids,
			StatusMix: a.mix,
			Tier:      tierFor(a.mix, n),
		})
	}
	return out
}

// tierFor maps a status mix to its severity tier. The precedence is
// total: any hard-down member makes the cluster critical; otherwise a
// LIVE ratio above 90% is healthy; everything else is warning.
func tierFor(mix map[models.DeviceStatus]int, total int) models.ClusterTier {
	if mix[models.StatusDown] > 0 || mix[models.StatusShutdown] > 0 {
		return models.TierCritical
	}
	if total > 0 && float64(mix[models.StatusLive])/float64(total) > 0.9 {
		return models.TierHealthy
	}
	return models.TierWarning
}
