package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/cache"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/feed"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
	"go.uber.org/zap"
)

// Cache keys owned by the fleet service.
const (
	KeyDevices   = "fleet.devices"
	KeyHierarchy = "fleet.hierarchy"
	KeyAlerts    = "fleet.alerts"
)

// Backend is the slice of the collector API the service consumes.
type Backend interface {
	FetchDevices(ctx context.Context) ([]models.Device, error)
	FetchHierarchy(ctx context.Context) (*models.FleetSnapshot, error)
	FetchAlertSummary(ctx context.Context) (*models.AlertSummary, error)
}

// Service ties the cached device set to the pure view computations.
// All reads are served from the in-memory set; the coordinator decides
// when the backend is consulted.
type Service struct {
	backend Backend
	coord   *cache.Coordinator
	agg     *Aggregator
	store   *Store
	logger  *zap.Logger

	holder SetHolder

	// Cluster results are memoized per (set, mode) like aggregation:
	// repeated map reads between refreshes cost one build.
	clusterMu   sync.Mutex
	clusterSet  *DeviceSet
	clusterMode models.ClusterMode
	clusterOut  []models.GeoCluster
}

// NewService registers the fleet's cache keys and, when the store holds
// a persisted snapshot, primes the device key so the dashboard renders
// stale data immediately after a restart.
func NewService(ctx context.Context, backend Backend, coord *cache.Coordinator, agg *Aggregator, st *Store, logger *zap.Logger) (*Service, error) {
	s := &Service{
		backend: backend,
		coord:   coord,
		agg:     agg,
		store:   st,
		logger:  logger,
	}

	if err := coord.Register(KeyDevices, []string{feed.TopicDeviceMetrics}, s.fetchDevices); err != nil {
		return nil, err
	}
	if err := coord.Register(KeyHierarchy, []string{feed.TopicDeviceMetrics}, s.fetchHierarchy); err != nil {
		return nil, err
	}
	if err := coord.Register(KeyAlerts, []string{feed.TopicAlertsSummary}, s.fetchAlerts); err != nil {
		return nil, err
	}

	if st != nil {
		devices, fetchedAt, err := st.LoadDevices(ctx)
		if err != nil {
			logger.Warn("warm start skipped", zap.Error(err))
		} else if len(devices) > 0 {
			set := &DeviceSet{Devices: devices, FetchedAt: fetchedAt}
			s.holder.Store(set)
			coord.Prime(KeyDevices, set, fetchedAt)
			logger.Info("warm start from persisted snapshot",
				zap.Int("devices", len(devices)),
				zap.Time("fetched_at", fetchedAt),
			)
		}
	}
	return s, nil
}

func (s *Service) fetchDevices(ctx context.Context) (any, error) {
	devices, err := s.backend.FetchDevices(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	set := &DeviceSet{Devices: devices, FetchedAt: now}
	s.holder.Store(set)

	if s.store != nil {
		if err := s.store.SaveDevices(ctx, devices, now); err != nil {
			// Persistence feeds the next warm start only; the fresh
			// in-memory set is already installed.
			s.logger.Warn("persist snapshot failed", zap.Error(err))
		}
	}
	return set, nil
}

func (s *Service) fetchHierarchy(ctx context.Context) (any, error) {
	return s.backend.FetchHierarchy(ctx)
}

func (s *Service) fetchAlerts(ctx context.Context) (any, error) {
	return s.backend.FetchAlertSummary(ctx)
}

// Devices returns the current device set via the cache.
func (s *Service) Devices(ctx context.Context) (*DeviceSet, error) {
	v, err := s.coord.Get(ctx, KeyDevices)
	if err != nil {
		return nil, err
	}
	set, ok := v.(*DeviceSet)
	if !ok || set == nil {
		return nil, fmt.Errorf("fleet: unexpected device cache payload %T", v)
	}
	return set, nil
}

// Snapshot aggregates the current device set into the category tree.
func (s *Service) Snapshot(ctx context.Context) (*models.FleetSnapshot, *DeviceSet, error) {
	set, err := s.Devices(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.agg.Aggregate(set.Devices), set, nil
}

// Hierarchy returns the backend's own pre-aggregated status tree.
func (s *Service) Hierarchy(ctx context.Context) (*models.FleetSnapshot, error) {
	v, err := s.coord.Get(ctx, KeyHierarchy)
	if err != nil {
		return nil, err
	}
	snap, ok := v.(*models.FleetSnapshot)
	if !ok || snap == nil {
		return nil, fmt.Errorf("fleet: unexpected hierarchy cache payload %T", v)
	}
	return snap, nil
}

// Alerts returns the cached alert severity summary.
func (s *Service) Alerts(ctx context.Context) (*models.AlertSummary, error) {
	v, err := s.coord.Get(ctx, KeyAlerts)
	if err != nil {
		return nil, err
	}
	sum, ok := v.(*models.AlertSummary)
	if !ok || sum == nil {
		return nil, fmt.Errorf("fleet: unexpected alert cache payload %T", v)
	}
	return sum, nil
}

// Clusters builds map markers for the current device set.
func (s *Service) Clusters(ctx context.Context, mode models.ClusterMode) ([]models.GeoCluster, error) {
	set, err := s.Devices(ctx)
	if err != nil {
		return nil, err
	}

	s.clusterMu.Lock()
	defer s.clusterMu.Unlock()
	if s.clusterSet == set && s.clusterMode == mode {
		return s.clusterOut, nil
	}
	out := BuildClusters(set.Devices, mode)
	s.clusterSet = set
	s.clusterMode = mode
	s.clusterOut = out
	return out, nil
}

// Query filters, sorts, and paginates the current device set.
func (s *Service) Query(ctx context.Context, f Filter, sort Sort, page Page) (*Result, error) {
	set, err := s.Devices(ctx)
	if err != nil {
		return nil, err
	}
	res := Query(set.Devices, f, sort, page)
	return &res, nil
}

// CurrentSnapshot aggregates the latest installed device set without
// consulting the cache, so callers on push paths never suspend. Returns
// nil before the first install.
func (s *Service) CurrentSnapshot() *models.FleetSnapshot {
	set := s.holder.Load()
	if set == nil {
		return nil
	}
	return s.agg.Aggregate(set.Devices)
}

// Device returns one device by ID, or false when absent from the set.
func (s *Service) Device(ctx context.Context, id string) (models.Device, bool, error) {
	set, err := s.Devices(ctx)
	if err != nil {
		return models.Device{}, false, err
	}
	for _, d := range set.Devices {
		if d.ID == id {
			return d, true, nil
		}
	}
	return models.Device{}, false, nil
}

// Staleness exposes the cache state of the device view for the
// dashboard's staleness indicator.
func (s *Service) Staleness() (cache.Info, bool) {
	return s.coord.Inspect(KeyDevices)
}
