package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/cache"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/server"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
	"go.uber.org/zap"
)

// Handler mounts the fleet API surface.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates the fleet HTTP handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the fleet endpoints on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/fleet/snapshot", h.handleSnapshot)
	mux.HandleFunc("GET /api/v1/fleet/devices", h.handleDevices)
	mux.HandleFunc("GET /api/v1/fleet/devices/{id}", h.handleDevice)
	mux.HandleFunc("GET /api/v1/fleet/clusters", h.handleClusters)
	mux.HandleFunc("GET /api/v1/fleet/alerts", h.handleAlerts)
	mux.HandleFunc("GET /api/v1/fleet/hierarchy", h.handleHierarchy)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// SnapshotResponse wraps the rollup tree with its cache provenance so
// the dashboard can show a staleness indicator.
type SnapshotResponse struct {
	Snapshot  *models.FleetSnapshot `json:"snapshot"`
	FetchedAt time.Time             `json:"fetched_at"`
	Stale     bool                  `json:"stale"`
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, set, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.serviceError(w, r, "load snapshot", err)
		return
	}

	resp := SnapshotResponse{Snapshot: snap, FetchedAt: set.FetchedAt}
	if info, ok := h.svc.Staleness(); ok {
		resp.Stale = info.State != cache.StateFresh
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := Filter{
		Search:  q.Get("search"),
		Regions: splitParam(q.Get("region")),
		Vendors: splitParam(q.Get("vendor")),
	}

	if v := q.Get("status"); v != "" {
		status := models.DeviceStatus(strings.ToUpper(v))
		if !status.Valid() {
			server.BadRequest(w, "unknown status: "+v, r.URL.Path)
			return
		}
		f.Status = status
	}
	for _, c := range splitParam(q.Get("class")) {
		f.Classes = append(f.Classes, models.DeviceClass(strings.ToLower(c)))
	}

	var err error
	if f.MinHealth, err = intParam(q.Get("min_health")); err != nil {
		server.BadRequest(w, "invalid min_health", r.URL.Path)
		return
	}
	if f.MaxHealth, err = intParam(q.Get("max_health")); err != nil {
		server.BadRequest(w, "invalid max_health", r.URL.Path)
		return
	}
	if f.SeenAfter, err = timeParam(q.Get("seen_after")); err != nil {
		server.BadRequest(w, "invalid seen_after: expected RFC 3339", r.URL.Path)
		return
	}
	if f.SeenBefore, err = timeParam(q.Get("seen_before")); err != nil {
		server.BadRequest(w, "invalid seen_before: expected RFC 3339", r.URL.Path)
		return
	}

	field, ok := ParseSortField(q.Get("sort"))
	if !ok {
		server.BadRequest(w, "unknown sort field: "+q.Get("sort"), r.URL.Path)
		return
	}
	s := Sort{Field: field, Descending: q.Get("order") == "desc"}

	p := Page{Number: 1, Size: DefaultPageSize}
	if v := q.Get("page"); v != "" {
		if p.Number, err = strconv.Atoi(v); err != nil {
			server.BadRequest(w, "invalid page", r.URL.Path)
			return
		}
	}
	if v := q.Get("page_size"); v != "" {
		if p.Size, err = strconv.Atoi(v); err != nil || p.Size < 1 {
			server.BadRequest(w, "invalid page_size", r.URL.Path)
			return
		}
	}

	res, err := h.svc.Query(r.Context(), f, s, p)
	if err != nil {
		h.serviceError(w, r, "query devices", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d, found, err := h.svc.Device(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, "load device", err)
		return
	}
	if !found {
		server.NotFound(w, "device not found: "+id, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleClusters(w http.ResponseWriter, r *http.Request) {
	mode := models.ClusterModeIndividual
	switch v := r.URL.Query().Get("mode"); v {
	case "", string(models.ClusterModeIndividual):
	case string(models.ClusterModeClustered):
		mode = models.ClusterModeClustered
	default:
		server.BadRequest(w, "unknown cluster mode: "+v, r.URL.Path)
		return
	}

	clusters, err := h.svc.Clusters(r.Context(), mode)
	if err != nil {
		h.serviceError(w, r, "build clusters", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":     mode,
		"clusters": clusters,
	})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Alerts(r.Context())
	if err != nil {
		h.serviceError(w, r, "load alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Hierarchy(r.Context())
	if err != nil {
		h.serviceError(w, r, "load hierarchy", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// serviceError maps a service failure to the right problem response. A
// failed first fetch means the dashboard has nothing to show yet.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("fleet request failed", zap.String("op", op), zap.Error(err))

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		server.Unavailable(w, "backend fetch did not complete in time", r.URL.Path)
	default:
		server.Unavailable(w, "fleet data unavailable: "+err.Error(), r.URL.Path)
	}
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func timeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
