// Package health provides HTTP liveness and readiness probes.
//
// Two endpoints are exposed:
//
//   - /healthz — liveness; returns 200 whenever the process can serve HTTP.
//   - /readyz  — readiness; returns 200 only when every registered [Probe]
//     passes, 503 otherwise.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and, for readiness, a "probes" map with the per-probe outcome.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Run returns nil when the dependency is
// usable and a descriptive error otherwise. It must respect ctx cancellation.
type Probe struct {
	Name string
	Run  func(ctx context.Context) error
}

type response struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Probes  map[string]string `json:"probes,omitempty"`
}

// Handler serves the probe endpoints. The probe list is fixed at construction
// time, so the handler is safe for concurrent use.
type Handler struct {
	version string
	probes  []Probe
}

// New creates a [Handler] reporting the given build version. Probes are
// evaluated sequentially, in the order given, on each /readyz request.
func New(version string, probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{version: version, probes: p}
}

// Healthz always returns 200. A process that can answer is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok", Version: h.version})
}

// Readyz runs every registered probe with a [probeTimeout] deadline derived
// from the request context and reports the aggregate.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	probes := make(map[string]string, len(h.probes))
	ready := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Run(ctx)
		cancel()

		if err != nil {
			probes[p.Name] = "fail: " + err.Error()
			ready = false
		} else {
			probes[p.Name] = "ok"
		}
	}

	res := response{Status: "ok", Version: h.version, Probes: probes}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
