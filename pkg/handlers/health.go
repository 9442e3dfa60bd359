package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pool/pkg/config"
)

// ServiceName is reported by /ping.
const ServiceName = "ekaya-pool"

// PoolStatsProvider reports the state of the session pools.
type PoolStatsProvider interface {
	GetStats() datasource.ConnectionStats
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse reports whether the default pool can serve queries.
type HealthResponse struct {
	Status      string                `json:"status"`
	DefaultPool string                `json:"default_pool,omitempty"`
	Pool        *datasource.PoolStats `json:"pool,omitempty"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	pools  PoolStatsProvider
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. pools may be nil, in which case
// /health only reports that the process is up.
func NewHealthHandler(cfg *config.Config, pools PoolStatsProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, pools: pools, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
}

// Health handles GET /health requests.
// Returns 200 while the default pool has at least one healthy session and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}
	if h.pools == nil {
		if err := WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
			h.logger.Error("Failed to encode health response", zap.Error(err))
		}
		return
	}

	stats := h.pools.GetStats()
	pool := stats.Pools[stats.DefaultPool]

	response := HealthResponse{
		Status:      "ok",
		DefaultPool: stats.DefaultPool,
		Pool:        &pool,
	}
	status := http.StatusOK
	if pool.Healthy == 0 {
		response.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     ServiceName,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
