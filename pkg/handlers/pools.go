package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pool/pkg/apperrors"
)

// PoolsHandler exposes read-only pool and adapter information.
type PoolsHandler struct {
	pools  PoolStatsProvider
	logger *zap.Logger
}

// NewPoolsHandler creates a new PoolsHandler.
func NewPoolsHandler(pools PoolStatsProvider, logger *zap.Logger) *PoolsHandler {
	return &PoolsHandler{pools: pools, logger: logger}
}

// RegisterRoutes registers the pools handler's routes on the given mux.
func (h *PoolsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/pools", h.List)
	mux.HandleFunc("/adapters", h.Adapters)
}

// List handles GET /pools requests with per-pool session health and sweep counters.
// With ?name= it returns the counts of a single pool.
func (h *PoolsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}
	stats := h.pools.GetStats()

	name := r.URL.Query().Get("name")
	if name == "" {
		if err := WriteJSON(w, http.StatusOK, stats); err != nil {
			h.logger.Error("Failed to encode pool stats", zap.Error(err))
		}
		return
	}

	pool, ok := stats.Pools[name]
	if !ok {
		if err := WriteError(w, fmt.Errorf("%w: %q", apperrors.ErrPoolNotFound, name)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, pool); err != nil {
		h.logger.Error("Failed to encode pool stats", zap.Error(err))
	}
}

// Adapters handles GET /adapters requests with the driver adapters compiled into this binary.
func (h *PoolsHandler) Adapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, datasource.RegisteredAdapters()); err != nil {
		h.logger.Error("Failed to encode adapter list", zap.Error(err))
	}
}
