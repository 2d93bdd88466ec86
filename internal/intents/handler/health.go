package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "bookingsync/pkg/http"
	"bookingsync/pkg/logger"
)

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Online *bool  `json:"online,omitempty"`
}

type StorePinger interface {
	Ping(ctx context.Context) error
}

type OnlineReporter interface {
	Online() bool
}

type HealthHandler struct {
	store        StorePinger
	connectivity OnlineReporter
	metrics      http.Handler
	log          *logger.Logger
}

// NewHealthHandler serves /health and /ready, plus /metrics when a metrics
// handler is given.
func NewHealthHandler(store StorePinger, connectivity OnlineReporter, metrics http.Handler, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:        store,
		connectivity: connectivity,
		metrics:      metrics,
		log:          log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready fails only when the store is unreachable. Being offline is a normal
// operating state and is reported, not failed.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	online := h.connectivity.Online()
	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Store health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Store:  "error",
			Online: &online,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ready",
		Store:  "ok",
		Online: &online,
	})
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if h.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", h.metrics)
	}
}
