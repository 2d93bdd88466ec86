package handler

import (
	"encoding/json"
	"net/http"

	"bookingsync/internal/intents/service"
	"bookingsync/internal/sync/metrics"
	httputil "bookingsync/pkg/http"
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SyncResponse struct {
	model.SyncResult
	SkipReason string `json:"skip_reason,omitempty"`
}

type CountResponse struct {
	Pending int `json:"pending"`
}

type ConnectivityResponse struct {
	Online bool `json:"online"`
}

type IntentHandler struct {
	service service.IntentService
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewIntentHandler(service service.IntentService, m *metrics.Metrics, log *logger.Logger) *IntentHandler {
	return &IntentHandler{
		service: service,
		metrics: m,
		log:     log,
	}
}

func (h *IntentHandler) Enqueue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Undecodable booking request", "handler", "Enqueue", "error", err)
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	intent, err := h.service.Enqueue(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, intent)
}

func (h *IntentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := model.IntentStatus(r.URL.Query().Get("status"))

	intents, total, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, intents, total, limit, int(offset))
}

func (h *IntentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	intent, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, intent)
}

func (h *IntentHandler) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Remove(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *IntentHandler) CountPending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	httputil.WriteSuccess(w, CountResponse{Pending: h.service.CountPending(r.Context())})
}

// Sync runs a pass inline. A skipped pass is still a 200; the body says why.
func (h *IntentHandler) Sync(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, reason := h.service.TriggerSync(r.Context())
	httputil.WriteSuccess(w, SyncResponse{SyncResult: result, SkipReason: reason})
}

func (h *IntentHandler) SetConnectivity(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update model.ConnectivityUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.log.Warn("Undecodable connectivity update", "handler", "SetConnectivity", "error", err)
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	online, err := h.service.SetConnectivity(r.Context(), &update)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, ConnectivityResponse{Online: online})
}

func (h *IntentHandler) RegisterRoutes(router *httprouter.Router) {
	route := func(method, path string, handle httprouter.Handle) {
		router.Handle(method, path, h.metrics.InstrumentRoute(method, path, handle))
	}

	route(http.MethodPost, "/api/v1/intents", h.Enqueue)
	route(http.MethodGet, "/api/v1/intents", h.GetAll)
	route(http.MethodGet, "/api/v1/intents/id/:id", h.GetByID)
	route(http.MethodDelete, "/api/v1/intents/id/:id", h.Remove)
	route(http.MethodGet, "/api/v1/intents/pending/count", h.CountPending)
	route(http.MethodPost, "/api/v1/sync", h.Sync)
	route(http.MethodPut, "/api/v1/connectivity", h.SetConnectivity)
}
