package presentation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akarpov/orders-bridge/internal/application"
	"github.com/akarpov/orders-bridge/internal/domain"
	"github.com/akarpov/orders-bridge/internal/kafka"
	"github.com/akarpov/orders-bridge/internal/logger"
	"github.com/akarpov/orders-bridge/internal/presentation/helpers"
)

type OrdersHandler struct {
	svc  *application.OrdersService
	disp *application.Dispatcher
	prod *kafka.Producer
}

// NewOrdersHandler wires the order API. prod may be nil when no ingestion
// topic is configured; only the mock upstream endpoint needs it.
func NewOrdersHandler(svc *application.OrdersService, disp *application.Dispatcher, prod *kafka.Producer) *OrdersHandler {
	return &OrdersHandler{svc: svc, disp: disp, prod: prod}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders", h.ListOrders)
	r.Get("/api/orders/{externalOrderId}", h.GetOrder)

	// Simulators for the neighbouring systems, kept for end-to-end runs.
	r.Post("/api/external-a/send-order", h.UpstreamSendOrder)
	r.Post("/api/external-b/orders", h.DownstreamReceiveOrder)
}

// CreateOrder ingests one upstream order and triggers the downstream forward
// after the response path is already decided. Dispatch never delays or fails
// the response.
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req application.IngestRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "Bad Request", "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	snap, err := h.svc.Ingest(r.Context(), req)
	if err != nil {
		if errors.Is(err, application.ErrDuplicateOrder) {
			helpers.HttpError(w, http.StatusConflict, "Duplicate Order", "order already exists: "+req.OrderID)
			return
		}
		logger.Error("ingest failed", "external_order_id", req.OrderID, "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "Internal Server Error", "internal error processing order")
		return
	}

	h.disp.DispatchAsync(r.Context(), snap)

	helpers.WriteJSON(w, http.StatusCreated, snap)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalOrderId")
	if strings.TrimSpace(externalID) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "Bad Request", "externalOrderId is empty")
		return
	}

	snap, err := h.svc.FindByExternalID(r.Context(), externalID)
	if err != nil {
		logger.Error("get order failed", "external_order_id", externalID, "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "Internal Server Error", "failed to get order")
		return
	}
	if snap == nil {
		helpers.HttpError(w, http.StatusNotFound, "Not Found", "order not found: "+externalID)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, snap)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *domain.Status
	if q := r.URL.Query().Get("status"); q != "" {
		st, err := domain.ParseStatus(q)
		if err != nil {
			helpers.HttpError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		status = &st
	}

	snaps, err := h.svc.List(r.Context(), status)
	if err != nil {
		logger.Error("list orders failed", "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "Internal Server Error", "failed to list orders")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, snaps)
}

// UpstreamSendOrder simulates External Product A: it drops the request onto
// the ingestion topic instead of calling the API directly.
func (h *OrdersHandler) UpstreamSendOrder(w http.ResponseWriter, r *http.Request) {
	if h.prod == nil {
		helpers.HttpError(w, http.StatusServiceUnavailable, "Service Unavailable", "no ingestion topic configured")
		return
	}

	var req application.IngestRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "Bad Request", "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if err := h.prod.PublishOrderRequest(r.Context(), req); err != nil {
		logger.Error("publish order request failed", "external_order_id", req.OrderID, "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "Internal Server Error", "failed to publish order")
		return
	}

	helpers.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "ok",
		"order_id": req.OrderID,
	})
}

// DownstreamReceiveOrder simulates External Product B accepting a forwarded
// order.
func (h *OrdersHandler) DownstreamReceiveOrder(w http.ResponseWriter, r *http.Request) {
	var snap domain.Snapshot
	if err := helpers.DecodeJSON(r.Body, &snap); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "Bad Request", "invalid JSON: "+err.Error())
		return
	}

	logger.Info("downstream mock received order",
		"external_order_id", snap.ExternalOrderID,
		"total_value", snap.TotalValue.String(),
		"items", len(snap.Items),
	)

	helpers.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "order " + snap.ExternalOrderID + " received successfully",
	})
}
