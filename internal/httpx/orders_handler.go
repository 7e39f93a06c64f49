package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"liveshop/internal/orders"
)

// OrdersHandler serves reservation requests and the expiry-check trigger.
type OrdersHandler struct {
	Service *orders.Service
}

// CreateOrderReq is the reservation request body.
type CreateOrderReq struct {
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	BroadcastID string `json:"broadcast_id"`
	Quantity    int    `json:"quantity"`
}

// CreateOrderResp echoes the created claim.
type CreateOrderResp struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ExpiryCheckReq identifies whose claim on which product to check.
type ExpiryCheckReq struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

// ExpiryCheckResp reports whether this call expired the order.
type ExpiryCheckResp struct {
	Expired bool `json:"expired"`
}

// StockCheckReq names the product to probe.
type StockCheckReq struct {
	ProductID string `json:"product_id"`
}

// StockCheckResp reports that at least one unit was available at the time
// of the lock-guarded read.
type StockCheckResp struct {
	Available bool `json:"available"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/expiry-check", h.checkExpiry)
	r.Post("/orders/stock-check", h.checkStock)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ProductID == "" || req.BroadcastID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	o, err := h.Service.Create(r.Context(), orders.CreateInput{
		UserID:      req.UserID,
		ProductID:   req.ProductID,
		BroadcastID: req.BroadcastID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateOrderResp{
		OrderID:   o.ID,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *OrdersHandler) checkExpiry(w http.ResponseWriter, r *http.Request) {
	var req ExpiryCheckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	expired, err := h.Service.CheckExpiry(r.Context(), req.UserID, req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpiryCheckResp{Expired: expired})
}

func (h *OrdersHandler) checkStock(w http.ResponseWriter, r *http.Request) {
	var req StockCheckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	if err := h.Service.CheckStock(r.Context(), req.ProductID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockCheckResp{Available: true})
}
