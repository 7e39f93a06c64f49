package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"liveshop/internal/payments"
)

// PaymentsHandler serves payment staging, approval, and the provider
// completion callback.
type PaymentsHandler struct {
	Service             *payments.Service
	CompleteRedirectURL string
	FailRedirectURL     string
}

// ProcessReq stages a payment for an order.
type ProcessReq struct {
	UserID          string `json:"user_id"`
	OrderID         string `json:"order_id"`
	ShippingAddress string `json:"shipping_address"`
	DeliveryRequest string `json:"delivery_request"`
}

// ProcessResp carries the provider redirect the buyer must follow.
type ProcessResp struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	TID         string `json:"tid"`
	Status      string `json:"status"`
	RedirectURL string `json:"next_redirect_url"`
}

// ApproveReq finalizes a staged payment with the provider token.
type ApproveReq struct {
	OrderID string `json:"order_id"`
	Token   string `json:"token"`
}

// ApproveResp reports the approval outcome. A replay answers with the same
// amount and timestamps the first approval returned.
type ApproveResp struct {
	PaymentID        string `json:"payment_id"`
	TID              string `json:"tid"`
	Status           string `json:"status"`
	Amount           int    `json:"amount"`
	CreatedAt        string `json:"created_at"`
	ApprovedAt       string `json:"approved_at,omitempty"`
	AlreadyCompleted bool   `json:"already_completed,omitempty"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payment/{method}/process", h.process)
	r.Post("/payment/{method}/approve", h.approve)
	r.Get("/payment/kakao/complete", h.kakaoComplete)
}

func methodFromPath(r *http.Request) (payments.Method, bool) {
	switch chi.URLParam(r, "method") {
	case "kakao":
		return payments.MethodKakaoPay, true
	case "toss":
		return payments.MethodTossPay, true
	default:
		return "", false
	}
}

func (h *PaymentsHandler) process(w http.ResponseWriter, r *http.Request) {
	method, ok := methodFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown payment method"})
		return
	}

	var req ProcessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	res, err := h.Service.Prepare(r.Context(), payments.PrepareInput{
		UserID:          req.UserID,
		OrderID:         req.OrderID,
		Method:          method,
		ShippingAddress: req.ShippingAddress,
		DeliveryRequest: req.DeliveryRequest,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProcessResp{
		PaymentID:   res.PaymentID,
		OrderID:     res.OrderID,
		TID:         res.TID,
		Status:      string(payments.StatusRequested),
		RedirectURL: res.RedirectURL,
	})
}

func (h *PaymentsHandler) approve(w http.ResponseWriter, r *http.Request) {
	if _, ok := methodFromPath(r); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown payment method"})
		return
	}

	var req ApproveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.OrderID == "" || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	out, err := h.Service.Approve(r.Context(), payments.ApproveInput{OrderID: req.OrderID, Token: req.Token})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approveResp(out))
}

// kakaoComplete is where KakaoPay redirects the buyer after authentication.
// It finalizes the payment and bounces the browser to the storefront.
func (h *PaymentsHandler) kakaoComplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("pg_token")
	orderID := q.Get("order_id")
	if token == "" || orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing pg_token or order_id"})
		return
	}

	_, err := h.Service.Approve(r.Context(), payments.ApproveInput{OrderID: orderID, Token: token})
	if err != nil {
		http.Redirect(w, r, h.FailRedirectURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, h.CompleteRedirectURL, http.StatusFound)
}

func approveResp(out payments.ApproveOutcome) ApproveResp {
	resp := ApproveResp{
		PaymentID:        out.PaymentID,
		TID:              out.TID,
		Status:           string(payments.StatusCompleted),
		Amount:           out.Amount,
		CreatedAt:        out.CreatedAt.UTC().Format(time.RFC3339),
		AlreadyCompleted: out.AlreadyCompleted,
	}
	if !out.ApprovedAt.IsZero() {
		resp.ApprovedAt = out.ApprovedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
