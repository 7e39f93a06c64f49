// Package httpx is the HTTP boundary: order reservation, payment staging
// and approval, the live stock WebSocket, and operational endpoints.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"liveshop/internal/lock"
	"liveshop/internal/observability"
	"liveshop/internal/orders"
	"liveshop/internal/payments"
	"liveshop/internal/realtime"
)

// Deps collects everything the router serves.
type Deps struct {
	Orders   *orders.Service
	Payments *payments.Service
	Hub      *realtime.Hub
	Metrics  *observability.Metrics

	// CompleteRedirectURL and FailRedirectURL are where the KakaoPay
	// completion callback sends the buyer's browser.
	CompleteRedirectURL string
	FailRedirectURL     string
}

// NewRouter builds the chi router with all routes registered.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", observability.Handler(deps.Metrics))
	}

	oh := &OrdersHandler{Service: deps.Orders}
	oh.Register(r)

	ph := &PaymentsHandler{
		Service:             deps.Payments,
		CompleteRedirectURL: deps.CompleteRedirectURL,
		FailRedirectURL:     deps.FailRedirectURL,
	}
	ph.Register(r)

	if deps.Hub != nil {
		sh := &StockHandler{Hub: deps.Hub}
		sh.Register(r)
	}

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

// statusOf maps domain errors to HTTP statuses. Sold-out and lock-timeout
// deliberately land on different codes: 409 means the stock is gone, 503
// means the product is busy and the request is worth retrying.
func statusOf(err error) int {
	switch {
	case errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, payments.ErrUnsupportedMethod),
		errors.Is(err, payments.ErrProviderRejected):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrBroadcastNotFound),
		errors.Is(err, payments.ErrPaymentNotFound),
		errors.Is(err, payments.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrOrderNotReady),
		errors.Is(err, payments.ErrDuplicateTransactionID),
		errors.Is(err, payments.ErrPaymentFailed):
		return http.StatusConflict
	case errors.Is(err, lock.ErrLockTimeout),
		errors.Is(err, payments.ErrCircuitOpen),
		errors.Is(err, payments.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
