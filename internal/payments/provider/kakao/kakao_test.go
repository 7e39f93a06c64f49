package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"liveshop/internal/payments"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		CID:         "TC0ONETIME",
		SecretKey:   "secret-123",
		ApprovalURL: "http://shop.example.com/payment/kakao/complete",
		CancelURL:   "http://shop.example.com/payment/cancel",
		FailURL:     "http://shop.example.com/payment/fail",
	}
}

func TestReady_SendsStagingRequest(t *testing.T) {
	t.Parallel()

	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/online/v1/payment/ready" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tid":                  "T1234",
			"next_redirect_pc_url": "https://pay.example.com/checkout",
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(testConfig(srv.URL), srv.Client())
	res, err := client.Ready(context.Background(), payments.ReadyRequest{
		OrderID:  "order-1",
		UserID:   "user-1",
		ItemName: "Hand Cream",
		Quantity: 2,
		Amount:   24000,
	})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}

	if res.TID != "T1234" || res.RedirectURL != "https://pay.example.com/checkout" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if auth != "SECRET_KEY secret-123" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
	if got["partner_order_id"] != "order-1" || got["total_amount"] != "24000" || got["quantity"] != "2" {
		t.Fatalf("unexpected request body: %v", got)
	}
	if got["approval_url"] != "http://shop.example.com/payment/kakao/complete?order_id=order-1&user_id=user-1" {
		t.Fatalf("unexpected approval url %q", got["approval_url"])
	}
}

func TestReady_MissingTIDIsRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(testConfig(srv.URL), srv.Client())
	_, err := client.Ready(context.Background(), payments.ReadyRequest{OrderID: "order-1"})
	if !errors.Is(err, payments.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
}

func TestApprove_SendsTokenAndParsesApprovedAt(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/online/v1/payment/approve" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tid":         "T1234",
			"approved_at": "2024-05-01T12:34:56Z",
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(testConfig(srv.URL), srv.Client())
	res, err := client.Approve(context.Background(), payments.ApproveRequest{
		TID:     "T1234",
		Token:   "pg-token-9",
		OrderID: "order-1",
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if got["pg_token"] != "pg-token-9" || got["tid"] != "T1234" {
		t.Fatalf("unexpected request body: %v", got)
	}
	if res.ApprovedAt.IsZero() {
		t.Fatalf("expected approved_at to be parsed")
	}
}

func TestStatusCodeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"client error is definitive", http.StatusBadRequest, payments.ErrProviderRejected},
		{"server error is transient", http.StatusBadGateway, payments.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(srv.Close)

			client := NewClient(testConfig(srv.URL), srv.Client())
			_, err := client.Approve(context.Background(), payments.ApproveRequest{TID: "T1", Token: "tok"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
			}
		})
	}
}

func TestReady_UnreachableProviderIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(testConfig(srv.URL), nil)
	_, err := client.Ready(context.Background(), payments.ReadyRequest{OrderID: "order-1"})
	if !errors.Is(err, payments.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
