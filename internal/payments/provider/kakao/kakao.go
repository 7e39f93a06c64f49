// Package kakao implements the KakaoPay online payment API: ready stages a
// transaction and returns the PC redirect page, approve finalizes it with
// the pg_token the buyer brought back.
package kakao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"liveshop/internal/payments"
)

const defaultBaseURL = "https://open-api.kakaopay.com"

// Config holds the merchant credentials and callback URLs.
type Config struct {
	BaseURL     string
	CID         string
	SecretKey   string
	ApprovalURL string
	CancelURL   string
	FailURL     string
}

// Client talks to KakaoPay.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs a Client. A nil httpClient uses a 10s-timeout default.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type readyResponse struct {
	TID               string `json:"tid"`
	NextRedirectPCURL string `json:"next_redirect_pc_url"`
}

type approveResponse struct {
	TID        string    `json:"tid"`
	ApprovedAt time.Time `json:"approved_at"`
}

// Ready stages the payment. The approval URL gets the order and user IDs as
// query parameters so the completion callback can find the payment again.
func (c *Client) Ready(ctx context.Context, req payments.ReadyRequest) (payments.ReadyResult, error) {
	approval, err := callbackURL(c.cfg.ApprovalURL, req.OrderID, req.UserID)
	if err != nil {
		return payments.ReadyResult{}, fmt.Errorf("kakao approval url: %w", err)
	}

	body := map[string]string{
		"cid":              c.cfg.CID,
		"partner_order_id": req.OrderID,
		"partner_user_id":  req.UserID,
		"item_name":        req.ItemName,
		"quantity":         strconv.Itoa(req.Quantity),
		"total_amount":     strconv.Itoa(req.Amount),
		"vat_amount":       "0",
		"tax_free_amount":  "0",
		"approval_url":     approval,
		"cancel_url":       c.cfg.CancelURL,
		"fail_url":         c.cfg.FailURL,
	}

	var res readyResponse
	if err := c.post(ctx, "/online/v1/payment/ready", body, &res); err != nil {
		return payments.ReadyResult{}, err
	}
	if res.TID == "" || res.NextRedirectPCURL == "" {
		return payments.ReadyResult{}, fmt.Errorf("%w: ready response missing tid or redirect", payments.ErrProviderRejected)
	}
	return payments.ReadyResult{TID: res.TID, RedirectURL: res.NextRedirectPCURL}, nil
}

// Approve finalizes the transaction with the pg_token.
func (c *Client) Approve(ctx context.Context, req payments.ApproveRequest) (payments.ApproveResult, error) {
	body := map[string]string{
		"cid":              c.cfg.CID,
		"tid":              req.TID,
		"partner_order_id": req.OrderID,
		"partner_user_id":  req.UserID,
		"pg_token":         req.Token,
	}

	var res approveResponse
	if err := c.post(ctx, "/online/v1/payment/approve", body, &res); err != nil {
		return payments.ApproveResult{}, err
	}
	return payments.ApproveResult{TID: res.TID, ApprovedAt: res.ApprovedAt}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "SECRET_KEY "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: kakao returned %d", payments.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: kakao returned %d", payments.ErrProviderRejected, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode kakao response: %v", payments.ErrProviderUnavailable, err)
	}
	return nil
}

func callbackURL(base, orderID, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("order_id", orderID)
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
