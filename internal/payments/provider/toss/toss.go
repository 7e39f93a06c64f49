// Package toss implements the TossPay v2 payment API: a staged payment is
// identified by its payToken and finalized through the execute endpoint.
package toss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"liveshop/internal/payments"
)

const defaultBaseURL = "https://pay.toss.im"

// Config holds the merchant keys and callback URLs.
type Config struct {
	BaseURL        string
	ClientKey      string
	SecretKey      string
	RetURL         string
	RetCancelURL   string
	ResultCallback string
}

// Client talks to TossPay.
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

type createResponse struct {
	PayToken     string `json:"payToken"`
	CheckoutPage string `json:"checkoutPage"`
}

type executeResponse struct {
	PayToken     string `json:"payToken"`
	ApprovalTime string `json:"approvalTime"`
}

// Ready creates the payment and returns its checkout page. Toss signals a
// refusal by omitting payToken or checkoutPage from an otherwise 200 reply.
func (c *Client) Ready(ctx context.Context, req payments.ReadyRequest) (payments.ReadyResult, error) {
	body := map[string]any{
		"orderNo":         req.OrderID,
		"amount":          req.Amount,
		"amountTaxFree":   0,
		"productDesc":     req.ItemName,
		"apiKey":          c.cfg.ClientKey,
		"autoExecute":     true,
		"callbackVersion": "V2",
		"resultCallback":  c.cfg.ResultCallback,
		"retUrl":          c.cfg.RetURL,
		"retCancelUrl":    c.cfg.RetCancelURL,
	}

	var res createResponse
	if err := c.post(ctx, "/api/v2/payments", body, &res); err != nil {
		return payments.ReadyResult{}, err
	}
	if res.PayToken == "" || res.CheckoutPage == "" {
		return payments.ReadyResult{}, fmt.Errorf("%w: create response missing payToken or checkoutPage", payments.ErrProviderRejected)
	}
	return payments.ReadyResult{TID: res.PayToken, RedirectURL: res.CheckoutPage}, nil
}

// Approve executes the staged payment identified by its payToken.
func (c *Client) Approve(ctx context.Context, req payments.ApproveRequest) (payments.ApproveResult, error) {
	body := map[string]any{
		"apiKey":   c.cfg.SecretKey,
		"payToken": req.TID,
	}

	var res executeResponse
	if err := c.post(ctx, "/api/v2/execute", body, &res); err != nil {
		return payments.ApproveResult{}, err
	}

	out := payments.ApproveResult{TID: res.PayToken}
	if res.ApprovalTime != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", res.ApprovalTime); err == nil {
			out.ApprovedAt = t
		}
	}
	return out, nil
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

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: toss returned %d", payments.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: toss returned %d", payments.ErrProviderRejected, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode toss response: %v", payments.ErrProviderUnavailable, err)
	}
	return nil
}
