package orderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/XuThi/xuthi-frontend-sub000/internal/checkout"
	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

// Client talks to the backend order service across the trust boundary; every
// request carries the service's bearer credential.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type createOrderRequest struct {
	Customer checkout.CustomerInfo `json:"customer"`
	Lines    []domain.OrderLine    `json:"lines"`
	Totals   domain.OrderTotals    `json:"totals"`
}

type createOrderResponse struct {
	OrderNumber string `json:"order_number"`
}

func (c *Client) CreateOrder(ctx context.Context, customer checkout.CustomerInfo, lines []domain.OrderLine, totals domain.OrderTotals) (string, error) {
	var resp createOrderResponse
	err := c.post(ctx, "/api/v1/orders", createOrderRequest{
		Customer: customer,
		Lines:    lines,
		Totals:   totals,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.OrderNumber == "" {
		return "", fmt.Errorf("order service returned no order number")
	}
	return resp.OrderNumber, nil
}

type evaluateVoucherRequest struct {
	Code        string `json:"code"`
	Subtotal    int64  `json:"subtotal"`
	ShippingFee int64  `json:"shipping_fee"`
}

type evaluateVoucherResponse struct {
	DiscountAmount int64 `json:"discount_amount"`
}

func (c *Client) EvaluateVoucher(ctx context.Context, code string, subtotal, shippingFee int64) (int64, error) {
	var resp evaluateVoucherResponse
	err := c.post(ctx, "/api/v1/vouchers/evaluate", evaluateVoucherRequest{
		Code:        code,
		Subtotal:    subtotal,
		ShippingFee: shippingFee,
	}, &resp)
	if err != nil {
		return 0, err
	}
	if resp.DiscountAmount < 0 {
		return 0, fmt.Errorf("voucher service returned negative discount")
	}
	return resp.DiscountAmount, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
