package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPPayer posts orders to an external settlement service.
// The service answers {"signature": "..."} or {"error": "already_closed" | "unavailable" | ...}.
type HTTPPayer struct {
	base   string
	client *http.Client
}

// NewHTTPPayer builds a payer rooted at base
func NewHTTPPayer(base string, client *http.Client) *HTTPPayer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPPayer{base: strings.TrimRight(base, "/"), client: client}
}

// Payout implements Payer
func (h *HTTPPayer) Payout(ctx context.Context, o Order) (string, error) {
	return h.post(ctx, "/payout", o)
}

// Refund implements Payer
func (h *HTTPPayer) Refund(ctx context.Context, o RefundOrder) (string, error) {
	return h.post(ctx, "/refund", o)
}

func (h *HTTPPayer) post(ctx context.Context, path string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payout %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented {
		return "", ErrUnavailable
	}

	var out struct {
		Signature string `json:"signature"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("payout %s: status %d: %w", path, resp.StatusCode, err)
	}
	switch out.Error {
	case "":
	case "already_closed":
		return "", ErrAccountClosed
	case "unavailable":
		return "", ErrUnavailable
	default:
		return "", fmt.Errorf("payout %s: %s", path, out.Error)
	}
	if resp.StatusCode != http.StatusOK || out.Signature == "" {
		return "", fmt.Errorf("payout %s: status %d", path, resp.StatusCode)
	}
	return out.Signature, nil
}
