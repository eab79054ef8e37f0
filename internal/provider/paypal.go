package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// PayPal is a thin client for the PayPal Orders v2 API. Only the calls the
// settlement core needs are implemented.
type PayPal struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
}

// NewPayPal builds a PayPal client against the given base URL (sandbox or live).
func NewPayPal(baseURL, clientID, clientSecret string) *PayPal {
	return &PayPal{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// Name identifies the provider on payment records.
func (p *PayPal) Name() string { return "paypal" }

// CreateOrder opens a PayPal order and returns the approval link the payer
// must visit.
func (p *PayPal) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         minorToDecimal(req.Amount),
			},
			"description": req.Description,
		}},
	}
	if req.ReturnURL != "" {
		body["application_context"] = map[string]string{"return_url": req.ReturnURL}
	}

	var resp struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return Order{}, err
	}

	order := Order{ProviderID: resp.ID, ExpiresAt: time.Now().UTC().Add(15 * time.Minute)}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
		}
	}
	return order, nil
}

// GetStatus maps PayPal order states onto the core's status set.
func (p *PayPal) GetStatus(ctx context.Context, providerID string) (Status, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := p.do(ctx, http.MethodGet, "/v2/checkout/orders/"+providerID, nil, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "COMPLETED", "APPROVED":
		return StatusPaid, nil
	case "VOIDED":
		return StatusFailed, nil
	case "EXPIRED":
		return StatusExpired, nil
	default:
		return StatusPending, nil
	}
}

// Refund reverses a captured order.
func (p *PayPal) Refund(ctx context.Context, providerID string, amount int64) (Refund, error) {
	body := map[string]any{
		"amount": map[string]string{"value": minorToDecimal(amount)},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := p.do(ctx, http.MethodPost, "/v2/payments/captures/"+providerID+"/refund", body, &resp); err != nil {
		return Refund{}, err
	}
	return Refund{RefundID: resp.ID, Amount: amount}, nil
}

func (p *PayPal) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, &payload)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: paypal returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("paypal request failed with %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// minorToDecimal renders integer minor units as a two-decimal money string.
func minorToDecimal(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + strconv.FormatInt(amount/100, 10) + "." + fmt.Sprintf("%02d", amount%100)
}
