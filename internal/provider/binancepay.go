package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// BinancePay is a thin client for the Binance Pay merchant API. Requests are
// HMAC-SHA256 signed with the merchant secret.
type BinancePay struct {
	baseURL   string
	apiKey    string
	secretKey string
	http      *http.Client
}

// NewBinancePay builds a Binance Pay client.
func NewBinancePay(baseURL, apiKey, secretKey string) *BinancePay {
	return &BinancePay{
		baseURL:   baseURL,
		apiKey:    apiKey,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Name identifies the provider on payment records.
func (b *BinancePay) Name() string { return "binance_pay" }

// CreateOrder opens a Binance Pay order; the returned approval URL is the
// checkout deep link.
func (b *BinancePay) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	body := map[string]any{
		"env":             map[string]string{"terminalType": "WEB"},
		"merchantTradeNo": uuid.NewString(),
		"orderAmount":     minorToDecimal(req.Amount),
		"currency":        req.Currency,
		"goods": map[string]string{
			"goodsType":     "01",
			"goodsCategory": "Z000",
			"goodsName":     req.Description,
		},
	}
	if req.ReturnURL != "" {
		body["returnUrl"] = req.ReturnURL
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			PrepayID string `json:"prepayId"`
			Deeplink string `json:"deeplink"`
		} `json:"data"`
	}
	if err := b.do(ctx, "/binancepay/openapi/v3/order", body, &resp); err != nil {
		return Order{}, err
	}
	if resp.Status != "SUCCESS" {
		return Order{}, fmt.Errorf("binance order rejected: %s", resp.Status)
	}
	return Order{
		ProviderID:  resp.Data.PrepayID,
		ApprovalURL: resp.Data.Deeplink,
		ExpiresAt:   time.Now().UTC().Add(15 * time.Minute),
	}, nil
}

// GetStatus queries an order by prepay id.
func (b *BinancePay) GetStatus(ctx context.Context, providerID string) (Status, error) {
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := b.do(ctx, "/binancepay/openapi/v2/order/query", map[string]string{"prepayId": providerID}, &resp); err != nil {
		return "", err
	}
	if resp.Status != "SUCCESS" {
		return "", fmt.Errorf("binance query rejected: %s", resp.Status)
	}
	switch resp.Data.Status {
	case "PAID", "SUCCESS":
		return StatusPaid, nil
	case "CANCELED", "ERROR":
		return StatusFailed, nil
	case "EXPIRED":
		return StatusExpired, nil
	default:
		return StatusPending, nil
	}
}

// Refund reverses a paid order.
func (b *BinancePay) Refund(ctx context.Context, providerID string, amount int64) (Refund, error) {
	body := map[string]string{
		"refundRequestId": uuid.NewString(),
		"prepayId":        providerID,
		"refundAmount":    minorToDecimal(amount),
	}
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			RefundID string `json:"refundId"`
		} `json:"data"`
	}
	if err := b.do(ctx, "/binancepay/openapi/order/refund", body, &resp); err != nil {
		return Refund{}, err
	}
	if resp.Status != "SUCCESS" {
		return Refund{}, fmt.Errorf("binance refund rejected: %s", resp.Status)
	}
	return Refund{RefundID: resp.Data.RefundID, Amount: amount}, nil
}

func (b *BinancePay) do(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("BinancePay-Timestamp", timestamp)
	req.Header.Set("BinancePay-Nonce", nonce)
	req.Header.Set("BinancePay-Certificate-SN", b.apiKey)
	req.Header.Set("BinancePay-Signature", b.sign(timestamp, nonce, payload))

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: binance returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("binance request failed with %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (b *BinancePay) sign(timestamp, nonce string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(b.secretKey))
	mac.Write([]byte(timestamp + "\n" + nonce + "\n" + string(payload) + "\n"))
	return hex.EncodeToString(mac.Sum(nil))
}
