package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

// RemoteGateway opens sessions through the payment service over HTTP.
// The payment service forwards the provider's callback parameters
// untouched, so callbacks are verified with the VNPay scheme.
type RemoteGateway struct {
	baseURL  string
	client   *http.Client
	verifier *VNPay
}

// NewRemoteGateway returns a gateway for the payment service at baseURL.
// The client timeout is a backstop; callers bound each call with their
// own context deadline.
func NewRemoteGateway(baseURL string, verifier *VNPay, timeout time.Duration) *RemoteGateway {
	return &RemoteGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		verifier: verifier,
	}
}

type createPaymentRequest struct {
	BookingID string `json:"booking_id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	OrderInfo string `json:"order_info,omitempty"`
	IP        string `json:"ip,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

type createPaymentResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (g *RemoteGateway) CreateSession(ctx context.Context, req model.PaymentRequest) (string, error) {
	body, err := json.Marshal(createPaymentRequest{
		BookingID: req.BookingID,
		Reference: req.Reference,
		Amount:    req.Amount,
		OrderInfo: req.OrderInfo,
		IP:        req.ClientIP,
		ExpiresAt: req.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/v1/payments", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPaymentProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", model.ErrPaymentProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("payment service rejected session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out createPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", model.ErrPaymentProviderUnavailable, err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: empty payment url", model.ErrPaymentProviderUnavailable)
	}
	return out.URL, nil
}

func (g *RemoteGateway) VerifyCallback(params url.Values) (model.PaymentCallback, error) {
	return g.verifier.VerifyCallback(params)
}
