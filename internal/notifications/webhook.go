package notifications

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent       = "BillPay-Webhook/1.0"
	signatureHeader = "X-Webhook-Signature"
)

// WebhookClient posts JSON payloads to external endpoints.
type WebhookClient struct {
	httpClient *http.Client
	secret     []byte
}

func NewWebhookClient(timeout time.Duration, secret string) *WebhookClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookClient{
		httpClient: &http.Client{Timeout: timeout},
		secret:     []byte(secret),
	}
}

// Send POSTs payload as JSON. Any 2xx response is success.
func (c *WebhookClient) Send(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if len(c.secret) > 0 {
		req.Header.Set(signatureHeader, Sign(c.secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
