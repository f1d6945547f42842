package notify

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

	"github.com/rs/zerolog"
)

// SignPayload computes the hex HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a payload signature in constant time.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(signature))
}

// Webhook delivers notification requests to a single configured endpoint as
// signed JSON POSTs, retrying transient failures with increasing delays.
type Webhook struct {
	url         string
	secret      string
	client      *http.Client
	retryDelays []time.Duration
	logger      zerolog.Logger
}

func NewWebhook(url, secret string, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url:         url,
		secret:      secret,
		client:      &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		logger:      logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	sig := SignPayload(payload, w.secret)

	var lastErr error
	for attempt := 0; attempt <= len(w.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, err := w.post(ctx, payload, sig)
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("webhook endpoint returned status %d", status)
		}
		w.logger.Warn().
			Int("attempt", attempt+1).
			Err(lastErr).
			Msg("notification delivery failed")
	}
	return fmt.Errorf("deliver notification: %w", lastErr)
}

func (w *Webhook) post(ctx context.Context, payload []byte, sig string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
