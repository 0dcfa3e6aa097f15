package approvals

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	webhookSignatureHeader = "X-Signature"
	webhookEventIDHeader   = "X-Event-Id"
	webhookEventTypeHeader = "X-Event-Type"

	// WebhookScheme names the signing scheme the service uses on outgoing
	// event posts.
	WebhookScheme = "generic-hmac-sha256/v1"
)

// WebhookEvent is the envelope of an event delivered by the service's
// webhook emitter.
type WebhookEvent struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Status    string         `json:"status"`
	At        time.Time      `json:"at"`
	Data      map[string]any `json:"data,omitempty"`
}

// WebhookVerification reports the outcome of checking an incoming webhook
// delivery against the shared secret.
type WebhookVerification struct {
	Valid     bool
	Scheme    string
	EventID   string
	EventType string
}

// VerifyWebhook checks the X-Signature header of a delivered event against
// the hex HMAC-SHA256 of the raw body. Callers must pass the body exactly
// as received; re-serialized JSON will not match.
func VerifyWebhook(headers http.Header, rawBody []byte, secret string) (WebhookVerification, error) {
	if strings.TrimSpace(secret) == "" {
		return WebhookVerification{}, fmt.Errorf("webhook secret is empty")
	}

	res := WebhookVerification{
		Scheme:    WebhookScheme,
		EventID:   strings.TrimSpace(headers.Get(webhookEventIDHeader)),
		EventType: strings.TrimSpace(headers.Get(webhookEventTypeHeader)),
	}

	sigHex := strings.TrimSpace(headers.Get(webhookSignatureHeader))
	if sigHex == "" {
		return res, nil
	}
	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		return res, nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	res.Valid = hmac.Equal(mac.Sum(nil), provided)
	return res, nil
}
