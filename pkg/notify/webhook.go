package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const (
	signatureHeader = "X-Signature"
	eventIDHeader   = "X-Event-Id"
	eventTypeHeader = "X-Event-Type"
	signatureScheme = "generic-hmac-sha256/v1"
)

// WebhookEmitter POSTs each event as JSON to a single endpoint, signing the
// body with HMAC-SHA256 so the receiver can verify origin. Posts run on
// their own goroutine with a short timeout; failures are logged and dropped.
type WebhookEmitter struct {
	URL    string
	Secret string
	Client *http.Client
	Logger *log.Logger
}

func NewWebhookEmitter(url, secret string) *WebhookEmitter {
	return &WebhookEmitter{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *WebhookEmitter) Emit(ev Event) {
	go w.post(ev)
}

func (w *WebhookEmitter) post(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		w.logf("notify: marshal event %s: %v", ev.EventID, err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		w.logf("notify: build request for event %s: %v", ev.EventID, err)
		return
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set(eventIDHeader, ev.EventID)
	req.Header.Set(eventTypeHeader, ev.Type)
	req.Header.Set(signatureHeader, Sign(w.Secret, body))

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		w.logf("notify: post event %s: %v", ev.EventID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.logf("notify: post event %s: receiver returned %d", ev.EventID, resp.StatusCode)
	}
}

func (w *WebhookEmitter) logf(format string, args ...any) {
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}

// Sign computes the hex HMAC-SHA256 the receiver checks against X-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Scheme names the signing scheme for receivers that track one.
func Scheme() string { return signatureScheme }
