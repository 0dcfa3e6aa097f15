package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/approval"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/ratelimit"
)

func newTestServer(t *testing.T) *httptest.Server {
	return newTestServerWithLimiter(t, ratelimit.NewMemoryLimiter())
}

func newTestServerWithLimiter(t *testing.T, limiter ratelimit.Limiter) *httptest.Server {
	t.Helper()
	st := approval.NewInMemoryStore()
	ledger := approval.NewLedger(st, nil)
	gate := approval.NewGate(st, nil)
	srv := httptest.NewServer(http.StripPrefix("/approvals", routes(st, ledger, gate, limiter)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body map[string]any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func seedPolicy(t *testing.T, srv *httptest.Server) {
	t.Helper()
	status, _ := postJSON(t, srv.URL+"/approvals/policies", map[string]any{
		"policy_id":           "pol_treasury",
		"name":                "Treasury payments",
		"network":             "testnet",
		"wallet_roles":        []string{"TREASURY"},
		"allowed_tx_types":    []string{"Payment"},
		"max_amount_xrp":      "500000",
		"rate_limit_per_min":  10,
		"requires_multi_sign": true,
		"min_signers":         2,
		"active":              true,
	})
	if status != 200 {
		t.Fatalf("seed policy: status %d", status)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedPolicy(t, srv)

	status, out := postJSON(t, srv.URL+"/approvals/evaluate", map[string]any{
		"network":     "testnet",
		"wallet_role": "TREASURY",
		"tx_type":     "Payment",
		"amount":      "600000",
	})
	if status != 200 {
		t.Fatalf("evaluate: status %d body %v", status, out)
	}
	dec := out["decision"].(map[string]any)
	if dec["outcome"] != "DENY" || dec["reason_code"] != "AMOUNT_EXCEEDS_LIMIT" {
		t.Fatalf("unexpected decision %v", dec)
	}

	status, out = postJSON(t, srv.URL+"/approvals/evaluate", map[string]any{
		"network":     "testnet",
		"wallet_role": "TREASURY",
		"tx_type":     "Payment",
		"amount":      "400000",
	})
	if status != 200 {
		t.Fatalf("evaluate: status %d", status)
	}
	dec = out["decision"].(map[string]any)
	if dec["outcome"] != "REQUIRE_MULTISIG" || dec["required_approvers"].(float64) != 2 {
		t.Fatalf("unexpected decision %v", dec)
	}
}

func TestEvaluateEndpointRateLimited(t *testing.T) {
	// Pin the limiter clock so the minute window cannot roll mid-test.
	limiter := ratelimit.NewMemoryLimiter()
	base := time.Now()
	limiter.Now = func() time.Time { return base }
	srv := newTestServerWithLimiter(t, limiter)
	seedPolicy(t, srv)

	body := map[string]any{
		"network":     "testnet",
		"wallet_role": "TREASURY",
		"tx_type":     "Payment",
	}
	for i := 0; i < 10; i++ {
		status, out := postJSON(t, srv.URL+"/approvals/evaluate", body)
		if status != 200 {
			t.Fatalf("call %d: status %d body %v", i+1, status, out)
		}
	}
	status, out := postJSON(t, srv.URL+"/approvals/evaluate", body)
	if status != 429 {
		t.Fatalf("11th call: status %d body %v", status, out)
	}
	errObj := out["error"].(map[string]any)
	if errObj["code"] != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED, got %v", errObj)
	}
}

func TestApprovalRequestLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, out := postJSON(t, srv.URL+"/approvals/requests", map[string]any{
		"action_type": "TRANSFER",
		"target_type": "wallet",
		"target_id":   "wal_1",
		"payload":     map[string]any{"destination": "rDest", "amount": "400000"},
		"requestor":   map[string]any{"user_id": "usr_req", "display_name": "Rita", "role": "TREASURY"},
		"required_approvers": 2,
		"expires_in_hours":   24,
	})
	if status != 201 {
		t.Fatalf("create: status %d body %v", status, out)
	}
	req := out["approval_request"].(map[string]any)
	id := req["request_id"].(string)

	sign := func(user string, approved bool) (int, map[string]any) {
		return postJSON(t, fmt.Sprintf("%s/approvals/requests/%s/signatures", srv.URL, id), map[string]any{
			"approver": map[string]any{"user_id": user, "display_name": user, "role": "OPS"},
			"approved": approved,
		})
	}

	// Self-approval forbidden.
	status, out = postJSON(t, fmt.Sprintf("%s/approvals/requests/%s/signatures", srv.URL, id), map[string]any{
		"approver": map[string]any{"user_id": "usr_req", "display_name": "Rita", "role": "TREASURY"},
		"approved": true,
	})
	if status != 403 {
		t.Fatalf("self-approval: status %d body %v", status, out)
	}

	if status, _ = sign("usr_a", true); status != 200 {
		t.Fatalf("first sign: status %d", status)
	}
	if status, out = sign("usr_a", true); status != 409 {
		t.Fatalf("duplicate sign: status %d body %v", status, out)
	}
	if status, out = sign("usr_b", true); status != 200 {
		t.Fatalf("second sign: status %d", status)
	}
	if out["approval_request"].(map[string]any)["status"] != "APPROVED" {
		t.Fatalf("expected APPROVED after quorum")
	}

	status, out = postJSON(t, fmt.Sprintf("%s/approvals/requests/%s/execute", srv.URL, id), map[string]any{"executed_by": "usr_exec"})
	if status != 200 || out["approval_request"].(map[string]any)["status"] != "EXECUTED" {
		t.Fatalf("execute: status %d body %v", status, out)
	}

	status, out = postJSON(t, fmt.Sprintf("%s/approvals/requests/%s/execute", srv.URL, id), map[string]any{"executed_by": "usr_exec2"})
	if status != 409 {
		t.Fatalf("second execute: status %d body %v", status, out)
	}
	errObj := out["error"].(map[string]any)
	if errObj["code"] != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %v", errObj)
	}
}

func TestCancelEndpointAuthorization(t *testing.T) {
	srv := newTestServer(t)

	_, out := postJSON(t, srv.URL+"/approvals/requests", map[string]any{
		"action_type": "ESCROW_CREATE",
		"target_type": "escrow",
		"target_id":   "esc_1",
		"payload":     map[string]any{"amount": "10"},
		"requestor":   map[string]any{"user_id": "usr_req", "display_name": "Rita", "role": "TREASURY"},
		"required_approvers": 1,
		"expires_in_hours":   1,
	})
	id := out["approval_request"].(map[string]any)["request_id"].(string)

	status, out := postJSON(t, fmt.Sprintf("%s/approvals/requests/%s/cancel", srv.URL, id), map[string]any{"user_id": "usr_other"})
	if status != 403 {
		t.Fatalf("cancel by stranger: status %d body %v", status, out)
	}

	status, out = postJSON(t, fmt.Sprintf("%s/approvals/requests/%s/cancel", srv.URL, id), map[string]any{"user_id": "usr_req"})
	if status != 200 || out["approval_request"].(map[string]any)["status"] != "CANCELLED" {
		t.Fatalf("cancel by requestor: status %d body %v", status, out)
	}
}
