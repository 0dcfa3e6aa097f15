package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEvaluateDecodesDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/approvals/evaluate" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in EvaluateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if in.WalletRole != "TREASURY" || in.Amount == nil || *in.Amount != "400000" {
			t.Fatalf("unexpected input %+v", in)
		}
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_1",
			"decision": map[string]any{
				"outcome":            "REQUIRE_MULTISIG",
				"policy_id":          "pol_1",
				"required_approvers": 2,
			},
		})
	}))
	defer srv.Close()

	amount := "400000"
	dec, err := New(srv.URL).Evaluate(context.Background(), EvaluateInput{
		Network: "testnet", WalletRole: "TREASURY", TxType: "Payment", Amount: &amount,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if dec.Outcome != "REQUIRE_MULTISIG" || dec.PolicyID != "pol_1" || dec.RequiredApprovers != 2 {
		t.Fatalf("unexpected decision %+v", dec)
	}
}

func TestErrorEnvelopeMapsToError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(409)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req_9",
			"error":      map[string]any{"code": "DUPLICATE_SIGNATURE", "message": "approver already signed"},
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Sign(context.Background(), "apr_1", Identity{UserID: "usr_a", DisplayName: "A", Role: "OPS"}, true, "")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != 409 || apiErr.ErrorCode != "DUPLICATE_SIGNATURE" || apiErr.RequestID != "req_9" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestErrorOnNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", 502)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetRequest(context.Background(), "apr_1")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != 502 || apiErr.ErrorCode != "" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestSetPolicyActivePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req_2", "policy_id": "pol_1", "active": false})
	}))
	defer srv.Close()

	if err := New(srv.URL).SetPolicyActive(context.Background(), "pol_1", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if gotPath != "/approvals/policies/pol_1/deactivate" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}
