// Package approvals is a thin typed client for the approvals service HTTP
// API. It mirrors the wire shapes of the service and maps its error
// envelope onto *Error.
package approvals

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
)

type Error struct {
	StatusCode int
	ErrorCode  string
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("approvals sdk error: status=%d code=%s message=%s", e.StatusCode, e.ErrorCode, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type Policy struct {
	PolicyID          string   `json:"policy_id,omitempty"`
	Name              string   `json:"name"`
	Network           string   `json:"network"`
	WalletRoles       []string `json:"wallet_roles"`
	AllowedTxTypes    []string `json:"allowed_tx_types"`
	MaxAmountXRP      *string  `json:"max_amount_xrp,omitempty"`
	MaxDailyTxs       *int     `json:"max_daily_txs,omitempty"`
	RateLimitPerMin   int      `json:"rate_limit_per_min"`
	RequiresMultiSign bool     `json:"requires_multi_sign"`
	MinSigners        int      `json:"min_signers"`
	Active            bool     `json:"active"`
}

type Decision struct {
	Outcome           string  `json:"outcome"`
	Reason            string  `json:"reason,omitempty"`
	ReasonCode        string  `json:"reason_code,omitempty"`
	PolicyID          string  `json:"policy_id,omitempty"`
	RequiredApprovers int     `json:"required_approvers,omitempty"`
	RateLimitPerMin   int     `json:"rate_limit_per_min,omitempty"`
	MaxAmountXRP      *string `json:"max_amount_xrp,omitempty"`
}

type ApprovalRequest struct {
	RequestID         string          `json:"request_id"`
	ActionType        string          `json:"action_type"`
	TargetType        string          `json:"target_type"`
	TargetID          string          `json:"target_id"`
	Payload           json.RawMessage `json:"payload"`
	PayloadSHA256     string          `json:"payload_sha256"`
	RequestedBy       string          `json:"requested_by"`
	RequiredApprovers int             `json:"required_approvers"`
	CurrentApprovals  int             `json:"current_approvals"`
	Status            string          `json:"status"`
	RequestedAt       time.Time       `json:"requested_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
	ExecutedAt        *time.Time      `json:"executed_at,omitempty"`
	ExecutedBy        *string         `json:"executed_by,omitempty"`
}

func (c *Client) UpsertPolicy(ctx context.Context, p Policy) (Policy, error) {
	var out struct {
		Policy Policy `json:"policy"`
	}
	err := c.do(ctx, http.MethodPost, "/approvals/policies", p, &out)
	return out.Policy, err
}

func (c *Client) ListPolicies(ctx context.Context, network, role string, activeOnly bool) ([]Policy, error) {
	q := url.Values{}
	if network != "" {
		q.Set("network", network)
	}
	if role != "" {
		q.Set("role", role)
	}
	if activeOnly {
		q.Set("active", "true")
	}
	path := "/approvals/policies"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Policies []Policy `json:"policies"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Policies, err
}

func (c *Client) SetPolicyActive(ctx context.Context, policyID string, active bool) error {
	verb := "deactivate"
	if active {
		verb = "activate"
	}
	return c.do(ctx, http.MethodPost, "/approvals/policies/"+policyID+"/"+verb, struct{}{}, nil)
}

type EvaluateInput struct {
	Network      string  `json:"network"`
	WalletRole   string  `json:"wallet_role"`
	TxType       string  `json:"tx_type"`
	Amount       *string `json:"amount,omitempty"`
	DailyTxCount *int    `json:"daily_tx_count,omitempty"`
}

func (c *Client) Evaluate(ctx context.Context, in EvaluateInput) (Decision, error) {
	var out struct {
		Decision Decision `json:"decision"`
	}
	err := c.do(ctx, http.MethodPost, "/approvals/evaluate", in, &out)
	return out.Decision, err
}

type CreateRequestInput struct {
	ActionType        string          `json:"action_type"`
	TargetType        string          `json:"target_type"`
	TargetID          string          `json:"target_id"`
	Payload           json.RawMessage `json:"payload"`
	Requestor         Identity        `json:"requestor"`
	PolicyID          string          `json:"policy_id,omitempty"`
	RequiredApprovers int             `json:"required_approvers"`
	ExpiresInHours    float64         `json:"expires_in_hours"`
}

func (c *Client) CreateRequest(ctx context.Context, in CreateRequestInput) (ApprovalRequest, error) {
	var out struct {
		ApprovalRequest ApprovalRequest `json:"approval_request"`
	}
	err := c.do(ctx, http.MethodPost, "/approvals/requests", in, &out)
	return out.ApprovalRequest, err
}

func (c *Client) GetRequest(ctx context.Context, requestID string) (ApprovalRequest, error) {
	var out struct {
		ApprovalRequest ApprovalRequest `json:"approval_request"`
	}
	err := c.do(ctx, http.MethodGet, "/approvals/requests/"+requestID, nil, &out)
	return out.ApprovalRequest, err
}

func (c *Client) Sign(ctx context.Context, requestID string, approver Identity, approved bool, notes string) (ApprovalRequest, error) {
	body := map[string]any{"approver": approver, "approved": approved}
	if notes != "" {
		body["notes"] = notes
	}
	var out struct {
		ApprovalRequest ApprovalRequest `json:"approval_request"`
	}
	err := c.do(ctx, http.MethodPost, "/approvals/requests/"+requestID+"/signatures", body, &out)
	return out.ApprovalRequest, err
}

func (c *Client) Execute(ctx context.Context, requestID, executedBy string) (ApprovalRequest, error) {
	var out struct {
		ApprovalRequest ApprovalRequest `json:"approval_request"`
	}
	err := c.do(ctx, http.MethodPost, "/approvals/requests/"+requestID+"/execute", map[string]any{"executed_by": executedBy}, &out)
	return out.ApprovalRequest, err
}

func (c *Client) Cancel(ctx context.Context, requestID, userID string) (ApprovalRequest, error) {
	var out struct {
		ApprovalRequest ApprovalRequest `json:"approval_request"`
	}
	err := c.do(ctx, http.MethodPost, "/approvals/requests/"+requestID+"/cancel", map[string]any{"user_id": userID}, &out)
	return out.ApprovalRequest, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			RequestID string `json:"request_id"`
			Err       struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &envelope)
		return &Error{
			StatusCode: resp.StatusCode,
			ErrorCode:  envelope.Err.Code,
			Message:    envelope.Err.Message,
			RequestID:  envelope.RequestID,
		}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
