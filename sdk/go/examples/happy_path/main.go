// End-to-end walk of the approvals API against a running service:
// seed a policy, evaluate a transaction, raise a request, collect two
// approvals and execute. Point APPROVALS_URL at the service (defaults
// to the dev address).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	approvals "github.com/Accountabul/rwa-token-studio-sub002/sdk/go/approvals"
)

func main() {
	base := os.Getenv("APPROVALS_URL")
	if base == "" {
		base = "http://localhost:8084"
	}
	client := approvals.New(base)
	ctx := context.Background()

	maxAmount := "500000"
	policy, err := client.UpsertPolicy(ctx, approvals.Policy{
		Name:              "Treasury payments",
		Network:           "testnet",
		WalletRoles:       []string{"TREASURY"},
		AllowedTxTypes:    []string{"Payment"},
		MaxAmountXRP:      &maxAmount,
		RateLimitPerMin:   30,
		RequiresMultiSign: true,
		MinSigners:        2,
		Active:            true,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("policy %s active\n", policy.PolicyID)

	amount := "400000"
	decision, err := client.Evaluate(ctx, approvals.EvaluateInput{
		Network: "testnet", WalletRole: "TREASURY", TxType: "Payment", Amount: &amount,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("evaluate: %s (%d approvers)\n", decision.Outcome, decision.RequiredApprovers)
	if decision.Outcome != "REQUIRE_MULTISIG" {
		fmt.Println("nothing to approve, done")
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"destination": "rDestinationAccount",
		"amount":      amount,
		"network":     "testnet",
	})
	req, err := client.CreateRequest(ctx, approvals.CreateRequestInput{
		ActionType:        "TRANSFER",
		TargetType:        "wallet",
		TargetID:          "wal_treasury",
		Payload:           payload,
		Requestor:         approvals.Identity{UserID: "usr_rita", DisplayName: "Rita", Role: "TREASURY"},
		PolicyID:          decision.PolicyID,
		RequiredApprovers: decision.RequiredApprovers,
		ExpiresInHours:    24,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("request %s raised (%s)\n", req.RequestID, req.Status)

	for _, approver := range []approvals.Identity{
		{UserID: "usr_omar", DisplayName: "Omar", Role: "OPS"},
		{UserID: "usr_chen", DisplayName: "Chen", Role: "COMPLIANCE"},
	} {
		req, err = client.Sign(ctx, req.RequestID, approver, true, "")
		if err != nil {
			panic(err)
		}
		fmt.Printf("signed by %s: %d/%d (%s)\n", approver.UserID, req.CurrentApprovals, req.RequiredApprovers, req.Status)
	}

	req, err = client.Execute(ctx, req.RequestID, "usr_rita")
	if err != nil {
		panic(err)
	}
	fmt.Printf("executed at %s by %s\n", req.ExecutedAt, *req.ExecutedBy)
}
