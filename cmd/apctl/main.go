package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Accountabul/rwa-token-studio-sub002/sdk/go/approvals"
)

const usage = `usage:
  apctl policy list [--network <net>] [--role <role>] [--active]
  apctl policy upsert --file <policy.json>
  apctl request get --id <request_id>
  apctl request execute --id <request_id> --by <user_id>

The service base URL comes from APPROVALS_URL (default http://localhost:8084).`

func main() {
	if len(os.Args) < 3 {
		fail(usage)
	}
	client := approvals.New(baseURL())
	switch os.Args[1] + " " + os.Args[2] {
	case "policy list":
		runPolicyList(client, os.Args[3:])
	case "policy upsert":
		runPolicyUpsert(client, os.Args[3:])
	case "request get":
		runRequestGet(client, os.Args[3:])
	case "request execute":
		runRequestExecute(client, os.Args[3:])
	default:
		fail(usage)
	}
}

func baseURL() string {
	if v := os.Getenv("APPROVALS_URL"); v != "" {
		return v
	}
	return "http://localhost:8084"
}

func runPolicyList(client *approvals.Client, args []string) {
	fs := flag.NewFlagSet("policy list", flag.ExitOnError)
	network := fs.String("network", "", "filter by network")
	role := fs.String("role", "", "filter by wallet role")
	active := fs.Bool("active", false, "only active policies")
	_ = fs.Parse(args)

	policies, err := client.ListPolicies(context.Background(), *network, *role, *active)
	if err != nil {
		fail(err.Error())
	}
	printJSON(policies)
}

func runPolicyUpsert(client *approvals.Client, args []string) {
	fs := flag.NewFlagSet("policy upsert", flag.ExitOnError)
	file := fs.String("file", "", "path to policy JSON")
	_ = fs.Parse(args)
	if *file == "" {
		fail(usage)
	}

	// #nosec G304 -- operator-provided path.
	raw, err := os.ReadFile(*file)
	if err != nil {
		fail(err.Error())
	}
	var p approvals.Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		fail("policy json: " + err.Error())
	}
	saved, err := client.UpsertPolicy(context.Background(), p)
	if err != nil {
		fail(err.Error())
	}
	printJSON(saved)
}

func runRequestGet(client *approvals.Client, args []string) {
	fs := flag.NewFlagSet("request get", flag.ExitOnError)
	id := fs.String("id", "", "approval request id")
	_ = fs.Parse(args)
	if *id == "" {
		fail(usage)
	}

	req, err := client.GetRequest(context.Background(), *id)
	if err != nil {
		fail(err.Error())
	}
	printJSON(req)
}

func runRequestExecute(client *approvals.Client, args []string) {
	fs := flag.NewFlagSet("request execute", flag.ExitOnError)
	id := fs.String("id", "", "approval request id")
	by := fs.String("by", "", "executing user id")
	_ = fs.Parse(args)
	if *id == "" || *by == "" {
		fail(usage)
	}

	req, err := client.Execute(context.Background(), *id, *by)
	if err != nil {
		fail(err.Error())
	}
	printJSON(req)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(string(out))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
