package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/approval"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/config"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/db"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/httpx"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/notify"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/policy"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/ratelimit"
	"github.com/Accountabul/rwa-token-studio-sub002/services/approvals/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional, env overrides)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var st approval.Store
	if cfg.DatabaseURL != "" {
		pool := db.MustConnect(cfg.DatabaseURL)
		if err := store.Migrate(context.Background(), pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		st = store.New(pool)
	} else {
		log.Printf("no DATABASE_URL, using in-memory store (dev mode)")
		st = approval.NewInMemoryStore()
	}

	var events notify.Emitter = &notify.LogEmitter{}
	if cfg.Webhook.URL != "" {
		events = notify.NewWebhookEmitter(cfg.Webhook.URL, cfg.Webhook.Secret)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(opts))
	}

	if cfg.PolicySeedPath != "" {
		seeded, err := policy.LoadSeedFile(cfg.PolicySeedPath)
		if err != nil {
			log.Fatalf("policy seed: %v", err)
		}
		for _, p := range seeded {
			if _, err := st.UpsertPolicy(context.Background(), p); err != nil {
				log.Fatalf("policy seed upsert %s: %v", p.Name, err)
			}
		}
		log.Printf("seeded %d signing policies", len(seeded))
	}

	ledger := approval.NewLedger(st, events)
	gate := approval.NewGate(st, events)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Mount("/approvals", routes(st, ledger, gate, limiter))

	log.Printf("approvals service listening on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, r))
}

func routes(st approval.Store, ledger *approval.Ledger, gate *approval.Gate, limiter ratelimit.Limiter) chi.Router {
	api := chi.NewRouter()

	api.Post("/policies", func(w http.ResponseWriter, r *http.Request) {
		var p domain.SigningPolicy
		if err := httpx.ReadJSON(r, &p); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		saved, err := st.UpsertPolicy(r.Context(), p)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "policy": saved})
	})

	api.Get("/policies", func(w http.ResponseWriter, r *http.Request) {
		filter := approval.PolicyFilter{
			Network:    domain.Network(r.URL.Query().Get("network")),
			WalletRole: domain.WalletRole(r.URL.Query().Get("role")),
			ActiveOnly: r.URL.Query().Get("active") == "true",
		}
		policies, err := st.ListPolicies(r.Context(), filter)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "policies": policies})
	})

	api.Post("/policies/{policy_id}/activate", setActiveHandler(st, true))
	api.Post("/policies/{policy_id}/deactivate", setActiveHandler(st, false))

	api.Post("/evaluate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Network      domain.Network    `json:"network"`
			WalletRole   domain.WalletRole `json:"wallet_role"`
			TxType       domain.TxType     `json:"tx_type"`
			Amount       *string           `json:"amount,omitempty"`
			DailyTxCount *int              `json:"daily_tx_count,omitempty"`
		}
		if err := httpx.ReadJSON(r, &req); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		if !req.Network.Valid() || !req.WalletRole.Valid() || !req.TxType.Valid() {
			httpx.WriteError(w, 400, "VALIDATION_ERROR", "unknown network, wallet_role or tx_type", nil)
			return
		}
		in := policy.Input{Network: req.Network, WalletRole: req.WalletRole, TxType: req.TxType, DailyTxCount: req.DailyTxCount}
		if req.Amount != nil {
			amt, err := decimal.NewFromString(*req.Amount)
			if err != nil {
				httpx.WriteError(w, 400, "VALIDATION_ERROR", "amount: "+err.Error(), nil)
				return
			}
			in.Amount = &amt
		}

		policies, err := st.ListPolicies(r.Context(), approval.PolicyFilter{
			Network: req.Network, WalletRole: req.WalletRole, ActiveOnly: true,
		})
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		dec := policy.Evaluate(in, policies)

		if dec.RateLimitPerMin > 0 {
			key := string(req.Network) + ":" + string(req.WalletRole)
			ok, err := limiter.Allow(r.Context(), key, dec.RateLimitPerMin)
			if err != nil {
				httpx.WriteError(w, 500, "RATE_LIMITER_ERROR", err.Error(), nil)
				return
			}
			if !ok {
				httpx.WriteError(w, 429, "RATE_LIMITED", "rate limit exceeded for role on network", map[string]any{
					"rate_limit_per_min": dec.RateLimitPerMin,
				})
				return
			}
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "decision": dec})
	})

	api.Post("/requests", func(w http.ResponseWriter, r *http.Request) {
		var params approval.CreateParams
		if err := httpx.ReadJSON(r, &params); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		req, err := ledger.CreateRequest(r.Context(), params)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "approval_request": req})
	})

	api.Get("/requests", func(w http.ResponseWriter, r *http.Request) {
		filter := approval.RequestFilter{
			Status:     domain.RequestStatus(r.URL.Query().Get("status")),
			ActionType: domain.ActionType(r.URL.Query().Get("action_type")),
			TargetID:   r.URL.Query().Get("target_id"),
		}
		reqs, err := ledger.ListRequests(r.Context(), filter)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approval_requests": reqs})
	})

	api.Get("/requests/{request_id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "request_id")
		req, err := ledger.GetRequest(r.Context(), id)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		sigs, err := ledger.ListSignatures(r.Context(), id)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approval_request": req, "signatures": sigs})
	})

	api.Post("/requests/{request_id}/signatures", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Approver approval.Identity `json:"approver"`
			Approved bool              `json:"approved"`
			Notes    string            `json:"notes,omitempty"`
		}
		if err := httpx.ReadJSON(r, &body); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		req, err := ledger.Sign(r.Context(), approval.SignParams{
			RequestID: chi.URLParam(r, "request_id"),
			Approver:  body.Approver,
			Approved:  body.Approved,
			Notes:     body.Notes,
		})
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approval_request": req})
	})

	api.Post("/requests/{request_id}/execute", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ExecutedBy string `json:"executed_by"`
		}
		if err := httpx.ReadJSON(r, &body); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		if body.ExecutedBy == "" {
			httpx.WriteError(w, 400, "VALIDATION_ERROR", "executed_by is required", nil)
			return
		}
		req, err := gate.Execute(r.Context(), chi.URLParam(r, "request_id"), body.ExecutedBy)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approval_request": req})
	})

	api.Post("/requests/{request_id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := httpx.ReadJSON(r, &body); err != nil {
			httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
			return
		}
		req, err := gate.Cancel(r.Context(), chi.URLParam(r, "request_id"), body.UserID)
		if err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approval_request": req})
	})

	return api
}

func setActiveHandler(st approval.Store, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "policy_id")
		if err := st.SetPolicyActive(r.Context(), id, active); err != nil {
			httpx.WriteDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "policy_id": id, "active": active})
	}
}
