package approval

import (
	"context"
	"time"

	"github.com/Accountabul/rwa-token-studio-sub002/pkg/domain"
	"github.com/Accountabul/rwa-token-studio-sub002/pkg/notify"
)

// Gate is the execution gate: it moves an APPROVED request to EXECUTED
// exactly once, and lets the original requestor cancel while PENDING. Both
// transitions ride a single compare-and-set at the store; the gate never
// does a read-then-write on status.
type Gate struct {
	store  Store
	events notify.Emitter

	Now func() time.Time
}

func NewGate(store Store, events notify.Emitter) *Gate {
	if events == nil {
		events = notify.NopEmitter{}
	}
	return &Gate{store: store, events: events, Now: time.Now}
}

// Execute transitions APPROVED -> EXECUTED. Under concurrent callers at
// most one succeeds; the rest observe the conflict and get an
// InvalidStateError carrying the state they actually found.
func (g *Gate) Execute(ctx context.Context, requestID, executedBy string) (*domain.ApprovalRequest, error) {
	now := g.Now().UTC()
	if err := g.expireIfDue(ctx, requestID, now); err != nil {
		return nil, err
	}

	patch := StatusPatch{ExecutedAt: &now, ExecutedBy: &executedBy}
	ok, err := g.store.UpdateStatus(ctx, requestID, domain.StatusApproved, domain.StatusExecuted, patch)
	if err != nil {
		return nil, err
	}
	req, err := g.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.InvalidStateError{RequestID: requestID, From: req.Status, To: domain.StatusExecuted}
	}

	g.events.Emit(notify.Event{
		EventID:   notify.NewEventID(),
		Type:      notify.EventRequestExecuted,
		RequestID: req.RequestID,
		Status:    string(req.Status),
		At:        now,
		Data:      map[string]any{"executed_by": executedBy},
	})
	return &req, nil
}

// expireIfDue persists expiry before the execute attempt so an APPROVED
// request past its deadline can never slip through the gate. The transition
// itself is the same conditional write; a CAS miss just means someone else
// settled the request first.
func (g *Gate) expireIfDue(ctx context.Context, requestID string, now time.Time) error {
	req, err := g.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() || !req.Expired(now) {
		return nil
	}
	ok, err := g.store.UpdateStatus(ctx, requestID, req.Status, domain.StatusExpired, StatusPatch{})
	if err != nil {
		return err
	}
	if ok {
		g.events.Emit(notify.Event{
			EventID:   notify.NewEventID(),
			Type:      notify.EventRequestExpired,
			RequestID: req.RequestID,
			Status:    string(domain.StatusExpired),
			At:        now,
		})
	}
	return nil
}

// Cancel is requestor-only and legal only while the request is PENDING.
func (g *Gate) Cancel(ctx context.Context, requestID, userID string) (*domain.ApprovalRequest, error) {
	req, err := g.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if userID != req.RequestedBy {
		return nil, &domain.NotAuthorizedError{UserID: userID, Reason: "only the requestor may cancel"}
	}

	ok, err := g.store.UpdateStatus(ctx, requestID, domain.StatusPending, domain.StatusCancelled, StatusPatch{})
	if err != nil {
		return nil, err
	}
	req, err = g.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.InvalidStateError{RequestID: requestID, From: req.Status, To: domain.StatusCancelled}
	}

	g.events.Emit(notify.Event{
		EventID:   notify.NewEventID(),
		Type:      notify.EventRequestCancelled,
		RequestID: req.RequestID,
		Status:    string(req.Status),
		At:        g.Now().UTC(),
		Data:      map[string]any{"cancelled_by": userID},
	})
	return &req, nil
}
