package notify

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// Event types emitted on approval-request state transitions.
const (
	EventRequestCreated   = "request.created"
	EventRequestSigned    = "request.signed"
	EventRequestApproved  = "request.approved"
	EventRequestRejected  = "request.rejected"
	EventRequestExecuted  = "request.executed"
	EventRequestExpired   = "request.expired"
	EventRequestCancelled = "request.cancelled"
)

type Event struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Status    string         `json:"status"`
	At        time.Time      `json:"at"`
	Data      map[string]any `json:"data,omitempty"`
}

func NewEventID() string { return "evt_" + uuid.NewString() }

// Emitter delivers a transition event for downstream audit/notification.
// Delivery is fire-and-forget: implementations must never block the caller
// on the outcome and must never surface delivery failures into the core.
type Emitter interface {
	Emit(ev Event)
}

// LogEmitter writes one line per event. Dev default.
type LogEmitter struct {
	Logger *log.Logger
}

func (l *LogEmitter) Emit(ev Event) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("event type=%s request_id=%s status=%s event_id=%s", ev.Type, ev.RequestID, ev.Status, ev.EventID)
}

// NopEmitter drops everything. Test default.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
