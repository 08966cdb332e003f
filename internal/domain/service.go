package domain

import (
	"fmt"
	"time"
)

type DecisionState string

const (
	DecisionNone     DecisionState = "none"
	DecisionTaken    DecisionState = "taken"
	DecisionRejected DecisionState = "rejected"
)

// Decision records the terminal operator action on a service. Once set it is
// never changed.
type Decision struct {
	State   DecisionState
	By      string
	Minutes int
}

type RecordState string

const (
	StateCollecting     RecordState = "collecting"
	StateAwaitingTiming RecordState = "awaiting_timing"
	StateReady          RecordState = "ready"
	StateTaken          RecordState = "taken"
	StateRejected       RecordState = "rejected"
)

// ServiceRecord is one in-flight dispatch notification while it collects its
// extracted fields, map link and timing estimate and waits for an operator.
type ServiceRecord struct {
	ID           string
	OriginChatID int64
	CreatedAt    time.Time

	// Messages holds the extracted fields in their positional order
	// (expediente, vehiculo, placas, cliente, cuenta, entre calles, referencia).
	Messages    []string
	MapURL      string
	Coordinates []string

	// RenderedMessageID points at the chat message currently displaying this
	// record; zero means nothing rendered yet.
	RenderedMessageID int

	WaitingForTiming  bool
	HasTimings        bool
	SelectingDuration bool

	Decision Decision
}

func NewServiceID(originChatID int64, now time.Time) string {
	return fmt.Sprintf("service_%d_%d", now.UnixMilli(), originChatID)
}

func (r *ServiceRecord) HasURL() bool {
	return r.MapURL != ""
}

// Complete reports whether both halves (extracted fields and map link) have
// arrived.
func (r *ServiceRecord) Complete() bool {
	return len(r.Messages) > 0 && r.MapURL != "" && len(r.Coordinates) > 0
}

func (r *ServiceRecord) Decided() bool {
	return r.Decision.State != DecisionNone
}

func (r *ServiceRecord) State() RecordState {
	switch r.Decision.State {
	case DecisionTaken:
		return StateTaken
	case DecisionRejected:
		return StateRejected
	}
	if r.HasTimings {
		return StateReady
	}
	if r.Complete() {
		return StateAwaitingTiming
	}
	return StateCollecting
}

// Clone returns an independent copy safe to read outside the cache lock.
func (r *ServiceRecord) Clone() *ServiceRecord {
	clone := *r
	clone.Messages = append([]string(nil), r.Messages...)
	clone.Coordinates = append([]string(nil), r.Coordinates...)
	return &clone
}
