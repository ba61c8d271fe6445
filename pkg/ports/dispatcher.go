package ports

import "context"

// Event types emitted after a committed mutation.
const (
	EventGraphCreated   = "graph.created"
	EventGraphReplaced  = "graph.replaced"
	EventDeviceAssigned = "device.assigned"
)

// Event describes a committed change for downstream processing.
type Event struct {
	Type     string `json:"type"`
	OrgID    string `json:"orgId"`
	GraphID  string `json:"graphId,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// Dispatcher hands committed events to the job/event queue. Dispatch runs
// after the transaction commits; a dispatch failure never rolls it back.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event) error
}

// NopDispatcher discards all events.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) error { return nil }
