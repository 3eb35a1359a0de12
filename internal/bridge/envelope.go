package bridge

import (
	"encoding/json"

	"github.com/oklog/ulid/v2"
)

// Kind tells the receiving endpoint how to route an envelope.
type Kind string

// Envelope kinds.
const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindEvent    Kind = "event"
)

// Envelope is the unit a Transport carries. Requests and events carry a
// Message; responses carry the Result of the request with the same ID.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Kind    Kind            `json:"kind"`
	Message *Message        `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func newID() string {
	return ulid.Make().String()
}

func requestEnvelope(msg Message) Envelope {
	return Envelope{ID: newID(), Kind: KindRequest, Message: &msg}
}

func eventEnvelope(msg Message) Envelope {
	return Envelope{Kind: KindEvent, Message: &msg}
}

func responseEnvelope(id string, result json.RawMessage) Envelope {
	if result == nil {
		result = json.RawMessage("null")
	}
	return Envelope{ID: id, Kind: KindResponse, Result: result}
}

// valid reports whether the envelope can be routed.
func (e Envelope) valid() bool {
	switch e.Kind {
	case KindRequest:
		return e.ID != "" && e.Message != nil && e.Message.Type != ""
	case KindEvent:
		return e.Message != nil && e.Message.Type != ""
	case KindResponse:
		return e.ID != ""
	default:
		return false
	}
}
