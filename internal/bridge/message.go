// Package bridge implements the duplex message protocol between the host
// process, where tool logic runs, and the sandboxed panel.
//
// A Message is a JSON object tagged by a dot-namespaced type such as
// "recentnotes.refresh". Messages travel inside envelopes that carry the
// request/response correlation id.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is a wire message: {"type": "<tool>.<event>", ...fields}.
//
// Outgoing messages carry their fields in body, which must marshal to a JSON
// object (or be nil). Incoming messages keep the raw object and decode
// lazily through Decode and Field.
type Message struct {
	Type string

	body any
	raw  json.RawMessage
}

// NewMessage returns a message of type typ with the fields of body.
func NewMessage(typ string, body any) Message {
	return Message{Type: typ, body: body}
}

// Namespace returns the part of the type before the first dot.
func (m Message) Namespace() string {
	ns, _, _ := strings.Cut(m.Type, ".")
	return ns
}

// Event returns the part of the type after the first dot.
func (m Message) Event() string {
	_, ev, _ := strings.Cut(m.Type, ".")
	return ev
}

// MarshalJSON flattens the body fields next to "type".
func (m Message) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	switch {
	case m.raw != nil:
		if err := json.Unmarshal(m.raw, &fields); err != nil {
			return nil, fmt.Errorf("bridge: message %q: %w", m.Type, err)
		}
	case m.body != nil:
		data, err := json.Marshal(m.body)
		if err != nil {
			return nil, fmt.Errorf("bridge: message %q: %w", m.Type, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("bridge: message %q body is not an object: %w", m.Type, err)
		}
	}
	typ, err := json.Marshal(m.Type)
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}

// UnmarshalJSON keeps the raw object and extracts the type.
func (m *Message) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("bridge: decode message: %w", err)
	}
	m.Type = head.Type
	m.body = nil
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Decode unmarshals the message fields into v.
func (m Message) Decode(v any) error {
	data := m.raw
	if data == nil {
		var err error
		if data, err = json.Marshal(m); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("bridge: decode %q: %w", m.Type, err)
	}
	return nil
}

// Field returns the raw value of a single field.
func (m Message) Field(name string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := m.Decode(&fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	return v, ok
}
