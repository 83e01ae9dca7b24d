package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	TypePing      = "ping"
	TypeEmpty     = "empty"
	TypeDiff      = "diff"
	TypeFullState = "fullstate"
)

var (
	pingPayload  = []byte(`{"type":"ping"}`)
	emptyPayload = []byte(`{"type":"empty"}`)
)

// IsReserved reports whether t is owned by the replication layer.
func IsReserved(t string) bool {
	switch t {
	case TypePing, TypeEmpty, TypeDiff, TypeFullState:
		return true
	default:
		return false
	}
}

// Message is one decoded envelope. Diff and FullState are only set for their
// reserved types; Raw always holds the complete object as received.
type Message struct {
	Type      string
	Diff      json.RawMessage
	FullState json.RawMessage
	Raw       json.RawMessage
}

func (m Message) Reserved() bool {
	return IsReserved(m.Type)
}

// Decode unmarshals the full envelope into v.
func (m Message) Decode(v any) error {
	if len(m.Raw) == 0 {
		return fmt.Errorf("%w: empty message", ErrMalformed)
	}
	return json.Unmarshal(m.Raw, v)
}

type envelope struct {
	Type      *string         `json:"type"`
	Diff      json.RawMessage `json:"diff"`
	FullState json.RawMessage `json:"fullstate"`
}

// Decode parses one wire payload into a Message.
func Decode(payload []byte) (Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if !isObject(trimmed) {
		return Message{}, fmt.Errorf("%w: payload is not a json object", ErrMalformed)
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil || *env.Type == "" {
		return Message{}, ErrMissingType
	}
	msg := Message{
		Type: *env.Type,
		Raw:  append(json.RawMessage(nil), trimmed...),
	}
	switch msg.Type {
	case TypeDiff:
		if isAbsent(env.Diff) {
			return Message{}, fmt.Errorf("%w: diff message without diff", ErrMalformed)
		}
		msg.Diff = env.Diff
	case TypeFullState:
		if !isObject(bytes.TrimSpace(env.FullState)) {
			return Message{}, fmt.Errorf("%w: fullstate must be a json object", ErrMalformed)
		}
		msg.FullState = env.FullState
	}
	return msg, nil
}

func Ping() []byte {
	return bytes.Clone(pingPayload)
}

func Empty() []byte {
	return bytes.Clone(emptyPayload)
}

func EncodeDiff(delta json.RawMessage) ([]byte, error) {
	if isAbsent(delta) {
		return nil, fmt.Errorf("%w: empty diff", ErrMalformed)
	}
	return json.Marshal(struct {
		Type string          `json:"type"`
		Diff json.RawMessage `json:"diff"`
	}{Type: TypeDiff, Diff: delta})
}

func EncodeFullState(state json.RawMessage) ([]byte, error) {
	if !isObject(bytes.TrimSpace(state)) {
		return nil, fmt.Errorf("%w: fullstate must be a json object", ErrMalformed)
	}
	return json.Marshal(struct {
		Type      string          `json:"type"`
		FullState json.RawMessage `json:"fullstate"`
	}{Type: TypeFullState, FullState: state})
}

// EncodeApp serializes an application message. The value must encode to an object
// whose type is set and not reserved. A received Message is forwarded as-is.
func EncodeApp(v any) ([]byte, error) {
	var payload []byte
	switch m := v.(type) {
	case Message:
		payload = m.Raw
	case json.RawMessage:
		payload = m
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		payload = b
	}
	payload = bytes.TrimSpace(payload)
	if !isObject(payload) {
		return nil, fmt.Errorf("%w: application message is not a json object", ErrMalformed)
	}
	var env struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil || *env.Type == "" {
		return nil, ErrMissingType
	}
	if IsReserved(*env.Type) {
		return nil, fmt.Errorf("%w: %q", ErrReservedType, *env.Type)
	}
	return bytes.Clone(payload), nil
}

func isObject(b []byte) bool {
	return len(b) >= 2 && b[0] == '{' && b[len(b)-1] == '}'
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
