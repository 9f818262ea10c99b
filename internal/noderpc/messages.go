package noderpc

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the client's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState is one point on the client's state stream. Err is set only
// for StateError.
type ConnectionState struct {
	State State
	Err   string
}

// Direction tags a logged frame as outgoing or incoming.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// NodeMessage is one entry in the client's append-only RPC traffic log,
// exposed for diagnostics. The client appends on every frame; consumers
// only read. Truncation for display is the UI's problem, not ours.
type NodeMessage struct {
	ID        uint64
	Direction Direction
	Content   string
	Timestamp time.Time
}

// RPCError is a JSON-RPC 2.0 error object returned by the node. The node
// understood the request and rejected it, so callers should not blindly
// retry.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// message is any frame the node sends: a response (ID set) or a subscription
// notification (Method set, no ID).
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (m *message) isResponse() bool {
	return m.ID != nil
}

func (m *message) isNotification() bool {
	return m.ID == nil && m.Method != ""
}

// notificationParams is the params object of a subscription push frame.
type notificationParams struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// subscriptionID normalizes a raw subscription id (the node may use a JSON
// string or number) to a comparable string.
func subscriptionID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
