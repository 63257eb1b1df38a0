package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soyeahso/sprout/internal/domain"
)

// Protocol versions this server speaks.
const (
	ProtocolVersion    = 1
	MinProtocolVersion = 1
)

// Gateway-level error codes. Failures of a chat operation use the error
// kind instead, e.g. "not_found" or "timeout".
const (
	CodeProtocolError  = "protocol_error"
	CodeInvalidFrame   = "invalid_frame"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeMethodNotFound = "method_not_found"
	CodeUnavailable    = "unavailable"
	CodeRateLimited    = "rate_limited"
)

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Frame is the envelope of every WebSocket message. Type selects which
// of the other fields are meaningful.
type Frame struct {
	Type string `json:"type"`

	// req
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// event
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// failed res
	Error *ErrorShape `json:"error,omitempty"`
}

// Validate checks the fields a frame of its type must carry.
func (f Frame) Validate() error {
	switch f.Type {
	case FrameTypeRequest:
		if f.ID == "" {
			return errors.New("request frame without id")
		}
		if f.Method == "" {
			return errors.New("request frame without method")
		}
	case FrameTypeResponse, FrameTypeEvent:
	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}

// ErrorShape is the error of a failed response frame.
type ErrorShape struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	RetryAfter int    `json:"retryAfterMs,omitempty"`
}

// ConnectParams is the body of the first request on a socket. Caller is
// the end user every later request runs as; it is trusted only once the
// token check passes.
type ConnectParams struct {
	MinProtocol int            `json:"minProtocol"`
	MaxProtocol int            `json:"maxProtocol"`
	Client      ClientInfo     `json:"client"`
	Auth        *ConnectAuth   `json:"auth,omitempty"`
	Caller      *domain.Caller `json:"caller,omitempty"`
}

// ClientInfo names the backend process holding the socket. It is only
// logged.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform,omitempty"`
}

type ConnectAuth struct {
	Token string `json:"token,omitempty"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
}

type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features lists the RPC methods and events the server offers.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy tells the client the limits it must respect: the largest
// frame, how long a turn may take, and the ping interval.
type ServerPolicy struct {
	MaxPayload     int `json:"maxPayload"`
	TurnTimeoutMs  int `json:"turnTimeoutMs"`
	TickIntervalMs int `json:"tickIntervalMs"`
}

func encodeBody(kind string, v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", kind, err)
	}
	return raw, nil
}

// NewRequest builds a request frame. Used by clients and tests.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := encodeBody(FrameTypeRequest, params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse builds a successful response to request id.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := encodeBody(FrameTypeResponse, payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse builds a failed response to request id.
func NewErrorResponse(id string, shape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &shape}
}

// NewEvent builds a server-pushed event. seq orders events per server.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := encodeBody(FrameTypeEvent, payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Seq: seq, Payload: raw}, nil
}

// negotiate picks the protocol version for a client advertising
// [min, max]. Zero bounds mean unspecified.
func negotiate(minVer, maxVer int) (int, error) {
	if maxVer == 0 {
		maxVer = ProtocolVersion
	}
	if minVer == 0 {
		minVer = MinProtocolVersion
	}
	if minVer > maxVer {
		return 0, fmt.Errorf("invalid protocol range %d-%d", minVer, maxVer)
	}
	v := min(maxVer, ProtocolVersion)
	if v < minVer || v < MinProtocolVersion {
		return 0, fmt.Errorf("client protocol %d-%d not supported (server %d-%d)",
			minVer, maxVer, MinProtocolVersion, ProtocolVersion)
	}
	return v, nil
}
