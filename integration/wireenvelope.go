package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MessageKind distinguishes the three tagged-union shapes carried over
// the wire: requests expect a response, notifications don't.
type MessageKind string

const (
	KindRequest      MessageKind = "request"
	KindResponse     MessageKind = "response"
	KindNotification MessageKind = "notification"
)

// Request methods (spec §6).
const (
	MethodHandshake    = "handshake"
	MethodDiscover     = "discover"
	MethodAgentMessage = "agent_message"
	MethodPing         = "ping"
)

// Response methods mirror their request, plus a generic error.
const (
	MethodHandshakeAck  = "handshake_ack"
	MethodDiscoverResult = "discover_result"
	MethodAgentResponse  = "agent_response"
	MethodPong           = "pong"
	MethodError          = "error"
)

// Notification methods: fire-and-forget, no response expected.
const (
	MethodAgentSpawned    = "agent_spawned"
	MethodAgentTerminated = "agent_terminated"
	MethodShuttingDown    = "shutting_down"
)

// ProtocolVersion mismatch yields Error(code=426), per spec §6.
const ProtocolVersion uint32 = 1

const ErrCodeVersionMismatch = 426

// Envelope is the tagged-union message carried over the wire, framed
// with a 4-byte big-endian length header by WriteEnvelope/ReadEnvelope.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Version uint32          `json:"version"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WriteEnvelope marshals env as JSON and writes it to w prefixed with
// its length as a 4-byte big-endian unsigned integer.
func WriteEnvelope(w io.Writer, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadEnvelope reads one length-prefixed JSON body from r and decodes
// it into an Envelope.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(header[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// HandshakePayload is the handshake request's payload: a nonce and an
// HMAC-SHA256 over nonce||node_id under the pre-shared secret, giving
// mutual authentication between peers.
type HandshakePayload struct {
	NodeID    string `json:"node_id"`
	Nonce     []byte `json:"nonce"`
	MAC       []byte `json:"mac"`
	Version   uint32 `json:"version"`
}

// SignHandshake computes the MAC for a handshake payload under secret.
func SignHandshake(nonce []byte, nodeID string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(nonce)
	mac.Write([]byte(nodeID))
	return mac.Sum(nil)
}

// VerifyHandshake reports whether payload's MAC is valid under secret.
func VerifyHandshake(p HandshakePayload, secret []byte) bool {
	expected := SignHandshake(p.Nonce, p.NodeID, secret)
	return hmac.Equal(expected, p.MAC)
}

// RemoteAgentInfo is what one kernel node advertises about a locally
// hosted agent to a peer during discover — the wire shape for §4.15's
// federation, modeled on the teacher's agent-card fields but trimmed
// to the narrow boundary the wire protocol actually specifies: no
// endpoints or auth scheme negotiation, since the kernel's peer
// protocol is framed JSON over one already-authenticated connection,
// not an HTTP-addressable surface.
type RemoteAgentInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// DiscoverResult is the payload of a discover_result response.
type DiscoverResult struct {
	NodeID string            `json:"node_id"`
	Agents []RemoteAgentInfo `json:"agents"`
}

// ErrorPayload is the payload of an error response.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// VersionMismatchError builds the error envelope for a protocol
// version that does not match ProtocolVersion.
func VersionMismatchError(id string, got uint32) Envelope {
	payload, _ := json.Marshal(ErrorPayload{
		Code:    ErrCodeVersionMismatch,
		Message: fmt.Sprintf("unsupported protocol version %d, expected %d", got, ProtocolVersion),
	})
	return Envelope{
		Kind:    KindResponse,
		Version: ProtocolVersion,
		ID:      id,
		Method:  MethodError,
		Payload: payload,
	}
}
