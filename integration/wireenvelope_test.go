package integration

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadEnvelopeRoundTrips(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{"hello": "world"})
	env := Envelope{Kind: KindRequest, Version: ProtocolVersion, ID: "1", Method: MethodPing, Payload: payload}

	var buf bytes.Buffer
	require.NoError(t, WriteEnvelope(&buf, env))

	got, err := ReadEnvelope(&buf)
	require.NoError(t, err)
	require.Equal(t, env.Kind, got.Kind)
	require.Equal(t, env.Method, got.Method)
	require.JSONEq(t, string(env.Payload), string(got.Payload))
}

func TestReadEnvelopeTruncatedHeaderErrors(t *testing.T) {
	buf := bytes.NewReader([]byte{0, 0})
	_, err := ReadEnvelope(buf)
	require.Error(t, err)
}

func TestHandshakeSignAndVerify(t *testing.T) {
	secret := []byte("shared-secret")
	nonce := []byte("abc123")
	mac := SignHandshake(nonce, "node-a", secret)

	p := HandshakePayload{NodeID: "node-a", Nonce: nonce, MAC: mac, Version: ProtocolVersion}
	require.True(t, VerifyHandshake(p, secret))
}

func TestHandshakeVerifyRejectsWrongSecret(t *testing.T) {
	mac := SignHandshake([]byte("nonce"), "node-a", []byte("secret-one"))
	p := HandshakePayload{NodeID: "node-a", Nonce: []byte("nonce"), MAC: mac}
	require.False(t, VerifyHandshake(p, []byte("secret-two")))
}

func TestVersionMismatchErrorCarriesCode426(t *testing.T) {
	env := VersionMismatchError("req-1", 99)
	require.Equal(t, MethodError, env.Method)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Equal(t, ErrCodeVersionMismatch, payload.Code)
}
