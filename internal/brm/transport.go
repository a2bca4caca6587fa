package brm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send before the open frame was observed
// or after the transport closed.
var ErrNotConnected = errors.New("transport not connected")

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newServerID returns the random 3-digit server id the SockJS endpoint
// requires for routing. The value carries no meaning beyond uniqueness.
func newServerID() string {
	return fmt.Sprintf("%03d", rand.Intn(1000))
}

func newSessionID() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = sessionIDAlphabet[rand.Intn(len(sessionIDAlphabet))]
	}
	return string(b)
}

// SessionURL builds the per-connection SockJS WebSocket URL with freshly
// generated server and session identifiers.
func SessionURL(baseURL string) string {
	return fmt.Sprintf("%s/user/%s/%s/websocket", baseURL, newServerID(), newSessionID())
}

// Transport owns exactly one live WebSocket and the envelope-level
// handshake. It is single-use: once closed it is never reopened.
type Transport struct {
	conn   *websocket.Conn
	opened bool
	closed bool
}

// DialTransport opens the socket and waits for the SockJS open frame.
func DialTransport(ctx context.Context, baseURL string, timeout time.Duration) (*Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, SessionURL(baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("dial transport: %w", err)
	}

	t := &Transport{conn: conn}

	env, err := t.read(timeout)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for open frame: %w", err)
	}
	if env.Kind != EnvelopeOpen {
		conn.Close()
		return nil, fmt.Errorf("expected open frame, got envelope kind %d", env.Kind)
	}

	t.opened = true
	return t, nil
}

// Send encodes and writes one STOMP frame. Fails with ErrNotConnected if
// the open frame was never observed or the transport has closed.
func (t *Transport) Send(f Frame) error {
	if !t.opened || t.closed {
		return ErrNotConnected
	}
	payload, err := EncodeEnvelope(f)
	if err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

// Heartbeat writes one STOMP heartbeat, a lone newline inside a data
// envelope.
func (t *Transport) Heartbeat() error {
	if !t.opened || t.closed {
		return ErrNotConnected
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(`["\n"]`))
}

// Read blocks for the next envelope, up to timeout. A close envelope is
// terminal: the transport marks itself closed and still returns it so the
// caller can inspect the code and reason.
func (t *Transport) Read(timeout time.Duration) (Envelope, error) {
	if t.closed {
		return Envelope{}, ErrNotConnected
	}
	env, err := t.read(timeout)
	if err != nil {
		t.Close()
		return Envelope{}, err
	}
	if env.Kind == EnvelopeClose {
		t.Close()
	}
	return env, nil
}

func (t *Transport) read(timeout time.Duration) (Envelope, error) {
	if timeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}
	return DecodeEnvelope(msg)
}

// Close shuts the socket. Safe to call more than once.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
