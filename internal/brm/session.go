package brm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/infra"
)

var (
	// ErrHandshakeFailed covers a rejected or timed-out CONNECT.
	ErrHandshakeFailed = errors.New("stomp handshake failed")

	// ErrSessionLost is surfaced after the reconnect budget is exhausted.
	ErrSessionLost = errors.New("session lost: reconnect attempts exhausted")
)

// SessionState is the protocol client's connection state machine.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateTransportConnecting
	StateTransportOpen
	StateStompConnecting
	StateStompConnected
	StateReconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateTransportConnecting:
		return "transport-connecting"
	case StateTransportOpen:
		return "transport-open"
	case StateStompConnecting:
		return "stomp-connecting"
	case StateStompConnected:
		return "stomp-connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// TokenSource supplies the bearer token for the CONNECT frame. Each
// reconnect asks again so a refreshed token is picked up.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// conn is the transport capability the session drives. *Transport
// satisfies it; tests substitute scripted fakes.
type conn interface {
	Send(Frame) error
	Heartbeat() error
	Read(timeout time.Duration) (Envelope, error)
	Close() error
}

// SessionConfig carries the venue endpoint and protocol tuning.
type SessionConfig struct {
	BaseURL              string
	Host                 string
	Topics               Topics
	HeartbeatMillis      int
	HandshakeTimeout     time.Duration
	ReadTimeout          time.Duration
	MaxReconnectAttempts int
}

func (c *SessionConfig) applyDefaults() {
	if c.HeartbeatMillis == 0 {
		c.HeartbeatMillis = 10000
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
}

// MessageHandler receives typed events for one subscription. Handlers run
// on the session's read goroutine and must not block.
type MessageHandler func(StreamEvent)

type subscription struct {
	id      string
	topic   string
	handler MessageHandler
}

// Session drives the STOMP protocol over a Transport: handshake,
// subscription dispatch, and reconnect with bounded exponential backoff.
type Session struct {
	cfg     SessionConfig
	tokens  TokenSource
	dial    func(ctx context.Context) (conn, error)
	backoff func(attempt int) time.Duration
	log     *slog.Logger

	// OnError receives venue ERROR frames. OnSessionLost fires once the
	// reconnect budget is exhausted. Both must be set before Start.
	OnError       func(Frame)
	OnSessionLost func(error)

	mu    sync.Mutex
	tr    conn
	state SessionState
	subs  map[string]*subscription // keyed by subscription id
	token string                   // bearer token the venue currently holds

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession builds a session; Start must be called before use.
func NewSession(cfg SessionConfig, tokens TokenSource, log *slog.Logger) *Session {
	cfg.applyDefaults()
	s := &Session{
		cfg:    cfg,
		tokens: tokens,
		log:    log,
		subs:   make(map[string]*subscription),
	}
	s.dial = func(ctx context.Context) (conn, error) {
		return DialTransport(ctx, cfg.BaseURL, cfg.HandshakeTimeout)
	}
	s.backoff = infra.CalculateBackoff
	return s
}

// State returns the current connection state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the STOMP handshake has completed and the
// session has not been torn down since.
func (s *Session) Connected() bool {
	return s.State() == StateStompConnected
}

// Start connects and launches the read and keepalive loops. The first
// connect is not retried: a broken venue at startup should fail fast.
func (s *Session) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.connect(ctx); err != nil {
		return err
	}

	s.wg.Add(2)
	go s.readLoop(ctx)
	go s.keepaliveLoop(ctx)
	return nil
}

// Stop sends DISCONNECT, closes the transport and waits for the read
// loop to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.tr != nil && s.state == StateStompConnected {
		// Best effort; the socket is closed right after.
		_ = s.tr.Send(Frame{Command: "DISCONNECT"})
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.tr != nil {
		s.tr.Close()
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.wg.Wait()
}

// connect dials a fresh transport and performs the CONNECT/CONNECTED
// handshake. Any other response, or a timeout, is ErrHandshakeFailed.
func (s *Session) connect(ctx context.Context) error {
	s.setState(StateTransportConnecting)

	tr, err := s.dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}
	s.setState(StateTransportOpen)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		tr.Close()
		s.setState(StateDisconnected)
		return fmt.Errorf("fetch access token: %w", err)
	}

	s.setState(StateStompConnecting)
	heartbeat := strconv.Itoa(s.cfg.HeartbeatMillis)
	connectFrame := Frame{
		Command: "CONNECT",
		Headers: []Header{
			{"accept-version", "1.2"},
			{"host", s.cfg.Host},
			{"X-AUTH-TOKEN", token},
			{"heart-beat", heartbeat + "," + heartbeat},
		},
	}
	if err := tr.Send(connectFrame); err != nil {
		tr.Close()
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: send CONNECT: %v", ErrHandshakeFailed, err)
	}

	deadline := time.Now().Add(s.cfg.HandshakeTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			tr.Close()
			s.setState(StateDisconnected)
			return fmt.Errorf("%w: timeout waiting for CONNECTED", ErrHandshakeFailed)
		}

		env, err := tr.Read(remaining)
		if err != nil {
			tr.Close()
			s.setState(StateDisconnected)
			return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}

		switch env.Kind {
		case EnvelopeHeartbeat, EnvelopeOpen:
			continue
		case EnvelopeClose:
			tr.Close()
			s.setState(StateDisconnected)
			return fmt.Errorf("%w: transport closed (%d %s)", ErrHandshakeFailed, env.CloseCode, env.CloseReason)
		case EnvelopeData:
			if len(env.Frames) == 0 {
				continue
			}
			if env.Frames[0].Command != "CONNECTED" {
				tr.Close()
				s.setState(StateDisconnected)
				return fmt.Errorf("%w: got %s", ErrHandshakeFailed, env.Frames[0].Command)
			}

			s.mu.Lock()
			s.tr = tr
			s.state = StateStompConnected
			s.token = token
			s.mu.Unlock()
			s.log.Info("stomp session connected", "host", s.cfg.Host)
			return nil
		}
	}
}

// Subscribe registers a handler and sends the SUBSCRIBE frame.
// Subscribing to an already-subscribed topic returns the existing id.
func (s *Session) Subscribe(topic string, handler MessageHandler) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStompConnected {
		return "", ErrNotConnected
	}
	for _, sub := range s.subs {
		if sub.topic == topic {
			return sub.id, nil
		}
	}

	id := uuid.NewString()
	if err := s.tr.Send(subscribeFrame(id, topic)); err != nil {
		return "", err
	}

	s.subs[id] = &subscription{id: id, topic: topic, handler: handler}
	s.log.Info("subscribed", "topic", topic, "id", id)
	return id, nil
}

// Unsubscribe cancels a subscription by id.
func (s *Session) Unsubscribe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil
	}
	if s.state != StateStompConnected {
		return ErrNotConnected
	}
	if err := s.tr.Send(Frame{
		Command: "UNSUBSCRIBE",
		Headers: []Header{{"id", id}},
	}); err != nil {
		return err
	}

	delete(s.subs, id)
	s.log.Info("unsubscribed", "topic", sub.topic, "id", id)
	return nil
}

// Send delivers an application frame (e.g. order entry) to a destination.
// receiptID is optional.
func (s *Session) Send(destination string, body []byte, receiptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStompConnected {
		return ErrNotConnected
	}

	headers := []Header{
		{"destination", destination},
		{"content-type", "application/json"},
	}
	if receiptID != "" {
		headers = append(headers, Header{"receipt", receiptID})
	}
	return s.tr.Send(Frame{Command: "SEND", Headers: headers, Body: string(body)})
}

// RefreshToken asks the token source for the current access token and,
// when it has rotated since the CONNECT, swaps it on the live session
// through the command destination. No-op while the token is unchanged.
func (s *Session) RefreshToken(ctx context.Context) error {
	current, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}

	s.mu.Lock()
	old := s.token
	s.mu.Unlock()
	if old == "" || current == old {
		return nil
	}

	body, err := json.Marshal(NewTokenRefreshCommand(old, current))
	if err != nil {
		return err
	}
	if err := s.Send(s.cfg.Topics.Command(), body, ""); err != nil {
		return fmt.Errorf("send token refresh: %w", err)
	}

	s.mu.Lock()
	s.token = current
	s.mu.Unlock()
	s.log.Info("session token refreshed")
	return nil
}

// keepaliveLoop sends the client half of the negotiated heart-beat and
// keeps the venue's bearer token current. The server drops sessions that
// stay silent for a full heartbeat window.
func (s *Session) keepaliveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.cfg.HeartbeatMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		tr := s.tr
		connected := s.state == StateStompConnected
		s.mu.Unlock()
		if !connected || tr == nil {
			continue
		}

		if err := tr.Heartbeat(); err != nil {
			// The read loop owns reconnection; a failed write here just
			// means the transport is already going down.
			s.log.Debug("heartbeat send failed", "err", err)
			continue
		}
		if err := s.RefreshToken(ctx); err != nil {
			s.log.Warn("token refresh failed", "err", err)
		}
	}
}

func subscribeFrame(id, topic string) Frame {
	return Frame{
		Command: "SUBSCRIBE",
		Headers: []Header{
			{"id", id},
			{"destination", topic},
			{"ack", "auto"},
		},
	}
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) currentTransport() conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr
}

func (s *Session) readLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		tr := s.currentTransport()
		if tr == nil {
			return
		}

		env, err := tr.Read(s.cfg.ReadTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("transport read failed", "err", err)
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		switch env.Kind {
		case EnvelopeHeartbeat, EnvelopeOpen:
			// Heartbeats only reset the read deadline.
		case EnvelopeClose:
			s.log.Warn("transport closed by peer", "code", env.CloseCode, "reason", env.CloseReason)
			if !s.reconnect(ctx) {
				return
			}
		case EnvelopeData:
			for _, f := range env.Frames {
				s.dispatch(f)
			}
		}
	}
}

func (s *Session) dispatch(f Frame) {
	switch f.Command {
	case "MESSAGE":
		subID, _ := f.Header("subscription")
		destination, _ := f.Header("destination")

		s.mu.Lock()
		sub, ok := s.subs[subID]
		s.mu.Unlock()
		if !ok {
			s.log.Debug("message for unknown subscription", "subscription", subID, "destination", destination)
			return
		}

		ev, err := DecodeStreamEvent(destination, []byte(f.Body))
		if err != nil {
			s.log.Error("failed to decode stream event", "destination", destination, "err", err)
			return
		}
		sub.handler(ev)

	case "ERROR":
		msg, _ := f.Header("message")
		s.log.Error("venue error frame", "message", msg, "body", f.Body)
		if s.OnError != nil {
			s.OnError(f)
		}

	case "RECEIPT":
		id, _ := f.Header("receipt-id")
		s.log.Debug("receipt", "id", id)

	default:
		s.log.Debug("unhandled frame", "command", f.Command)
	}
}

// reconnect re-dials, repeats the handshake and re-establishes every
// subscription that was active before the disconnect. Returns false once
// the attempt budget is exhausted, after surfacing ErrSessionLost.
func (s *Session) reconnect(ctx context.Context) bool {
	s.mu.Lock()
	if s.tr != nil {
		s.tr.Close()
	}
	s.state = StateReconnecting
	desired := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		desired = append(desired, sub)
	}
	s.mu.Unlock()

	for attempt := 0; attempt < s.cfg.MaxReconnectAttempts; attempt++ {
		delay := s.backoff(attempt)
		s.log.Info("reconnecting",
			"attempt", attempt+1,
			"remaining", s.cfg.MaxReconnectAttempts-attempt-1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := s.connect(ctx); err != nil {
			s.log.Warn("reconnect attempt failed", "attempt", attempt+1, "err", err)
			continue
		}

		if err := s.resubscribe(desired); err != nil {
			s.log.Warn("resubscribe failed", "err", err)
			continue
		}

		s.log.Info("session re-established", "subscriptions", len(desired))
		return true
	}

	s.setState(StateDisconnected)
	s.log.Error("reconnect budget exhausted", "attempts", s.cfg.MaxReconnectAttempts)
	if s.OnSessionLost != nil {
		s.OnSessionLost(ErrSessionLost)
	}
	return false
}

func (s *Session) resubscribe(desired []*subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStompConnected {
		return ErrNotConnected
	}
	for _, sub := range desired {
		if err := s.tr.Send(subscribeFrame(sub.id, sub.topic)); err != nil {
			return err
		}
		s.subs[sub.id] = sub
	}
	return nil
}
