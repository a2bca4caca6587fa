// Package brm implements the venue's wire protocol: STOMP text frames
// carried inside a SockJS WebSocket envelope, the transport and STOMP
// session layers on top of it, and the typed stream events the rest of
// the engine consumes.
package brm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Header is a single STOMP header line. Header order is preserved on the
// wire, so frames carry an ordered list rather than a map.
type Header struct {
	Key   string
	Value string
}

// Frame is one STOMP protocol frame.
type Frame struct {
	Command string
	Headers []Header
	Body    string
}

// Header returns the first header value for key.
func (f Frame) Header(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// FrameDecodeError marks a protocol violation while decoding an envelope
// or a STOMP frame. It is never a recoverable business error.
type FrameDecodeError struct {
	Reason string
	Raw    string
}

func (e *FrameDecodeError) Error() string {
	raw := e.Raw
	if len(raw) > 80 {
		raw = raw[:80] + "..."
	}
	return fmt.Sprintf("frame decode: %s (raw %q)", e.Reason, raw)
}

// EncodeFrame renders the STOMP wire representation:
// COMMAND\nkey:value\n...\n\n<body>\x00
func EncodeFrame(f Frame) string {
	var b strings.Builder
	b.WriteString(f.Command)
	b.WriteByte('\n')
	for _, h := range f.Headers {
		b.WriteString(h.Key)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(f.Body)
	b.WriteByte(0)
	return b.String()
}

// DecodeFrame parses the STOMP wire representation. The body ends at the
// first NUL; a frame without a NUL terminator is malformed.
func DecodeFrame(s string) (Frame, error) {
	head, rest, found := strings.Cut(s, "\n\n")
	if !found {
		return Frame{}, &FrameDecodeError{Reason: "missing header/body separator", Raw: s}
	}

	lines := strings.Split(head, "\n")
	command := lines[0]
	if command == "" {
		return Frame{}, &FrameDecodeError{Reason: "empty command", Raw: s}
	}

	f := Frame{Command: command}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Frame{}, &FrameDecodeError{Reason: "malformed header line", Raw: line}
		}
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}

	body, _, found := strings.Cut(rest, "\x00")
	if !found {
		return Frame{}, &FrameDecodeError{Reason: "missing NUL terminator", Raw: s}
	}
	f.Body = body
	return f, nil
}

// EnvelopeKind classifies an inbound transport message.
type EnvelopeKind int

const (
	EnvelopeOpen EnvelopeKind = iota + 1
	EnvelopeHeartbeat
	EnvelopeData
	EnvelopeClose
)

// Envelope is one decoded transport message. Data envelopes carry one or
// more STOMP frames; close envelopes carry the peer's code and reason.
type Envelope struct {
	Kind        EnvelopeKind
	Frames      []Frame
	CloseCode   int
	CloseReason string
}

// DecodeEnvelope classifies and decodes one inbound transport message:
// 'o' open, 'h' heartbeat, 'a'+JSON array of frames, 'c'+JSON array close.
func DecodeEnvelope(msg []byte) (Envelope, error) {
	if len(msg) == 0 {
		return Envelope{}, &FrameDecodeError{Reason: "empty message"}
	}

	switch msg[0] {
	case 'o':
		return Envelope{Kind: EnvelopeOpen}, nil
	case 'h':
		return Envelope{Kind: EnvelopeHeartbeat}, nil
	case 'a':
		var raw []string
		if err := json.Unmarshal(msg[1:], &raw); err != nil {
			return Envelope{}, &FrameDecodeError{Reason: "bad data envelope: " + err.Error(), Raw: string(msg)}
		}
		env := Envelope{Kind: EnvelopeData}
		for _, s := range raw {
			// A lone newline inside a data envelope is a STOMP
			// heartbeat, not a frame.
			if s == "" || s == "\n" {
				continue
			}
			f, err := DecodeFrame(s)
			if err != nil {
				return Envelope{}, err
			}
			env.Frames = append(env.Frames, f)
		}
		return env, nil
	case 'c':
		var raw []json.RawMessage
		if err := json.Unmarshal(msg[1:], &raw); err != nil || len(raw) < 1 {
			return Envelope{}, &FrameDecodeError{Reason: "bad close envelope", Raw: string(msg)}
		}
		env := Envelope{Kind: EnvelopeClose}
		if err := json.Unmarshal(raw[0], &env.CloseCode); err != nil {
			return Envelope{}, &FrameDecodeError{Reason: "bad close code", Raw: string(msg)}
		}
		if len(raw) > 1 {
			if err := json.Unmarshal(raw[1], &env.CloseReason); err != nil {
				return Envelope{}, &FrameDecodeError{Reason: "bad close reason", Raw: string(msg)}
			}
		}
		return env, nil
	default:
		return Envelope{}, &FrameDecodeError{Reason: "unknown envelope tag", Raw: string(msg)}
	}
}

// EncodeEnvelope wraps frames for sending. Outbound client messages are a
// plain JSON array of escaped frame strings, without a tag character.
func EncodeEnvelope(frames ...Frame) ([]byte, error) {
	encoded := make([]string, 0, len(frames))
	for _, f := range frames {
		encoded = append(encoded, EncodeFrame(f))
	}
	return json.Marshal(encoded)
}
