// ABOUTME: Agent protocol message framing: length-prefixed type+payload frames
// ABOUTME: Reads frames with short-read accumulation and writes them in a single call

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageLength is the largest frame length accepted from the wire.
const MaxMessageLength = 256 * 1024

// ErrMalformed is returned for invalid lengths, truncated frames and
// out-of-bounds sub-structure fields.
var ErrMalformed = errors.New("malformed agent message")

// MessageType identifies an agent protocol message.
type MessageType uint8

// Message types used by agentmux. Anything else is forwarded opaquely.
const (
	TypeFailure             MessageType = 5
	TypeSuccess             MessageType = 6
	TypeRequestIdentities   MessageType = 11
	TypeIdentitiesAnswer    MessageType = 12
	TypeSignRequest         MessageType = 13
	TypeSignResponse        MessageType = 14
	TypeAddIdentity         MessageType = 17
	TypeRemoveIdentity      MessageType = 18
	TypeRemoveAllIdentities MessageType = 19
	TypeAddIDConstrained    MessageType = 25
	TypeExtension           MessageType = 27
	TypeExtensionFailure    MessageType = 28
)

// String returns a readable name for logging.
func (t MessageType) String() string {
	switch t {
	case TypeFailure:
		return "FAILURE"
	case TypeSuccess:
		return "SUCCESS"
	case TypeRequestIdentities:
		return "REQUEST_IDENTITIES"
	case TypeIdentitiesAnswer:
		return "IDENTITIES_ANSWER"
	case TypeSignRequest:
		return "SIGN_REQUEST"
	case TypeSignResponse:
		return "SIGN_RESPONSE"
	case TypeAddIdentity:
		return "ADD_IDENTITY"
	case TypeRemoveIdentity:
		return "REMOVE_IDENTITY"
	case TypeRemoveAllIdentities:
		return "REMOVE_ALL_IDENTITIES"
	case TypeAddIDConstrained:
		return "ADD_ID_CONSTRAINED"
	case TypeExtension:
		return "EXTENSION"
	case TypeExtensionFailure:
		return "EXTENSION_FAILURE"
	default:
		return fmt.Sprintf("TYPE_%d", uint8(t))
	}
}

// Message is a single framed agent protocol message.
// The payload is owned by the message and must not be shared.
type Message struct {
	Type    MessageType
	Payload []byte
}

// NewFailure returns a FAILURE message with an empty payload.
func NewFailure() *Message {
	return &Message{Type: TypeFailure}
}

// IsFailure reports whether the message is a generic or extension failure.
func (m *Message) IsFailure() bool {
	return m.Type == TypeFailure || m.Type == TypeExtensionFailure
}

// ReadMessage reads one frame from r.
// It returns io.EOF if the stream ends cleanly before a frame starts.
func ReadMessage(r io.Reader) (*Message, error) {
	var header [4]byte
	n, err := readFull(r, header[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: stream closed after %d header bytes", ErrMalformed, n)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > MaxMessageLength {
		return nil, fmt.Errorf("%w: invalid length %d", ErrMalformed, length)
	}

	body := make([]byte, length)
	n, err = readFull(r, body)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: stream closed after %d of %d payload bytes", ErrMalformed, n, length)
		}
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	return &Message{Type: MessageType(body[0]), Payload: body[1:]}, nil
}

// readFull accumulates reads until buf is full. Unlike io.ReadFull it
// reports a zero-byte read at any position as io.EOF so the caller can tell
// a clean close from a truncated frame.
func readFull(r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if total == len(buf) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

// Marshal returns the framed wire form of the message.
func (m *Message) Marshal() []byte {
	buf := make([]byte, 5+len(m.Payload))
	binary.BigEndian.PutUint32(buf, uint32(1+len(m.Payload)))
	buf[4] = byte(m.Type)
	copy(buf[5:], m.Payload)
	return buf
}

type flusher interface {
	Flush() error
}

// WriteMessage writes the framed message in a single call and flushes w if
// it buffers.
func WriteMessage(w io.Writer, m *Message) error {
	if 1+len(m.Payload) > MaxMessageLength {
		return fmt.Errorf("%w: payload of %d bytes exceeds limit", ErrMalformed, len(m.Payload))
	}
	if _, err := w.Write(m.Marshal()); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing message: %w", err)
		}
	}
	return nil
}
